package events

import (
	"context"

	"github.com/pavlenkotm/memevote/memevote/memevotepb"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a sink that counts events
type Metrics struct {
	registry *prometheus.Registry

	MemesCreated prometheus.Counter
	VotesCast    prometheus.Counter
}

// NewMetrics creates a metrics sink whose counters
// live on their own registry
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	memesCreated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memes_created_total",
			Help:      "Total number of memes created",
		},
	)

	votesCast := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Total number of votes cast",
		},
	)

	registry.MustRegister(memesCreated, votesCast)

	return &Metrics{
		registry:     registry,
		MemesCreated: memesCreated,
		VotesCast:    votesCast,
	}
}

// Notify implements Sink.Notify
func (metrics *Metrics) Notify(ctx context.Context, event Event) {
	switch event.(type) {
	case *memevotepb.MemeCreated:
		metrics.MemesCreated.Inc()
	case *memevotepb.VoteCast:
		metrics.VotesCast.Inc()
	}
}

// Gatherer exposes the registry holding the counters
func (metrics *Metrics) Gatherer() prometheus.Gatherer {
	return metrics.registry
}
