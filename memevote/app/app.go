// Package app wires a Registry together from configuration.
package app

import (
	"fmt"

	"github.com/pavlenkotm/memevote/memevote/config"
	"github.com/pavlenkotm/memevote/memevote/events"
	"github.com/pavlenkotm/memevote/memevote/registry"
	"github.com/pavlenkotm/memevote/storage/kv"
	"github.com/pavlenkotm/memevote/storage/kv/plugins"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// App owns a registry and the resources behind it
type App struct {
	// Registry is safe for concurrent use
	Registry registry.Registry
	// Metrics is nil unless metrics are enabled
	Metrics *events.Metrics

	logger      *zap.Logger
	rootStore   kv.RootStore
	async       *events.Async
	metricsFile string
}

// NewLogger builds a zap logger from the log configuration
func NewLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	var level zapcore.Level

	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}

// New opens the configured store, creates the registry's
// partition if needed and attaches the configured sinks.
// cfg must be valid.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.L()
	}

	plugin := plugins.Plugin(cfg.Storage.Plugin)

	if plugin == nil {
		return nil, fmt.Errorf("no such storage plugin %q", cfg.Storage.Plugin)
	}

	options := kv.PluginOptions{}

	if cfg.Storage.Path != "" {
		options["path"] = cfg.Storage.Path
	}

	if cfg.Storage.DSN != "" {
		options["dsn"] = cfg.Storage.DSN
	}

	rootStore, err := plugin.NewRootStore(options)

	if err != nil {
		return nil, fmt.Errorf("could not open %s store: %w", plugin.Name(), err)
	}

	partition, err := ensurePartition(rootStore, cfg.Storage)

	if err != nil {
		rootStore.Close()

		return nil, err
	}

	app := &App{
		logger:    logger,
		rootStore: rootStore,
	}

	var sinks []events.Sink

	if cfg.Events.Log {
		sinks = append(sinks, events.Log(logger.Named("events")))
	}

	if cfg.Events.Metrics {
		app.Metrics = events.NewMetrics(cfg.Events.MetricsNamespace)
		app.metricsFile = cfg.Events.MetricsFile
		sinks = append(sinks, app.Metrics)
	}

	sink := events.Multi(sinks...)

	if cfg.Events.Buffer > 0 && len(sinks) > 0 {
		app.async = events.NewAsync(sink, cfg.Events.Buffer, logger)
		sink = app.async
	}

	app.Registry = registry.Synchronized(registry.New(registry.Config{
		Logger:    logger.Named("registry"),
		Partition: partition,
		Sink:      sink,
	}))

	logger.Debug("app ready",
		zap.String("plugin", plugin.Name()),
		zap.String("store", cfg.Storage.Store),
		zap.String("partition", cfg.Storage.Partition))

	return app, nil
}

func ensurePartition(rootStore kv.RootStore, cfg config.StorageConfig) (kv.Partition, error) {
	store := rootStore.Store([]byte(cfg.Store))

	if err := store.Create(); err != nil {
		return nil, fmt.Errorf("could not create store %s: %w", cfg.Store, err)
	}

	partition := store.Partition([]byte(cfg.Partition))

	if err := partition.Create(); err != nil {
		return nil, fmt.Errorf("could not create partition %s: %w", cfg.Partition, err)
	}

	return partition, nil
}

// Close flushes pending events, writes the metrics file
// if one is configured and closes the store
func (app *App) Close() error {
	if app.async != nil {
		app.async.Close()
	}

	var metricsErr error

	if app.metricsFile != "" {
		if err := prometheus.WriteToTextfile(app.metricsFile, app.Metrics.Gatherer()); err != nil {
			metricsErr = fmt.Errorf("could not write metrics to %s: %w", app.metricsFile, err)
			app.logger.Warn("could not write metrics", zap.String("path", app.metricsFile), zap.Error(err))
		}
	}

	if err := app.rootStore.Close(); err != nil {
		return fmt.Errorf("could not close store: %w", err)
	}

	return metricsErr
}
