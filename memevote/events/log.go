package events

import (
	"context"

	"github.com/pavlenkotm/memevote/memevote/memevotepb"
	"github.com/pavlenkotm/memevote/utils/log"
	"go.uber.org/zap"
)

// Log returns a sink that writes every event to logger
// at info level. Fields attached to the context with
// log.WithFields are included.
func Log(logger *zap.Logger) Sink {
	if logger == nil {
		logger = zap.L()
	}

	return &logSink{logger: logger}
}

type logSink struct {
	logger *zap.Logger
}

func (sink *logSink) Notify(ctx context.Context, event Event) {
	logger := log.WithContext(ctx, sink.logger)

	switch e := event.(type) {
	case *memevotepb.MemeCreated:
		logger.Info("meme created",
			zap.String("event", e.EventType()),
			zap.Uint32("id", e.ID),
			zap.String("creator", e.Creator),
			zap.String("title", e.Title),
			zap.String("url", e.URL))
	case *memevotepb.VoteCast:
		logger.Info("vote cast",
			zap.String("event", e.EventType()),
			zap.Uint32("meme_id", e.MemeID),
			zap.String("voter", e.Voter))
	default:
		logger.Info("event", zap.String("event", event.EventType()), zap.Stringer("payload", event))
	}
}
