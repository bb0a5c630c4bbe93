package stream

import "go.uber.org/zap"

// Log logs values as they pass through at debug level.
func Log(logger *zap.Logger, msg string) Processor {
	return func(stream Stream) Stream {
		return &loggedStream{stream, logger, msg}
	}
}

type loggedStream struct {
	Stream
	logger *zap.Logger
	msg    string
}

func (stream *loggedStream) Next() bool {
	if !stream.Stream.Next() {
		if stream.Stream.Error() != nil {
			stream.logger.Debug(stream.msg, zap.Error(stream.Stream.Error()))
		}

		return false
	}

	stream.logger.Debug(stream.msg, zap.Any("value", stream.Value()))

	return true
}
