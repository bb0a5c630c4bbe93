package stream

// Map replaces each element of the source stream
// with the result of fn
func Map(fn func(value interface{}) interface{}) Processor {
	return func(stream Stream) Stream {
		return &mappedStream{Stream: stream, fn: fn}
	}
}

type mappedStream struct {
	Stream
	fn    func(value interface{}) interface{}
	value interface{}
}

func (stream *mappedStream) Next() bool {
	if !stream.Stream.Next() {
		stream.value = nil

		return false
	}

	stream.value = stream.fn(stream.Stream.Value())

	return true
}

func (stream *mappedStream) Value() interface{} {
	return stream.value
}
