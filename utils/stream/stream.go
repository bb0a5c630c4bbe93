package stream

// Stream describes a stream of values
type Stream interface {
	// Next advances the stream. It must
	// be called once at the start to advance
	// to the first item in the stream. It returns
	// true if there is a value available
	// or false otherwise. It may return false in
	// case of an error. Error() will return
	// an error if this is the case and must be checked
	// after Next() returns false.
	Next() bool
	// Value returns the value at the current position
	// or nil if iteration is done.
	Value() interface{}
	// Error returns the error that occurred, if any
	Error() error
}

// Processor is a function that returns a stream
// derived from a source stream.
type Processor func(Stream) Stream

// Pipeline connects a series of processors to a source
// stream and returns the derived stream, so that
// Pipeline(s, p1, p2, p3) reads like the order in which
// values flow rather than p3(p2(p1(s))). nil processors
// are skipped.
func Pipeline(stream Stream, processors ...Processor) Stream {
	for _, processor := range processors {
		if processor == nil {
			continue
		}

		stream = processor(stream)
	}

	return stream
}

// Collect drains the stream into a slice
func Collect(stream Stream) ([]interface{}, error) {
	values := []interface{}{}

	for stream.Next() {
		values = append(values, stream.Value())
	}

	if stream.Error() != nil {
		return nil, stream.Error()
	}

	return values, nil
}
