package stream

import "github.com/pavlenkotm/memevote/utils/sortedwindow"

// Sort finds the lowest N elements in a stream as defined by the comparison
// function and returns them in ascending order. If limit > 0 then N = limit,
// otherwise N = the size of the stream. In other words, if limit is <= 0 then
// it sorts the entire collection. The source stream is drained on the first
// call to Next.
func Sort(compare func(a interface{}, b interface{}) int, limit int) Processor {
	return func(stream Stream) Stream {
		return &sortedStream{
			Stream: stream,
			window: sortedwindow.New(compare, sortedwindow.WithLimit(limit)),
		}
	}
}

type sortedStream struct {
	Stream
	window *sortedwindow.SortedMinWindow
	iter   *sortedwindow.Iterator
}

func (stream *sortedStream) Next() bool {
	if stream.iter == nil {
		for stream.Stream.Next() {
			stream.window.Insert(stream.Stream.Value())
		}

		if stream.Stream.Error() != nil {
			return false
		}

		stream.iter = stream.window.Iterator()
	}

	return stream.iter.Next()
}

func (stream *sortedStream) Value() interface{} {
	if stream.iter == nil {
		return nil
	}

	return stream.iter.Value()
}
