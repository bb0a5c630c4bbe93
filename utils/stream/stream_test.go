package stream_test

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pavlenkotm/memevote/utils/stream"
	"go.uber.org/zap"
)

type sliceStream struct {
	values []int
	value  int
	err    error
}

func ints(values ...int) *sliceStream {
	return &sliceStream{values: values}
}

func (s *sliceStream) Next() bool {
	if len(s.values) == 0 {
		return false
	}

	s.value = s.values[0]
	s.values = s.values[1:]

	return true
}

func (s *sliceStream) Value() interface{} {
	return s.value
}

func (s *sliceStream) Error() error {
	if len(s.values) == 0 {
		return s.err
	}

	return nil
}

func collectInts(t *testing.T, s stream.Stream) []int {
	t.Helper()

	values, err := stream.Collect(s)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	result := []int{}

	for _, v := range values {
		result = append(result, v.(int))
	}

	return result
}

func compare(a, b interface{}) int {
	if a.(int) < b.(int) {
		return -1
	} else if a.(int) > b.(int) {
		return 1
	}

	return 0
}

func descending(a, b interface{}) int {
	return -1 * compare(a, b)
}

func negate(v interface{}) interface{} {
	return -v.(int)
}

func TestPipeline(t *testing.T) {
	testCases := map[string]struct {
		input      []int
		processors []stream.Processor
		output     []int
	}{
		"no-processors": {
			input:  []int{3, 1, 2},
			output: []int{3, 1, 2},
		},
		"limit": {
			input:      []int{5, 4, 3, 2, 1},
			processors: []stream.Processor{stream.Limit(2)},
			output:     []int{5, 4},
		},
		"limit-zero-is-unlimited": {
			input:      []int{5, 4, 3},
			processors: []stream.Processor{stream.Limit(0)},
			output:     []int{5, 4, 3},
		},
		"limit-larger-than-stream": {
			input:      []int{5, 4},
			processors: []stream.Processor{stream.Limit(10)},
			output:     []int{5, 4},
		},
		"sort": {
			input:      []int{4, 2, 9, 1},
			processors: []stream.Processor{stream.Sort(compare, -1)},
			output:     []int{1, 2, 4, 9},
		},
		"sort-descending-with-window": {
			input:      []int{4, 2, 9, 1, 7},
			processors: []stream.Processor{stream.Sort(descending, 3)},
			output:     []int{9, 7, 4},
		},
		"map": {
			input:      []int{1, 2, 3},
			processors: []stream.Processor{stream.Map(func(v interface{}) interface{} { return v.(int) * 10 })},
			output:     []int{10, 20, 30},
		},
		"map-sort-limit": {
			input:      []int{-3, 8, 0, 5, 1, 9},
			processors: []stream.Processor{stream.Map(negate), stream.Sort(compare, -1), stream.Limit(2)},
			output:     []int{-9, -8},
		},
		"empty": {
			input:      []int{},
			processors: []stream.Processor{stream.Sort(compare, 5), stream.Limit(2)},
			output:     []int{},
		},
	}

	for name, testCase := range testCases {
		t.Run(name, func(t *testing.T) {
			output := collectInts(t, stream.Pipeline(ints(testCase.input...), testCase.processors...))

			if diff := cmp.Diff(testCase.output, output); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestSortRandom(t *testing.T) {
	r := rand.New(rand.NewSource(1234))
	input := make([]int, 1000)

	for i := range input {
		input[i] = r.Int()
	}

	expected := append([]int{}, input...)
	sort.Sort(sort.Reverse(sort.IntSlice(expected)))

	output := collectInts(t, stream.Pipeline(ints(input...), stream.Sort(descending, 10)))

	if diff := cmp.Diff(expected[:10], output); diff != "" {
		t.Fatal(diff)
	}
}

func TestErrorPropagates(t *testing.T) {
	errBroken := errors.New("broken")
	source := ints(1, 2, 3)
	source.err = errBroken

	_, err := stream.Collect(stream.Pipeline(source, stream.Log(zap.NewNop(), "value"), stream.Sort(compare, -1)))

	if err != errBroken {
		t.Fatalf("expected err to be %#v, got %#v", errBroken, err)
	}
}
