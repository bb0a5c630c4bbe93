package kv

import (
	"bytes"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/pavlenkotm/memevote/storage/kv/keys"
)

var _ Map = (*FakeMap)(nil)

// FakeMap is an in-memory implementation of the
// Map interface. It is not safe for concurrent
// use.
type FakeMap struct {
	m *treemap.Map
}

// NewFakeMap creates a new FakeMap
func NewFakeMap() *FakeMap {
	return &FakeMap{m: treemap.NewWith(func(a, b interface{}) int {
		return bytes.Compare(a.([]byte), b.([]byte))
	})}
}

// Put implements Map.Put
func (m *FakeMap) Put(key, value []byte) error {
	if err := CheckPut(key, value); err != nil {
		return err
	}

	m.m.Put(clone(key), clone(value))

	return nil
}

// Delete implements Map.Delete
func (m *FakeMap) Delete(key []byte) error {
	if err := CheckKey(key); err != nil {
		return err
	}

	m.m.Remove(key)

	return nil
}

// Get implements Map.Get
func (m *FakeMap) Get(key []byte) ([]byte, error) {
	if err := CheckKey(key); err != nil {
		return nil, err
	}

	v, ok := m.m.Get(key)

	if !ok {
		return nil, nil
	}

	return v.([]byte), nil
}

// Keys implements Map.Keys
func (m *FakeMap) Keys(keys keys.Range, order SortOrder) (Iterator, error) {
	iter := m.m.Iterator()

	if order == SortOrderDesc {
		iter.End()
	} else {
		iter.Begin()
	}

	return &FakeIterator{iter: iter, keys: keys, order: order}, nil
}

// Len returns the number of keys in the map
func (m *FakeMap) Len() int {
	return m.m.Size()
}

// Clone returns a copy of this map. Keys and values
// are immutable once stored so they are shared.
func (m *FakeMap) Clone() *FakeMap {
	cp := NewFakeMap()
	iter := m.m.Iterator()

	for iter.Next() {
		cp.m.Put(iter.Key(), iter.Value())
	}

	return cp
}

var _ Iterator = (*FakeIterator)(nil)

// FakeIterator is the iterator implementation for FakeMap
type FakeIterator struct {
	iter  treemap.Iterator
	keys  keys.Range
	order SortOrder
	done  bool
}

// Next implements Iterator.Next
func (iter *FakeIterator) Next() bool {
	if iter.done {
		return false
	}

	for {
		var hasMore bool

		if iter.order == SortOrderDesc {
			hasMore = iter.iter.Prev()
		} else {
			hasMore = iter.iter.Next()
		}

		if !hasMore {
			iter.done = true

			return false
		}

		key := iter.iter.Key().([]byte)

		if iter.keys.Contains(key) {
			return true
		}

		// Past the end of the range in the direction of travel
		if iter.order == SortOrderDesc && iter.keys.Min != nil && keys.Compare(key, iter.keys.Min) < 0 {
			iter.done = true

			return false
		}

		if iter.order != SortOrderDesc && iter.keys.Max != nil && keys.Compare(key, iter.keys.Max) >= 0 {
			iter.done = true

			return false
		}
	}
}

// Key implements Iterator.Key
func (iter *FakeIterator) Key() []byte {
	return iter.iter.Key().([]byte)
}

// Value implements Iterator.Value
func (iter *FakeIterator) Value() []byte {
	return iter.iter.Value().([]byte)
}

// Error implements Iterator.Error
func (iter *FakeIterator) Error() error {
	return nil
}

func clone(b []byte) []byte {
	cp := make([]byte, len(b))

	copy(cp, b)

	return cp
}
