package kv

import (
	"errors"

	"github.com/pavlenkotm/memevote/storage/kv/keys"
)

var (
	// ErrClosed indicates that the root store was closed
	ErrClosed = errors.New("root store was closed")
	// ErrNoSuchStore indicates that the store doesn't exist. Either it hasn't been created or was deleted
	ErrNoSuchStore = errors.New("store does not exist")
	// ErrNoSuchPartition indicates that the partition doesn't exist. Either it hasn't been created or was deleted
	ErrNoSuchPartition = errors.New("partition does not exist")
	// ErrReadOnly is returned when a read-only transaction attempts an update operation
	ErrReadOnly = errors.New("transaction is read-only")
	// ErrEmptyKey is returned when a key is nil or empty
	ErrEmptyKey = errors.New("key must not be empty")
	// ErrEmptyValue is returned when Put is called with a nil or empty value
	ErrEmptyValue = errors.New("value must not be empty")
	// ErrUnavailable is returned by plugins that cannot create a store
	// in the current environment, such as a server-backed plugin with
	// no server configured.
	ErrUnavailable = errors.New("plugin is unavailable")
)

// SortOrder describes the order in which
// an iterator visits keys
type SortOrder int

const (
	// SortOrderAsc visits keys in ascending byte order
	SortOrderAsc SortOrder = iota
	// SortOrderDesc visits keys in descending byte order
	SortOrderDesc
)

// PluginOptions is a set of driver-specific
// options passed to NewRootStore
type PluginOptions map[string]interface{}

// Plugin represents a kv storage plugin
type Plugin interface {
	// Name returns the name of the storage plugin
	Name() string
	// NewRootStore returns an instance of the plugin store
	NewRootStore(options PluginOptions) (RootStore, error)
	// NewTempRootStore returns an instance of the plugin store
	// initialized with some sane defaults. It is meant for
	// tests that need an initialized instance of the plugin's
	// store without knowing how to initialize it. Deleting
	// the root store must remove everything it created.
	NewTempRootStore() (RootStore, error)
}

// RootStore is the parent store from which all stores are descended
type RootStore interface {
	// Delete closes then deletes this store and all its contents.
	// If the root store doesn't exist it should return nil and have
	// no effect.
	Delete() error
	// Close closes the store. Function calls to any I/O objects
	// descended from this store occurring after Close returns
	// must have no effect and return ErrClosed. Close must not
	// return until all transactions have either rolled back or
	// committed.
	Close() error
	// Store returns a handle for the store with this name. It does not
	// guarantee that this store exists yet and should not create the
	// store. It must not return nil.
	Store(name []byte) Store
}

// Store is a reference to a store
type Store interface {
	// Name returns the name of this store.
	Name() []byte
	// Create creates this store if it does not exist. It has no
	// effect if the store already exists. It must return ErrClosed
	// if its invocation starts after Close() on the root store returns
	Create() error
	// Delete deletes this store and all its partitions if it exists.
	// It has no effect if the store does not exist. It must return
	// ErrClosed if its invocation starts after Close() on the root
	// store returns.
	Delete() error
	// Partition returns a handle for the partition with this name inside this store.
	// It does not guarantee that this partition exists yet and should not create the partition.
	// It must not return nil.
	Partition(name []byte) Partition
}

// Partition is a reference to a named partition of a store.
// Strict-serializability must be enforced on all transactions
// within a partition: a transaction that begins after another
// transaction ends shall observe the effects of the first transaction.
// Partitions are independent of each other.
//
// Begin may block until a conflicting transaction finishes. Consumers
// that hold their own locks must always acquire them before calling
// Begin, never after, to avoid deadlock.
type Partition interface {
	// Name returns the name of this partition
	Name() []byte
	// Create creates this partition if it does not exist. It has no
	// effect if the partition already exists. It must return ErrClosed
	// if its invocation starts after Close() on the root store returns.
	// Otherwise it must return ErrNoSuchStore if the parent store does not exist.
	Create() error
	// Delete deletes this partition if it exists. It has no effect if
	// the partition does not exist. It must return ErrClosed if its
	// invocation starts after Close() on the root store returns. Otherwise it
	// must return ErrNoSuchStore if the parent store does not exist.
	Delete() error
	// Begin starts a transaction for this partition. writable should be
	// true for read-write transactions and false for read-only transactions.
	// If Begin() is called after Close() on the root store returns it must
	// return ErrClosed. Otherwise if the parent store does not exist it must
	// return ErrNoSuchStore. Otherwise if this partition does not exist it must
	// return ErrNoSuchPartition.
	Begin(writable bool) (Transaction, error)
}

// MapUpdater is an interface for updating a sorted
// key-value map
type MapUpdater interface {
	// Put puts a key. Put must return ErrEmptyKey or
	// ErrEmptyValue if either key or value is nil or empty.
	Put(key, value []byte) error
	// Delete deletes a key. It must return ErrEmptyKey if the key
	// is nil or empty. If the key doesn't exist it has no effect
	// and returns nil.
	Delete(key []byte) error
}

// MapReader is an interface for reading a sorted
// key-value map
type MapReader interface {
	// Get gets a key. It must observe updates to that key made
	// previously by this transation. Get must return ErrEmptyKey
	// if the key is nil or empty. It must return nil if the
	// requested key does not exist.
	Get(key []byte) ([]byte, error)
	// Keys creates an iterator that iterates over the range
	// of keys
	Keys(keys keys.Range, order SortOrder) (Iterator, error)
}

// Map combines MapReader and MapUpdater
type Map interface {
	MapUpdater
	MapReader
}

// Transaction is a transaction for a partition. It must only be
// used by one goroutine at a time. Update operations on a
// read-only transaction must return ErrReadOnly.
type Transaction interface {
	Map
	// Commit commits the transaction
	Commit() error
	// Rollback rolls back the transaction. Calling
	// Rollback after Commit has no effect.
	Rollback() error
}

// Iterator iterates over a set of keys. It must only be
// used by one goroutine at a time. Consumers should not
// attempt to use an iterator once its parent transaction
// has been rolled back. Behavior is undefined in this case.
// The transaction must not mutate the store while the iterator
// is in use.
type Iterator interface {
	// Next advances the iterator to the next key
	// A fresh iterator must call Next once to
	// advance to the first key. Next returns false
	// if there is no next key or if it encounters an
	// error.
	Next() bool
	// Key returns the current key
	Key() []byte
	// Value returns the current value
	Value() []byte
	// Error returns the error, if any.
	Error() error
}

// KV is a key-value pair
type KV [2][]byte

// Key returns the key
func (kv KV) Key() []byte {
	return kv[0]
}

// Value returns the value
func (kv KV) Value() []byte {
	return kv[1]
}

// Keys drains up to limit key-value pairs from
// the iterator. limit < 0 indicates no limit.
func Keys(iter Iterator, limit int) ([]KV, error) {
	result := []KV{}

	for (limit < 0 || len(result) < limit) && iter.Next() {
		result = append(result, KV{iter.Key(), iter.Value()})
	}

	if iter.Error() != nil {
		return nil, iter.Error()
	}

	return result, nil
}

// CheckPut validates the arguments to
// MapUpdater.Put
func CheckPut(key, value []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	if len(value) == 0 {
		return ErrEmptyValue
	}

	return nil
}

// CheckKey validates a key argument
func CheckKey(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}

	return nil
}
