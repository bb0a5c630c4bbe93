// Package bbolt implements a kv plugin backed by a
// single bbolt file. Stores are top-level buckets and
// partitions are buckets nested inside them.
package bbolt

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pavlenkotm/memevote/storage/kv"
	"github.com/pavlenkotm/memevote/storage/kv/keys"
	"github.com/pavlenkotm/memevote/utils/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	// DriverName is the name of this plugin
	DriverName = "bbolt"
)

// Plugins returns the plugins this package provides
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&Plugin{},
	}
}

var _ kv.Plugin = (*Plugin)(nil)

// Plugin implements kv.Plugin for bbolt
type Plugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *Plugin) Name() string {
	return DriverName
}

// NewRootStore implements kv.Plugin.NewRootStore.
// It requires the "path" option.
func (plugin *Plugin) NewRootStore(options kv.PluginOptions) (kv.RootStore, error) {
	var config RootStoreConfig

	if path, ok := options["path"]; !ok {
		return nil, fmt.Errorf("\"path\" is required")
	} else if pathString, ok := path.(string); !ok || pathString == "" {
		return nil, fmt.Errorf("\"path\" must be a non-empty string")
	} else {
		config.Path = pathString
	}

	return NewRootStore(config)
}

// NewTempRootStore implements kv.Plugin.NewTempRootStore
func (plugin *Plugin) NewTempRootStore() (kv.RootStore, error) {
	return plugin.NewRootStore(kv.PluginOptions{
		"path": filepath.Join(os.TempDir(), fmt.Sprintf("bbolt-%s", uuid.MustUUID())),
	})
}

// RootStoreConfig configures a bbolt root store
type RootStoreConfig struct {
	Path string
}

var _ kv.RootStore = (*RootStore)(nil)

// RootStore implements kv.RootStore
type RootStore struct {
	db *bolt.DB
}

// NewRootStore opens or creates the bbolt file at config.Path
func NewRootStore(config RootStoreConfig) (*RootStore, error) {
	db, err := bolt.Open(config.Path, 0666, nil)

	if err != nil {
		return nil, fmt.Errorf("could not open bbolt store at %s: %s", config.Path, err)
	}

	return &RootStore{db: db}, nil
}

// Close implements kv.RootStore.Close
func (rootStore *RootStore) Close() error {
	return rootStore.db.Close()
}

// Delete implements kv.RootStore.Delete
func (rootStore *RootStore) Delete() error {
	path := rootStore.db.Path()

	if err := rootStore.Close(); err != nil {
		return fmt.Errorf("could not close store: %s", err)
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("could not remove path %s: %s", path, err)
	}

	return nil
}

// Store implements kv.RootStore.Store
func (rootStore *RootStore) Store(name []byte) kv.Store {
	return &Store{db: rootStore.db, name: name}
}

var _ kv.Store = (*Store)(nil)

// Store implements kv.Store
type Store struct {
	db   *bolt.DB
	name []byte
}

// Name implements kv.Store.Name
func (store *Store) Name() []byte {
	return store.name
}

// Create implements kv.Store.Create
func (store *Store) Create() error {
	return wrapError(store.db.Update(func(txn *bolt.Tx) error {
		_, err := txn.CreateBucketIfNotExists(store.name)

		return err
	}))
}

// Delete implements kv.Store.Delete
func (store *Store) Delete() error {
	return wrapError(store.db.Update(func(txn *bolt.Tx) error {
		err := txn.DeleteBucket(store.name)

		if err == bolt.ErrBucketNotFound {
			return nil
		}

		return err
	}))
}

// Partition implements kv.Store.Partition
func (store *Store) Partition(name []byte) kv.Partition {
	return &Partition{store: store, name: name}
}

var _ kv.Partition = (*Partition)(nil)

// Partition implements kv.Partition
type Partition struct {
	store *Store
	name  []byte
}

// Name implements kv.Partition.Name
func (partition *Partition) Name() []byte {
	return partition.name
}

// Create implements kv.Partition.Create
func (partition *Partition) Create() error {
	return wrapError(partition.store.db.Update(func(txn *bolt.Tx) error {
		storeBucket := txn.Bucket(partition.store.name)

		if storeBucket == nil {
			return kv.ErrNoSuchStore
		}

		_, err := storeBucket.CreateBucketIfNotExists(partition.name)

		return err
	}))
}

// Delete implements kv.Partition.Delete
func (partition *Partition) Delete() error {
	return wrapError(partition.store.db.Update(func(txn *bolt.Tx) error {
		storeBucket := txn.Bucket(partition.store.name)

		if storeBucket == nil {
			return kv.ErrNoSuchStore
		}

		err := storeBucket.DeleteBucket(partition.name)

		if err == bolt.ErrBucketNotFound {
			return nil
		}

		return err
	}))
}

// Begin implements kv.Partition.Begin
func (partition *Partition) Begin(writable bool) (kv.Transaction, error) {
	txn, err := partition.store.db.Begin(writable)

	if err != nil {
		return nil, wrapError(err)
	}

	storeBucket := txn.Bucket(partition.store.name)

	if storeBucket == nil {
		txn.Rollback()

		return nil, kv.ErrNoSuchStore
	}

	bucket := storeBucket.Bucket(partition.name)

	if bucket == nil {
		txn.Rollback()

		return nil, kv.ErrNoSuchPartition
	}

	return &Transaction{txn: txn, bucket: bucket, writable: writable}, nil
}

var _ kv.Transaction = (*Transaction)(nil)

// Transaction implements kv.Transaction
type Transaction struct {
	txn      *bolt.Tx
	bucket   *bolt.Bucket
	writable bool
	done     bool
}

// Put implements kv.Transaction.Put
func (transaction *Transaction) Put(key, value []byte) error {
	if !transaction.writable {
		return kv.ErrReadOnly
	}

	if err := kv.CheckPut(key, value); err != nil {
		return err
	}

	return transaction.bucket.Put(clone(key), clone(value))
}

// Delete implements kv.Transaction.Delete
func (transaction *Transaction) Delete(key []byte) error {
	if !transaction.writable {
		return kv.ErrReadOnly
	}

	if err := kv.CheckKey(key); err != nil {
		return err
	}

	return transaction.bucket.Delete(key)
}

// Get implements kv.Transaction.Get
func (transaction *Transaction) Get(key []byte) ([]byte, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, err
	}

	value := transaction.bucket.Get(key)

	if value == nil {
		return nil, nil
	}

	return clone(value), nil
}

// Keys implements kv.Transaction.Keys
func (transaction *Transaction) Keys(keys keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	return &Iterator{cursor: transaction.bucket.Cursor(), keys: keys, order: order}, nil
}

// Commit implements kv.Transaction.Commit
func (transaction *Transaction) Commit() error {
	if transaction.done {
		return nil
	}

	transaction.done = true

	if !transaction.writable {
		return wrapError(transaction.txn.Rollback())
	}

	return wrapError(transaction.txn.Commit())
}

// Rollback implements kv.Transaction.Rollback
func (transaction *Transaction) Rollback() error {
	if transaction.done {
		return nil
	}

	transaction.done = true

	return wrapError(transaction.txn.Rollback())
}

var _ kv.Iterator = (*Iterator)(nil)

// Iterator implements kv.Iterator on top of a bbolt cursor
type Iterator struct {
	cursor  *bolt.Cursor
	keys    keys.Range
	order   kv.SortOrder
	started bool
	done    bool
	key     []byte
	value   []byte
}

// Next implements kv.Iterator.Next
func (iter *Iterator) Next() bool {
	if iter.done {
		return false
	}

	var k, v []byte

	if !iter.started {
		iter.started = true
		k, v = iter.first()
	} else if iter.order == kv.SortOrderDesc {
		k, v = iter.cursor.Prev()
	} else {
		k, v = iter.cursor.Next()
	}

	// Nested buckets have nil values
	for k != nil && v == nil {
		if iter.order == kv.SortOrderDesc {
			k, v = iter.cursor.Prev()
		} else {
			k, v = iter.cursor.Next()
		}
	}

	if k == nil || !iter.keys.Contains(k) {
		iter.done = true
		iter.key = nil
		iter.value = nil

		return false
	}

	iter.key = k
	iter.value = v

	return true
}

func (iter *Iterator) first() ([]byte, []byte) {
	if iter.order != kv.SortOrderDesc {
		if iter.keys.Min == nil {
			return iter.cursor.First()
		}

		return iter.cursor.Seek(iter.keys.Min)
	}

	if iter.keys.Max == nil {
		return iter.cursor.Last()
	}

	if k, _ := iter.cursor.Seek(iter.keys.Max); k == nil {
		return iter.cursor.Last()
	}

	// Max is exclusive
	return iter.cursor.Prev()
}

// Key implements kv.Iterator.Key
func (iter *Iterator) Key() []byte {
	return iter.key
}

// Value implements kv.Iterator.Value
func (iter *Iterator) Value() []byte {
	return iter.value
}

// Error implements kv.Iterator.Error
func (iter *Iterator) Error() error {
	return nil
}

func wrapError(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return kv.ErrClosed
	}

	return err
}

func clone(b []byte) []byte {
	cp := make([]byte, len(b))

	copy(cp, b)

	return cp
}
