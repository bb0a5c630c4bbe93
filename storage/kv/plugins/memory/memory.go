// Package memory implements a volatile kv plugin.
// Each partition is a sorted map. Writers are serialized
// per partition and work on a private copy that replaces
// the partition's map on commit, so readers always see
// a committed snapshot.
package memory

import (
	"sync"

	"github.com/pavlenkotm/memevote/storage/kv"
	"github.com/pavlenkotm/memevote/storage/kv/keys"
)

const (
	// DriverName is the name of this plugin
	DriverName = "memory"
)

// Plugins returns the plugins this package provides
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&Plugin{},
	}
}

var _ kv.Plugin = (*Plugin)(nil)

// Plugin implements kv.Plugin
type Plugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *Plugin) Name() string {
	return DriverName
}

// NewRootStore implements kv.Plugin.NewRootStore.
// It takes no options.
func (plugin *Plugin) NewRootStore(options kv.PluginOptions) (kv.RootStore, error) {
	return NewRootStore(), nil
}

// NewTempRootStore implements kv.Plugin.NewTempRootStore
func (plugin *Plugin) NewTempRootStore() (kv.RootStore, error) {
	return NewRootStore(), nil
}

var _ kv.RootStore = (*RootStore)(nil)

// RootStore implements kv.RootStore
type RootStore struct {
	mu     sync.RWMutex
	closed bool
	stores map[string]map[string]*partitionState
	txns   sync.WaitGroup
}

type partitionState struct {
	writer sync.Mutex
	mu     sync.RWMutex
	data   *kv.FakeMap
}

// NewRootStore creates an empty root store
func NewRootStore() *RootStore {
	return &RootStore{stores: map[string]map[string]*partitionState{}}
}

// Close implements kv.RootStore.Close
func (rootStore *RootStore) Close() error {
	rootStore.mu.Lock()
	rootStore.closed = true
	rootStore.mu.Unlock()
	rootStore.txns.Wait()

	return nil
}

// Delete implements kv.RootStore.Delete
func (rootStore *RootStore) Delete() error {
	if err := rootStore.Close(); err != nil {
		return err
	}

	rootStore.mu.Lock()
	defer rootStore.mu.Unlock()

	rootStore.stores = map[string]map[string]*partitionState{}

	return nil
}

// Store implements kv.RootStore.Store
func (rootStore *RootStore) Store(name []byte) kv.Store {
	return &Store{rootStore: rootStore, name: name}
}

var _ kv.Store = (*Store)(nil)

// Store implements kv.Store
type Store struct {
	rootStore *RootStore
	name      []byte
}

// Name implements kv.Store.Name
func (store *Store) Name() []byte {
	return store.name
}

// Create implements kv.Store.Create
func (store *Store) Create() error {
	store.rootStore.mu.Lock()
	defer store.rootStore.mu.Unlock()

	if store.rootStore.closed {
		return kv.ErrClosed
	}

	if _, ok := store.rootStore.stores[string(store.name)]; !ok {
		store.rootStore.stores[string(store.name)] = map[string]*partitionState{}
	}

	return nil
}

// Delete implements kv.Store.Delete
func (store *Store) Delete() error {
	store.rootStore.mu.Lock()
	defer store.rootStore.mu.Unlock()

	if store.rootStore.closed {
		return kv.ErrClosed
	}

	delete(store.rootStore.stores, string(store.name))

	return nil
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
	rootStore := partition.store.rootStore

	rootStore.mu.Lock()
	defer rootStore.mu.Unlock()

	if rootStore.closed {
		return kv.ErrClosed
	}

	partitions, ok := rootStore.stores[string(partition.store.name)]

	if !ok {
		return kv.ErrNoSuchStore
	}

	if _, ok := partitions[string(partition.name)]; !ok {
		partitions[string(partition.name)] = &partitionState{data: kv.NewFakeMap()}
	}

	return nil
}

// Delete implements kv.Partition.Delete
func (partition *Partition) Delete() error {
	rootStore := partition.store.rootStore

	rootStore.mu.Lock()
	defer rootStore.mu.Unlock()

	if rootStore.closed {
		return kv.ErrClosed
	}

	partitions, ok := rootStore.stores[string(partition.store.name)]

	if !ok {
		return kv.ErrNoSuchStore
	}

	delete(partitions, string(partition.name))

	return nil
}

// Begin implements kv.Partition.Begin
func (partition *Partition) Begin(writable bool) (kv.Transaction, error) {
	state, err := partition.state()

	if err != nil {
		return nil, err
	}

	txn := &Transaction{rootStore: partition.store.rootStore, state: state, writable: writable}

	if writable {
		state.writer.Lock()
	}

	state.mu.RLock()
	txn.data = state.data
	state.mu.RUnlock()

	if writable {
		txn.data = txn.data.Clone()
	}

	return txn, nil
}

// state looks up the partition and registers a new
// transaction with the root store
func (partition *Partition) state() (*partitionState, error) {
	rootStore := partition.store.rootStore

	rootStore.mu.RLock()
	defer rootStore.mu.RUnlock()

	if rootStore.closed {
		return nil, kv.ErrClosed
	}

	partitions, ok := rootStore.stores[string(partition.store.name)]

	if !ok {
		return nil, kv.ErrNoSuchStore
	}

	state, ok := partitions[string(partition.name)]

	if !ok {
		return nil, kv.ErrNoSuchPartition
	}

	rootStore.txns.Add(1)

	return state, nil
}

var _ kv.Transaction = (*Transaction)(nil)

// Transaction implements kv.Transaction
type Transaction struct {
	rootStore *RootStore
	state     *partitionState
	data      *kv.FakeMap
	writable  bool
	done      bool
}

// Put implements kv.Transaction.Put
func (transaction *Transaction) Put(key, value []byte) error {
	if !transaction.writable {
		return kv.ErrReadOnly
	}

	return transaction.data.Put(key, value)
}

// Delete implements kv.Transaction.Delete
func (transaction *Transaction) Delete(key []byte) error {
	if !transaction.writable {
		return kv.ErrReadOnly
	}

	return transaction.data.Delete(key)
}

// Get implements kv.Transaction.Get
func (transaction *Transaction) Get(key []byte) ([]byte, error) {
	return transaction.data.Get(key)
}

// Keys implements kv.Transaction.Keys
func (transaction *Transaction) Keys(keys keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	return transaction.data.Keys(keys, order)
}

// Commit implements kv.Transaction.Commit
func (transaction *Transaction) Commit() error {
	if transaction.done {
		return nil
	}

	if transaction.writable {
		transaction.state.mu.Lock()
		transaction.state.data = transaction.data
		transaction.state.mu.Unlock()
	}

	transaction.finish()

	return nil
}

// Rollback implements kv.Transaction.Rollback
func (transaction *Transaction) Rollback() error {
	if transaction.done {
		return nil
	}

	transaction.finish()

	return nil
}

func (transaction *Transaction) finish() {
	transaction.done = true

	if transaction.writable {
		transaction.state.writer.Unlock()
	}

	transaction.rootStore.txns.Done()
}
