// Package sqlkv implements kv plugins on top of database/sql.
// Every root store keeps its data in three tables: one row
// per store, one row per partition and one row per key. Keys
// and values are stored as binary columns so the database's
// ordering matches bytes.Compare.
package sqlkv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/pavlenkotm/memevote/storage/kv"
	"github.com/pavlenkotm/memevote/storage/kv/keys"
)

// Plugins returns the plugins this package provides
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&Plugin{dialect: sqliteDialect},
		&Plugin{dialect: postgresDialect},
	}
}

// dialect captures what differs between databases
type dialect struct {
	// name is the plugin name
	name string
	// driver is the database/sql driver name
	driver string
	// blob is the column type for binary data
	blob string
	// numbered is true if placeholders are $1, $2, ...
	numbered bool
	// open turns plugin options into a DSN and table prefix
	open func(options kv.PluginOptions) (dsn string, prefix string, err error)
	// temp returns options for a throwaway root store
	temp func() (kv.PluginOptions, error)
	// txOptions picks options for a transaction
	txOptions func(writable bool) *sql.TxOptions
	// lockPartition serializes writers on one partition
	lockPartition func(ctx context.Context, tx *sql.Tx, store, partition []byte) error
	// configure tunes a freshly opened pool
	configure func(db *sql.DB)
	// remove cleans up after a deleted root store
	remove func(dsn string) error
}

var _ kv.Plugin = (*Plugin)(nil)

// Plugin implements kv.Plugin for a SQL dialect
type Plugin struct {
	dialect dialect
}

// Name implements kv.Plugin.Name
func (plugin *Plugin) Name() string {
	return plugin.dialect.name
}

// NewRootStore implements kv.Plugin.NewRootStore
func (plugin *Plugin) NewRootStore(options kv.PluginOptions) (kv.RootStore, error) {
	dsn, prefix, err := plugin.dialect.open(options)

	if err != nil {
		return nil, err
	}

	return newRootStore(plugin.dialect, dsn, prefix)
}

// NewTempRootStore implements kv.Plugin.NewTempRootStore
func (plugin *Plugin) NewTempRootStore() (kv.RootStore, error) {
	options, err := plugin.dialect.temp()

	if err != nil {
		return nil, err
	}

	return plugin.NewRootStore(options)
}

func stringOption(options kv.PluginOptions, name string) (string, error) {
	value, ok := options[name]

	if !ok {
		return "", fmt.Errorf("%q is required", name)
	}

	str, ok := value.(string)

	if !ok || str == "" {
		return "", fmt.Errorf("%q must be a non-empty string", name)
	}

	return str, nil
}

type tables struct {
	stores     string
	partitions string
	pairs      string
}

var _ kv.RootStore = (*RootStore)(nil)

// RootStore implements kv.RootStore
type RootStore struct {
	dialect  dialect
	dsn      string
	db       *sql.DB
	tables   tables
	mu       sync.RWMutex
	closed   bool
	dbClosed bool
	txns     sync.WaitGroup
}

func newRootStore(dialect dialect, dsn string, prefix string) (*RootStore, error) {
	db, err := sql.Open(dialect.driver, dsn)

	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.name, err)
	}

	if dialect.configure != nil {
		dialect.configure(db)
	}

	rootStore := &RootStore{
		dialect: dialect,
		dsn:     dsn,
		db:      db,
		tables: tables{
			stores:     prefix + "_stores",
			partitions: prefix + "_partitions",
			pairs:      prefix + "_pairs",
		},
	}

	if err := rootStore.ensureTables(context.Background()); err != nil {
		db.Close()

		return nil, err
	}

	return rootStore, nil
}

func (rootStore *RootStore) ensureTables(ctx context.Context) error {
	blob := rootStore.dialect.blob
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			name %s PRIMARY KEY
		)`, rootStore.tables.stores, blob),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			store %s NOT NULL,
			name %s NOT NULL,
			PRIMARY KEY (store, name)
		)`, rootStore.tables.partitions, blob, blob),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			store %s NOT NULL,
			part %s NOT NULL,
			k %s NOT NULL,
			v %s NOT NULL,
			PRIMARY KEY (store, part, k)
		)`, rootStore.tables.pairs, blob, blob, blob, blob),
	}

	for _, stmt := range ddl {
		if _, err := rootStore.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", err)
		}
	}

	return nil
}

// rebind rewrites ? placeholders for dialects
// that number their placeholders
func (rootStore *RootStore) rebind(query string) string {
	if !rootStore.dialect.numbered {
		return query
	}

	var b strings.Builder

	n := 0

	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)

			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

// acquire registers an operation with the root store.
// Every successful call must be paired with release.
func (rootStore *RootStore) acquire() error {
	rootStore.mu.RLock()
	defer rootStore.mu.RUnlock()

	if rootStore.closed {
		return kv.ErrClosed
	}

	rootStore.txns.Add(1)

	return nil
}

func (rootStore *RootStore) release() {
	rootStore.txns.Done()
}

// update runs fn inside a read-write transaction
func (rootStore *RootStore) update(fn func(ctx context.Context, tx *sql.Tx) error) error {
	if err := rootStore.acquire(); err != nil {
		return err
	}

	defer rootStore.release()

	ctx := context.Background()
	tx, err := rootStore.db.BeginTx(ctx, nil)

	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer tx.Rollback()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (rootStore *RootStore) shutdown() {
	rootStore.mu.Lock()
	rootStore.closed = true
	rootStore.mu.Unlock()
	rootStore.txns.Wait()
}

// Close implements kv.RootStore.Close
func (rootStore *RootStore) Close() error {
	rootStore.shutdown()

	rootStore.mu.Lock()
	defer rootStore.mu.Unlock()

	if rootStore.dbClosed {
		return nil
	}

	rootStore.dbClosed = true

	return rootStore.db.Close()
}

// Delete implements kv.RootStore.Delete
func (rootStore *RootStore) Delete() error {
	rootStore.shutdown()

	rootStore.mu.Lock()
	defer rootStore.mu.Unlock()

	if !rootStore.dbClosed {
		for _, table := range []string{rootStore.tables.pairs, rootStore.tables.partitions, rootStore.tables.stores} {
			if _, err := rootStore.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
				return fmt.Errorf("drop table %s: %w", table, err)
			}
		}

		rootStore.dbClosed = true

		if err := rootStore.db.Close(); err != nil {
			return err
		}
	}

	if rootStore.dialect.remove != nil {
		return rootStore.dialect.remove(rootStore.dsn)
	}

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
	rootStore := store.rootStore

	return rootStore.update(func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, rootStore.rebind(fmt.Sprintf(
			"INSERT INTO %s (name) VALUES (?) ON CONFLICT (name) DO NOTHING", rootStore.tables.stores)), store.name)

		return err
	})
}

// Delete implements kv.Store.Delete
func (store *Store) Delete() error {
	rootStore := store.rootStore

	return rootStore.update(func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range []string{
			fmt.Sprintf("DELETE FROM %s WHERE store = ?", rootStore.tables.pairs),
			fmt.Sprintf("DELETE FROM %s WHERE store = ?", rootStore.tables.partitions),
			fmt.Sprintf("DELETE FROM %s WHERE name = ?", rootStore.tables.stores),
		} {
			if _, err := tx.ExecContext(ctx, rootStore.rebind(stmt), store.name); err != nil {
				return err
			}
		}

		return nil
	})
}

// Partition implements kv.Store.Partition
func (store *Store) Partition(name []byte) kv.Partition {
	return &Partition{store: store, name: name}
}

func (store *Store) exists(ctx context.Context, tx *sql.Tx) error {
	rootStore := store.rootStore
	row := tx.QueryRowContext(ctx, rootStore.rebind(fmt.Sprintf(
		"SELECT 1 FROM %s WHERE name = ?", rootStore.tables.stores)), store.name)

	var one int

	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kv.ErrNoSuchStore
		}

		return err
	}

	return nil
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

	return rootStore.update(func(ctx context.Context, tx *sql.Tx) error {
		if err := partition.store.exists(ctx, tx); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, rootStore.rebind(fmt.Sprintf(
			"INSERT INTO %s (store, name) VALUES (?, ?) ON CONFLICT (store, name) DO NOTHING", rootStore.tables.partitions)),
			partition.store.name, partition.name)

		return err
	})
}

// Delete implements kv.Partition.Delete
func (partition *Partition) Delete() error {
	rootStore := partition.store.rootStore

	return rootStore.update(func(ctx context.Context, tx *sql.Tx) error {
		if err := partition.store.exists(ctx, tx); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, rootStore.rebind(fmt.Sprintf(
			"DELETE FROM %s WHERE store = ? AND part = ?", rootStore.tables.pairs)),
			partition.store.name, partition.name); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, rootStore.rebind(fmt.Sprintf(
			"DELETE FROM %s WHERE store = ? AND name = ?", rootStore.tables.partitions)),
			partition.store.name, partition.name)

		return err
	})
}

func (partition *Partition) exists(ctx context.Context, tx *sql.Tx) error {
	if err := partition.store.exists(ctx, tx); err != nil {
		return err
	}

	rootStore := partition.store.rootStore
	row := tx.QueryRowContext(ctx, rootStore.rebind(fmt.Sprintf(
		"SELECT 1 FROM %s WHERE store = ? AND name = ?", rootStore.tables.partitions)),
		partition.store.name, partition.name)

	var one int

	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kv.ErrNoSuchPartition
		}

		return err
	}

	return nil
}

// Begin implements kv.Partition.Begin
func (partition *Partition) Begin(writable bool) (kv.Transaction, error) {
	rootStore := partition.store.rootStore

	if err := rootStore.acquire(); err != nil {
		return nil, err
	}

	ctx := context.Background()
	var options *sql.TxOptions

	if rootStore.dialect.txOptions != nil {
		options = rootStore.dialect.txOptions(writable)
	}

	tx, err := rootStore.db.BeginTx(ctx, options)

	if err != nil {
		rootStore.release()

		return nil, fmt.Errorf("begin: %w", err)
	}

	if writable && rootStore.dialect.lockPartition != nil {
		if err := rootStore.dialect.lockPartition(ctx, tx, partition.store.name, partition.name); err != nil {
			tx.Rollback()
			rootStore.release()

			return nil, fmt.Errorf("lock partition: %w", err)
		}
	}

	if err := partition.exists(ctx, tx); err != nil {
		tx.Rollback()
		rootStore.release()

		return nil, err
	}

	return &Transaction{
		ctx:       ctx,
		tx:        tx,
		partition: partition,
		writable:  writable,
	}, nil
}

var _ kv.Transaction = (*Transaction)(nil)

// Transaction implements kv.Transaction
type Transaction struct {
	ctx       context.Context
	tx        *sql.Tx
	partition *Partition
	writable  bool
	done      bool
}

func (transaction *Transaction) rootStore() *RootStore {
	return transaction.partition.store.rootStore
}

// Put implements kv.Transaction.Put
func (transaction *Transaction) Put(key, value []byte) error {
	if !transaction.writable {
		return kv.ErrReadOnly
	}

	if err := kv.CheckPut(key, value); err != nil {
		return err
	}

	rootStore := transaction.rootStore()
	_, err := transaction.tx.ExecContext(transaction.ctx, rootStore.rebind(fmt.Sprintf(
		"INSERT INTO %s (store, part, k, v) VALUES (?, ?, ?, ?) ON CONFLICT (store, part, k) DO UPDATE SET v = excluded.v",
		rootStore.tables.pairs)),
		transaction.partition.store.name, transaction.partition.name, key, value)

	return err
}

// Delete implements kv.Transaction.Delete
func (transaction *Transaction) Delete(key []byte) error {
	if !transaction.writable {
		return kv.ErrReadOnly
	}

	if err := kv.CheckKey(key); err != nil {
		return err
	}

	rootStore := transaction.rootStore()
	_, err := transaction.tx.ExecContext(transaction.ctx, rootStore.rebind(fmt.Sprintf(
		"DELETE FROM %s WHERE store = ? AND part = ? AND k = ?", rootStore.tables.pairs)),
		transaction.partition.store.name, transaction.partition.name, key)

	return err
}

// Get implements kv.Transaction.Get
func (transaction *Transaction) Get(key []byte) ([]byte, error) {
	if err := kv.CheckKey(key); err != nil {
		return nil, err
	}

	rootStore := transaction.rootStore()
	row := transaction.tx.QueryRowContext(transaction.ctx, rootStore.rebind(fmt.Sprintf(
		"SELECT v FROM %s WHERE store = ? AND part = ? AND k = ?", rootStore.tables.pairs)),
		transaction.partition.store.name, transaction.partition.name, key)

	var value []byte

	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, err
	}

	return value, nil
}

// Keys implements kv.Transaction.Keys. Rows are read in
// pages of pageSize as the iterator advances. Each page is
// read completely so the connection is free for further
// statements in this transaction between pages.
func (transaction *Transaction) Keys(keys keys.Range, order kv.SortOrder) (kv.Iterator, error) {
	iter := &Iterator{transaction: transaction, keys: keys, order: order}

	if err := iter.fetch(); err != nil {
		return nil, err
	}

	return iter, nil
}

// Commit implements kv.Transaction.Commit
func (transaction *Transaction) Commit() error {
	if transaction.done {
		return nil
	}

	transaction.done = true

	defer transaction.rootStore().release()

	return transaction.tx.Commit()
}

// Rollback implements kv.Transaction.Rollback
func (transaction *Transaction) Rollback() error {
	if transaction.done {
		return nil
	}

	transaction.done = true

	defer transaction.rootStore().release()

	return transaction.tx.Rollback()
}

const pageSize = 64

var _ kv.Iterator = (*Iterator)(nil)

// Iterator pages through the rows of a key range
type Iterator struct {
	transaction *Transaction
	keys        keys.Range
	order       kv.SortOrder
	page        []kv.KV
	index       int
	last        []byte
	done        bool
	err         error
}

// fetch replaces the current page with the rows
// following the last key of the current page
func (iter *Iterator) fetch() error {
	rootStore := iter.transaction.rootStore()
	query := fmt.Sprintf("SELECT k, v FROM %s WHERE store = ? AND part = ?", rootStore.tables.pairs)
	args := []interface{}{iter.transaction.partition.store.name, iter.transaction.partition.name}

	if iter.keys.Min != nil {
		query += " AND k >= ?"
		args = append(args, iter.keys.Min)
	}

	if iter.keys.Max != nil {
		query += " AND k < ?"
		args = append(args, iter.keys.Max)
	}

	if iter.order == kv.SortOrderDesc {
		if iter.last != nil {
			query += " AND k < ?"
			args = append(args, iter.last)
		}

		query += " ORDER BY k DESC"
	} else {
		if iter.last != nil {
			query += " AND k > ?"
			args = append(args, iter.last)
		}

		query += " ORDER BY k ASC"
	}

	query += " LIMIT ?"
	args = append(args, pageSize)

	rows, err := iter.transaction.tx.QueryContext(iter.transaction.ctx, rootStore.rebind(query), args...)

	if err != nil {
		return err
	}

	defer rows.Close()

	page := make([]kv.KV, 0, pageSize)

	for rows.Next() {
		var pair kv.KV

		if err := rows.Scan(&pair[0], &pair[1]); err != nil {
			return err
		}

		page = append(page, pair)
	}

	if err := rows.Err(); err != nil {
		return err
	}

	iter.page = page
	iter.index = -1
	iter.done = len(page) < pageSize

	if len(page) > 0 {
		iter.last = page[len(page)-1].Key()
	}

	return nil
}

// Next implements kv.Iterator.Next
func (iter *Iterator) Next() bool {
	if iter.err != nil {
		return false
	}

	if iter.index+1 < len(iter.page) {
		iter.index++

		return true
	}

	if iter.done {
		iter.index = len(iter.page)

		return false
	}

	if err := iter.fetch(); err != nil {
		iter.err = err
		iter.page = nil

		return false
	}

	return iter.Next()
}

// Key implements kv.Iterator.Key
func (iter *Iterator) Key() []byte {
	if iter.index < 0 || iter.index >= len(iter.page) {
		return nil
	}

	return iter.page[iter.index].Key()
}

// Value implements kv.Iterator.Value
func (iter *Iterator) Value() []byte {
	if iter.index < 0 || iter.index >= len(iter.page) {
		return nil
	}

	return iter.page[iter.index].Value()
}

// Error implements kv.Iterator.Error
func (iter *Iterator) Error() error {
	return iter.err
}
