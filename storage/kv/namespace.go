package kv

import (
	"github.com/pavlenkotm/memevote/storage/kv/keys"
)

// Namespace ensures that all keys referenced within a transaction
// are prefixed with ns. Keys returned by iterators have the
// prefix stripped.
func Namespace(txn Transaction, ns []byte) Transaction {
	return &namespacedTxn{txn: txn, ns: ns}
}

type namespacedTxn struct {
	txn Transaction
	ns  []byte
}

func (nsTxn *namespacedTxn) key(key []byte) ([]byte, error) {
	if err := CheckKey(key); err != nil {
		return nil, err
	}

	return keys.Join(nsTxn.ns, key), nil
}

func (nsTxn *namespacedTxn) Put(key, value []byte) error {
	k, err := nsTxn.key(key)

	if err != nil {
		return err
	}

	return nsTxn.txn.Put(k, value)
}

func (nsTxn *namespacedTxn) Get(key []byte) ([]byte, error) {
	k, err := nsTxn.key(key)

	if err != nil {
		return nil, err
	}

	return nsTxn.txn.Get(k)
}

func (nsTxn *namespacedTxn) Delete(key []byte) error {
	k, err := nsTxn.key(key)

	if err != nil {
		return err
	}

	return nsTxn.txn.Delete(k)
}

func (nsTxn *namespacedTxn) Keys(keys keys.Range, order SortOrder) (Iterator, error) {
	if order != SortOrderAsc && order != SortOrderDesc {
		order = SortOrderAsc
	}

	iterator, err := nsTxn.txn.Keys(keys.Namespace(nsTxn.ns), order)

	if err != nil {
		return nil, err
	}

	return &namespacedIterator{iterator: iterator, ns: nsTxn.ns}, nil
}

func (nsTxn *namespacedTxn) Commit() error {
	return nsTxn.txn.Commit()
}

func (nsTxn *namespacedTxn) Rollback() error {
	return nsTxn.txn.Rollback()
}

type namespacedIterator struct {
	iterator Iterator
	key      []byte
	ns       []byte
}

func (nsIter *namespacedIterator) Next() bool {
	if !nsIter.iterator.Next() {
		nsIter.key = nil

		return false
	}

	// strip the namespace prefix
	nsIter.key = nsIter.iterator.Key()[len(nsIter.ns):]

	return true
}

func (nsIter *namespacedIterator) Key() []byte {
	return nsIter.key
}

func (nsIter *namespacedIterator) Value() []byte {
	return nsIter.iterator.Value()
}

func (nsIter *namespacedIterator) Error() error {
	return nsIter.iterator.Error()
}
