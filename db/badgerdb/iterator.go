package badgerdb

import (
	"errors"

	"github.com/dgraph-io/badger/v2"

	"github.com/celer-network/safe-storage-verifier/db"
)

var errInvalidIterator = errors.New("iterator is invalid")

type Iterator struct {
	namespace []byte
	txn       *badger.Txn
	iter      *badger.Iterator
}

func (d *DB) Iterator(namespace []byte, prefix []byte) db.Iterator {
	txn := d.db.NewTransaction(false)

	opt := badger.DefaultIteratorOptions
	opt.Prefix = db.PrependNamespace(namespace, prefix)
	iter := txn.NewIterator(opt)
	iter.Rewind()

	return &Iterator{namespace: namespace, txn: txn, iter: iter}
}

func (iter *Iterator) Next() error {
	if !iter.Valid() {
		return errInvalidIterator
	}
	iter.iter.Next()
	return nil
}

func (iter *Iterator) Valid() bool {
	return iter.iter.Valid()
}

func (iter *Iterator) Key() ([]byte, error) {
	if !iter.Valid() {
		return nil, errInvalidIterator
	}
	key := iter.iter.Item().KeyCopy(nil)
	return db.TrimNamespace(iter.namespace, key), nil
}

func (iter *Iterator) Value() ([]byte, error) {
	if !iter.Valid() {
		return nil, errInvalidIterator
	}
	return iter.iter.Item().ValueCopy(nil)
}

// Close releases the iterator and its read transaction.
func (iter *Iterator) Close() {
	iter.iter.Close()
	iter.txn.Discard()
}
