package memorydb

import (
	"container/list"
	"errors"
	"sync"

	"github.com/celer-network/safe-storage-verifier/db"
)

var (
	errFlushAfterDiscard = errors.New("flush after discard is not allowed")
	errFlushTwice        = errors.New("bulk is already flushed")
)

type Bulk struct {
	txLock    sync.Mutex
	db        *DB
	opList    *list.List
	isDiscard bool
	isCommit  bool
}

type txOp struct {
	isSet bool
	key   []byte
	value []byte
}

func (bulk *Bulk) Set(namespace []byte, key []byte, value []byte) error {
	bulk.txLock.Lock()
	defer bulk.txLock.Unlock()

	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))
	value = append([]byte{}, value...)
	bulk.opList.PushBack(&txOp{true, key, value})
	return nil
}

func (bulk *Bulk) Delete(namespace []byte, key []byte) error {
	bulk.txLock.Lock()
	defer bulk.txLock.Unlock()

	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))
	bulk.opList.PushBack(&txOp{false, key, nil})
	return nil
}

func (bulk *Bulk) Flush() error {
	bulk.txLock.Lock()
	defer bulk.txLock.Unlock()

	if bulk.isDiscard {
		return errFlushAfterDiscard
	} else if bulk.isCommit {
		return errFlushTwice
	}

	d := bulk.db
	d.lock.Lock()
	defer d.lock.Unlock()

	for e := bulk.opList.Front(); e != nil; e = e.Next() {
		op := e.Value.(*txOp)
		if op.isSet {
			d.db[string(op.key)] = op.value
		} else {
			delete(d.db, string(op.key))
		}
	}

	bulk.isCommit = true
	return nil
}

func (bulk *Bulk) DiscardLast() {
	bulk.txLock.Lock()
	defer bulk.txLock.Unlock()

	bulk.isDiscard = true
}
