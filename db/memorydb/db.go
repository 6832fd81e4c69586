package memorydb

import (
	"container/list"
	"sync"

	"github.com/celer-network/safe-storage-verifier/db"
)

func NewDB() *DB {
	return &DB{db: make(map[string][]byte)}
}

// Enforce database and bulk implements interfaces
var _ db.DB = (*DB)(nil)

type DB struct {
	lock sync.Mutex
	db   map[string][]byte
}

func (d *DB) Type() string {
	return "memorydb"
}

func (d *DB) Set(namespace []byte, key []byte, value []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))
	d.db[string(key)] = append([]byte{}, value...)
	return nil
}

func (d *DB) Delete(namespace []byte, key []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))
	delete(d.db, string(key))
	return nil
}

func (d *DB) Get(namespace []byte, key []byte) ([]byte, bool, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))
	value, exists := d.db[string(key)]
	return value, exists, nil
}

func (d *DB) Exist(namespace []byte, key []byte) (bool, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))
	_, ok := d.db[string(key)]
	return ok, nil
}

func (d *DB) Close() error {
	return nil
}

func (d *DB) NewBulk() db.Bulk {
	return &Bulk{
		db:     d,
		opList: list.New(),
	}
}
