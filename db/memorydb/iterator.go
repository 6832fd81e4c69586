package memorydb

import (
	"bytes"
	"errors"
	"sort"

	"github.com/celer-network/safe-storage-verifier/db"
)

var errInvalidIterator = errors.New("iterator is invalid")

// Iterator walks a snapshot of the matching keys taken when it was created.
type Iterator struct {
	namespace []byte
	keys      []string
	values    [][]byte
	cursor    int
}

func (d *DB) Iterator(namespace []byte, prefix []byte) db.Iterator {
	d.lock.Lock()
	defer d.lock.Unlock()

	full := db.PrependNamespace(namespace, prefix)
	var keys sort.StringSlice
	for key := range d.db {
		if bytes.HasPrefix([]byte(key), full) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	values := make([][]byte, len(keys))
	for i, key := range keys {
		values[i] = d.db[key]
	}
	return &Iterator{namespace: namespace, keys: keys, values: values}
}

func (iter *Iterator) Next() error {
	if !iter.Valid() {
		return errInvalidIterator
	}
	iter.cursor++
	return nil
}

func (iter *Iterator) Valid() bool {
	return 0 <= iter.cursor && iter.cursor < len(iter.keys)
}

func (iter *Iterator) Key() ([]byte, error) {
	if !iter.Valid() {
		return nil, errInvalidIterator
	}
	return db.TrimNamespace(iter.namespace, []byte(iter.keys[iter.cursor])), nil
}

func (iter *Iterator) Value() ([]byte, error) {
	if !iter.Valid() {
		return nil, errInvalidIterator
	}
	return iter.values[iter.cursor], nil
}

func (iter *Iterator) Close() {}
