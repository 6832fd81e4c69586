package memorydb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer-network/safe-storage-verifier/db"
)

func collect(t *testing.T, it db.Iterator) []string {
	defer it.Close()
	var keys []string
	for ; it.Valid(); require.NoError(t, it.Next()) {
		key, err := it.Key()
		require.NoError(t, err)
		keys = append(keys, string(key))
	}
	return keys
}

func TestSetGetDelete(t *testing.T) {
	d := NewDB()
	ns := []byte("ns")

	_, ok, err := d.Get(ns, []byte("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte("1")
	require.NoError(t, d.Set(ns, []byte("a"), value))
	value[0] = '2'
	got, ok, err := d.Get(ns, []byte("a"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), got)

	exists, err := d.Exist([]byte("other"), []byte("a"))
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, d.Delete(ns, []byte("a")))
	exists, err = d.Exist(ns, []byte("a"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestBulk(t *testing.T) {
	d := NewDB()
	ns := []byte("ns")
	require.NoError(t, d.Set(ns, []byte("gone"), []byte("x")))

	bulk := d.NewBulk()
	require.NoError(t, bulk.Set(ns, []byte("a"), []byte("1")))
	require.NoError(t, bulk.Delete(ns, []byte("gone")))

	exists, _ := d.Exist(ns, []byte("a"))
	assert.False(t, exists, "writes are invisible before flush")

	require.NoError(t, bulk.Flush())
	exists, _ = d.Exist(ns, []byte("a"))
	assert.True(t, exists)
	exists, _ = d.Exist(ns, []byte("gone"))
	assert.False(t, exists)
	assert.ErrorIs(t, bulk.Flush(), errFlushTwice)

	discarded := d.NewBulk()
	require.NoError(t, discarded.Set(ns, []byte("b"), []byte("2")))
	discarded.DiscardLast()
	assert.ErrorIs(t, discarded.Flush(), errFlushAfterDiscard)
}

func TestIteratorPrefix(t *testing.T) {
	d := NewDB()
	ns := []byte("ns")
	for _, key := range []string{"b2", "a1", "b1", "c1"} {
		require.NoError(t, d.Set(ns, []byte(key), []byte(key)))
	}
	require.NoError(t, d.Set([]byte("nsx"), []byte("b3"), nil))

	assert.Equal(t, []string{"b1", "b2"}, collect(t, d.Iterator(ns, []byte("b"))))
	assert.Equal(t, []string{"a1", "b1", "b2", "c1"}, collect(t, d.Iterator(ns, nil)))

	it := d.Iterator(ns, []byte("c"))
	value, err := it.Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("c1"), value)
	require.NoError(t, it.Next())
	assert.False(t, it.Valid())
	_, err = it.Key()
	assert.ErrorIs(t, err, errInvalidIterator)
}
