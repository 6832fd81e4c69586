package badgerdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celer-network/safe-storage-verifier/db"
	"github.com/celer-network/safe-storage-verifier/log"
)

func openTestDB(t *testing.T, dir string) *DB {
	d, err := newBadgerDB(dir, &extendedLog{Logger: log.Nop()})
	require.NoError(t, err)
	return d
}

func TestPersistence(t *testing.T) {
	dir := t.TempDir()
	ns := []byte("res")
	key := db.ChainKey(1, []byte("safe"))

	d := openTestDB(t, dir)
	bulk := d.NewBulk()
	require.NoError(t, bulk.Set(ns, key, []byte("success")))
	require.NoError(t, bulk.Set(ns, db.ChainKey(2, []byte("safe")), []byte("error")))
	require.NoError(t, bulk.Flush())
	require.NoError(t, d.Close())

	d = openTestDB(t, dir)
	defer d.Close()
	value, ok, err := d.Get(ns, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("success"), value)

	it := d.Iterator(ns, db.ChainKey(1))
	defer it.Close()
	require.True(t, it.Valid())
	got, err := it.Key()
	require.NoError(t, err)
	assert.Equal(t, key, got)
	require.NoError(t, it.Next())
	assert.False(t, it.Valid())
}

func TestMissingKey(t *testing.T) {
	d := openTestDB(t, t.TempDir())
	defer d.Close()

	_, ok, err := d.Get([]byte("cp"), []byte("nothing"))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.Set([]byte("cp"), []byte("k"), nil))
	exists, err := d.Exist([]byte("cp"), []byte("k"))
	require.NoError(t, err)
	assert.True(t, exists)
	require.NoError(t, d.Delete([]byte("cp"), []byte("k")))
	exists, err = d.Exist([]byte("cp"), []byte("k"))
	require.NoError(t, err)
	assert.False(t, exists)
}
