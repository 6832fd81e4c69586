// Package badgerdb implements db.DB on top of badger for the on disk result store.
package badgerdb

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/badger/v2/options"

	"github.com/celer-network/safe-storage-verifier/db"
	"github.com/celer-network/safe-storage-verifier/log"
)

const (
	badgerDbDiscardRatio   = 0.5 // run gc when 50% of samples can be collected
	badgerDbGcInterval     = 10 * time.Minute
	badgerDbGcSize         = 1 << 20 // 1 MB
	badgerValueLogFileSize = 1<<26 - 1
)

// NewDB creates new database or load existing database in the directory
func NewDB(dir string) (*DB, error) {
	return newBadgerDB(dir, &extendedLog{Logger: log.NewLogger("db")})
}

func (d *DB) runBadgerGC() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	lastGcT := time.Now()
	_, lastDbVlogSize := d.db.Size()
	for {
		select {
		case <-ticker.C:
			currentDblsmSize, currentDbVlogSize := d.db.Size()

			// exceed badgerDbGcInterval time or the vlog grows slowly
			if time.Since(lastGcT) > badgerDbGcInterval || lastDbVlogSize+badgerDbGcSize > currentDbVlogSize {
				startGcT := time.Now()
				d.logger.Debug().Str("name", d.name).Int64("lsmSize", currentDblsmSize).Int64("vlogSize", currentDbVlogSize).Msg("Start to GC at badger")
				err := d.db.RunValueLogGC(badgerDbDiscardRatio)
				if err != nil {
					if errors.Is(err, badger.ErrNoRewrite) {
						d.logger.Debug().Str("name", d.name).Str("msg", err.Error()).Msg("Nothing to GC at badger")
					} else {
						d.logger.Error().Str("name", d.name).Err(err).Msg("Fail to GC at badger")
					}
					lastDbVlogSize = currentDbVlogSize
				} else {
					afterGcDblsmSize, afterGcDbVlogSize := d.db.Size()
					d.logger.Debug().Str("name", d.name).Int64("lsmSize", afterGcDblsmSize).Int64("vlogSize", afterGcDbVlogSize).
						Dur("takenTime", time.Since(startGcT)).Msg("Finish to GC at badger")
					lastDbVlogSize = afterGcDbVlogSize
				}
				lastGcT = time.Now()
			}

		case <-d.ctx.Done():
			return
		}
	}
}

// newBadgerDB opens dir, creating it when needed, and starts the value log GC loop.
func newBadgerDB(dir string, logger *extendedLog) (*DB, error) {
	opts := badger.DefaultOptions(dir)

	// keep tables and value logs off mmap, results are small and written rarely
	opts.ValueLogLoadingMode = options.FileIO
	opts.TableLoadingMode = options.FileIO
	opts.ValueThreshold = 1024
	opts.ValueLogFileSize = badgerValueLogFileSize
	opts.Logger = logger

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancelFunc := context.WithCancel(context.Background())
	database := &DB{
		db:         bdb,
		ctx:        ctx,
		cancelFunc: cancelFunc,
		name:       dir,
		logger:     logger,
	}

	go database.runBadgerGC()

	return database, nil
}

// Enforce database and bulk implements interfaces
var _ db.DB = (*DB)(nil)

type DB struct {
	db         *badger.DB
	ctx        context.Context
	cancelFunc context.CancelFunc
	name       string
	logger     *extendedLog
}

func (d *DB) Type() string {
	return "badgerdb"
}

func (d *DB) Set(namespace []byte, key []byte, value []byte) error {
	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))
	value = db.ConvNilToBytes(value)

	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

func (d *DB) Delete(namespace []byte, key []byte) error {
	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))

	return d.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

func (d *DB) Get(namespace []byte, key []byte) ([]byte, bool, error) {
	key = db.ConvNilToBytes(db.PrependNamespace(namespace, key))

	var val []byte
	err := d.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

func (d *DB) Exist(namespace []byte, key []byte) (bool, error) {
	_, ok, err := d.Get(namespace, key)
	return ok, err
}

func (d *DB) Close() error {
	d.cancelFunc() // stop the gc goroutine
	return d.db.Close()
}

func (d *DB) NewBulk() db.Bulk {
	return &Bulk{
		db:      d,
		bulk:    d.db.NewWriteBatch(),
		createT: time.Now(),
	}
}
