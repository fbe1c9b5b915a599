// Package leveldb is an alternative on-disk db.Database backend built on
// syndtr/goleveldb, for deployments that prefer the LevelDB file format.
package leveldb

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/stanbar/stellot-sub000/db"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB implements db.Database.
type LevelDB struct {
	db     *leveldb.DB
	closed atomic.Bool
}

var _ db.Database = (*LevelDB)(nil)

// New opens or creates a LevelDB database at opts.Path.
func New(opts db.Options) (*LevelDB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("leveldb database requires a path")
	}
	ldb, err := leveldb.OpenFile(opts.Path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb database %s: %w", opts.Path, err)
	}
	return &LevelDB{db: ldb}, nil
}

func (d *LevelDB) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.db.Close()
}

func (d *LevelDB) Compact() error {
	if d.closed.Load() {
		return db.ErrClosed
	}
	return d.db.CompactRange(util.Range{})
}

func (d *LevelDB) Get(key []byte) ([]byte, error) {
	if d.closed.Load() {
		return nil, db.ErrClosed
	}
	v, err := d.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	return v, err
}

func (d *LevelDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if d.closed.Load() {
		return db.ErrClosed
	}
	iter := d.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !callback(bytes.Clone(iter.Key()), bytes.Clone(iter.Value())) {
			break
		}
	}
	return iter.Error()
}

func (d *LevelDB) WriteTx() db.WriteTx {
	return &WriteTx{parent: d, batch: new(leveldb.Batch), pending: make(map[string]*[]byte)}
}

// WriteTx buffers writes in a leveldb.Batch and keeps an overlay so that
// reads observe pending writes.
type WriteTx struct {
	parent  *LevelDB
	batch   *leveldb.Batch
	pending map[string]*[]byte // nil value means delete
	done    bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if v, ok := tx.pending[string(key)]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*v), nil
	}
	return tx.parent.Get(key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	merged := make(map[string][]byte)
	if err := tx.parent.Iterate(prefix, func(k, v []byte) bool {
		merged[string(k)] = v
		return true
	}); err != nil {
		return err
	}
	for k, v := range tx.pending {
		if !strings.HasPrefix(k, string(prefix)) {
			continue
		}
		if v == nil {
			delete(merged, k)
			continue
		}
		merged[k] = bytes.Clone(*v)
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !callback([]byte(k), merged[k]) {
			break
		}
	}
	return nil
}

func (tx *WriteTx) Set(key, value []byte) error {
	v := bytes.Clone(value)
	tx.pending[string(key)] = &v
	tx.batch.Put(key, v)
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	tx.pending[string(key)] = nil
	tx.batch.Delete(key)
	return nil
}

func (tx *WriteTx) Commit() error {
	if tx.done {
		return fmt.Errorf("cannot commit leveldb tx: already committed or discarded")
	}
	if tx.parent.closed.Load() {
		return db.ErrClosed
	}
	tx.done = true
	return tx.parent.db.Write(tx.batch, &opt.WriteOptions{Sync: true})
}

func (tx *WriteTx) Discard() {
	tx.batch.Reset()
	tx.pending = map[string]*[]byte{}
	tx.done = true
}
