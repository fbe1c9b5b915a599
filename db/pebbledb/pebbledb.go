// Package pebbledb is the on-disk db.Database backend built on
// cockroachdb/pebble.
//
// Write transactions are pebble indexed batches: they see their own writes
// but do not detect conflicts, so callers needing read-modify-write atomicity
// must serialize those transactions themselves.
package pebbledb

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/stanbar/stellot-sub000/db"
)

// PebbleDB implements db.Database.
type PebbleDB struct {
	db     *pebble.DB
	closed atomic.Bool
}

var _ db.Database = (*PebbleDB)(nil)

// New opens or creates a pebble database at opts.Path.
func New(opts db.Options) (*PebbleDB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("pebble database requires a path")
	}
	pdb, err := pebble.Open(opts.Path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble database %s: %w", opts.Path, err)
	}
	return &PebbleDB{db: pdb}, nil
}

// Close closes the database. Closing twice is a no-op.
func (d *PebbleDB) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	return d.db.Close()
}

func (d *PebbleDB) Compact() error {
	if d.closed.Load() {
		return db.ErrClosed
	}
	first, last, err := d.bounds()
	if err != nil || first == nil {
		return err
	}
	return d.db.Compact(first, append(last, 0), true)
}

func (d *PebbleDB) bounds() ([]byte, []byte, error) {
	iter, err := d.db.NewIter(nil)
	if err != nil {
		return nil, nil, err
	}
	defer iter.Close()
	if !iter.First() {
		return nil, nil, nil
	}
	first := bytes.Clone(iter.Key())
	iter.Last()
	return first, bytes.Clone(iter.Key()), nil
}

func (d *PebbleDB) Get(key []byte) ([]byte, error) {
	if d.closed.Load() {
		return nil, db.ErrClosed
	}
	return get(d.db, key)
}

func (d *PebbleDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if d.closed.Load() {
		return db.ErrClosed
	}
	return iterate(d.db, prefix, callback)
}

func (d *PebbleDB) WriteTx() db.WriteTx {
	return &WriteTx{parent: d, batch: d.db.NewIndexedBatch()}
}

type pebbleReader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

func get(r pebbleReader, key []byte) ([]byte, error) {
	value, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return bytes.Clone(value), nil
}

func iterate(r pebbleReader, prefix []byte, callback func(key, value []byte) bool) (err error) {
	iter, err := r.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := iter.Close(); err == nil {
			err = cerr
		}
	}()
	for iter.First(); iter.Valid(); iter.Next() {
		if !callback(bytes.Clone(iter.Key()), bytes.Clone(iter.Value())) {
			break
		}
	}
	return iter.Error()
}

// upperBound returns the smallest key greater than every key with the given
// prefix, or nil if there is none.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

// WriteTx wraps a pebble indexed batch.
type WriteTx struct {
	parent *PebbleDB
	batch  *pebble.Batch
	done   bool
}

var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	return get(tx.batch, key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return iterate(tx.batch, prefix, callback)
}

func (tx *WriteTx) Set(key, value []byte) error {
	return tx.batch.Set(key, value, nil)
}

func (tx *WriteTx) Delete(key []byte) error {
	return tx.batch.Delete(key, nil)
}

func (tx *WriteTx) Commit() error {
	if tx.done {
		return fmt.Errorf("cannot commit pebble tx: already committed or discarded")
	}
	if tx.parent.closed.Load() {
		return db.ErrClosed
	}
	tx.done = true
	return tx.batch.Commit(pebble.Sync)
}

func (tx *WriteTx) Discard() {
	if tx.batch == nil {
		return
	}
	// Close releases the batch memory; committed batches may be closed too.
	_ = tx.batch.Close()
	tx.batch = nil
	tx.done = true
}
