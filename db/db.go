// Package db defines the key-value abstraction the ledger storage is built
// on, and the error values shared by every backend.
package db

import (
	"errors"
	"io"
)

const (
	TypePebble  = "pebble"
	TypeLevelDB = "leveldb"
	TypeInMem   = "inmem"
)

// ErrKeyNotFound is returned by Get when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// ErrConflict is returned by Commit when a backend with optimistic
// concurrency detects that a key read by the transaction changed meanwhile.
var ErrConflict = errors.New("transaction conflict")

// ErrClosed is returned by operations on a closed database.
var ErrClosed = errors.New("database is closed")

// Options configures a backend.
type Options struct {
	Path string
}

// Reader gives read access to a database or transaction.
type Reader interface {
	// Get returns a copy of the value stored under key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback for every key with the given prefix in
	// ascending order, until callback returns false. Keys passed to the
	// callback have the prefix removed only by the prefixeddb wrappers.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a set of writes applied atomically on Commit. Reads see the
// transaction's own pending writes.
type WriteTx interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	// Discard releases the transaction; it is safe to call after Commit.
	Discard()
}

// Database is a key-value store with transactions.
type Database interface {
	io.Closer
	Reader
	WriteTx() WriteTx
	Compact() error
}
