// Package metadb opens a db.Database by backend name.
package metadb

import (
	"fmt"
	"testing"

	"github.com/stanbar/stellot-sub000/db"
	"github.com/stanbar/stellot-sub000/db/inmemory"
	"github.com/stanbar/stellot-sub000/db/leveldb"
	"github.com/stanbar/stellot-sub000/db/pebbledb"
)

// New opens the backend typ at dir.
func New(typ, dir string) (db.Database, error) {
	opts := db.Options{Path: dir}
	switch typ {
	case db.TypePebble:
		return pebbledb.New(opts)
	case db.TypeLevelDB:
		return leveldb.New(opts)
	case db.TypeInMem:
		return inmemory.New(opts)
	default:
		return nil, fmt.Errorf("invalid database type %q", typ)
	}
}

// NewTest returns a pebble database in a temporary directory that is closed
// when the test finishes.
func NewTest(tb testing.TB) db.Database {
	database, err := New(db.TypePebble, tb.TempDir())
	if err != nil {
		tb.Fatal(err)
	}
	tb.Cleanup(func() { _ = database.Close() })
	return database
}
