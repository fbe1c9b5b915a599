// Package dbtest holds the conformance suite every db.Database backend runs.
package dbtest

import (
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/stanbar/stellot-sub000/db"
	"github.com/stanbar/stellot-sub000/db/prefixeddb"
)

// TestWriteTx checks that transactions see their own writes and that
// committed writes become visible.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	tx := database.WriteTx()
	defer tx.Discard()

	_, err := tx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(tx.Set([]byte("a"), []byte("1")), qt.IsNil)
	v, err := tx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("1"))

	// not visible outside before commit
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(tx.Commit(), qt.IsNil)
	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("1"))

	tx2 := database.WriteTx()
	defer tx2.Discard()
	c.Assert(tx2.Delete([]byte("a")), qt.IsNil)
	_, err = tx2.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	c.Assert(tx2.Commit(), qt.IsNil)
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestIterate checks prefix filtering, ordering and early termination.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	tx := database.WriteTx()
	for i := range 10 {
		c.Assert(tx.Set(fmt.Appendf(nil, "p/%02d", i), fmt.Appendf(nil, "v%d", i)), qt.IsNil)
	}
	c.Assert(tx.Set([]byte("q/00"), []byte("other")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
	tx.Discard()

	var keys []string
	c.Assert(database.Iterate([]byte("p/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.HasLen, 10)
	c.Assert(keys[0], qt.Equals, "p/00")
	c.Assert(keys[9], qt.Equals, "p/09")

	count := 0
	c.Assert(database.Iterate([]byte("p/"), func(k, v []byte) bool {
		count++
		return count < 3
	}), qt.IsNil)
	c.Assert(count, qt.Equals, 3)

	// pending writes are visible to the transaction's own iteration
	tx = database.WriteTx()
	defer tx.Discard()
	c.Assert(tx.Set([]byte("p/10"), []byte("v10")), qt.IsNil)
	c.Assert(tx.Delete([]byte("p/00")), qt.IsNil)
	keys = nil
	c.Assert(tx.Iterate([]byte("p/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.HasLen, 10)
	c.Assert(keys[0], qt.Equals, "p/01")
	c.Assert(keys[9], qt.Equals, "p/10")
}

// TestPrefixed checks that prefixed views are isolated and strip their
// prefix from iterated keys.
func TestPrefixed(t *testing.T, database db.Database) {
	c := qt.New(t)

	one := prefixeddb.NewPrefixedDatabase(database, []byte("one/"))
	two := prefixeddb.NewPrefixedDatabase(database, []byte("two/"))

	tx := one.WriteTx()
	c.Assert(tx.Set([]byte("k"), []byte("1")), qt.IsNil)
	c.Assert(tx.Commit(), qt.IsNil)
	tx.Discard()

	_, err := two.Get([]byte("k"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	v, err := database.Get([]byte("one/k"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("1"))

	var keys []string
	c.Assert(one.Iterate(nil, func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"k"})

	reader := prefixeddb.NewPrefixedReader(database, []byte("one/"))
	v, err = reader.Get([]byte("k"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("1"))
}
