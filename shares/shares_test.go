package shares

import (
	"bytes"
	"encoding/binary"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
)

func randomPairs(c *qt.C, n int) []Pair {
	pairs := make([]Pair, n)
	for i := range pairs {
		a, err := secp256k1.RandomScalar()
		c.Assert(err, qt.IsNil)
		b, err := secp256k1.RandomScalar()
		c.Assert(err, qt.IsNil)
		pairs[i] = Pair{C1: secp256k1.ScalarBaseMult(a), D: secp256k1.ScalarBaseMult(b)}
	}
	return pairs
}

func TestSerializeRoundTrip(t *testing.T) {
	c := qt.New(t)

	for _, n := range []int{0, 1, 7} {
		pairs := randomPairs(c, n)
		blob := Serialize(pairs)
		c.Assert(blob, qt.HasLen, 4+n*pairSize)
		c.Assert(binary.LittleEndian.Uint32(blob), qt.Equals, uint32(n))

		back, err := Deserialize(blob)
		c.Assert(err, qt.IsNil)
		c.Assert(back, qt.HasLen, n)
		for i := range pairs {
			c.Assert(back[i].C1.Equal(pairs[i].C1), qt.IsTrue)
			c.Assert(back[i].D.Equal(pairs[i].D), qt.IsTrue)
		}
		c.Assert(Serialize(back), qt.DeepEquals, blob)
	}
}

func TestSerializeLayout(t *testing.T) {
	c := qt.New(t)

	g := secp256k1.Generator()
	blob := Serialize([]Pair{{C1: g, D: g.Add(g)}})
	// count, len, C1, len, D
	c.Assert(blob[:4], qt.DeepEquals, []byte{1, 0, 0, 0})
	c.Assert(blob[4:8], qt.DeepEquals, []byte{33, 0, 0, 0})
	c.Assert(blob[8:41], qt.DeepEquals, g.Bytes())
	c.Assert(blob[41:45], qt.DeepEquals, []byte{33, 0, 0, 0})
	c.Assert(blob[45:78], qt.DeepEquals, g.Add(g).Bytes())
}

func TestDeserializeRejects(t *testing.T) {
	c := qt.New(t)

	blob := Serialize(randomPairs(c, 2))

	c.Run("empty", func(c *qt.C) {
		_, err := Deserialize(nil)
		c.Assert(err, qt.ErrorIs, ErrMalformedBlob)
	})
	c.Run("truncated", func(c *qt.C) {
		_, err := Deserialize(blob[:len(blob)-1])
		c.Assert(err, qt.ErrorIs, ErrMalformedBlob)
	})
	c.Run("trailing bytes", func(c *qt.C) {
		_, err := Deserialize(append(bytes.Clone(blob), 0))
		c.Assert(err, qt.ErrorIs, ErrMalformedBlob)
	})
	c.Run("count mismatch", func(c *qt.C) {
		bad := bytes.Clone(blob)
		binary.LittleEndian.PutUint32(bad, 3)
		_, err := Deserialize(bad)
		c.Assert(err, qt.ErrorIs, ErrMalformedBlob)
	})
	c.Run("wrong point length", func(c *qt.C) {
		bad := bytes.Clone(blob)
		binary.LittleEndian.PutUint32(bad[4:], 32)
		_, err := Deserialize(bad)
		c.Assert(err, qt.ErrorIs, ErrMalformedBlob)
	})
	c.Run("invalid point", func(c *qt.C) {
		bad := bytes.Clone(blob)
		bad[8] = 0x07
		_, err := Deserialize(bad)
		c.Assert(err, qt.ErrorIs, ErrMalformedBlob)
	})
}

func TestRecordSignature(t *testing.T) {
	c := qt.New(t)

	key, err := ed25519.GenerateKey()
	c.Assert(err, qt.IsNil)
	pairs := randomPairs(c, 3)
	rec := Sign(11, 2, pairs, key)
	c.Assert(rec.Verify(11), qt.IsNil)

	got, err := rec.Pairs()
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 3)
	c.Assert(Lookup(got)[string(pairs[1].C1.Bytes())].Equal(pairs[1].D), qt.IsTrue)

	c.Run("other election", func(c *qt.C) {
		c.Assert(rec.Verify(12), qt.ErrorIs, ed25519.ErrSignatureVerification)
	})

	c.Run("every single byte tamper is detected", func(c *qt.C) {
		for i := range rec.Blob {
			bad := *rec
			bad.Blob = bytes.Clone(rec.Blob)
			bad.Blob[i] ^= 0x01
			c.Assert(bad.Verify(11), qt.ErrorIs, ed25519.ErrSignatureVerification, qt.Commentf("byte %d", i))
		}
	})

	c.Run("other key", func(c *qt.C) {
		other, err := ed25519.GenerateKey()
		c.Assert(err, qt.IsNil)
		bad := *rec
		bad.KHPublicKey = other.Public()
		c.Assert(bad.Verify(11), qt.ErrorIs, ed25519.ErrSignatureVerification)
	})
}
