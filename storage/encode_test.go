package storage

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/ledger"
)

func TestEncodeDecodeElection(t *testing.T) {
	c := qt.New(t)

	e := ledger.NewElection(4, &ledger.DeployParams{
		Title:        "encoding",
		OptionsCount: 2,
		StartTime:    time.Date(2026, 3, 1, 0, 0, 0, 5, time.UTC),
		EndTime:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		PublicKey:    secp256k1.Generator(),
	})
	e.KeyHolderCommitments[1] = secp256k1.Generator()

	data, err := EncodeArtifact(e)
	c.Assert(err, qt.IsNil)
	got := &ledger.Election{}
	c.Assert(DecodeArtifact(data, got), qt.IsNil)
	c.Assert(got.ID, qt.Equals, e.ID)
	c.Assert(got.StartTime.Equal(e.StartTime), qt.IsTrue)
	c.Assert(got.PublicKey.Equal(e.PublicKey), qt.IsTrue)
	c.Assert(got.KeyHolderCommitments[1].Equal(secp256k1.Generator()), qt.IsTrue)
}

func TestCBORIsDeterministic(t *testing.T) {
	c := qt.New(t)

	a := map[uint32]string{3: "c", 1: "a", 2: "b"}
	first, err := EncodeArtifact(a)
	c.Assert(err, qt.IsNil)
	for range 10 {
		again, err := EncodeArtifact(a)
		c.Assert(err, qt.IsNil)
		c.Assert(again, qt.DeepEquals, first)
	}
}

func TestDecodeRejectsDuplicateKeys(t *testing.T) {
	c := qt.New(t)

	// {1: "a", 1: "b"}
	dup := []byte{0xa2, 0x01, 0x61, 'a', 0x01, 0x61, 'b'}
	var out map[uint32]string
	c.Assert(DecodeArtifact(dup, &out), qt.ErrorMatches, `decode artifact: .*`)
}
