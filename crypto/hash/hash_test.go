package hash

import (
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
)

func TestKnownVectors(t *testing.T) {
	c := qt.New(t)

	nf := IssueNullifier([]byte("secret"), 7)
	c.Assert(nf.Hex(), qt.Equals, "dd257a0113979885f913c00dfa901086e88255e29dcb278d72e78bac71665181")

	// shares message over an empty blob (u32-LE count 0)
	msg := SharesMessage(1, []byte{0, 0, 0, 0})
	c.Assert(Nullifier(msg).Hex(), qt.Equals, "8ebb1eb4ed2af47c91c3b7a637bb185dcbc26babfbbc04a9358b2e48cbce87fe")
}

func TestNullifiers(t *testing.T) {
	c := qt.New(t)

	secret := []byte("voter secret")
	c.Assert(IssueNullifier(secret, 1), qt.Equals, IssueNullifier(secret, 1))
	c.Assert(IssueNullifier(secret, 1), qt.Not(qt.Equals), IssueNullifier(secret, 2))
	c.Assert(IssueNullifier(secret, 1), qt.Not(qt.Equals), IssueNullifier([]byte("other"), 1))

	// the issue and cast domains never collide for the same input
	c.Assert(IssueNullifier(secret, 1), qt.Not(qt.Equals), CastNullifier(secret, 1))

	c.Assert(CastNullifier(secret, 3), qt.Equals, CastNullifier(secret, 3))
	c.Assert(CastNullifier(secret, 3), qt.Not(qt.Equals), CastNullifier(secret, 4))
}

func TestMessages(t *testing.T) {
	c := qt.New(t)

	key, err := ed25519.GenerateKey()
	c.Assert(err, qt.IsNil)
	nf := IssueNullifier([]byte("s"), 9)

	c.Assert(IssueMessage(9, key.Public(), nf), qt.Equals, IssueMessage(9, key.Public(), nf))
	c.Assert(IssueMessage(9, key.Public(), nf), qt.Not(qt.Equals), IssueMessage(10, key.Public(), nf))

	g := secp256k1.Generator()
	g2 := g.Add(g)
	cm := CastMessage(9, nf, g, g2)
	c.Assert(cm, qt.Not(qt.Equals), CastMessage(9, nf, g2, g))
	c.Assert(cm, qt.Not(qt.Equals), CastMessage(8, nf, g, g2))

	km := CommitmentMessage(9, 1, g)
	c.Assert(km, qt.Equals, CommitmentMessage(9, 1, g))
	c.Assert(km, qt.Not(qt.Equals), CommitmentMessage(9, 2, g))
	c.Assert(km, qt.Not(qt.Equals), CommitmentMessage(10, 1, g))
	c.Assert(km, qt.Not(qt.Equals), CommitmentMessage(9, 1, g2))
}

func TestChallengeScalar(t *testing.T) {
	c := qt.New(t)

	g := secp256k1.Generator()
	a := ChallengeScalar(g, g.Add(g))
	c.Assert(a.Equal(ChallengeScalar(g, g.Add(g))), qt.IsTrue)
	c.Assert(a.Equal(ChallengeScalar(g.Add(g), g)), qt.IsFalse)
	c.Assert(a.IsZero(), qt.IsFalse)
}

func TestNullifierJSON(t *testing.T) {
	c := qt.New(t)

	nf := CastNullifier([]byte("k"), 5)
	data, err := json.Marshal(nf)
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, `"`+nf.Hex()+`"`)

	var back Nullifier
	c.Assert(json.Unmarshal(data, &back), qt.IsNil)
	c.Assert(back, qt.Equals, nf)

	_, err = NullifierFromHex("00")
	c.Assert(err, qt.IsNotNil)
}
