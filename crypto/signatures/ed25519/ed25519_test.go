package ed25519

import (
	"bytes"
	"encoding/json"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestSignVerify(t *testing.T) {
	c := qt.New(t)

	key, err := GenerateKey()
	c.Assert(err, qt.IsNil)
	msg := []byte("stellot ballot")
	sig := key.Sign(msg)
	c.Assert(Verify(key.Public(), msg, sig), qt.IsNil)

	c.Run("tampered message", func(c *qt.C) {
		bad := bytes.Clone(msg)
		bad[0] ^= 0x01
		c.Assert(Verify(key.Public(), bad, sig), qt.ErrorIs, ErrSignatureVerification)
	})

	c.Run("tampered signature", func(c *qt.C) {
		bad := sig
		bad[10] ^= 0x80
		c.Assert(Verify(key.Public(), msg, bad), qt.ErrorIs, ErrSignatureVerification)
	})

	c.Run("other key", func(c *qt.C) {
		other, err := GenerateKey()
		c.Assert(err, qt.IsNil)
		c.Assert(Verify(other.Public(), msg, sig), qt.ErrorIs, ErrSignatureVerification)
	})
}

func TestSeedRoundTrip(t *testing.T) {
	c := qt.New(t)

	key, err := GenerateKey()
	c.Assert(err, qt.IsNil)
	c.Assert(key.Hex(), qt.HasLen, 64)
	c.Assert(key.Public().Hex(), qt.HasLen, 64)

	restored, err := PrivateKeyFromHex(key.Hex())
	c.Assert(err, qt.IsNil)
	c.Assert(restored.Public(), qt.Equals, key.Public())

	pub, err := PublicKeyFromHex(key.Public().Hex())
	c.Assert(err, qt.IsNil)
	c.Assert(pub, qt.Equals, key.Public())

	_, err = PrivateKeyFromHex("abcd")
	c.Assert(err, qt.ErrorMatches, "invalid ed25519 seed hex length.*")
}

func TestJSON(t *testing.T) {
	c := qt.New(t)

	key, err := GenerateKey()
	c.Assert(err, qt.IsNil)
	in := struct {
		Pub PublicKey `json:"pub"`
		Sig Signature `json:"sig"`
	}{key.Public(), key.Sign([]byte("x"))}

	data, err := json.Marshal(in)
	c.Assert(err, qt.IsNil)
	out := in
	out.Pub, out.Sig = PublicKey{}, Signature{}
	c.Assert(json.Unmarshal(data, &out), qt.IsNil)
	c.Assert(out, qt.DeepEquals, in)
}
