package dkg

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/elgamal"
)

// subsets returns every subset of {1..m} with exactly t elements.
func subsets(m, t int) [][]uint32 {
	var out [][]uint32
	var rec func(start int, cur []uint32)
	rec = func(start int, cur []uint32) {
		if len(cur) == t {
			out = append(out, append([]uint32(nil), cur...))
			return
		}
		for i := start; i <= m; i++ {
			rec(i+1, append(cur, uint32(i)))
		}
	}
	rec(1, nil)
	return out
}

func TestCeremonyGrid(t *testing.T) {
	c := qt.New(t)

	for m := 1; m <= 4; m++ {
		for th := 1; th <= m; th++ {
			res, err := RunCeremony(context.Background(), m, th)
			c.Assert(err, qt.IsNil, qt.Commentf("t=%d m=%d", th, m))
			c.Assert(res.Shares, qt.HasLen, m)
			c.Assert(res.Identities, qt.HasLen, m)

			// PK == Σ A_{j,0}
			sum := secp256k1.Identity()
			for j := 1; j <= m; j++ {
				sum = sum.Add(res.Commitments[uint32(j)][0])
			}
			c.Assert(res.PublicKey.Equal(sum), qt.IsTrue)

			for _, share := range res.Shares {
				c.Assert(share.PublicShare.Equal(secp256k1.ScalarBaseMult(share.Secret)), qt.IsTrue)
				c.Assert(share.PublicShare.Equal(PublicShareFor(share.Index, res.Commitments)), qt.IsTrue,
					qt.Commentf("public share of %d derivable from commitments", share.Index))
			}

			// every t-subset interpolates the same secret, whose image is PK
			for _, set := range subsets(m, th) {
				lambdas, err := secp256k1.LagrangeCoefficients(set)
				c.Assert(err, qt.IsNil)
				secret := secp256k1.NewScalar()
				for _, j := range set {
					secret = secret.Add(lambdas[j].Mul(res.Shares[j-1].Secret))
				}
				c.Assert(secp256k1.ScalarBaseMult(secret).Equal(res.PublicKey), qt.IsTrue,
					qt.Commentf("t=%d m=%d subset %v", th, m, set))
			}
		}
	}
}

func TestParticipantsAgreeOnPublicKey(t *testing.T) {
	c := qt.New(t)

	const m, th = 5, 3
	parts := make([]*Participant, m)
	for i := range parts {
		p, err := NewParticipant(uint32(i+1), th, m)
		c.Assert(err, qt.IsNil)
		c.Assert(p.GeneratePolynomial(), qt.IsNil)
		parts[i] = p
	}
	for _, dealer := range parts {
		for _, recipient := range parts {
			share, err := dealer.ShareFor(recipient.Index)
			c.Assert(err, qt.IsNil)
			err = recipient.ReceiveShare(dealer.Index, share, dealer.Commitments)
			c.Assert(err, qt.IsNil, qt.Commentf("participant %d failed to verify share from %d", recipient.Index, dealer.Index))
		}
	}
	first, err := parts[0].PublicKey()
	c.Assert(err, qt.IsNil)
	for _, p := range parts {
		pk, err := p.PublicKey()
		c.Assert(err, qt.IsNil)
		c.Assert(pk.Equal(first), qt.IsTrue, qt.Commentf("public key mismatch for participant %d", p.Index))
		_, err = p.Finalize()
		c.Assert(err, qt.IsNil)
	}

	c.Run("duplicate share is rejected", func(c *qt.C) {
		share, err := parts[1].ShareFor(1)
		c.Assert(err, qt.IsNil)
		err = parts[0].ReceiveShare(2, share, parts[1].Commitments)
		c.Assert(err, qt.ErrorIs, ErrCeremonyVerification)
	})
}

func TestVerifyShare(t *testing.T) {
	c := qt.New(t)

	p, err := NewParticipant(1, 2, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(p.GeneratePolynomial(), qt.IsNil)
	share, err := p.ShareFor(2)
	c.Assert(err, qt.IsNil)
	c.Assert(VerifyShare(1, 2, share, p.Commitments), qt.IsNil)

	// wrong recipient
	err = VerifyShare(1, 3, share, p.Commitments)
	var sve *ShareVerificationError
	c.Assert(errors.As(err, &sve), qt.IsTrue)
	c.Assert(sve.Dealer, qt.Equals, uint32(1))
	c.Assert(sve.Recipient, qt.Equals, uint32(3))
	c.Assert(err, qt.ErrorIs, ErrCeremonyVerification)

	// tampered share
	err = VerifyShare(1, 2, share.Add(secp256k1.ScalarFromUint64(1)), p.Commitments)
	c.Assert(err, qt.ErrorIs, ErrCeremonyVerification)

	// tampered commitment
	bad := append([]secp256k1.Point(nil), p.Commitments...)
	bad[1] = bad[1].Add(secp256k1.Generator())
	err = VerifyShare(1, 2, share, bad)
	c.Assert(err, qt.ErrorIs, ErrCeremonyVerification)
}

// corruptingTransport flips one share in flight.
type corruptingTransport struct {
	*MemoryTransport
	from, to uint32
}

func (t *corruptingTransport) Send(ctx context.Context, msg ShareMessage) error {
	if msg.From == t.from && msg.To == t.to {
		msg.Share = msg.Share.Add(secp256k1.ScalarFromUint64(1))
	}
	return t.MemoryTransport.Send(ctx, msg)
}

func TestCeremonyAbortsOnBadShare(t *testing.T) {
	c := qt.New(t)

	tr := &corruptingTransport{MemoryTransport: NewMemoryTransport(3), from: 2, to: 3}
	res, err := RunCeremonyOver(context.Background(), 3, 2, tr)
	c.Assert(res, qt.IsNil)
	c.Assert(err, qt.ErrorIs, ErrCeremonyVerification)
	var sve *ShareVerificationError
	c.Assert(errors.As(err, &sve), qt.IsTrue)
	c.Assert(sve.Dealer, qt.Equals, uint32(2))
	c.Assert(sve.Recipient, qt.Equals, uint32(3))
}

// equivocatingTransport has dealer from send recipient to a share of a
// different polynomial, consistent with its own commitment set.
type equivocatingTransport struct {
	*MemoryTransport
	from, to uint32
	other    *Participant
}

func (t *equivocatingTransport) Send(ctx context.Context, msg ShareMessage) error {
	if msg.From == t.from && msg.To == t.to {
		share, err := t.other.ShareFor(msg.To)
		if err != nil {
			return err
		}
		msg.Share = share
		msg.Commitments = t.other.Commitments
	}
	return t.MemoryTransport.Send(ctx, msg)
}

func TestCeremonyAbortsOnEquivocation(t *testing.T) {
	c := qt.New(t)

	other, err := NewParticipant(1, 2, 3)
	c.Assert(err, qt.IsNil)
	c.Assert(other.GeneratePolynomial(), qt.IsNil)
	// the forged share passes the Feldman check on its own
	share, err := other.ShareFor(2)
	c.Assert(err, qt.IsNil)
	c.Assert(VerifyShare(1, 2, share, other.Commitments), qt.IsNil)

	tr := &equivocatingTransport{MemoryTransport: NewMemoryTransport(3), from: 1, to: 2, other: other}
	res, err := RunCeremonyOver(context.Background(), 3, 2, tr)
	c.Assert(res, qt.IsNil)
	c.Assert(err, qt.ErrorIs, ErrCeremonyVerification)
	c.Assert(err, qt.ErrorMatches, ".*participant 2 derived public key.*")

	p, err := NewParticipant(1, 2, 3)
	c.Assert(err, qt.IsNil)
	_, err = p.PublicKey()
	c.Assert(err, qt.ErrorMatches, "participant 1 accepted 0 of 3 dealers")
}

func TestCeremonyParams(t *testing.T) {
	c := qt.New(t)

	for _, tc := range []struct{ m, t int }{{0, 0}, {3, 0}, {2, 3}, {65, 2}} {
		_, err := RunCeremony(context.Background(), tc.m, tc.t)
		c.Assert(err, qt.ErrorMatches, "invalid ceremony parameters.*", qt.Commentf("m=%d t=%d", tc.m, tc.t))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := RunCeremony(ctx, 3, 2)
	c.Assert(err, qt.ErrorIs, context.Canceled)
}

// Three key-holders, threshold two, a single vote for option 1 decrypted by
// two different pairs of key-holders.
func TestThresholdDecryptionScenario(t *testing.T) {
	c := qt.New(t)

	res, err := RunCeremony(context.Background(), 3, 2)
	c.Assert(err, qt.IsNil)

	ct, _, err := elgamal.Encrypt(1, res.PublicKey)
	c.Assert(err, qt.IsNil)

	partials := make(map[uint32]secp256k1.Point)
	for _, share := range res.Shares {
		partials[share.Index] = elgamal.PartialDecrypt(share.Secret, ct.C1)
	}

	for _, set := range [][]uint32{{1, 3}, {1, 2}, {2, 3}, {3, 1, 2}} {
		v, err := CombinePartialDecryptions(ct.C2, partials, set, 2)
		c.Assert(err, qt.IsNil)
		got, err := elgamal.DecodeVote(v, 3)
		c.Assert(err, qt.IsNil)
		c.Assert(got, qt.Equals, uint64(1), qt.Commentf("subset %v", set))
	}

	// a single share is below threshold
	_, err = CombinePartialDecryptions(ct.C2, partials, []uint32{1}, 2)
	c.Assert(err, qt.ErrorIs, ErrBelowThreshold)
	_, err = CombinePartialDecryptions(ct.C2, partials, []uint32{1, 1}, 2)
	c.Assert(err, qt.ErrorMatches, "duplicate key-holder.*")
	_, err = CombinePartialDecryptions(ct.C2, partials, []uint32{1, 3}, 0)
	c.Assert(err, qt.ErrorIs, ErrBelowThreshold)

	// interpolating one share as if t were 1 decodes to garbage
	lambdas, err := secp256k1.LagrangeCoefficients([]uint32{1})
	c.Assert(err, qt.IsNil)
	v, err := CombineWithCoefficients(ct.C2, partials, lambdas, 1)
	c.Assert(err, qt.IsNil)
	_, err = elgamal.DecodeVote(v, 3)
	c.Assert(err, qt.ErrorIs, elgamal.ErrInvalidBallotDecode)
	_, err = CombineWithCoefficients(ct.C2, partials, lambdas, 2)
	c.Assert(err, qt.ErrorIs, ErrBelowThreshold)

	_, err = CombinePartialDecryptions(ct.C2, map[uint32]secp256k1.Point{1: partials[1]}, []uint32{1, 2}, 2)
	c.Assert(err, qt.ErrorMatches, "missing partial decryption.*")
}
