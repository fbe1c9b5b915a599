package tally_test

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/elgamal"
	"github.com/stanbar/stellot-sub000/internal/testutil"
	"github.com/stanbar/stellot-sub000/keyholder"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/shares"
	"github.com/stanbar/stellot-sub000/tally"
)

type election struct {
	*testutil.Fixture
	proofs map[uint32][]keyholder.AuditProof
}

// newElection casts votes, closes voting and has the key-holders listed in
// posting publish their shares.
func newElection(c *qt.C, m, t int, options uint64, votes []uint64, posting ...uint32) *election {
	ctx := context.Background()
	f := testutil.NewFixture(c, testutil.Options{KeyHolders: m, Threshold: t, OptionsCount: options})
	voters := testutil.DefaultVoters(len(votes))
	for i, v := range votes {
		_, err := f.Vote(ctx, voters[i], v)
		c.Assert(err, qt.IsNil)
	}
	f.CloseVoting()
	e := &election{Fixture: f, proofs: make(map[uint32][]keyholder.AuditProof)}
	for _, idx := range posting {
		e.post(c, idx)
	}
	return e
}

func (e *election) keyHolder(idx uint32) *keyholder.KeyHolder {
	cred := keyholder.NewCredential(e.Ceremony.Shares[idx-1], e.Ceremony.Identities[idx-1])
	return keyholder.New(cred, keyholder.WithClock(e.Clock.Now))
}

func (e *election) post(c *qt.C, idx uint32) {
	sub, err := e.keyHolder(idx).Post(context.Background(), e.Ledger, e.EID)
	c.Assert(err, qt.IsNil)
	e.proofs[idx] = sub.Proofs
}

func (e *election) read(c *qt.C) (*ledger.Election, []*ledger.EncryptedBallot, []*shares.Record) {
	ctx := context.Background()
	el, err := e.Ledger.Election(ctx, e.EID)
	c.Assert(err, qt.IsNil)
	ballots, err := e.Ledger.Ballots(ctx, e.EID)
	c.Assert(err, qt.IsNil)
	records, err := e.Ledger.KeyHolderShares(ctx, e.EID)
	c.Assert(err, qt.IsNil)
	return el, ballots, records
}

func TestCombineScenario(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	// m=3, t=2, a single vote for option 1
	e := newElection(c, 3, 2, 2, []uint64{1}, 1, 2, 3)
	el, ballots, records := e.read(c)
	comb := tally.New(tally.WithClock(e.Clock.Now))

	res, err := comb.Combine(ctx, el, ballots, records)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Counts, qt.DeepEquals, []uint64{0, 1})
	c.Assert(res.Excluded, qt.HasLen, 0)

	for _, subset := range [][]uint32{{1, 3}, {1, 2}, {2, 3}, {3, 1}, {1, 2, 3}} {
		res, err := comb.CombineWith(ctx, el, ballots, records, subset)
		c.Assert(err, qt.IsNil, qt.Commentf("subset %v", subset))
		c.Assert(res.Counts, qt.DeepEquals, []uint64{0, 1}, qt.Commentf("subset %v", subset))
	}

	_, err = comb.CombineWith(ctx, el, ballots, records, []uint32{2})
	c.Assert(err, qt.ErrorIs, tally.ErrInsufficientShares)
	_, err = comb.CombineWith(ctx, el, ballots, records, []uint32{2, 2})
	c.Assert(err, qt.IsNotNil)
}

// Only key-holders 1 and 3 publish; key-holder 2 never shows up.
func TestCombineWithAbsentKeyHolder(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	e := newElection(c, 3, 2, 2, []uint64{1}, 1, 3)
	el, ballots, records := e.read(c)
	c.Assert(records, qt.HasLen, 2)
	comb := tally.New(tally.WithClock(e.Clock.Now))

	res, err := comb.Combine(ctx, el, ballots, records)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Counts, qt.DeepEquals, []uint64{0, 1})

	_, err = comb.CombineWith(ctx, el, ballots, records, []uint32{1, 2})
	c.Assert(err, qt.ErrorIs, tally.ErrInsufficientShares)

	res, err = comb.Finalize(ctx, e.Ledger, e.EID)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Counts, qt.DeepEquals, []uint64{0, 1})
	counts, err := e.Ledger.Tally(ctx, e.EID)
	c.Assert(err, qt.IsNil)
	c.Assert(counts, qt.DeepEquals, []uint64{0, 1})
}

func TestCombineEveryOption(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	votes := []uint64{0, 1, 2, 3, 3, 1, 3}
	e := newElection(c, 4, 3, 4, votes, 4, 2, 1)
	el, ballots, records := e.read(c)

	res, err := tally.New(tally.WithClock(e.Clock.Now)).Combine(ctx, el, ballots, records)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Counts, qt.DeepEquals, []uint64{1, 2, 1, 3})
	c.Assert(res.Ballots, qt.Equals, uint64(len(votes)))
}

func TestInsufficientShares(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	e := newElection(c, 3, 2, 2, []uint64{0, 1}, 2)
	el, ballots, records := e.read(c)
	comb := tally.New(tally.WithClock(e.Clock.Now))

	_, err := comb.Combine(ctx, el, ballots, records)
	c.Assert(err, qt.ErrorIs, tally.ErrInsufficientShares)
	_, err = comb.Finalize(ctx, e.Ledger, e.EID)
	c.Assert(err, qt.ErrorIs, tally.ErrInsufficientShares)

	// a record covering only the first ballot leaves the second short
	sub, err := e.keyHolder(3).BuildShares(ctx, e.EID, ballots[:1])
	c.Assert(err, qt.IsNil)
	_, err = comb.Combine(ctx, el, ballots, append(records, sub.Record))
	c.Assert(err, qt.ErrorIs, tally.ErrInsufficientShares)

	// the full record of key-holder 3 completes the quorum
	e.post(c, 3)
	res, err := comb.Finalize(ctx, e.Ledger, e.EID)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Counts, qt.DeepEquals, []uint64{1, 1})
}

func TestVotingNotClosed(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	e := newElection(c, 2, 1, 2, []uint64{1}, 1)
	el, ballots, records := e.read(c)
	early := tally.New(tally.WithClock(func() time.Time { return testutil.Start }))
	_, err := early.Combine(ctx, el, ballots, records)
	c.Assert(err, qt.ErrorIs, ledger.ErrVotingNotClosed)
}

func TestSkipsInvalidRecords(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	e := newElection(c, 3, 2, 3, []uint64{2, 0}, 1, 3)
	el, ballots, records := e.read(c)

	// a forged record for key-holder 2 with a broken signature
	sub, err := e.keyHolder(2).BuildShares(ctx, e.EID, ballots)
	c.Assert(err, qt.IsNil)
	forged := *sub.Record
	forged.Signature[0] ^= 1
	// an impostor claiming index 2 with key-holder 1's key
	impostor, err := e.keyHolder(1).BuildShares(ctx, e.EID, ballots)
	c.Assert(err, qt.IsNil)
	impostor.Record.KHIndex = 2

	all := append([]*shares.Record{&forged, impostor.Record}, records...)
	res, err := tally.New(tally.WithClock(e.Clock.Now)).Combine(ctx, el, ballots, all)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Counts, qt.DeepEquals, []uint64{1, 0, 1})
	c.Assert(res.Rejected, qt.DeepEquals, []uint32{2, 2})
}

func TestExcludesInvalidBallots(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	e := newElection(c, 3, 2, 2, []uint64{1, 0})
	// an issued identity casting a properly signed ballot for option 7
	e.Clock.Set(testutil.Start.Add(testutil.Duration / 2))
	_, ci, err := e.Issue(ctx, "voter-009")
	c.Assert(err, qt.IsNil)
	ct, _, err := elgamal.Encrypt(7, e.Params.PublicKey)
	c.Assert(err, qt.IsNil)
	index, err := e.Ledger.Cast(ctx, e.EID, ci.Sign(e.EID, ct))
	c.Assert(err, qt.IsNil)
	e.CloseVoting()
	e.post(c, 1)
	e.post(c, 2)

	comb := tally.New(tally.WithClock(e.Clock.Now))
	res, err := comb.Finalize(ctx, e.Ledger, e.EID)
	c.Assert(err, qt.IsNil)
	c.Assert(res.Counts, qt.DeepEquals, []uint64{1, 1})
	c.Assert(res.Excluded, qt.DeepEquals, []ledger.AuditEntry{{Ballot: index, Reason: tally.ReasonInvalidDecode}})

	entries, err := e.Ledger.Excluded(ctx, e.EID)
	c.Assert(err, qt.IsNil)
	c.Assert(entries, qt.DeepEquals, res.Excluded)

	// finalizing again is a no-op
	again, err := comb.Finalize(ctx, e.Ledger, e.EID)
	c.Assert(err, qt.IsNil)
	c.Assert(again.Counts, qt.DeepEquals, res.Counts)
	counts, err := e.Ledger.Tally(ctx, e.EID)
	c.Assert(err, qt.IsNil)
	c.Assert(counts, qt.DeepEquals, []uint64{1, 1})
}

func TestAudit(t *testing.T) {
	c := qt.New(t)

	e := newElection(c, 3, 2, 2, []uint64{1, 1, 0}, 1, 2)
	el, _, records := e.read(c)
	c.Assert(tally.Audit(el, e.Ceremony.Commitments, records, e.proofs), qt.IsNil)

	c.Run("tampered proof", func(c *qt.C) {
		bad := map[uint32][]keyholder.AuditProof{1: e.proofs[1], 2: append([]keyholder.AuditProof(nil), e.proofs[2]...)}
		bad[2][0].Proof.S = bad[2][0].Proof.S.Add(secp256k1.ScalarFromUint64(1))
		c.Assert(tally.Audit(el, e.Ceremony.Commitments, records, bad), qt.ErrorIs, elgamal.ErrInvalidProof)
	})

	c.Run("missing proof", func(c *qt.C) {
		bad := map[uint32][]keyholder.AuditProof{1: e.proofs[1], 2: e.proofs[2][1:]}
		c.Assert(tally.Audit(el, e.Ceremony.Commitments, records, bad), qt.ErrorIs, elgamal.ErrInvalidProof)
	})

	c.Run("foreign commitments", func(c *qt.C) {
		other := newElection(c, 3, 2, 2, nil)
		c.Assert(tally.Audit(el, other.Ceremony.Commitments, records, e.proofs), qt.ErrorIs, ledger.ErrCommitmentMismatch)
	})
}
