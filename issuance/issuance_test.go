package issuance

import (
	"context"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
)

type usedNullifiers map[hash.Nullifier]bool

func (u usedNullifiers) IsIssueNullifierUsed(_ context.Context, _ uint64, nf hash.Nullifier) (bool, error) {
	return u[nf], nil
}

func newDistributor(c *qt.C, oracle EligibilityOracle, used usedNullifiers) *Distributor {
	key, err := ed25519.GenerateKey()
	c.Assert(err, qt.IsNil)
	return &Distributor{
		Key:        key,
		Oracle:     oracle,
		Sessions:   NewSessionStore(16, time.Minute),
		Nullifiers: used,
	}
}

func TestIssueNullifier(t *testing.T) {
	c := qt.New(t)

	_, err := NewVoter([]byte("short"))
	c.Assert(err, qt.IsNotNil)

	v, err := NewVoter([]byte("0123456789abcdef"))
	c.Assert(err, qt.IsNil)
	c.Assert(v.IssueNullifier(1), qt.Equals, v.IssueNullifier(1))
	c.Assert(v.IssueNullifier(1), qt.Not(qt.Equals), v.IssueNullifier(2))

	w, err := GenerateVoter()
	c.Assert(err, qt.IsNil)
	c.Assert(w.IssueNullifier(1), qt.Not(qt.Equals), v.IssueNullifier(1))
	c.Assert(len(w.Secret()), qt.Equals, 32)
}

func TestApproveAndCollect(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	const eid = 3

	oracle := NewStaticOracle("alice", "bob")
	used := usedNullifiers{}
	dists := []*Distributor{
		newDistributor(c, oracle, used),
		newDistributor(c, oracle, used),
		newDistributor(c, oracle, used),
	}
	roster := make([]ed25519.PublicKey, len(dists))
	for i, d := range dists {
		roster[i] = d.PublicKey()
	}

	voter, err := GenerateVoter()
	c.Assert(err, qt.IsNil)
	id, err := voter.NewCastingIdentity()
	c.Assert(err, qt.IsNil)
	proof := EligibilityProof{IdentityID: "alice"}

	var approvals []Approval
	for _, d := range dists[:2] {
		session, err := d.Begin(ctx, eid, oracle.Root(), proof)
		c.Assert(err, qt.IsNil)
		a, err := d.Approve(ctx, oracle.Root(), voter.NewRequest(eid, session, id, proof))
		c.Assert(err, qt.IsNil)
		approvals = append(approvals, *a)
	}

	nf := voter.IssueNullifier(eid)
	valid, err := Collect(eid, id.PublicKey(), nf, approvals, roster, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(valid, qt.HasLen, 2)

	c.Run("below quorum", func(c *qt.C) {
		_, err := Collect(eid, id.PublicKey(), nf, approvals, roster, 3)
		c.Assert(err, qt.ErrorIs, ErrInsufficientApprovals)
	})

	c.Run("duplicates count once", func(c *qt.C) {
		dup := []Approval{approvals[0], approvals[0]}
		_, err := Collect(eid, id.PublicKey(), nf, dup, roster, 2)
		c.Assert(err, qt.ErrorIs, ErrInsufficientApprovals)
	})

	c.Run("approval bound to nullifier and key", func(c *qt.C) {
		other := nf
		other[0] ^= 1
		_, err := Collect(eid, id.PublicKey(), other, approvals, roster, 1)
		c.Assert(err, qt.ErrorIs, ErrInsufficientApprovals)
		_, err = Collect(eid+1, id.PublicKey(), nf, approvals, roster, 1)
		c.Assert(err, qt.ErrorIs, ErrInsufficientApprovals)
	})

	c.Run("unknown distributor ignored", func(c *qt.C) {
		_, err := Collect(eid, id.PublicKey(), nf, approvals, roster[2:], 1)
		c.Assert(err, qt.ErrorIs, ErrInsufficientApprovals)
	})

	c.Run("second approval for same identity", func(c *qt.C) {
		_, err := dists[0].Begin(ctx, eid, oracle.Root(), proof)
		c.Assert(err, qt.ErrorIs, ErrAlreadyIssued)
	})

	c.Run("not eligible", func(c *qt.C) {
		_, err := dists[2].Begin(ctx, eid, oracle.Root(), EligibilityProof{IdentityID: "mallory"})
		c.Assert(err, qt.ErrorIs, ErrNotEligible)
		_, err = dists[2].Begin(ctx, eid, []byte("other root"), proof)
		c.Assert(err, qt.ErrorIs, ErrNotEligible)
	})

	c.Run("spent nullifier", func(c *qt.C) {
		bob := EligibilityProof{IdentityID: "bob"}
		session, err := dists[2].Begin(ctx, eid, oracle.Root(), bob)
		c.Assert(err, qt.IsNil)
		used[nf] = true
		defer delete(used, nf)
		_, err = dists[2].Approve(ctx, oracle.Root(), voter.NewRequest(eid, session, id, bob))
		c.Assert(err, qt.ErrorIs, ErrAlreadyIssued)
	})
}

func TestSessionLifecycle(t *testing.T) {
	c := qt.New(t)

	s := NewSessionStore(4, time.Minute)
	id, err := s.Open(1, "alice")
	c.Assert(err, qt.IsNil)
	again, err := s.Open(1, "alice")
	c.Assert(err, qt.IsNil)
	c.Assert(again, qt.Equals, id)
	c.Assert(s.Live(), qt.Equals, 1)

	other, err := s.Open(2, "alice")
	c.Assert(err, qt.IsNil)
	c.Assert(other, qt.Not(qt.Equals), id)

	c.Assert(s.Consume(1, "alice", "bogus"), qt.ErrorIs, ErrSessionNotFound)
	c.Assert(s.Consume(1, "alice", id), qt.IsNil)
	c.Assert(s.Consume(1, "alice", id), qt.ErrorIs, ErrAlreadyIssued)
	_, err = s.Open(1, "alice")
	c.Assert(err, qt.ErrorIs, ErrAlreadyIssued)

	_, err = s.Open(1, "")
	c.Assert(err, qt.IsNotNil)
}

func TestSessionExpiry(t *testing.T) {
	c := qt.New(t)

	s := NewSessionStore(4, 20*time.Millisecond)
	id, err := s.Open(1, "alice")
	c.Assert(err, qt.IsNil)
	time.Sleep(60 * time.Millisecond)
	c.Assert(s.Consume(1, "alice", id), qt.ErrorIs, ErrSessionNotFound)

	// an expired session can be reopened
	fresh, err := s.Open(1, "alice")
	c.Assert(err, qt.IsNil)
	c.Assert(s.Consume(1, "alice", fresh), qt.IsNil)
}
