// Package local is the reference ledger: it enforces every rule the
// on-chain contract enforces on top of a local key-value store.
package local

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
	"slices"
	"sync"
	"time"

	"github.com/stanbar/stellot-sub000/casting"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/issuance"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/log"
	"github.com/stanbar/stellot-sub000/shares"
	"github.com/stanbar/stellot-sub000/storage"
	"github.com/stanbar/stellot-sub000/tally"
)

// Ledger implements ledger.Ledger and ledger.AuditRecorder.
type Ledger struct {
	st    *storage.Storage
	now   func() time.Time
	locks sync.Map // ElectionID -> *sync.Mutex
}

var (
	_ ledger.Ledger        = (*Ledger)(nil)
	_ ledger.AuditRecorder = (*Ledger)(nil)
)

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock replaces time.Now, used to evaluate voting windows.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// New creates a ledger backed by st.
func New(st *storage.Storage, opts ...Option) *Ledger {
	l := &Ledger{st: st, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Close closes the underlying storage.
func (l *Ledger) Close() error {
	return l.st.Close()
}

// lock serializes state changing operations of one election.
func (l *Ledger) lock(eid ledger.ElectionID) func() {
	mu, _ := l.locks.LoadOrStore(eid, &sync.Mutex{})
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

func (l *Ledger) Deploy(ctx context.Context, params *ledger.DeployParams) (ledger.ElectionID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if params == nil {
		return 0, fmt.Errorf("%w: empty parameters", ledger.ErrInvalidParams)
	}
	if err := params.Validate(); err != nil {
		return 0, err
	}
	e, err := l.st.CreateElection(params)
	if err != nil {
		return 0, err
	}
	log.Infow("election deployed",
		"eid", e.ID,
		"title", e.Title,
		"options", e.OptionsCount,
		"keyHolders", len(e.KeyHolders),
		"threshold", e.KeyHolderThreshold)
	return e.ID, nil
}

// SetKeyHolderCommitment records A_{i,0} of key-holder index. sig must be
// made with the roster key of index over the commitment.
func (l *Ledger) SetKeyHolderCommitment(ctx context.Context, eid ledger.ElectionID, index uint32,
	commitment secp256k1.Point, sig ed25519.Signature,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if commitment.IsIdentity() {
		return fmt.Errorf("%w: identity commitment", ledger.ErrInvalidParams)
	}
	defer l.lock(eid)()
	e, err := l.st.Election(eid)
	if err != nil {
		return err
	}
	if err := e.VerifyCommitment(index, commitment, sig); err != nil {
		log.Warnw("commitment rejected", "eid", eid, "khIndex", index, "error", err.Error())
		return err
	}
	if err := l.st.SetKeyHolderCommitment(eid, index, commitment); err != nil {
		return err
	}
	log.Debugw("key-holder commitment set", "eid", eid, "khIndex", index)
	return nil
}

func (l *Ledger) IssueAccount(ctx context.Context, eid ledger.ElectionID, pkCast ed25519.PublicKey,
	nfIssue hash.Nullifier, approvals []issuance.Approval,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer l.lock(eid)()
	e, err := l.st.Election(eid)
	if err != nil {
		return err
	}
	if e.IsClosed(l.now()) {
		return fmt.Errorf("%w: election %d", ledger.ErrVotingClosed, eid)
	}
	if _, err := issuance.Collect(eid, pkCast, nfIssue, approvals, e.Distributors, e.DistributorThreshold); err != nil {
		log.Warnw("issuance rejected", "eid", eid, "error", err.Error())
		return err
	}
	if err := l.st.IssueAccount(eid, pkCast, nfIssue); err != nil {
		log.Warnw("issuance rejected", "eid", eid, "error", err.Error())
		return err
	}
	log.Debugw("casting account issued", "eid", eid, "pkCast", pkCast.Hex())
	return nil
}

func (l *Ledger) Cast(ctx context.Context, eid ledger.ElectionID, req *casting.CastRequest) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	defer l.lock(eid)()
	e, err := l.st.Election(eid)
	if err != nil {
		return 0, err
	}
	now := l.now()
	if now.Before(e.StartTime) {
		return 0, fmt.Errorf("%w: election %d starts at %s", ledger.ErrVotingNotOpen, eid, e.StartTime)
	}
	if e.IsClosed(now) {
		return 0, fmt.Errorf("%w: election %d", ledger.ErrVotingClosed, eid)
	}
	if err := casting.VerifyCastRequest(eid, req); err != nil {
		log.Warnw("ballot rejected", "eid", eid, "error", err.Error())
		return 0, err
	}
	index, err := l.st.AddBallot(eid, req)
	if err != nil {
		log.Warnw("ballot rejected", "eid", eid, "error", err.Error())
		return 0, err
	}
	log.Debugw("ballot cast", "eid", eid, "ballot", index)
	return index, nil
}

func (l *Ledger) PostShare(ctx context.Context, eid ledger.ElectionID, rec *shares.Record) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if rec == nil {
		return 0, fmt.Errorf("empty shares record")
	}
	defer l.lock(eid)()
	e, err := l.st.Election(eid)
	if err != nil {
		return 0, err
	}
	if !e.IsClosed(l.now()) {
		return 0, fmt.Errorf("%w: election %d ends at %s", ledger.ErrVotingNotClosed, eid, e.EndTime)
	}
	key, ok := e.KeyHolderKey(rec.KHIndex)
	if !ok || key != rec.KHPublicKey {
		return 0, fmt.Errorf("%w: index %d key %s", ledger.ErrUnknownKeyHolder, rec.KHIndex, rec.KHPublicKey)
	}
	if err := rec.Verify(eid); err != nil {
		log.Warnw("shares rejected", "eid", eid, "khIndex", rec.KHIndex, "error", err.Error())
		return 0, err
	}
	if _, err := rec.Pairs(); err != nil {
		log.Warnw("shares rejected", "eid", eid, "khIndex", rec.KHIndex, "error", err.Error())
		return 0, err
	}
	slot, err := l.st.AddShareRecord(eid, rec)
	if err != nil {
		return 0, err
	}
	log.Infow("shares posted", "eid", eid, "khIndex", rec.KHIndex, "slot", slot)
	return slot, nil
}

// FinalizeTally accepts counts only if they equal the tally the ledger
// recombines from its own ballots and share records. The ballots that do
// not decode are written to the audit log together with the counts.
func (l *Ledger) FinalizeTally(ctx context.Context, eid ledger.ElectionID, counts []uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	defer l.lock(eid)()
	e, err := l.st.Election(eid)
	if err != nil {
		return err
	}
	if !e.IsClosed(l.now()) {
		return fmt.Errorf("%w: election %d", ledger.ErrVotingNotClosed, eid)
	}
	if uint64(len(counts)) != e.OptionsCount {
		return fmt.Errorf("%w: %d counts for %d options", ledger.ErrInvalidTally, len(counts), e.OptionsCount)
	}
	ballots, err := l.st.Ballots(eid)
	if err != nil {
		return err
	}
	var total, carry uint64
	for _, n := range counts {
		if total, carry = bits.Add64(total, n, 0); carry != 0 {
			return fmt.Errorf("%w: vote counts overflow", ledger.ErrInvalidTally)
		}
	}
	if total > uint64(len(ballots)) {
		return fmt.Errorf("%w: %d votes counted for %d ballots", ledger.ErrInvalidTally, total, len(ballots))
	}
	if e.Tallied {
		prev, err := l.st.Tally(eid)
		if err != nil {
			return err
		}
		if !slices.Equal(prev, counts) {
			log.Warnw("conflicting tally", "eid", eid, "have", prev, "got", counts)
			return fmt.Errorf("%w: have %v, got %v", ledger.ErrTallyMismatch, prev, counts)
		}
		return nil
	}

	// with no ballots the counts are all zero and no shares are needed
	var excluded []ledger.AuditEntry
	if len(ballots) > 0 {
		records, err := l.st.ShareRecords(eid)
		if err != nil {
			return err
		}
		res, err := tally.New(tally.WithClock(l.now)).Combine(ctx, e, ballots, records)
		if err != nil {
			return fmt.Errorf("%w: %w", ledger.ErrInvalidTally, err)
		}
		if !slices.Equal(res.Counts, counts) {
			log.Warnw("tally rejected", "eid", eid, "posted", counts, "combined", res.Counts)
			return fmt.Errorf("%w: counts %v do not match the posted shares", ledger.ErrInvalidTally, counts)
		}
		excluded = res.Excluded
	}
	if err := l.st.SetTally(eid, counts, excluded); err != nil {
		if errors.Is(err, ledger.ErrTallyMismatch) {
			log.Warnw("conflicting tally", "eid", eid, "error", err.Error())
		}
		return err
	}
	log.Infow("tally finalized", "eid", eid, "counts", counts, "excluded", len(excluded))
	return nil
}

func (l *Ledger) Election(ctx context.Context, eid ledger.ElectionID) (*ledger.Election, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.st.Election(eid)
}

func (l *Ledger) Ballot(ctx context.Context, eid ledger.ElectionID, index uint64) (*ledger.EncryptedBallot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.st.Ballot(eid, index)
}

func (l *Ledger) Ballots(ctx context.Context, eid ledger.ElectionID) ([]*ledger.EncryptedBallot, error) {
	if err := l.exists(ctx, eid); err != nil {
		return nil, err
	}
	return l.st.Ballots(eid)
}

func (l *Ledger) BallotCount(ctx context.Context, eid ledger.ElectionID) (uint64, error) {
	if err := l.exists(ctx, eid); err != nil {
		return 0, err
	}
	return l.st.BallotCount(eid)
}

func (l *Ledger) KeyHolderShares(ctx context.Context, eid ledger.ElectionID) ([]*shares.Record, error) {
	if err := l.exists(ctx, eid); err != nil {
		return nil, err
	}
	return l.st.ShareRecords(eid)
}

func (l *Ledger) Tally(ctx context.Context, eid ledger.ElectionID) ([]uint64, error) {
	if err := l.exists(ctx, eid); err != nil {
		return nil, err
	}
	return l.st.Tally(eid)
}

func (l *Ledger) IsCastNullifierUsed(ctx context.Context, eid ledger.ElectionID, nf hash.Nullifier) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return l.st.IsCastNullifierUsed(eid, nf)
}

func (l *Ledger) IsIssueNullifierUsed(ctx context.Context, eid ledger.ElectionID, nf hash.Nullifier) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return l.st.IsIssueNullifierUsed(eid, nf)
}

// Excluded returns the election's audit log.
func (l *Ledger) Excluded(ctx context.Context, eid ledger.ElectionID) ([]ledger.AuditEntry, error) {
	if err := l.exists(ctx, eid); err != nil {
		return nil, err
	}
	return l.st.AuditEntries(eid)
}

func (l *Ledger) exists(ctx context.Context, eid ledger.ElectionID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := l.st.Election(eid)
	return err
}
