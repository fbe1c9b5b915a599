// Package testutil builds complete elections on a local ledger for tests.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stanbar/stellot-sub000/casting"
	"github.com/stanbar/stellot-sub000/crypto/elgamal/dkg"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/db/metadb"
	"github.com/stanbar/stellot-sub000/issuance"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/ledger/local"
	"github.com/stanbar/stellot-sub000/storage"
)

// Start is the opening time of every fixture election.
var Start = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

// Duration is the voting window of every fixture election.
const Duration = time.Hour

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(t time.Time) *Clock {
	return &Clock{now: t}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Options sizes a fixture election.
type Options struct {
	KeyHolders           int
	Threshold            int
	OptionsCount         uint64
	Distributors         int
	DistributorThreshold int
	Voters               []string
}

// Fixture is a deployed election with its off-ledger participants.
type Fixture struct {
	Clock        *Clock
	Ledger       *local.Ledger
	Ceremony     *dkg.CeremonyResult
	Oracle       *issuance.StaticOracle
	Distributors []*issuance.Distributor
	Params       *ledger.DeployParams
	EID          ledger.ElectionID
}

// NewFixture runs a DKG, deploys the election on a fresh local ledger,
// publishes the key-holder commitments and opens the voting window.
func NewFixture(tb testing.TB, opts Options) *Fixture {
	tb.Helper()
	ctx := context.Background()
	if opts.OptionsCount == 0 {
		opts.OptionsCount = 2
	}
	if opts.Distributors == 0 {
		opts.Distributors, opts.DistributorThreshold = 1, 1
	}
	if len(opts.Voters) == 0 {
		opts.Voters = DefaultVoters(10)
	}

	clock := NewClock(Start.Add(-time.Minute))
	l := local.New(storage.New(metadb.NewTest(tb)), local.WithClock(clock.Now))

	ceremony, err := dkg.RunCeremony(ctx, opts.KeyHolders, opts.Threshold)
	if err != nil {
		tb.Fatalf("dkg ceremony: %v", err)
	}

	oracle := issuance.NewStaticOracle(opts.Voters...)
	f := &Fixture{Clock: clock, Ledger: l, Ceremony: ceremony, Oracle: oracle}
	var distKeys []ed25519.PublicKey
	for range opts.Distributors {
		key, err := ed25519.GenerateKey()
		if err != nil {
			tb.Fatal(err)
		}
		d := &issuance.Distributor{
			Key:        key,
			Oracle:     oracle,
			Sessions:   issuance.NewSessionStore(0, 0),
			Nullifiers: l,
		}
		f.Distributors = append(f.Distributors, d)
		distKeys = append(distKeys, d.PublicKey())
	}

	khKeys := make([]ed25519.PublicKey, len(ceremony.Identities))
	for i, id := range ceremony.Identities {
		khKeys[i] = id.Public()
	}
	f.Params = &ledger.DeployParams{
		Title:                "test election",
		OptionsCount:         opts.OptionsCount,
		StartTime:            Start,
		EndTime:              Start.Add(Duration),
		PublicKey:            ceremony.PublicKey,
		EligibilityRoot:      oracle.Root(),
		Distributors:         distKeys,
		DistributorThreshold: opts.DistributorThreshold,
		KeyHolders:           khKeys,
		KeyHolderThreshold:   opts.Threshold,
	}
	if f.EID, err = l.Deploy(ctx, f.Params); err != nil {
		tb.Fatalf("deploy: %v", err)
	}
	for i, share := range ceremony.Shares {
		sig := ledger.SignCommitment(f.EID, share.Index, share.Commitment, ceremony.Identities[i])
		if err := l.SetKeyHolderCommitment(ctx, f.EID, share.Index, share.Commitment, sig); err != nil {
			tb.Fatalf("commitment %d: %v", share.Index, err)
		}
	}
	clock.Set(Start.Add(time.Minute))
	return f
}

// DefaultVoters returns n identity names.
func DefaultVoters(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("voter-%03d", i)
	}
	return out
}

// Issue runs the issuance protocol for identity with the first quorum of
// distributors and registers the casting account on the ledger.
func (f *Fixture) Issue(ctx context.Context, identity string) (*issuance.Voter, *casting.CastingIdentity, error) {
	voter, err := issuance.GenerateVoter()
	if err != nil {
		return nil, nil, err
	}
	ci, err := voter.NewCastingIdentity()
	if err != nil {
		return nil, nil, err
	}
	proof := issuance.EligibilityProof{IdentityID: identity}
	var approvals []issuance.Approval
	for _, d := range f.Distributors[:f.Params.DistributorThreshold] {
		session, err := d.Begin(ctx, f.EID, f.Oracle.Root(), proof)
		if err != nil {
			return nil, nil, err
		}
		a, err := d.Approve(ctx, f.Oracle.Root(), voter.NewRequest(f.EID, session, ci, proof))
		if err != nil {
			return nil, nil, err
		}
		approvals = append(approvals, *a)
	}
	if err := f.Ledger.IssueAccount(ctx, f.EID, ci.PublicKey(), voter.IssueNullifier(f.EID), approvals); err != nil {
		return nil, nil, err
	}
	return voter, ci, nil
}

// Vote issues a casting identity for identity and casts option.
func (f *Fixture) Vote(ctx context.Context, identity string, option uint64) (*casting.CastRequest, error) {
	_, ci, err := f.Issue(ctx, identity)
	if err != nil {
		return nil, err
	}
	req, err := ci.Cast(f.EID, option, f.Params.PublicKey, f.Params.OptionsCount)
	if err != nil {
		return nil, err
	}
	if _, err := f.Ledger.Cast(ctx, f.EID, req); err != nil {
		return nil, err
	}
	return req, nil
}

// CloseVoting moves the clock past the end of the election.
func (f *Fixture) CloseVoting() {
	f.Clock.Set(f.Params.EndTime.Add(time.Second))
}
