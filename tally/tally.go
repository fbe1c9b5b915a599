// Package tally combines the key-holders' partial decryptions into the
// election result. For every ballot a fixed subset of exactly t key-holders
// is chosen, their shares are interpolated at zero and the plaintext point
// is decoded by a bounded search.
package tally

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/elgamal"
	"github.com/stanbar/stellot-sub000/crypto/elgamal/dkg"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/log"
	"github.com/stanbar/stellot-sub000/shares"
	"golang.org/x/sync/errgroup"
)

// ErrInsufficientShares is returned while fewer than t valid key-holder
// records cover a ballot. The caller should wait for more shares.
var ErrInsufficientShares = errors.New("insufficient key-holder shares")

// ReasonInvalidDecode is the audit reason of ballots that do not decode.
const ReasonInvalidDecode = "ballot does not decode to a valid option"

// Result is the outcome of combining an election.
type Result struct {
	ElectionID ledger.ElectionID   `json:"electionId"`
	Counts     []uint64            `json:"counts"`
	Ballots    uint64              `json:"ballots"`
	Excluded   []ledger.AuditEntry `json:"excluded,omitempty"`
	// Rejected lists key-holder indices whose records failed verification.
	Rejected []uint32 `json:"rejected,omitempty"`
}

// Combiner reconstructs tallies. The zero value is not usable; use New.
type Combiner struct {
	now func() time.Time
}

// Option configures a Combiner.
type Option func(*Combiner)

// WithClock replaces time.Now when checking that voting is closed.
func WithClock(now func() time.Time) Option {
	return func(c *Combiner) {
		c.now = now
	}
}

// New creates a Combiner.
func New(opts ...Option) *Combiner {
	c := &Combiner{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// validRecords verifies every record against the roster and returns the
// decoded shares by key-holder index, plus the rejected indices.
func validRecords(e *ledger.Election, records []*shares.Record) (map[uint32]map[string]secp256k1.Point, []uint32) {
	valid := make(map[uint32]map[string]secp256k1.Point, len(records))
	var rejected []uint32
	lg := log.ForElection(e.ID)
	for _, rec := range records {
		reject := func(err error) {
			rejected = append(rejected, rec.KHIndex)
			lg.Warn().Uint32("khIndex", rec.KHIndex).Err(err).Msg("shares record skipped")
		}
		if key, ok := e.KeyHolderKey(rec.KHIndex); !ok || key != rec.KHPublicKey {
			reject(ledger.ErrUnknownKeyHolder)
			continue
		}
		if _, dup := valid[rec.KHIndex]; dup {
			reject(ledger.ErrDuplicateShares)
			continue
		}
		if err := rec.Verify(e.ID); err != nil {
			reject(err)
			continue
		}
		pairs, err := rec.Pairs()
		if err != nil {
			reject(err)
			continue
		}
		valid[rec.KHIndex] = shares.Lookup(pairs)
	}
	return valid, rejected
}

// Combine tallies ballots using, for every ballot, the t smallest
// key-holder indices whose valid records contain it.
func (c *Combiner) Combine(ctx context.Context, e *ledger.Election, ballots []*ledger.EncryptedBallot,
	records []*shares.Record,
) (*Result, error) {
	return c.combine(ctx, e, ballots, records, nil)
}

// CombineWith tallies ballots using exactly the given key-holder indices,
// which must number at least t and cover every ballot.
func (c *Combiner) CombineWith(ctx context.Context, e *ledger.Election, ballots []*ledger.EncryptedBallot,
	records []*shares.Record, indices []uint32,
) (*Result, error) {
	if len(indices) < e.KeyHolderThreshold {
		return nil, fmt.Errorf("%w: %d indices for threshold %d", ErrInsufficientShares, len(indices), e.KeyHolderThreshold)
	}
	set := slices.Clone(indices)
	slices.Sort(set)
	if len(slices.Compact(set)) != len(indices) {
		return nil, fmt.Errorf("duplicate key-holder index in %v", indices)
	}
	return c.combine(ctx, e, ballots, records, set)
}

func (c *Combiner) combine(ctx context.Context, e *ledger.Election, ballots []*ledger.EncryptedBallot,
	records []*shares.Record, fixed []uint32,
) (*Result, error) {
	if !e.IsClosed(c.now()) {
		return nil, fmt.Errorf("%w: election %d ends at %s", ledger.ErrVotingNotClosed, e.ID, e.EndTime)
	}
	valid, rejected := validRecords(e, records)
	if len(valid) < e.KeyHolderThreshold {
		return nil, fmt.Errorf("%w: %d valid records for threshold %d", ErrInsufficientShares, len(valid), e.KeyHolderThreshold)
	}
	available := make([]uint32, 0, len(valid))
	for idx := range valid {
		available = append(available, idx)
	}
	slices.Sort(available)

	coeffs := newCoefficientCache()
	decoded := make([]int64, len(ballots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, b := range ballots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c1 := string(b.C1.Bytes())
			subset := fixed
			if subset == nil {
				subset = make([]uint32, 0, e.KeyHolderThreshold)
				for _, idx := range available {
					if _, ok := valid[idx][c1]; ok {
						subset = append(subset, idx)
						if len(subset) == e.KeyHolderThreshold {
							break
						}
					}
				}
			}
			if len(subset) < e.KeyHolderThreshold {
				return fmt.Errorf("%w: ballot %d has %d shares", ErrInsufficientShares, b.Index, len(subset))
			}
			partials := make(map[uint32]secp256k1.Point, len(subset))
			for _, idx := range subset {
				d, ok := valid[idx][c1]
				if !ok {
					return fmt.Errorf("%w: ballot %d has no share from key-holder %d", ErrInsufficientShares, b.Index, idx)
				}
				partials[idx] = d
			}
			lambdas, err := coeffs.get(subset)
			if err != nil {
				return err
			}
			point, err := dkg.CombineWithCoefficients(b.C2, partials, lambdas, e.KeyHolderThreshold)
			if err != nil {
				return fmt.Errorf("ballot %d: %w", b.Index, err)
			}
			v, err := elgamal.DecodeVote(point, e.OptionsCount)
			if errors.Is(err, elgamal.ErrInvalidBallotDecode) {
				decoded[i] = -1
				return nil
			}
			if err != nil {
				return fmt.Errorf("ballot %d: %w", b.Index, err)
			}
			decoded[i] = int64(v)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{
		ElectionID: e.ID,
		Counts:     make([]uint64, e.OptionsCount),
		Ballots:    uint64(len(ballots)),
		Rejected:   rejected,
	}
	lg := log.ForElection(e.ID)
	for i, v := range decoded {
		if v < 0 {
			res.Excluded = append(res.Excluded, ledger.AuditEntry{Ballot: ballots[i].Index, Reason: ReasonInvalidDecode})
			lg.Warn().Uint64("ballot", ballots[i].Index).Str("reason", ReasonInvalidDecode).Msg("ballot excluded from tally")
			continue
		}
		res.Counts[v]++
	}
	return res, nil
}

// Finalize reads the election from l, combines it and posts the counts. The
// ledger records the excluded ballots itself when it accepts the counts.
// Calling it again after success posts the same counts, which the ledger
// accepts as a no-op.
func (c *Combiner) Finalize(ctx context.Context, l ledger.Ledger, eid ledger.ElectionID) (*Result, error) {
	e, err := l.Election(ctx, eid)
	if err != nil {
		return nil, err
	}
	ballots, err := l.Ballots(ctx, eid)
	if err != nil {
		return nil, fmt.Errorf("read ballots: %w", err)
	}
	records, err := l.KeyHolderShares(ctx, eid)
	if err != nil {
		return nil, fmt.Errorf("read shares: %w", err)
	}
	res, err := c.Combine(ctx, e, ballots, records)
	if err != nil {
		return nil, err
	}
	if err := l.FinalizeTally(ctx, eid, res.Counts); err != nil {
		return nil, err
	}
	lg := log.ForElection(eid)
	lg.Info().
		Interface("counts", res.Counts).
		Uint64("ballots", res.Ballots).
		Int("excluded", len(res.Excluded)).
		Msg("tally combined")
	return res, nil
}

// coefficientCache memoizes Lagrange coefficients per index set; most
// ballots share the same subset.
type coefficientCache struct {
	mu sync.Mutex
	m  map[string]map[uint32]secp256k1.Scalar
}

func newCoefficientCache() *coefficientCache {
	return &coefficientCache{m: make(map[string]map[uint32]secp256k1.Scalar)}
}

func (c *coefficientCache) get(set []uint32) (map[uint32]secp256k1.Scalar, error) {
	var sb strings.Builder
	for _, idx := range set {
		fmt.Fprintf(&sb, "%d,", idx)
	}
	key := sb.String()
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.m[key]; ok {
		return l, nil
	}
	l, err := secp256k1.LagrangeCoefficients(set)
	if err != nil {
		return nil, err
	}
	c.m[key] = l
	return l, nil
}
