// Package keyholder implements the key-holder's role after voting closes:
// compute a partial decryption of every ballot, prove each one and post
// the signed shares blob to the ledger.
package keyholder

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/elgamal"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/log"
	"github.com/stanbar/stellot-sub000/shares"
	"golang.org/x/sync/errgroup"
)

// AuditProof is the Chaum-Pedersen proof of one partial decryption. Proofs
// are not checked by the ledger; they are published for auditors.
type AuditProof struct {
	Ballot uint64                  `json:"ballot"`
	C1     secp256k1.Point         `json:"c1"`
	D      secp256k1.Point         `json:"d"`
	Proof  elgamal.DecryptionProof `json:"proof"`
}

// Submission is the signed shares record plus its audit proofs.
type Submission struct {
	Record *shares.Record `json:"record"`
	Proofs []AuditProof   `json:"proofs"`
}

// KeyHolder acts on behalf of one credential.
type KeyHolder struct {
	cred *Credential
	now  func() time.Time
}

// Option configures a KeyHolder.
type Option func(*KeyHolder)

// WithClock replaces time.Now when checking that voting is closed.
func WithClock(now func() time.Time) Option {
	return func(k *KeyHolder) {
		k.now = now
	}
}

// New creates a key-holder.
func New(cred *Credential, opts ...Option) *KeyHolder {
	k := &KeyHolder{cred: cred, now: time.Now}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Index returns the key-holder index.
func (k *KeyHolder) Index() uint32 {
	return k.cred.Index
}

// BuildShares computes D = sk·C1 and a proof for every ballot, and signs
// the resulting blob. Pairs follow the order of ballots.
func (k *KeyHolder) BuildShares(ctx context.Context, eid ledger.ElectionID, ballots []*ledger.EncryptedBallot) (*Submission, error) {
	pairs := make([]shares.Pair, len(ballots))
	proofs := make([]AuditProof, len(ballots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, b := range ballots {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, proof, err := elgamal.ProvePartialDecryption(k.cred.Secret, b.C1)
			if err != nil {
				return fmt.Errorf("ballot %d: %w", b.Index, err)
			}
			pairs[i] = shares.Pair{C1: b.C1, D: d}
			proofs[i] = AuditProof{Ballot: b.Index, C1: b.C1, D: d, Proof: proof}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Submission{
		Record: shares.Sign(eid, k.cred.Index, pairs, k.cred.Identity),
		Proofs: proofs,
	}, nil
}

// PublishCommitment posts the key-holder's commitment A_{i,0}, signed with
// its roster key.
func (k *KeyHolder) PublishCommitment(ctx context.Context, l ledger.Ledger, eid ledger.ElectionID) error {
	sig := ledger.SignCommitment(eid, k.cred.Index, k.cred.Commitment, k.cred.Identity)
	if err := l.SetKeyHolderCommitment(ctx, eid, k.cred.Index, k.cred.Commitment, sig); err != nil {
		return fmt.Errorf("publish commitment of key-holder %d: %w", k.cred.Index, err)
	}
	return nil
}

// Post reads every ballot of a closed election and posts the key-holder's
// shares once.
func (k *KeyHolder) Post(ctx context.Context, l ledger.Ledger, eid ledger.ElectionID) (*Submission, error) {
	e, err := l.Election(ctx, eid)
	if err != nil {
		return nil, err
	}
	if !e.IsClosed(k.now()) {
		return nil, fmt.Errorf("%w: election %d ends at %s", ledger.ErrVotingNotClosed, eid, e.EndTime)
	}
	key, ok := e.KeyHolderKey(k.cred.Index)
	if !ok || key != k.cred.PublicKey() {
		return nil, fmt.Errorf("%w: index %d", ledger.ErrUnknownKeyHolder, k.cred.Index)
	}
	ballots, err := l.Ballots(ctx, eid)
	if err != nil {
		return nil, fmt.Errorf("read ballots: %w", err)
	}
	sub, err := k.BuildShares(ctx, eid, ballots)
	if err != nil {
		return nil, err
	}
	slot, err := l.PostShare(ctx, eid, sub.Record)
	if err != nil {
		return nil, err
	}
	log.Infow("key-holder shares posted",
		"eid", eid,
		"khIndex", k.cred.Index,
		"ballots", len(ballots),
		"slot", slot)
	return sub, nil
}
