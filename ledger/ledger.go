// Package ledger defines the append-only bulletin board the protocol runs
// on. The ledger authenticates every submission with Ed25519 signatures and
// enforces nullifier uniqueness; it never sees a voter's identity nor any
// decryption secret. Package local provides a reference implementation and
// package client talks to one over HTTP.
package ledger

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/stanbar/stellot-sub000/casting"
	"github.com/stanbar/stellot-sub000/config"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/issuance"
	"github.com/stanbar/stellot-sub000/shares"
	"github.com/stanbar/stellot-sub000/types"
)

// ElectionID identifies an election on the ledger.
type ElectionID = uint64

// Reader is the read side of the ledger.
type Reader interface {
	Election(ctx context.Context, eid ElectionID) (*Election, error)
	Ballot(ctx context.Context, eid ElectionID, index uint64) (*EncryptedBallot, error)
	Ballots(ctx context.Context, eid ElectionID) ([]*EncryptedBallot, error)
	BallotCount(ctx context.Context, eid ElectionID) (uint64, error)
	KeyHolderShares(ctx context.Context, eid ElectionID) ([]*shares.Record, error)
	Tally(ctx context.Context, eid ElectionID) ([]uint64, error)
	IsCastNullifierUsed(ctx context.Context, eid ElectionID, nf hash.Nullifier) (bool, error)
	IsIssueNullifierUsed(ctx context.Context, eid ElectionID, nf hash.Nullifier) (bool, error)
}

// Ledger is the full contract surface.
type Ledger interface {
	Reader
	Deploy(ctx context.Context, params *DeployParams) (ElectionID, error)
	SetKeyHolderCommitment(ctx context.Context, eid ElectionID, index uint32, commitment secp256k1.Point,
		sig ed25519.Signature) error
	IssueAccount(ctx context.Context, eid ElectionID, pkCast ed25519.PublicKey, nfIssue hash.Nullifier,
		approvals []issuance.Approval) error
	Cast(ctx context.Context, eid ElectionID, req *casting.CastRequest) (uint64, error)
	PostShare(ctx context.Context, eid ElectionID, record *shares.Record) (uint32, error)
	FinalizeTally(ctx context.Context, eid ElectionID, counts []uint64) error
}

// DeployParams are the immutable parameters of a new election. Key-holder
// i (1-based) is KeyHolders[i-1].
type DeployParams struct {
	Title                string              `json:"title"`
	OptionsCount         uint64              `json:"optionsCount"`
	StartTime            time.Time           `json:"startTime"`
	EndTime              time.Time           `json:"endTime"`
	PublicKey            secp256k1.Point     `json:"publicKey"`
	EligibilityRoot      types.HexBytes      `json:"eligibilityRoot"`
	Distributors         []ed25519.PublicKey `json:"distributors"`
	DistributorThreshold int                 `json:"distributorThreshold"`
	KeyHolders           []ed25519.PublicKey `json:"keyHolders"`
	KeyHolderThreshold   int                 `json:"keyHolderThreshold"`
}

// Validate checks the parameters are consistent.
func (p *DeployParams) Validate() error {
	switch {
	case p.Title == "":
		return fmt.Errorf("%w: empty title", ErrInvalidParams)
	case p.OptionsCount == 0 || p.OptionsCount > config.MaxOptionsCount:
		return fmt.Errorf("%w: options count %d out of range [1, %d]", ErrInvalidParams, p.OptionsCount, config.MaxOptionsCount)
	case !p.EndTime.After(p.StartTime):
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidParams)
	case p.PublicKey.IsIdentity():
		return fmt.Errorf("%w: missing public key", ErrInvalidParams)
	case len(p.Distributors) == 0 || len(p.Distributors) > config.MaxDistributors:
		return fmt.Errorf("%w: need 1 to %d distributors", ErrInvalidParams, config.MaxDistributors)
	case p.DistributorThreshold < 1 || p.DistributorThreshold > len(p.Distributors):
		return fmt.Errorf("%w: distributor threshold %d of %d", ErrInvalidParams, p.DistributorThreshold, len(p.Distributors))
	case 2*p.DistributorThreshold <= len(p.Distributors):
		// two disjoint quorums could each approve a different key for one voter
		return fmt.Errorf("%w: distributor threshold %d of %d is not a strict majority",
			ErrInvalidParams, p.DistributorThreshold, len(p.Distributors))
	case len(p.KeyHolders) == 0 || len(p.KeyHolders) > config.MaxKeyHolders:
		return fmt.Errorf("%w: need 1 to %d key-holders", ErrInvalidParams, config.MaxKeyHolders)
	case p.KeyHolderThreshold < 1 || p.KeyHolderThreshold > len(p.KeyHolders):
		return fmt.Errorf("%w: key-holder threshold %d of %d", ErrInvalidParams, p.KeyHolderThreshold, len(p.KeyHolders))
	}
	if hasDuplicates(p.Distributors) {
		return fmt.Errorf("%w: duplicate distributor", ErrInvalidParams)
	}
	if hasDuplicates(p.KeyHolders) {
		return fmt.Errorf("%w: duplicate key-holder", ErrInvalidParams)
	}
	return nil
}

func hasDuplicates(keys []ed25519.PublicKey) bool {
	seen := make(map[ed25519.PublicKey]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			return true
		}
		seen[k] = struct{}{}
	}
	return false
}

// Election is the on-ledger state of an election.
type Election struct {
	ID                   ElectionID                 `json:"id" cbor:"1,keyasint"`
	Title                string                     `json:"title" cbor:"2,keyasint"`
	OptionsCount         uint64                     `json:"optionsCount" cbor:"3,keyasint"`
	StartTime            time.Time                  `json:"startTime" cbor:"4,keyasint"`
	EndTime              time.Time                  `json:"endTime" cbor:"5,keyasint"`
	PublicKey            secp256k1.Point            `json:"publicKey" cbor:"6,keyasint"`
	EligibilityRoot      types.HexBytes             `json:"eligibilityRoot" cbor:"7,keyasint"`
	Distributors         []ed25519.PublicKey        `json:"distributors" cbor:"8,keyasint"`
	DistributorThreshold int                        `json:"distributorThreshold" cbor:"9,keyasint"`
	KeyHolders           []ed25519.PublicKey        `json:"keyHolders" cbor:"10,keyasint"`
	KeyHolderThreshold   int                        `json:"keyHolderThreshold" cbor:"11,keyasint"`
	KeyHolderCommitments map[uint32]secp256k1.Point `json:"keyHolderCommitments,omitempty" cbor:"12,keyasint,omitempty"`
	Tallied              bool                       `json:"tallied" cbor:"13,keyasint"`
}

// NewElection creates the initial state of a deployed election.
func NewElection(id ElectionID, p *DeployParams) *Election {
	return &Election{
		ID:                   id,
		Title:                p.Title,
		OptionsCount:         p.OptionsCount,
		StartTime:            p.StartTime,
		EndTime:              p.EndTime,
		PublicKey:            p.PublicKey,
		EligibilityRoot:      slices.Clone(p.EligibilityRoot),
		Distributors:         slices.Clone(p.Distributors),
		DistributorThreshold: p.DistributorThreshold,
		KeyHolders:           slices.Clone(p.KeyHolders),
		KeyHolderThreshold:   p.KeyHolderThreshold,
		KeyHolderCommitments: make(map[uint32]secp256k1.Point, len(p.KeyHolders)),
	}
}

// Clone returns a deep copy of e.
func (e *Election) Clone() *Election {
	c := *e
	c.EligibilityRoot = slices.Clone(e.EligibilityRoot)
	c.Distributors = slices.Clone(e.Distributors)
	c.KeyHolders = slices.Clone(e.KeyHolders)
	c.KeyHolderCommitments = maps.Clone(e.KeyHolderCommitments)
	if c.KeyHolderCommitments == nil {
		c.KeyHolderCommitments = make(map[uint32]secp256k1.Point)
	}
	return &c
}

// IsOpen reports whether ballots are accepted at now.
func (e *Election) IsOpen(now time.Time) bool {
	return !now.Before(e.StartTime) && now.Before(e.EndTime)
}

// IsClosed reports whether the voting window is over at now.
func (e *Election) IsClosed(now time.Time) bool {
	return !now.Before(e.EndTime)
}

// KeyHolderIndex returns the 1-based roster index of pk.
func (e *Election) KeyHolderIndex(pk ed25519.PublicKey) (uint32, bool) {
	i := slices.Index(e.KeyHolders, pk)
	if i < 0 {
		return 0, false
	}
	return uint32(i + 1), true
}

// KeyHolderKey returns the roster key of key-holder index.
func (e *Election) KeyHolderKey(index uint32) (ed25519.PublicKey, bool) {
	if index == 0 || int(index) > len(e.KeyHolders) {
		return ed25519.PublicKey{}, false
	}
	return e.KeyHolders[index-1], true
}

// SignCommitment signs the publication of commitment by key-holder index
// with its roster key.
func SignCommitment(eid ElectionID, index uint32, commitment secp256k1.Point, key *ed25519.PrivateKey) ed25519.Signature {
	msg := hash.CommitmentMessage(eid, index, commitment)
	return key.Sign(msg[:])
}

// VerifyCommitment checks that sig over commitment was made with the roster
// key of key-holder index.
func (e *Election) VerifyCommitment(index uint32, commitment secp256k1.Point, sig ed25519.Signature) error {
	key, ok := e.KeyHolderKey(index)
	if !ok {
		return fmt.Errorf("%w: index %d", ErrUnknownKeyHolder, index)
	}
	msg := hash.CommitmentMessage(e.ID, index, commitment)
	if err := ed25519.Verify(key, msg[:], sig); err != nil {
		return fmt.Errorf("commitment of key-holder %d: %w", index, err)
	}
	return nil
}

// CheckCommitments verifies that, once every key-holder published its
// commitment A_{i,0}, their sum equals the election public key.
func (e *Election) CheckCommitments() error {
	if len(e.KeyHolderCommitments) != len(e.KeyHolders) {
		return nil
	}
	sum := secp256k1.Identity()
	for _, c := range e.KeyHolderCommitments {
		sum = sum.Add(c)
	}
	if !sum.Equal(e.PublicKey) {
		return ErrCommitmentMismatch
	}
	return nil
}

// EncryptedBallot is a ballot as stored on the ledger.
type EncryptedBallot struct {
	Index  uint64          `json:"index" cbor:"1,keyasint"`
	NfCast hash.Nullifier  `json:"nfCast" cbor:"2,keyasint"`
	C1     secp256k1.Point `json:"c1" cbor:"3,keyasint"`
	C2     secp256k1.Point `json:"c2" cbor:"4,keyasint"`
}

// AuditEntry records a ballot excluded from the tally.
type AuditEntry struct {
	Ballot uint64 `json:"ballot" cbor:"1,keyasint"`
	Reason string `json:"reason" cbor:"2,keyasint"`
}

// AuditRecorder is implemented by ledgers that keep a log of excluded
// ballots next to the tally. The log is written by the ledger itself when it
// accepts the tally.
type AuditRecorder interface {
	Excluded(ctx context.Context, eid ElectionID) ([]AuditEntry, error)
}
