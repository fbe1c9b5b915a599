// Package issuance implements the anonymization layer. A voter proves
// eligibility to a set of distributors, each of which signs an approval that
// binds a fresh casting identity to the voter's issuance nullifier. A quorum
// of approvals lets the ledger create the casting account without learning
// which voter it belongs to.
package issuance

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/stanbar/stellot-sub000/casting"
	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/types"
)

var (
	// ErrInsufficientApprovals is returned when fewer than the required
	// number of distinct roster distributors approved a request.
	ErrInsufficientApprovals = errors.New("insufficient distributor approvals")
	// ErrNotEligible is returned when the eligibility proof is rejected.
	ErrNotEligible = errors.New("voter is not eligible")
	// ErrAlreadyIssued is returned when the issuance nullifier or the
	// identity was already used for this election.
	ErrAlreadyIssued = errors.New("casting identity already issued")
)

// MinSecretSize is the minimum length of a voter secret.
const MinSecretSize = 16

// Voter holds the long-lived voter secret from which issuance nullifiers are
// derived. The same secret always yields the same nullifier for an election.
type Voter struct {
	secret []byte
}

// NewVoter wraps an existing secret.
func NewVoter(secret []byte) (*Voter, error) {
	if len(secret) < MinSecretSize {
		return nil, fmt.Errorf("voter secret must be at least %d bytes, got %d", MinSecretSize, len(secret))
	}
	return &Voter{secret: append([]byte(nil), secret...)}, nil
}

// GenerateVoter creates a voter with a random 32-byte secret.
func GenerateVoter() (*Voter, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("failed to generate voter secret: %w", err)
	}
	return &Voter{secret: secret}, nil
}

// Secret returns a copy of the voter secret.
func (v *Voter) Secret() types.HexBytes {
	return append(types.HexBytes(nil), v.secret...)
}

// IssueNullifier is nf_issue = H("stellot:issue", voterSecret, eid).
func (v *Voter) IssueNullifier(eid uint64) hash.Nullifier {
	return hash.IssueNullifier(v.secret, eid)
}

// NewCastingIdentity generates the one-time identity to be issued.
func (v *Voter) NewCastingIdentity() (*casting.CastingIdentity, error) {
	return casting.NewCastingIdentity()
}

// NewRequest builds the approval request a distributor signs.
func (v *Voter) NewRequest(eid uint64, session string, id *casting.CastingIdentity, proof EligibilityProof) *ApprovalRequest {
	return &ApprovalRequest{
		ElectionID: eid,
		SessionID:  session,
		PKCast:     id.PublicKey(),
		NfIssue:    v.IssueNullifier(eid),
		Proof:      proof,
	}
}

// ApprovalRequest asks a distributor to approve the binding of PKCast to
// NfIssue for an election.
type ApprovalRequest struct {
	ElectionID uint64            `json:"electionId"`
	SessionID  string            `json:"sessionId"`
	PKCast     ed25519.PublicKey `json:"pkCast"`
	NfIssue    hash.Nullifier    `json:"nfIssue"`
	Proof      EligibilityProof  `json:"proof"`
}

// Approval is a distributor's signature over IssueMessage(eid, pk_cast,
// nf_issue).
type Approval struct {
	Distributor ed25519.PublicKey `json:"distributor" cbor:"1,keyasint"`
	Signature   ed25519.Signature `json:"signature" cbor:"2,keyasint"`
}

// Verify checks the approval signature.
func (a *Approval) Verify(eid uint64, pkCast ed25519.PublicKey, nf hash.Nullifier) error {
	msg := hash.IssueMessage(eid, pkCast, nf)
	return ed25519.Verify(a.Distributor, msg[:], a.Signature)
}

// NullifierChecker reports whether an issuance nullifier was already
// consumed on the ledger.
type NullifierChecker interface {
	IsIssueNullifierUsed(ctx context.Context, eid uint64, nf hash.Nullifier) (bool, error)
}

// Distributor approves issuance requests of eligible voters.
type Distributor struct {
	Key        *ed25519.PrivateKey
	Oracle     EligibilityOracle
	Sessions   *SessionStore
	Nullifiers NullifierChecker
}

// PublicKey is the distributor's roster key.
func (d *Distributor) PublicKey() ed25519.PublicKey {
	return d.Key.Public()
}

// Begin opens an issuance session for identityID after checking its
// eligibility proof against root.
func (d *Distributor) Begin(ctx context.Context, eid uint64, root []byte, proof EligibilityProof) (string, error) {
	if err := d.Oracle.VerifyInclusion(ctx, root, proof); err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotEligible, err)
	}
	return d.Sessions.Open(eid, proof.IdentityID)
}

// Approve consumes the request's session and signs the approval. The
// session guarantees the identity obtains at most one approval from this
// distributor; the nullifier check prevents approving an identity whose
// nullifier is already spent on the ledger.
func (d *Distributor) Approve(ctx context.Context, root []byte, req *ApprovalRequest) (*Approval, error) {
	if req == nil {
		return nil, fmt.Errorf("empty approval request")
	}
	if err := d.Oracle.VerifyInclusion(ctx, root, req.Proof); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotEligible, err)
	}
	if d.Nullifiers != nil {
		used, err := d.Nullifiers.IsIssueNullifierUsed(ctx, req.ElectionID, req.NfIssue)
		if err != nil {
			return nil, fmt.Errorf("check issue nullifier: %w", err)
		}
		if used {
			return nil, fmt.Errorf("%w: nullifier %s", ErrAlreadyIssued, req.NfIssue)
		}
	}
	if err := d.Sessions.Consume(req.ElectionID, req.Proof.IdentityID, req.SessionID); err != nil {
		return nil, err
	}
	msg := hash.IssueMessage(req.ElectionID, req.PKCast, req.NfIssue)
	return &Approval{Distributor: d.PublicKey(), Signature: d.Key.Sign(msg[:])}, nil
}

// Collect validates a set of approvals against the distributor roster. It
// returns the approvals that count towards the quorum, one per distinct
// roster member, or ErrInsufficientApprovals if fewer than threshold are
// valid. Approvals from unknown keys or with bad signatures are ignored.
func Collect(eid uint64, pkCast ed25519.PublicKey, nf hash.Nullifier, approvals []Approval,
	roster []ed25519.PublicKey, threshold int,
) ([]Approval, error) {
	if threshold < 1 {
		return nil, fmt.Errorf("invalid distributor threshold %d", threshold)
	}
	members := make(map[ed25519.PublicKey]struct{}, len(roster))
	for _, pk := range roster {
		members[pk] = struct{}{}
	}
	seen := make(map[ed25519.PublicKey]struct{}, len(approvals))
	valid := make([]Approval, 0, len(approvals))
	for _, a := range approvals {
		if _, ok := members[a.Distributor]; !ok {
			continue
		}
		if _, dup := seen[a.Distributor]; dup {
			continue
		}
		if err := a.Verify(eid, pkCast, nf); err != nil {
			continue
		}
		seen[a.Distributor] = struct{}{}
		valid = append(valid, a)
	}
	if len(valid) < threshold {
		return nil, fmt.Errorf("%w: %d valid of %d required", ErrInsufficientApprovals, len(valid), threshold)
	}
	return valid, nil
}
