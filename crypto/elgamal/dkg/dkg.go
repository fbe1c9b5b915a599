// Package dkg implements a Feldman VSS distributed key generation among m
// key-holders with threshold t. Each key-holder deals a random polynomial of
// degree t-1, publishes commitments A_k = a_k·G to its coefficients and sends
// f(i) to key-holder i, who verifies it against the commitments. The combined
// public key is Σ A_{j,0} and key-holder i's share is Σ_j f_j(i); no party
// ever learns the combined secret.
package dkg

import (
	"errors"
	"fmt"

	"github.com/stanbar/stellot-sub000/config"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
)

// ErrCeremonyVerification is the error class of every Feldman check failure.
// A ceremony that hits it must be aborted as a whole.
var ErrCeremonyVerification = errors.New("ceremony verification failure")

// ShareVerificationError identifies the dealer whose share did not match its
// commitments.
type ShareVerificationError struct {
	Dealer    uint32
	Recipient uint32
	Reason    string
}

func (e *ShareVerificationError) Error() string {
	return fmt.Sprintf("%s: share from %d to %d: %s", ErrCeremonyVerification, e.Dealer, e.Recipient, e.Reason)
}

func (e *ShareVerificationError) Unwrap() error {
	return ErrCeremonyVerification
}

// ValidateParams checks 1 ≤ t ≤ m ≤ config.MaxKeyHolders.
func ValidateParams(t, m int) error {
	if t < 1 || t > m || m > config.MaxKeyHolders {
		return fmt.Errorf("invalid ceremony parameters t=%d m=%d, need 1 <= t <= m <= %d", t, m, config.MaxKeyHolders)
	}
	return nil
}

// Participant is a key-holder taking part in the ceremony. Indices are
// 1-based.
type Participant struct {
	Index     uint32
	Threshold int
	Parties   int

	// Commitments is the published PolynomialCommitmentSet, A_k = a_k·G.
	Commitments []secp256k1.Point

	coeffs   []secp256k1.Scalar
	received map[uint32]secp256k1.Scalar
	dealers  map[uint32][]secp256k1.Point
}

// NewParticipant initializes key-holder index of a t-of-m ceremony.
func NewParticipant(index uint32, t, m int) (*Participant, error) {
	if err := ValidateParams(t, m); err != nil {
		return nil, err
	}
	if index == 0 || int(index) > m {
		return nil, fmt.Errorf("participant index %d out of range [1, %d]", index, m)
	}
	return &Participant{
		Index:     index,
		Threshold: t,
		Parties:   m,
		received:  make(map[uint32]secp256k1.Scalar, m),
		dealers:   make(map[uint32][]secp256k1.Point, m),
	}, nil
}

// GeneratePolynomial samples the t random coefficients of the private
// polynomial and computes their commitments.
func (p *Participant) GeneratePolynomial() error {
	p.coeffs = make([]secp256k1.Scalar, p.Threshold)
	p.Commitments = make([]secp256k1.Point, p.Threshold)
	for k := range p.coeffs {
		a, err := secp256k1.RandomScalar()
		if err != nil {
			return fmt.Errorf("participant %d: %w", p.Index, err)
		}
		p.coeffs[k] = a
		p.Commitments[k] = secp256k1.ScalarBaseMult(a)
	}
	return nil
}

// ShareFor evaluates the private polynomial at x = i.
func (p *Participant) ShareFor(i uint32) (secp256k1.Scalar, error) {
	if p.coeffs == nil {
		return secp256k1.Scalar{}, fmt.Errorf("participant %d has no polynomial", p.Index)
	}
	if i == 0 || int(i) > p.Parties {
		return secp256k1.Scalar{}, fmt.Errorf("recipient index %d out of range [1, %d]", i, p.Parties)
	}
	return evaluate(p.coeffs, i), nil
}

// evaluate computes Σ a_k·x^k with Horner's rule.
func evaluate(coeffs []secp256k1.Scalar, x uint32) secp256k1.Scalar {
	xs := secp256k1.ScalarFromUint64(uint64(x))
	result := secp256k1.NewScalar()
	for k := len(coeffs) - 1; k >= 0; k-- {
		result = result.Mul(xs).Add(coeffs[k])
	}
	return result
}

// ReceiveShare verifies the share dealt by from and stores it. A share that
// fails the Feldman check yields a *ShareVerificationError.
func (p *Participant) ReceiveShare(from uint32, share secp256k1.Scalar, commitments []secp256k1.Point) error {
	if from == 0 || int(from) > p.Parties {
		return &ShareVerificationError{Dealer: from, Recipient: p.Index, Reason: "unknown dealer"}
	}
	if _, ok := p.received[from]; ok {
		return &ShareVerificationError{Dealer: from, Recipient: p.Index, Reason: "duplicate share"}
	}
	if len(commitments) != p.Threshold {
		return &ShareVerificationError{
			Dealer: from, Recipient: p.Index,
			Reason: fmt.Sprintf("got %d commitments, expected %d", len(commitments), p.Threshold),
		}
	}
	if err := VerifyShare(from, p.Index, share, commitments); err != nil {
		return err
	}
	p.received[from] = share
	p.dealers[from] = commitments
	return nil
}

// VerifyShare performs the Feldman check s·G == Σ_k A_k·i^k for the share
// dealt by dealer to recipient i.
func VerifyShare(dealer, recipient uint32, share secp256k1.Scalar, commitments []secp256k1.Point) error {
	if len(commitments) == 0 {
		return &ShareVerificationError{Dealer: dealer, Recipient: recipient, Reason: "empty commitment set"}
	}
	if !secp256k1.ScalarBaseMult(share).Equal(evaluateCommitments(commitments, recipient)) {
		return &ShareVerificationError{Dealer: dealer, Recipient: recipient, Reason: "share does not match commitments"}
	}
	return nil
}

// evaluateCommitments computes Σ_k A_k·x^k, the public image of f(x).
func evaluateCommitments(commitments []secp256k1.Point, x uint32) secp256k1.Point {
	xs := secp256k1.ScalarFromUint64(uint64(x))
	acc := secp256k1.Identity()
	for k := len(commitments) - 1; k >= 0; k-- {
		acc = acc.ScalarMult(xs).Add(commitments[k])
	}
	return acc
}

// PublicKey returns the election key Σ A_{j,0} as seen by this participant,
// from the commitment sets attached to the shares it accepted. Every dealer
// must have been heard from. Honest participants that disagree on it have
// been sent different commitment sets by some dealer.
func (p *Participant) PublicKey() (secp256k1.Point, error) {
	if len(p.dealers) != p.Parties {
		return secp256k1.Point{}, fmt.Errorf("participant %d accepted %d of %d dealers", p.Index, len(p.dealers), p.Parties)
	}
	return CombinedPublicKey(p.dealers)
}

// KeyHolderShare is the output of the ceremony for one key-holder.
type KeyHolderShare struct {
	Index uint32
	// Secret is sk_i = Σ_j f_j(i). It never leaves the key-holder.
	Secret secp256k1.Scalar
	// Commitment is the key-holder's own constant-term commitment A_{i,0},
	// published on the ledger. The election key is the sum of all of them.
	Commitment secp256k1.Point
	// PublicShare is PK_i = sk_i·G, used to audit partial decryptions.
	PublicShare secp256k1.Point
}

// Finalize aggregates the received shares. It requires a verified share
// from every one of the m dealers, its own included.
func (p *Participant) Finalize() (*KeyHolderShare, error) {
	if len(p.Commitments) == 0 {
		return nil, fmt.Errorf("participant %d has no polynomial", p.Index)
	}
	if len(p.received) != p.Parties {
		return nil, fmt.Errorf("participant %d received %d of %d shares", p.Index, len(p.received), p.Parties)
	}
	sk := secp256k1.NewScalar()
	for _, s := range p.received {
		sk = sk.Add(s)
	}
	return &KeyHolderShare{
		Index:       p.Index,
		Secret:      sk,
		Commitment:  p.Commitments[0],
		PublicShare: secp256k1.ScalarBaseMult(sk),
	}, nil
}

// CombinedPublicKey returns PK = Σ_j A_{j,0}.
func CombinedPublicKey(all map[uint32][]secp256k1.Point) (secp256k1.Point, error) {
	if len(all) == 0 {
		return secp256k1.Point{}, fmt.Errorf("no commitment sets")
	}
	pk := secp256k1.Identity()
	for idx, set := range all {
		if len(set) == 0 {
			return secp256k1.Point{}, fmt.Errorf("empty commitment set for key-holder %d", idx)
		}
		pk = pk.Add(set[0])
	}
	if pk.IsIdentity() {
		return secp256k1.Point{}, fmt.Errorf("combined public key is the identity")
	}
	return pk, nil
}

// PublicShareFor derives PK_i = Σ_j Σ_k A_{j,k}·i^k from public commitments
// only, so auditors can check partial decryption proofs.
func PublicShareFor(index uint32, all map[uint32][]secp256k1.Point) secp256k1.Point {
	acc := secp256k1.Identity()
	for _, set := range all {
		acc = acc.Add(evaluateCommitments(set, index))
	}
	return acc
}
