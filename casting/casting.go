// Package casting implements the voter side of ballot submission: a one-time
// casting identity encrypts its option under the election key and signs the
// ciphertext together with its cast nullifier.
package casting

import (
	"errors"
	"fmt"

	"github.com/stanbar/stellot-sub000/config"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/elgamal"
	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
)

var (
	// ErrInvalidOption is returned when the chosen option is outside
	// [0, optionsCount).
	ErrInvalidOption = errors.New("invalid ballot option")
	// ErrMalformedBallot is returned for requests missing a ciphertext.
	ErrMalformedBallot = errors.New("malformed ballot")
)

// CastingIdentity is an ephemeral Ed25519 keypair issued for exactly one
// ballot. It must not be linkable to the voter's real identity.
type CastingIdentity struct {
	key *ed25519.PrivateKey
}

// NewCastingIdentity generates a fresh identity.
func NewCastingIdentity() (*CastingIdentity, error) {
	key, err := ed25519.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &CastingIdentity{key: key}, nil
}

// CastingIdentityFromHex restores an identity from its hex seed.
func CastingIdentityFromHex(s string) (*CastingIdentity, error) {
	key, err := ed25519.PrivateKeyFromHex(s)
	if err != nil {
		return nil, err
	}
	return &CastingIdentity{key: key}, nil
}

// Hex returns the identity's secret seed.
func (ci *CastingIdentity) Hex() string {
	return ci.key.Hex()
}

// PublicKey is pk_cast.
func (ci *CastingIdentity) PublicKey() ed25519.PublicKey {
	return ci.key.Public()
}

// Nullifier is nf_cast = H("stellot:cast", sk_cast, eid).
func (ci *CastingIdentity) Nullifier(eid uint64) hash.Nullifier {
	return hash.CastNullifier(ci.key.Seed(), eid)
}

// CastRequest is what a casting identity submits to the ledger.
type CastRequest struct {
	NfCast    hash.Nullifier    `json:"nfCast" cbor:"1,keyasint"`
	C1        secp256k1.Point   `json:"c1" cbor:"2,keyasint"`
	C2        secp256k1.Point   `json:"c2" cbor:"3,keyasint"`
	PKCast    ed25519.PublicKey `json:"pkCast" cbor:"4,keyasint"`
	Signature ed25519.Signature `json:"signature" cbor:"5,keyasint"`
}

// Ciphertext returns the encrypted ballot.
func (r *CastRequest) Ciphertext() elgamal.Ciphertext {
	return elgamal.Ciphertext{C1: r.C1, C2: r.C2}
}

// Cast encrypts option under pk and signs the result.
func (ci *CastingIdentity) Cast(eid, option uint64, pk secp256k1.Point, optionsCount uint64) (*CastRequest, error) {
	if optionsCount == 0 || optionsCount > config.MaxOptionsCount {
		return nil, fmt.Errorf("options count %d out of range [1, %d]", optionsCount, config.MaxOptionsCount)
	}
	if option >= optionsCount {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidOption, option, optionsCount)
	}
	ct, _, err := elgamal.Encrypt(option, pk)
	if err != nil {
		return nil, fmt.Errorf("encrypt ballot: %w", err)
	}
	return ci.Sign(eid, ct), nil
}

// Sign builds a request for an already encrypted ballot.
func (ci *CastingIdentity) Sign(eid uint64, ct elgamal.Ciphertext) *CastRequest {
	nf := ci.Nullifier(eid)
	msg := hash.CastMessage(eid, nf, ct.C1, ct.C2)
	return &CastRequest{
		NfCast:    nf,
		C1:        ct.C1,
		C2:        ct.C2,
		PKCast:    ci.PublicKey(),
		Signature: ci.key.Sign(msg[:]),
	}
}

// VerifyCastRequest checks the casting identity's signature over
// CastMessage(eid, nf_cast, C1, C2). It does not check that pk_cast was
// issued nor that the nullifier is unused; the ledger does.
func VerifyCastRequest(eid uint64, req *CastRequest) error {
	if req == nil {
		return fmt.Errorf("%w: empty cast request", ErrMalformedBallot)
	}
	if req.C1.IsIdentity() || req.C2.IsIdentity() {
		return fmt.Errorf("%w: ciphertext contains the identity point", ErrMalformedBallot)
	}
	msg := hash.CastMessage(eid, req.NfCast, req.C1, req.C2)
	if err := ed25519.Verify(req.PKCast, msg[:], req.Signature); err != nil {
		return fmt.Errorf("cast request: %w", err)
	}
	return nil
}
