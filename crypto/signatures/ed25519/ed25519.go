// Package ed25519 provides the signature identities of the protocol:
// distributors, casting identities and key-holders. Keys here are never used
// for encryption and never mix with secp256k1 values.
package ed25519

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/ed25519"
)

const (
	PublicKeySize = ed25519.PublicKeySize
	SeedSize      = ed25519.SeedSize
	SignatureSize = ed25519.SignatureSize
)

// ErrSignatureVerification is returned whenever a signature does not verify
// against the expected key and message.
var ErrSignatureVerification = errors.New("signature verification failed")

// PublicKey is a 32-byte Ed25519 public key.
type PublicKey [PublicKeySize]byte

// Signature is a 64-byte Ed25519 signature.
type Signature [SignatureSize]byte

// PrivateKey is an Ed25519 signing key. It is persisted as its 32-byte seed.
type PrivateKey struct {
	key ed25519.PrivateKey
}

// GenerateKey creates a fresh keypair from crypto/rand.
func GenerateKey() (*PrivateKey, error) {
	return GenerateKeyFrom(rand.Reader)
}

// GenerateKeyFrom creates a fresh keypair reading randomness from r.
func GenerateKeyFrom(r io.Reader) (*PrivateKey, error) {
	_, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}
	return &PrivateKey{key: priv}, nil
}

// PrivateKeyFromSeed expands a 32-byte seed into a signing key.
func PrivateKeyFromSeed(seed []byte) (*PrivateKey, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("invalid ed25519 seed length %d, expected %d", len(seed), SeedSize)
	}
	return &PrivateKey{key: ed25519.NewKeyFromSeed(seed)}, nil
}

// PrivateKeyFromHex decodes a 64 character hex seed.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	if len(s) != 2*SeedSize {
		return nil, fmt.Errorf("invalid ed25519 seed hex length %d, expected %d", len(s), 2*SeedSize)
	}
	seed, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 seed hex: %w", err)
	}
	return PrivateKeyFromSeed(seed)
}

// Seed returns the 32-byte seed the key was derived from.
func (k *PrivateKey) Seed() []byte {
	return k.key.Seed()
}

// Hex returns the seed as 64 hex characters.
func (k *PrivateKey) Hex() string {
	return hex.EncodeToString(k.Seed())
}

// Public returns the matching public key.
func (k *PrivateKey) Public() PublicKey {
	var pub PublicKey
	copy(pub[:], k.key[SeedSize:])
	return pub
}

// Sign signs msg (pure Ed25519, no prehash).
func (k *PrivateKey) Sign(msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(k.key, msg))
	return sig
}

// Verify checks sig over msg. It returns ErrSignatureVerification on mismatch.
func Verify(pub PublicKey, msg []byte, sig Signature) error {
	if !ed25519.Verify(ed25519.PublicKey(pub[:]), msg, sig[:]) {
		return ErrSignatureVerification
	}
	return nil
}

// PublicKeyFromHex decodes a 64 character hex public key.
func PublicKeyFromHex(s string) (PublicKey, error) {
	var pub PublicKey
	if len(s) != 2*PublicKeySize {
		return pub, fmt.Errorf("invalid ed25519 public key hex length %d, expected %d", len(s), 2*PublicKeySize)
	}
	if _, err := hex.Decode(pub[:], []byte(s)); err != nil {
		return pub, fmt.Errorf("invalid ed25519 public key hex: %w", err)
	}
	return pub, nil
}

func (p PublicKey) Hex() string {
	return hex.EncodeToString(p[:])
}

func (p PublicKey) String() string {
	return p.Hex()
}

func (p PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.Hex()), nil
}

func (p *PublicKey) UnmarshalText(text []byte) error {
	pub, err := PublicKeyFromHex(string(text))
	if err != nil {
		return err
	}
	*p = pub
	return nil
}

func (s Signature) Hex() string {
	return hex.EncodeToString(s[:])
}

func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.Hex()), nil
}

func (s *Signature) UnmarshalText(text []byte) error {
	if len(text) != 2*SignatureSize {
		return fmt.Errorf("invalid ed25519 signature hex length %d, expected %d", len(text), 2*SignatureSize)
	}
	if _, err := hex.Decode(s[:], text); err != nil {
		return fmt.Errorf("invalid ed25519 signature hex: %w", err)
	}
	return nil
}
