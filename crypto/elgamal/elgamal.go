// Package elgamal implements exponential ElGamal over secp256k1 as used for
// ballots: option v is encoded as the point (v+1)·G so that a vote for option
// zero never encrypts the identity.
package elgamal

import (
	"fmt"

	"github.com/stanbar/stellot-sub000/config"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
)

// Ciphertext is an ElGamal ciphertext (C1, C2) = (r·G, (v+1)·G + r·PK).
type Ciphertext struct {
	C1 secp256k1.Point `json:"c1" cbor:"1,keyasint"`
	C2 secp256k1.Point `json:"c2" cbor:"2,keyasint"`
}

// Encrypt encrypts option v under the public key pk with a fresh nonce
// r ∈ [1, Q-1]. It returns the ciphertext and the nonce used.
func Encrypt(v uint64, pk secp256k1.Point) (Ciphertext, secp256k1.Scalar, error) {
	r, err := secp256k1.RandomScalar()
	if err != nil {
		return Ciphertext{}, secp256k1.Scalar{}, fmt.Errorf("failed to sample encryption nonce: %w", err)
	}
	ct, err := EncryptWithK(v, pk, r)
	if err != nil {
		return Ciphertext{}, secp256k1.Scalar{}, err
	}
	return ct, r, nil
}

// EncryptWithK encrypts option v under pk using the nonce r. A zero nonce
// would publish the plaintext point and is rejected.
func EncryptWithK(v uint64, pk secp256k1.Point, r secp256k1.Scalar) (Ciphertext, error) {
	if r.IsZero() {
		return Ciphertext{}, fmt.Errorf("encryption nonce must not be zero")
	}
	if pk.IsIdentity() {
		return Ciphertext{}, fmt.Errorf("public key must not be the identity")
	}
	c1 := secp256k1.ScalarBaseMult(r)
	c2 := EncodeVote(v).Add(pk.ScalarMult(r))
	return Ciphertext{C1: c1, C2: c2}, nil
}

// EncodeVote returns the plaintext point (v+1)·G.
func EncodeVote(v uint64) secp256k1.Point {
	return secp256k1.ScalarBaseMult(secp256k1.ScalarFromUint64(v + 1))
}

// DecodeVote searches v in [0, optionsCount) such that point == (v+1)·G by
// walking G, 2G, ... It returns ErrInvalidBallotDecode if no option matches,
// which happens for malformed or maliciously crafted ballots.
func DecodeVote(point secp256k1.Point, optionsCount uint64) (uint64, error) {
	if optionsCount == 0 || optionsCount > config.MaxOptionsCount {
		return 0, fmt.Errorf("options count %d out of range [1, %d]", optionsCount, config.MaxOptionsCount)
	}
	g := secp256k1.Generator()
	acc := g
	for v := range optionsCount {
		if acc.Equal(point) {
			return v, nil
		}
		acc = acc.Add(g)
	}
	return 0, ErrInvalidBallotDecode
}

// GenerateKey creates a single-party keypair. Threshold elections obtain
// their public key from the DKG instead; this is used for audits and tests.
func GenerateKey() (secp256k1.Point, secp256k1.Scalar, error) {
	sk, err := secp256k1.RandomScalar()
	if err != nil {
		return secp256k1.Point{}, secp256k1.Scalar{}, fmt.Errorf("failed to generate private key scalar: %w", err)
	}
	return secp256k1.ScalarBaseMult(sk), sk, nil
}

// Decrypt recovers the option of ct with the full secret key sk.
func Decrypt(sk secp256k1.Scalar, ct Ciphertext, optionsCount uint64) (uint64, error) {
	if sk.IsZero() {
		return 0, fmt.Errorf("empty private key")
	}
	return DecodeVote(ct.C2.Sub(PartialDecrypt(sk, ct.C1)), optionsCount)
}

// PartialDecrypt computes a key-holder's decryption share D_j = sk_j·C1.
func PartialDecrypt(share secp256k1.Scalar, c1 secp256k1.Point) secp256k1.Point {
	return c1.ScalarMult(share)
}

// CheckK reports whether r was the nonce used to produce ct.
func CheckK(ct Ciphertext, r secp256k1.Scalar) bool {
	return secp256k1.ScalarBaseMult(r).Equal(ct.C1)
}
