// Package secp256k1 wraps the decred secp256k1 implementation with value
// types for scalars modulo the group order Q and for group elements. It is the
// only curve used for ballot encryption and threshold decryption; signature
// identities live in crypto/signatures/ed25519 and never mix with these types.
package secp256k1

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	dcr "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ScalarSize is the length of the big-endian scalar encoding.
const ScalarSize = 32

var (
	order        = new(big.Int).Set(dcr.S256().Params().N)
	orderMinus2  = new(big.Int).Sub(order, big.NewInt(2))
	maxRandTries = 128
)

// Q returns a copy of the group order.
func Q() *big.Int {
	return new(big.Int).Set(order)
}

// Scalar is an integer modulo Q. The zero value is the scalar 0.
type Scalar struct {
	s dcr.ModNScalar
}

// NewScalar returns the zero scalar.
func NewScalar() Scalar {
	return Scalar{}
}

// ScalarFromUint64 returns v mod Q.
func ScalarFromUint64(v uint64) Scalar {
	var b [ScalarSize]byte
	for i := 0; i < 8; i++ {
		b[ScalarSize-1-i] = byte(v >> (8 * i))
	}
	var r Scalar
	r.s.SetBytes(&b)
	return r
}

// ScalarFromBigInt reduces x into [0, Q-1]. Negative inputs are mapped to
// their non-negative representative.
func ScalarFromBigInt(x *big.Int) Scalar {
	red := new(big.Int).Mod(x, order)
	var b [ScalarSize]byte
	red.FillBytes(b[:])
	var r Scalar
	r.s.SetBytes(&b)
	return r
}

// ScalarFromBytes decodes a 32-byte big-endian scalar. Values >= Q are
// rejected instead of being reduced.
func ScalarFromBytes(buf []byte) (Scalar, error) {
	if len(buf) != ScalarSize {
		return Scalar{}, fmt.Errorf("invalid scalar length %d, expected %d", len(buf), ScalarSize)
	}
	var b [ScalarSize]byte
	copy(b[:], buf)
	var r Scalar
	if overflow := r.s.SetBytes(&b); overflow != 0 {
		return Scalar{}, fmt.Errorf("scalar is not lower than the group order")
	}
	return r, nil
}

// ScalarFromHex decodes a 64 character hex scalar.
func ScalarFromHex(s string) (Scalar, error) {
	if len(s) != 2*ScalarSize {
		return Scalar{}, fmt.Errorf("invalid scalar hex length %d, expected %d", len(s), 2*ScalarSize)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Scalar{}, fmt.Errorf("invalid scalar hex: %w", err)
	}
	return ScalarFromBytes(b)
}

// RandomScalar samples a uniform scalar in [1, Q-1] from crypto/rand.
func RandomScalar() (Scalar, error) {
	return RandomScalarFrom(rand.Reader)
}

// RandomScalarFrom samples a uniform scalar in [1, Q-1] reading from r.
func RandomScalarFrom(r io.Reader) (Scalar, error) {
	var b [ScalarSize]byte
	for range maxRandTries {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return Scalar{}, fmt.Errorf("failed to read randomness: %w", err)
		}
		var s Scalar
		if overflow := s.s.SetBytes(&b); overflow != 0 || s.s.IsZero() {
			continue
		}
		return s, nil
	}
	return Scalar{}, fmt.Errorf("could not sample a scalar after %d attempts", maxRandTries)
}

// Bytes returns the 32-byte big-endian encoding.
func (a Scalar) Bytes() []byte {
	b := a.s.Bytes()
	return b[:]
}

// Hex returns the 64 character hex encoding.
func (a Scalar) Hex() string {
	return hex.EncodeToString(a.Bytes())
}

func (a Scalar) String() string {
	return a.Hex()
}

// BigInt returns the scalar as a non-negative big integer.
func (a Scalar) BigInt() *big.Int {
	return new(big.Int).SetBytes(a.Bytes())
}

func (a Scalar) Add(b Scalar) Scalar {
	r := a
	r.s.Add(&b.s)
	return r
}

func (a Scalar) Sub(b Scalar) Scalar {
	return a.Add(b.Neg())
}

func (a Scalar) Mul(b Scalar) Scalar {
	r := a
	r.s.Mul(&b.s)
	return r
}

func (a Scalar) Neg() Scalar {
	r := a
	r.s.Negate()
	return r
}

// Exp returns a^e mod Q.
func (a Scalar) Exp(e uint64) Scalar {
	result := ScalarFromUint64(1)
	base := a
	for e > 0 {
		if e&1 == 1 {
			result = result.Mul(base)
		}
		base = base.Mul(base)
		e >>= 1
	}
	return result
}

// Inverse returns a^(Q-2) mod Q, the multiplicative inverse of a by Fermat's
// little theorem. The inverse of zero is an error.
func (a Scalar) Inverse() (Scalar, error) {
	if a.IsZero() {
		return Scalar{}, fmt.Errorf("zero has no inverse modulo the group order")
	}
	inv := new(big.Int).Exp(a.BigInt(), orderMinus2, order)
	return ScalarFromBigInt(inv), nil
}

func (a Scalar) Equal(b Scalar) bool {
	return a.s.Equals(&b.s)
}

func (a Scalar) IsZero() bool {
	return a.s.IsZero()
}

// MarshalText encodes the scalar as hex.
func (a Scalar) MarshalText() ([]byte, error) {
	return []byte(a.Hex()), nil
}

// UnmarshalText decodes a 64 character hex scalar.
func (a *Scalar) UnmarshalText(text []byte) error {
	s, err := ScalarFromHex(string(text))
	if err != nil {
		return err
	}
	*a = s
	return nil
}

// MarshalBinary encodes the scalar as 32 big-endian bytes.
func (a Scalar) MarshalBinary() ([]byte, error) {
	return a.Bytes(), nil
}

// UnmarshalBinary decodes 32 big-endian bytes.
func (a *Scalar) UnmarshalBinary(data []byte) error {
	s, err := ScalarFromBytes(data)
	if err != nil {
		return err
	}
	*a = s
	return nil
}
