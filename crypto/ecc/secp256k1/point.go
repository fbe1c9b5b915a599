package secp256k1

import (
	"encoding/hex"
	"fmt"

	dcr "github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// PointSize is the length of a compressed SEC1 point.
const PointSize = 33

// Point is an element of the secp256k1 group. The zero value is the identity
// (point at infinity).
type Point struct {
	p dcr.JacobianPoint
}

var generator = func() Point {
	var one dcr.ModNScalar
	one.SetInt(1)
	var g Point
	dcr.ScalarBaseMultNonConst(&one, &g.p)
	g.p.ToAffine()
	return g
}()

// Generator returns the base point G.
func Generator() Point {
	return generator
}

// Identity returns the point at infinity.
func Identity() Point {
	return Point{}
}

// ScalarBaseMult returns k·G.
func ScalarBaseMult(k Scalar) Point {
	if k.IsZero() {
		return Point{}
	}
	var r Point
	dcr.ScalarBaseMultNonConst(&k.s, &r.p)
	r.p.ToAffine()
	return r
}

// affine returns a normalized affine copy of p.
func (p Point) affine() dcr.JacobianPoint {
	a := p.p
	if zeroZ(&a) {
		return dcr.JacobianPoint{}
	}
	a.ToAffine()
	return a
}

func zeroZ(p *dcr.JacobianPoint) bool {
	z := p.Z
	return z.Normalize().IsZero()
}

// IsIdentity reports whether p is the point at infinity.
func (p Point) IsIdentity() bool {
	if zeroZ(&p.p) {
		return true
	}
	a := p.affine()
	return a.X.IsZero() && a.Y.IsZero()
}

func (p Point) Add(q Point) Point {
	switch {
	case p.IsIdentity():
		return q
	case q.IsIdentity():
		return p
	}
	var r Point
	dcr.AddNonConst(&p.p, &q.p, &r.p)
	if !r.IsIdentity() {
		r.p.ToAffine()
	}
	return r
}

func (p Point) Neg() Point {
	if p.IsIdentity() {
		return Point{}
	}
	r := Point{p: p.affine()}
	r.p.Y.Negate(1).Normalize()
	return r
}

func (p Point) Sub(q Point) Point {
	return p.Add(q.Neg())
}

// ScalarMult returns k·p.
func (p Point) ScalarMult(k Scalar) Point {
	if p.IsIdentity() || k.IsZero() {
		return Point{}
	}
	var r Point
	dcr.ScalarMultNonConst(&k.s, &p.p, &r.p)
	if !r.IsIdentity() {
		r.p.ToAffine()
	}
	return r
}

func (p Point) Equal(q Point) bool {
	pi, qi := p.IsIdentity(), q.IsIdentity()
	if pi || qi {
		return pi == qi
	}
	a, b := p.affine(), q.affine()
	return a.X.Equals(&b.X) && a.Y.Equals(&b.Y)
}

// Bytes returns the 33-byte compressed encoding. The identity has no SEC1
// compressed form and is encoded as 33 zero bytes, which PointFromBytes
// rejects.
func (p Point) Bytes() []byte {
	if p.IsIdentity() {
		return make([]byte, PointSize)
	}
	a := p.affine()
	return dcr.NewPublicKey(&a.X, &a.Y).SerializeCompressed()
}

// PointFromBytes decodes a 33-byte compressed point, rejecting points that
// are not on the curve.
func PointFromBytes(buf []byte) (Point, error) {
	if len(buf) != PointSize {
		return Point{}, fmt.Errorf("invalid point length %d, expected %d", len(buf), PointSize)
	}
	pk, err := dcr.ParsePubKey(buf)
	if err != nil {
		return Point{}, fmt.Errorf("invalid point: %w", err)
	}
	var r Point
	pk.AsJacobian(&r.p)
	return r, nil
}

// Hex returns the 66 character hex compressed encoding.
func (p Point) Hex() string {
	return hex.EncodeToString(p.Bytes())
}

func (p Point) String() string {
	return p.Hex()
}

// PointFromHex decodes a 66 character hex compressed point.
func PointFromHex(s string) (Point, error) {
	if len(s) != 2*PointSize {
		return Point{}, fmt.Errorf("invalid point hex length %d, expected %d", len(s), 2*PointSize)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Point{}, fmt.Errorf("invalid point hex: %w", err)
	}
	return PointFromBytes(b)
}

// MarshalText encodes the point as compressed hex.
func (p Point) MarshalText() ([]byte, error) {
	return []byte(p.Hex()), nil
}

// UnmarshalText decodes a compressed hex point.
func (p *Point) UnmarshalText(text []byte) error {
	r, err := PointFromHex(string(text))
	if err != nil {
		return err
	}
	*p = r
	return nil
}

// MarshalBinary encodes the point in compressed form.
func (p Point) MarshalBinary() ([]byte, error) {
	return p.Bytes(), nil
}

// UnmarshalBinary decodes a compressed point.
func (p *Point) UnmarshalBinary(data []byte) error {
	r, err := PointFromBytes(data)
	if err != nil {
		return err
	}
	*p = r
	return nil
}
