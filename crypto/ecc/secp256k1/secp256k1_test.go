package secp256k1

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
)

// generator of secp256k1 in compressed form (SEC 2, section 2.4.1)
const generatorHex = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"

func TestScalarArithmetic(t *testing.T) {
	c := qt.New(t)

	c.Run("negative big ints are reduced to non-negative representatives", func(c *qt.C) {
		s := ScalarFromBigInt(big.NewInt(-1))
		want := new(big.Int).Sub(Q(), big.NewInt(1))
		c.Assert(s.BigInt().Cmp(want), qt.Equals, 0)
		c.Assert(s.Add(ScalarFromUint64(1)).IsZero(), qt.IsTrue)
	})

	c.Run("inverse", func(c *qt.C) {
		for _, v := range []uint64{1, 2, 3, 7, 1 << 40} {
			a := ScalarFromUint64(v)
			inv, err := a.Inverse()
			c.Assert(err, qt.IsNil)
			c.Assert(a.Mul(inv).Equal(ScalarFromUint64(1)), qt.IsTrue, qt.Commentf("v=%d", v))
		}
		_, err := NewScalar().Inverse()
		c.Assert(err, qt.IsNotNil)
	})

	c.Run("exp", func(c *qt.C) {
		c.Assert(ScalarFromUint64(3).Exp(4).Equal(ScalarFromUint64(81)), qt.IsTrue)
		c.Assert(ScalarFromUint64(5).Exp(0).Equal(ScalarFromUint64(1)), qt.IsTrue)
	})

	c.Run("sub wraps around", func(c *qt.C) {
		d := ScalarFromUint64(1).Sub(ScalarFromUint64(3))
		c.Assert(d.Add(ScalarFromUint64(2)).IsZero(), qt.IsTrue)
	})

	c.Run("random scalars are non-zero and distinct", func(c *qt.C) {
		a, err := RandomScalar()
		c.Assert(err, qt.IsNil)
		b, err := RandomScalar()
		c.Assert(err, qt.IsNil)
		c.Assert(a.IsZero(), qt.IsFalse)
		c.Assert(a.Equal(b), qt.IsFalse)
	})
}

func TestScalarEncoding(t *testing.T) {
	c := qt.New(t)

	s := ScalarFromUint64(0xdeadbeef)
	c.Assert(s.Hex(), qt.HasLen, 64)
	back, err := ScalarFromHex(s.Hex())
	c.Assert(err, qt.IsNil)
	c.Assert(back.Equal(s), qt.IsTrue)

	_, err = ScalarFromHex(s.Hex()[2:])
	c.Assert(err, qt.ErrorMatches, "invalid scalar hex length.*")

	// Q itself does not fit
	_, err = ScalarFromBytes(Q().FillBytes(make([]byte, 32)))
	c.Assert(err, qt.IsNotNil)

	data, err := json.Marshal(struct{ S Scalar }{s})
	c.Assert(err, qt.IsNil)
	var decoded struct{ S Scalar }
	c.Assert(json.Unmarshal(data, &decoded), qt.IsNil)
	c.Assert(decoded.S.Equal(s), qt.IsTrue)
}

func TestPointOperations(t *testing.T) {
	c := qt.New(t)

	g := Generator()
	c.Assert(g.Hex(), qt.Equals, generatorHex)

	two := g.Add(g)
	c.Assert(two.Equal(ScalarBaseMult(ScalarFromUint64(2))), qt.IsTrue)
	c.Assert(two.Sub(g).Equal(g), qt.IsTrue)
	c.Assert(g.Sub(g).IsIdentity(), qt.IsTrue)
	c.Assert(g.Add(g.Neg()).IsIdentity(), qt.IsTrue)
	c.Assert(Identity().Add(g).Equal(g), qt.IsTrue)
	c.Assert(g.ScalarMult(NewScalar()).IsIdentity(), qt.IsTrue)

	a, err := RandomScalar()
	c.Assert(err, qt.IsNil)
	b, err := RandomScalar()
	c.Assert(err, qt.IsNil)
	// (a+b)·G == a·G + b·G and a·(b·G) == (ab)·G
	c.Assert(ScalarBaseMult(a.Add(b)).Equal(ScalarBaseMult(a).Add(ScalarBaseMult(b))), qt.IsTrue)
	c.Assert(ScalarBaseMult(b).ScalarMult(a).Equal(ScalarBaseMult(a.Mul(b))), qt.IsTrue)
	// Q-1 times G is -G
	c.Assert(ScalarBaseMult(ScalarFromBigInt(big.NewInt(-1))).Equal(g.Neg()), qt.IsTrue)
}

func TestPointEncoding(t *testing.T) {
	c := qt.New(t)

	k, err := RandomScalar()
	c.Assert(err, qt.IsNil)
	p := ScalarBaseMult(k)
	c.Assert(p.Bytes(), qt.HasLen, PointSize)

	back, err := PointFromBytes(p.Bytes())
	c.Assert(err, qt.IsNil)
	c.Assert(back.Equal(p), qt.IsTrue)

	fromHex, err := PointFromHex(p.Hex())
	c.Assert(err, qt.IsNil)
	c.Assert(fromHex.Equal(p), qt.IsTrue)

	c.Run("wrong length", func(c *qt.C) {
		_, err := PointFromBytes(p.Bytes()[:32])
		c.Assert(err, qt.ErrorMatches, "invalid point length.*")
	})
	c.Run("identity is not decodable", func(c *qt.C) {
		_, err := PointFromBytes(Identity().Bytes())
		c.Assert(err, qt.IsNotNil)
	})
	c.Run("coordinate out of field", func(c *qt.C) {
		bad := "02" + strings.Repeat("ff", 32)
		_, err := PointFromHex(bad)
		c.Assert(err, qt.IsNotNil)
	})
	c.Run("bad prefix", func(c *qt.C) {
		bad := "05" + p.Hex()[2:]
		_, err := PointFromHex(bad)
		c.Assert(err, qt.IsNotNil)
	})
}

func TestLagrangeCoefficients(t *testing.T) {
	c := qt.New(t)

	// f(x) = 11 + 5x + 3x^2 interpolated from any 3 points gives f(0)
	f := func(x uint64) Scalar {
		xs := ScalarFromUint64(x)
		return ScalarFromUint64(11).Add(ScalarFromUint64(5).Mul(xs)).Add(ScalarFromUint64(3).Mul(xs.Exp(2)))
	}
	for _, set := range [][]uint32{{1, 2, 3}, {2, 4, 5}, {1, 3, 7}} {
		coeffs, err := LagrangeCoefficients(set)
		c.Assert(err, qt.IsNil)
		acc := NewScalar()
		for _, j := range set {
			acc = acc.Add(coeffs[j].Mul(f(uint64(j))))
		}
		c.Assert(acc.Equal(ScalarFromUint64(11)), qt.IsTrue, qt.Commentf("set %v", set))
	}

	c.Run("2 of 3 coefficients", func(c *qt.C) {
		// λ_1 over {1,3} is 3/(3-1) = 3/2, λ_3 is 1/(1-3) = -1/2
		l1, err := LagrangeCoefficient(1, []uint32{1, 3})
		c.Assert(err, qt.IsNil)
		c.Assert(l1.Mul(ScalarFromUint64(2)).Equal(ScalarFromUint64(3)), qt.IsTrue)
		l3, err := LagrangeCoefficient(3, []uint32{1, 3})
		c.Assert(err, qt.IsNil)
		c.Assert(l3.Mul(ScalarFromUint64(2)).Neg().Equal(ScalarFromUint64(1)), qt.IsTrue)
	})

	c.Run("invalid sets", func(c *qt.C) {
		_, err := LagrangeCoefficient(1, []uint32{1, 1, 2})
		c.Assert(err, qt.ErrorMatches, "duplicate index.*")
		_, err = LagrangeCoefficient(1, []uint32{0, 1})
		c.Assert(err, qt.IsNotNil)
		_, err = LagrangeCoefficient(4, []uint32{1, 2})
		c.Assert(err, qt.ErrorMatches, ".*not part of the interpolation set")
	})
}
