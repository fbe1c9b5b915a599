package dkg

import (
	"errors"
	"fmt"
	"slices"

	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
)

// ErrBelowThreshold is returned when fewer than t partial decryptions are
// combined. Such a combination never yields the plaintext.
var ErrBelowThreshold = errors.New("fewer partial decryptions than the threshold")

// CombinePartialDecryptions interpolates the partial decryptions D_j of the
// key-holders in indices at zero and removes them from C2:
//
//	V = C2 - Σ λ_j·D_j
//
// V is the plaintext point (v+1)·G when the shares are honest. indices must
// hold at least threshold distinct key-holders.
func CombinePartialDecryptions(c2 secp256k1.Point, partials map[uint32]secp256k1.Point, indices []uint32,
	threshold int,
) (secp256k1.Point, error) {
	set := slices.Clone(indices)
	slices.Sort(set)
	if len(slices.Compact(set)) != len(indices) {
		return secp256k1.Point{}, fmt.Errorf("duplicate key-holder in %v", indices)
	}
	if threshold < 1 || len(set) < threshold {
		return secp256k1.Point{}, fmt.Errorf("%w: %d of %d", ErrBelowThreshold, len(set), threshold)
	}
	lambdas, err := secp256k1.LagrangeCoefficients(set)
	if err != nil {
		return secp256k1.Point{}, fmt.Errorf("failed to compute Lagrange coefficients: %w", err)
	}
	return CombineWithCoefficients(c2, partials, lambdas, threshold)
}

// CombineWithCoefficients is CombinePartialDecryptions with the Lagrange
// coefficients of the index set already computed; the keys of lambdas are
// the set.
func CombineWithCoefficients(c2 secp256k1.Point, partials map[uint32]secp256k1.Point,
	lambdas map[uint32]secp256k1.Scalar, threshold int,
) (secp256k1.Point, error) {
	if threshold < 1 || len(lambdas) < threshold {
		return secp256k1.Point{}, fmt.Errorf("%w: %d of %d", ErrBelowThreshold, len(lambdas), threshold)
	}
	d := secp256k1.Identity()
	for j, lambda := range lambdas {
		dj, ok := partials[j]
		if !ok {
			return secp256k1.Point{}, fmt.Errorf("missing partial decryption of key-holder %d", j)
		}
		d = d.Add(dj.ScalarMult(lambda))
	}
	return c2.Sub(d), nil
}
