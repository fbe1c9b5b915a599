package secp256k1

import "fmt"

// LagrangeCoefficient returns λ_j = Π_{k∈S, k≠j} k/(k-j) mod Q, the weight of
// the share held by index j when interpolating at zero over the index set S.
// Indices are 1-based; S must contain j, no zero and no duplicates.
func LagrangeCoefficient(j uint32, set []uint32) (Scalar, error) {
	if j == 0 {
		return Scalar{}, fmt.Errorf("index 0 is not a valid share index")
	}
	seen := make(map[uint32]struct{}, len(set))
	member := false
	for _, k := range set {
		if k == 0 {
			return Scalar{}, fmt.Errorf("index 0 is not a valid share index")
		}
		if _, ok := seen[k]; ok {
			return Scalar{}, fmt.Errorf("duplicate index %d in interpolation set", k)
		}
		seen[k] = struct{}{}
		if k == j {
			member = true
		}
	}
	if !member {
		return Scalar{}, fmt.Errorf("index %d is not part of the interpolation set", j)
	}

	num := ScalarFromUint64(1)
	den := ScalarFromUint64(1)
	sj := ScalarFromUint64(uint64(j))
	for _, k := range set {
		if k == j {
			continue
		}
		sk := ScalarFromUint64(uint64(k))
		num = num.Mul(sk)
		den = den.Mul(sk.Sub(sj))
	}
	inv, err := den.Inverse()
	if err != nil {
		return Scalar{}, fmt.Errorf("lagrange denominator for index %d: %w", j, err)
	}
	return num.Mul(inv), nil
}

// LagrangeCoefficients computes λ_j for every index of the set.
func LagrangeCoefficients(set []uint32) (map[uint32]Scalar, error) {
	out := make(map[uint32]Scalar, len(set))
	for _, j := range set {
		l, err := LagrangeCoefficient(j, set)
		if err != nil {
			return nil, err
		}
		out[j] = l
	}
	return out, nil
}
