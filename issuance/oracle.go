package issuance

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/minio/sha256-simd"
	"github.com/stanbar/stellot-sub000/types"
)

// EligibilityProof is the voter's evidence of membership in the eligible
// set. Its Data is interpreted by the oracle.
type EligibilityProof struct {
	IdentityID string         `json:"identityId"`
	Data       types.HexBytes `json:"data,omitempty"`
}

// EligibilityOracle decides whether a proof shows membership in the set
// committed to by root. Census management is outside the protocol.
type EligibilityOracle interface {
	VerifyInclusion(ctx context.Context, root []byte, proof EligibilityProof) error
}

// StaticOracle is an EligibilityOracle over a fixed list of identities. Its
// root is the hash of the sorted identity list.
type StaticOracle struct {
	members map[string]struct{}
	root    []byte
}

// NewStaticOracle builds an oracle over ids.
func NewStaticOracle(ids ...string) *StaticOracle {
	o := &StaticOracle{members: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		o.members[id] = struct{}{}
	}
	o.root = StaticRoot(ids...)
	return o
}

// StaticRoot computes the eligibility root of an identity list.
func StaticRoot(ids ...string) types.HexBytes {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	h := sha256.New()
	for _, id := range sorted {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return h.Sum(nil)
}

// Root returns the oracle's eligibility root.
func (o *StaticOracle) Root() types.HexBytes {
	return o.root
}

func (o *StaticOracle) VerifyInclusion(_ context.Context, root []byte, proof EligibilityProof) error {
	if !bytes.Equal(root, o.root) {
		return fmt.Errorf("unknown eligibility root %x", root)
	}
	if _, ok := o.members[proof.IdentityID]; !ok {
		return fmt.Errorf("identity %q not in eligible set", proof.IdentityID)
	}
	return nil
}
