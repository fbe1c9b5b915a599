package tally

import (
	"fmt"

	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/elgamal"
	"github.com/stanbar/stellot-sub000/crypto/elgamal/dkg"
	"github.com/stanbar/stellot-sub000/keyholder"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/shares"
)

// Audit checks the Chaum-Pedersen proofs published by key-holders against
// the public shares derived from the ceremony commitment sets. The ledger
// only authenticates records by signature, so this is the check that a
// key-holder decrypted with its real share.
//
// commitments are the full commitment sets published by the ceremony,
// proofs the audit bundles keyed by key-holder index. Every pair of each
// record in records must be covered by a valid proof.
func Audit(e *ledger.Election, commitments map[uint32][]secp256k1.Point, records []*shares.Record,
	proofs map[uint32][]keyholder.AuditProof,
) error {
	pk, err := dkg.CombinedPublicKey(commitments)
	if err != nil {
		return err
	}
	if !pk.Equal(e.PublicKey) {
		return fmt.Errorf("%w: commitment sets do not match the election key", ledger.ErrCommitmentMismatch)
	}
	for idx, published := range e.KeyHolderCommitments {
		set, ok := commitments[idx]
		if !ok || len(set) == 0 || !set[0].Equal(published) {
			return fmt.Errorf("%w: key-holder %d", ledger.ErrCommitmentMismatch, idx)
		}
	}
	for _, rec := range records {
		pairs, err := rec.Pairs()
		if err != nil {
			return fmt.Errorf("key-holder %d: %w", rec.KHIndex, err)
		}
		pkj := dkg.PublicShareFor(rec.KHIndex, commitments)
		bundle := proofs[rec.KHIndex]
		proven := make(map[string]secp256k1.Point, len(bundle))
		for _, p := range bundle {
			if err := elgamal.VerifyPartialDecryption(pkj, p.C1, p.D, p.Proof); err != nil {
				return fmt.Errorf("key-holder %d ballot %d: %w", rec.KHIndex, p.Ballot, err)
			}
			proven[string(p.C1.Bytes())] = p.D
		}
		for _, pair := range pairs {
			d, ok := proven[string(pair.C1.Bytes())]
			if !ok {
				return fmt.Errorf("%w: key-holder %d has an unproven share", elgamal.ErrInvalidProof, rec.KHIndex)
			}
			if !d.Equal(pair.D) {
				return fmt.Errorf("%w: key-holder %d posted a share that differs from its proof", elgamal.ErrInvalidProof, rec.KHIndex)
			}
		}
	}
	return nil
}
