// -----------------------------------------------------------------------------
//  Chaum-Pedersen NIZK proof of a correct partial decryption
//
//  A key-holder j publishes D_j = sk_j·C1 for every ballot. Anyone holding
//  the public share PK_j = sk_j·G (derivable from the DKG commitments) can
//  check that D_j was computed with the same secret, that is
//
//        log_G(PK_j)  =  log_{C1}(D_j)
//
//  without learning sk_j. Fiat-Shamir makes the Σ-protocol non-interactive.
// -----------------------------------------------------------------------------
//
//  Prover (ProvePartialDecryption):
//    1.  Pick r ← [1, Q-1].
//    2.  R1 = r·G,  R2 = r·C1
//    3.  c  = H(G, PK_j, C1, D_j, R1, R2) mod Q
//    4.  s  = r + c·sk_j mod Q
//
//  Proof is (R1, R2, s).
//
//  Verifier (VerifyPartialDecryption):
//        s·G  ==  R1 + c·PK_j
//        s·C1 ==  R2 + c·D_j
//
//  The ledger does not check these proofs; it only authenticates the signed
//  shares blob. Proofs travel alongside for off-ledger audits.
// -----------------------------------------------------------------------------

package elgamal

import (
	"fmt"

	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/hash"
)

// DecryptionProof is a Chaum-Pedersen proof that D_j and PK_j share the same
// discrete log with respect to C1 and G.
type DecryptionProof struct {
	R1 secp256k1.Point  `json:"r1" cbor:"1,keyasint"` // r·G
	R2 secp256k1.Point  `json:"r2" cbor:"2,keyasint"` // r·C1
	S  secp256k1.Scalar `json:"s" cbor:"3,keyasint"`  // r + c·sk_j
}

// ProvePartialDecryption computes D_j = sk_j·C1 and a proof of its
// correctness.
func ProvePartialDecryption(share secp256k1.Scalar, c1 secp256k1.Point) (secp256k1.Point, DecryptionProof, error) {
	r, err := secp256k1.RandomScalar()
	if err != nil {
		return secp256k1.Point{}, DecryptionProof{}, fmt.Errorf("failed to sample proof nonce: %w", err)
	}
	pkj := secp256k1.ScalarBaseMult(share)
	d := PartialDecrypt(share, c1)

	r1 := secp256k1.ScalarBaseMult(r)
	r2 := c1.ScalarMult(r)
	c := challenge(pkj, c1, d, r1, r2)
	s := r.Add(c.Mul(share))
	return d, DecryptionProof{R1: r1, R2: r2, S: s}, nil
}

// VerifyPartialDecryption checks proof for D_j against the public share PK_j.
func VerifyPartialDecryption(pkj, c1, d secp256k1.Point, proof DecryptionProof) error {
	c := challenge(pkj, c1, d, proof.R1, proof.R2)

	// s·G == R1 + c·PK_j
	if !secp256k1.ScalarBaseMult(proof.S).Equal(proof.R1.Add(pkj.ScalarMult(c))) {
		return fmt.Errorf("%w: first equation fails", ErrInvalidProof)
	}
	// s·C1 == R2 + c·D_j
	if !c1.ScalarMult(proof.S).Equal(proof.R2.Add(d.ScalarMult(c))) {
		return fmt.Errorf("%w: second equation fails", ErrInvalidProof)
	}
	return nil
}

func challenge(pkj, c1, d, r1, r2 secp256k1.Point) secp256k1.Scalar {
	return hash.ChallengeScalar(secp256k1.Generator(), pkj, c1, d, r1, r2)
}
