// Package hash implements the domain-separated SHA-256 hashes of the
// protocol. Every hash is
//
//	SHA-256(tag || u64-LE(eid) || context)
//
// where tag is one of the ASCII domain tags below. The tags, the election id
// encoding and the concatenation order are part of the wire protocol.
package hash

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/minio/sha256-simd"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
)

const (
	TagIssue  = "stellot:issue"
	TagCast   = "stellot:cast"
	TagShares = "stellot:shares"
	// TagCommitment separates a key-holder's signed commitment publication.
	TagCommitment = "stellot:commitment"
	// TagChaumPedersen separates the Fiat-Shamir challenge of partial
	// decryption proofs from every on-ledger message.
	TagChaumPedersen = "stellot:cp"
)

// Size is the digest length.
const Size = sha256.Size

// Nullifier is a 32-byte one-time tag. Equal nullifiers within one election
// mean the same voter (issue) or the same casting identity (cast).
type Nullifier [Size]byte

func (n Nullifier) Hex() string {
	return hex.EncodeToString(n[:])
}

func (n Nullifier) String() string {
	return n.Hex()
}

func (n Nullifier) MarshalText() ([]byte, error) {
	return []byte(n.Hex()), nil
}

func (n *Nullifier) UnmarshalText(text []byte) error {
	parsed, err := NullifierFromHex(string(text))
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// NullifierFromHex decodes a 64 character hex nullifier.
func NullifierFromHex(s string) (Nullifier, error) {
	var n Nullifier
	if len(s) != 2*Size {
		return n, fmt.Errorf("invalid nullifier hex length %d, expected %d", len(s), 2*Size)
	}
	if _, err := hex.Decode(n[:], []byte(s)); err != nil {
		return n, fmt.Errorf("invalid nullifier hex: %w", err)
	}
	return n, nil
}

// Domain hashes tag || u64-LE(eid) || parts...
func Domain(tag string, eid uint64, parts ...[]byte) [Size]byte {
	h := sha256.New()
	h.Write([]byte(tag))
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], eid)
	h.Write(le[:])
	for _, p := range parts {
		h.Write(p)
	}
	var out [Size]byte
	h.Sum(out[:0])
	return out
}

// IssueNullifier derives the voter's per-election issuance nullifier.
func IssueNullifier(voterSecret []byte, eid uint64) Nullifier {
	return Domain(TagIssue, eid, voterSecret)
}

// IssueMessage is the digest a distributor signs to approve the binding of
// pkCast to nfIssue.
func IssueMessage(eid uint64, pkCast ed25519.PublicKey, nfIssue Nullifier) [Size]byte {
	return Domain(TagIssue, eid, pkCast[:], nfIssue[:])
}

// CastNullifier derives the casting identity's per-election nullifier.
func CastNullifier(castSecret []byte, eid uint64) Nullifier {
	return Domain(TagCast, eid, castSecret)
}

// CastMessage is the digest a casting identity signs over its ballot.
func CastMessage(eid uint64, nfCast Nullifier, c1, c2 secp256k1.Point) [Size]byte {
	return Domain(TagCast, eid, nfCast[:], c1.Bytes(), c2.Bytes())
}

// SharesMessage is the digest a key-holder signs over a serialized shares
// blob.
func SharesMessage(eid uint64, blob []byte) [Size]byte {
	return Domain(TagShares, eid, blob)
}

// CommitmentMessage is the digest key-holder index signs to publish its
// constant-term commitment A_{i,0}.
func CommitmentMessage(eid uint64, index uint32, commitment secp256k1.Point) [Size]byte {
	var idx [4]byte
	binary.LittleEndian.PutUint32(idx[:], index)
	return Domain(TagCommitment, eid, idx[:], commitment.Bytes())
}

// ChallengeScalar derives a Fiat-Shamir challenge from the compressed
// encodings of the given points, reduced modulo the group order.
func ChallengeScalar(points ...secp256k1.Point) secp256k1.Scalar {
	h := sha256.New()
	h.Write([]byte(TagChaumPedersen))
	for _, p := range points {
		h.Write(p.Bytes())
	}
	return secp256k1.ScalarFromBigInt(new(big.Int).SetBytes(h.Sum(nil)))
}
