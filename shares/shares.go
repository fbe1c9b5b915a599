// Package shares implements the blob a key-holder signs when it publishes its
// partial decryptions:
//
//	u32-LE count
//	count × ( u32-LE len ‖ C1 ‖ u32-LE len ‖ D )
//
// Every point is a 33-byte compressed secp256k1 point. Each pair binds the
// partial decryption D = sk_j·C1 to the ballot component C1 it was computed
// from.
package shares

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/stanbar/stellot-sub000/config"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/types"
)

// ErrMalformedBlob is returned by Deserialize for any framing error.
var ErrMalformedBlob = errors.New("malformed shares blob")

const pairSize = 2 * (4 + secp256k1.PointSize)

// Pair is one ballot's partial decryption.
type Pair struct {
	C1 secp256k1.Point `json:"c1" cbor:"1,keyasint"`
	D  secp256k1.Point `json:"d" cbor:"2,keyasint"`
}

// Serialize encodes pairs in the signed wire format.
func Serialize(pairs []Pair) []byte {
	out := make([]byte, 4, 4+len(pairs)*pairSize)
	binary.LittleEndian.PutUint32(out, uint32(len(pairs)))
	for _, p := range pairs {
		out = appendPoint(out, p.C1)
		out = appendPoint(out, p.D)
	}
	return out
}

func appendPoint(out []byte, p secp256k1.Point) []byte {
	b := p.Bytes()
	out = binary.LittleEndian.AppendUint32(out, uint32(len(b)))
	return append(out, b...)
}

// Deserialize decodes a blob. Lengths other than 33, invalid points,
// truncated input and trailing bytes are all rejected.
func Deserialize(blob []byte) ([]Pair, error) {
	if len(blob) < 4 {
		return nil, fmt.Errorf("%w: missing count", ErrMalformedBlob)
	}
	count := binary.LittleEndian.Uint32(blob)
	if count > config.MaxSharesPerRecord {
		return nil, fmt.Errorf("%w: %d pairs exceed limit %d", ErrMalformedBlob, count, config.MaxSharesPerRecord)
	}
	rest := blob[4:]
	if uint64(len(rest)) != uint64(count)*pairSize {
		return nil, fmt.Errorf("%w: %d bytes for %d pairs, expected %d", ErrMalformedBlob, len(rest), count, uint64(count)*pairSize)
	}
	pairs := make([]Pair, 0, count)
	for i := range count {
		var p Pair
		var err error
		if p.C1, rest, err = readPoint(rest); err != nil {
			return nil, fmt.Errorf("%w: pair %d C1: %v", ErrMalformedBlob, i, err)
		}
		if p.D, rest, err = readPoint(rest); err != nil {
			return nil, fmt.Errorf("%w: pair %d D: %v", ErrMalformedBlob, i, err)
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

func readPoint(buf []byte) (secp256k1.Point, []byte, error) {
	if len(buf) < 4 {
		return secp256k1.Point{}, nil, fmt.Errorf("truncated length prefix")
	}
	n := binary.LittleEndian.Uint32(buf)
	if n != secp256k1.PointSize {
		return secp256k1.Point{}, nil, fmt.Errorf("point length %d, expected %d", n, secp256k1.PointSize)
	}
	buf = buf[4:]
	if len(buf) < secp256k1.PointSize {
		return secp256k1.Point{}, nil, fmt.Errorf("truncated point")
	}
	p, err := secp256k1.PointFromBytes(buf[:secp256k1.PointSize])
	if err != nil {
		return secp256k1.Point{}, nil, err
	}
	return p, buf[secp256k1.PointSize:], nil
}

// Record is a key-holder's signed submission for one election.
type Record struct {
	KHIndex     uint32            `json:"khIndex" cbor:"1,keyasint"`
	Blob        types.HexBytes    `json:"blob" cbor:"2,keyasint"`
	KHPublicKey ed25519.PublicKey `json:"khPublicKey" cbor:"3,keyasint"`
	Signature   ed25519.Signature `json:"signature" cbor:"4,keyasint"`
}

// Sign serializes pairs and signs SharesMessage(eid, blob) with key.
func Sign(eid uint64, khIndex uint32, pairs []Pair, key *ed25519.PrivateKey) *Record {
	blob := Serialize(pairs)
	msg := hash.SharesMessage(eid, blob)
	return &Record{
		KHIndex:     khIndex,
		Blob:        blob,
		KHPublicKey: key.Public(),
		Signature:   key.Sign(msg[:]),
	}
}

// Verify checks the signature over the blob. It does not check that the
// public key belongs to the key-holder roster; the ledger does that.
func (r *Record) Verify(eid uint64) error {
	msg := hash.SharesMessage(eid, r.Blob)
	if err := ed25519.Verify(r.KHPublicKey, msg[:], r.Signature); err != nil {
		return fmt.Errorf("shares of key-holder %d: %w", r.KHIndex, err)
	}
	return nil
}

// Pairs decodes the record's blob.
func (r *Record) Pairs() ([]Pair, error) {
	return Deserialize(r.Blob)
}

// Lookup indexes the pairs of a record by the compressed C1.
func Lookup(pairs []Pair) map[string]secp256k1.Point {
	out := make(map[string]secp256k1.Point, len(pairs))
	for _, p := range pairs {
		out[string(p.C1.Bytes())] = p.D
	}
	return out
}
