package keyholder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/elgamal/dkg"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
)

// PublicKeyFileName is the name of the public ceremony output file.
const PublicKeyFileName = "combined_pubkey.json"

// PublicKeyFile is the public output of a DKG ceremony. Commitments[i] and
// Identities[i] belong to key-holder i+1.
type PublicKeyFile struct {
	Threshold   int                 `json:"threshold"`
	Parties     int                 `json:"parties"`
	PublicKey   secp256k1.Point     `json:"public_key"`
	Commitments [][]secp256k1.Point `json:"commitments"`
	Identities  []ed25519.PublicKey `json:"identities"`
}

// NewPublicKeyFile extracts the public part of a ceremony result.
func NewPublicKeyFile(res *dkg.CeremonyResult) *PublicKeyFile {
	f := &PublicKeyFile{
		Threshold:   res.Threshold,
		Parties:     res.Parties,
		PublicKey:   res.PublicKey,
		Commitments: make([][]secp256k1.Point, res.Parties),
		Identities:  make([]ed25519.PublicKey, res.Parties),
	}
	for i := range res.Parties {
		f.Commitments[i] = res.Commitments[uint32(i+1)]
		f.Identities[i] = res.Identities[i].Public()
	}
	return f
}

// CommitmentSets returns the commitment sets keyed by key-holder index.
func (f *PublicKeyFile) CommitmentSets() map[uint32][]secp256k1.Point {
	out := make(map[uint32][]secp256k1.Point, len(f.Commitments))
	for i, set := range f.Commitments {
		out[uint32(i+1)] = set
	}
	return out
}

// Validate checks the file is consistent with its own public key.
func (f *PublicKeyFile) Validate() error {
	if err := dkg.ValidateParams(f.Threshold, f.Parties); err != nil {
		return err
	}
	if len(f.Commitments) != f.Parties || len(f.Identities) != f.Parties {
		return fmt.Errorf("expected %d commitment sets and identities", f.Parties)
	}
	for i, set := range f.Commitments {
		if len(set) != f.Threshold {
			return fmt.Errorf("key-holder %d has %d commitments, expected %d", i+1, len(set), f.Threshold)
		}
	}
	pk, err := dkg.CombinedPublicKey(f.CommitmentSets())
	if err != nil {
		return err
	}
	if !pk.Equal(f.PublicKey) {
		return fmt.Errorf("public key does not match the commitments")
	}
	return nil
}

// LoadPublicKeyFile reads and validates a ceremony output file.
func LoadPublicKeyFile(path string) (*PublicKeyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read public key file: %w", err)
	}
	f := &PublicKeyFile{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return f, nil
}

// Save writes the file to path.
func (f *PublicKeyFile) Save(path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
