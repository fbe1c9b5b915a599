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

// Credential is the key material a key-holder keeps after the DKG.
type Credential struct {
	Index      uint32
	Secret     secp256k1.Scalar
	Commitment secp256k1.Point
	Identity   *ed25519.PrivateKey
}

// credentialFile is the on-disk layout, all values hex encoded.
type credentialFile struct {
	Index      uint32 `json:"index"`
	SK         string `json:"sk"`
	Commitment string `json:"commitment"`
	EdSK       string `json:"ed_sk"`
	EdPK       string `json:"ed_pk"`
}

// NewCredential bundles a ceremony output with the key-holder's signing key.
func NewCredential(share *dkg.KeyHolderShare, identity *ed25519.PrivateKey) *Credential {
	return &Credential{
		Index:      share.Index,
		Secret:     share.Secret,
		Commitment: share.Commitment,
		Identity:   identity,
	}
}

// PublicKey is the key-holder's roster key.
func (c *Credential) PublicKey() ed25519.PublicKey {
	return c.Identity.Public()
}

func (c *Credential) MarshalJSON() ([]byte, error) {
	if c.Identity == nil {
		return nil, fmt.Errorf("credential without signing key")
	}
	return json.Marshal(credentialFile{
		Index:      c.Index,
		SK:         c.Secret.Hex(),
		Commitment: c.Commitment.Hex(),
		EdSK:       c.Identity.Hex(),
		EdPK:       c.Identity.Public().Hex(),
	})
}

func (c *Credential) UnmarshalJSON(data []byte) error {
	var f credentialFile
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f.Index == 0 {
		return fmt.Errorf("credential index must be positive")
	}
	sk, err := secp256k1.ScalarFromHex(f.SK)
	if err != nil {
		return fmt.Errorf("invalid sk: %w", err)
	}
	if sk.IsZero() {
		return fmt.Errorf("invalid sk: zero")
	}
	commitment, err := secp256k1.PointFromHex(f.Commitment)
	if err != nil {
		return fmt.Errorf("invalid commitment: %w", err)
	}
	edSK, err := ed25519.PrivateKeyFromHex(f.EdSK)
	if err != nil {
		return fmt.Errorf("invalid ed_sk: %w", err)
	}
	edPK, err := ed25519.PublicKeyFromHex(f.EdPK)
	if err != nil {
		return fmt.Errorf("invalid ed_pk: %w", err)
	}
	if edSK.Public() != edPK {
		return fmt.Errorf("ed_pk does not match ed_sk")
	}
	*c = Credential{Index: f.Index, Secret: sk, Commitment: commitment, Identity: edSK}
	return nil
}

// LoadCredential reads a credential file.
func LoadCredential(path string) (*Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credential: %w", err)
	}
	c := &Credential{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parse credential %s: %w", path, err)
	}
	return c, nil
}

// Save writes the credential to path, readable only by the owner.
func (c *Credential) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// FileName is the conventional credential file name of key-holder index.
func FileName(index uint32) string {
	return fmt.Sprintf("keyholder_%d.json", index)
}
