/*
Package storage persists the state of the local ledger.

# Storage Organization

The storage uses a key-value database with prefixed namespaces. Election IDs
are encoded as 8-byte big-endian integers so that iteration follows ID order.

## Elections
- m/  : metadata, currently the next election ID counter
- e/  : electionID → ledger.Election (parameters, commitments, tallied flag)

## Issuance
- in/ : electionID + nf_issue → empty (consumed issuance nullifiers)
- ia/ : electionID + pk_cast → nf_cast once the account has cast, empty before

## Casting
- cn/ : electionID + nf_cast → ballot index (consumed cast nullifiers)
- b/  : electionID + ballot index → ledger.EncryptedBallot
- bc/ : electionID → number of ballots

## Tally
- ks/ : electionID + key-holder index → shares.Record
- t/  : electionID → final counts
- a/  : electionID + ballot index → ledger.AuditEntry (ballots excluded from the tally)
*/
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stanbar/stellot-sub000/config"
	"github.com/stanbar/stellot-sub000/db"
	"github.com/stanbar/stellot-sub000/db/prefixeddb"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/log"
)

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrNotFound         = errors.New("not found")

	// Prefixes
	metaPrefix            = []byte("m/")
	electionPrefix        = []byte("e/")
	issueNullifierPrefix  = []byte("in/")
	issuedAccountPrefix   = []byte("ia/")
	castNullifierPrefix   = []byte("cn/")
	ballotPrefix          = []byte("b/")
	ballotCounterPrefix   = []byte("bc/")
	keyHolderSharesPrefix = []byte("ks/")
	tallyPrefix           = []byte("t/")
	auditPrefix           = []byte("a/")

	nextElectionKey = []byte("nextElection")
)

// Storage manages the ledger state. Read-modify-write operations are
// serialized by globalLock since not every backend detects write conflicts.
type Storage struct {
	db         db.Database
	globalLock sync.Mutex
	cache      *lru.Cache[uint64, *ledger.Election]
}

// New creates a new Storage instance.
func New(database db.Database) *Storage {
	cache, err := lru.New[uint64, *ledger.Election](config.DefaultElectionCacheSize)
	if err != nil {
		log.Fatalf("failed to create LRU cache: %v", err)
	}
	return &Storage{
		db:    database,
		cache: cache,
	}
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	s.cache.Purge()
	return s.db.Close()
}

func electionKey(eid uint64) []byte {
	return binary.BigEndian.AppendUint64(make([]byte, 0, 8), eid)
}

// subKey returns electionID + suffix.
func subKey(eid uint64, suffix []byte) []byte {
	return append(electionKey(eid), suffix...)
}

// indexKey returns electionID + 8-byte big-endian index.
func indexKey(eid, index uint64) []byte {
	return binary.BigEndian.AppendUint64(electionKey(eid), index)
}

func encodeUint64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

func decodeUint64(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("invalid counter length %d", len(b))
	}
	return binary.BigEndian.Uint64(b), nil
}

// setArtifact encodes a and writes it under prefix+key inside wtx.
func setArtifact(wtx db.WriteTx, prefix, key []byte, a any) error {
	data, err := EncodeArtifact(a)
	if err != nil {
		return fmt.Errorf("failed to encode artifact: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(wtx, prefix).Set(key, data); err != nil {
		return fmt.Errorf("failed to set artifact: %w", err)
	}
	return nil
}

// getArtifact reads prefix+key from r and decodes it into out. It returns
// ErrNotFound if the key does not exist.
func getArtifact(r db.Reader, prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(r, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get artifact: %w", err)
	}
	if err := DecodeArtifact(data, out); err != nil {
		return fmt.Errorf("failed to decode artifact: %w", err)
	}
	return nil
}

// has reports whether prefix+key exists in r.
func has(r db.Reader, prefix, key []byte) (bool, error) {
	_, err := prefixeddb.NewPrefixedReader(r, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
