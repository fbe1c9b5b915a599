package storage

import (
	"errors"
	"fmt"

	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/db"
	"github.com/stanbar/stellot-sub000/db/prefixeddb"
	"github.com/stanbar/stellot-sub000/ledger"
)

// CreateElection assigns the next election ID and stores a new election
// built from params.
func (s *Storage) CreateElection(params *ledger.DeployParams) (*ledger.Election, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wtx := s.db.WriteTx()
	defer wtx.Discard()

	meta := prefixeddb.NewPrefixedWriteTx(wtx, metaPrefix)
	next := uint64(1)
	raw, err := meta.Get(nextElectionKey)
	switch {
	case err == nil:
		if next, err = decodeUint64(raw); err != nil {
			return nil, fmt.Errorf("corrupted election counter: %w", err)
		}
	case !errors.Is(err, db.ErrKeyNotFound):
		return nil, fmt.Errorf("failed to read election counter: %w", err)
	}

	election := ledger.NewElection(next, params)
	if err := setArtifact(wtx, electionPrefix, electionKey(next), election); err != nil {
		return nil, err
	}
	if err := meta.Set(nextElectionKey, encodeUint64(next+1)); err != nil {
		return nil, fmt.Errorf("failed to update election counter: %w", err)
	}
	if err := wtx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit election: %w", err)
	}
	s.cache.Add(next, election.Clone())
	return election, nil
}

// Election returns a copy of the stored election, or
// ledger.ErrElectionNotFound.
func (s *Storage) Election(eid uint64) (*ledger.Election, error) {
	if e, ok := s.cache.Get(eid); ok {
		return e.Clone(), nil
	}
	e, err := s.election(s.db, eid)
	if err != nil {
		return nil, err
	}
	s.cache.Add(eid, e.Clone())
	return e, nil
}

func (s *Storage) election(r db.Reader, eid uint64) (*ledger.Election, error) {
	e := &ledger.Election{}
	if err := getArtifact(r, electionPrefix, electionKey(eid), e); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ledger.ErrElectionNotFound, eid)
		}
		return nil, err
	}
	if e.KeyHolderCommitments == nil {
		e.KeyHolderCommitments = make(map[uint32]secp256k1.Point)
	}
	return e, nil
}

// ListElections returns the IDs of every stored election.
func (s *Storage) ListElections() ([]uint64, error) {
	var ids []uint64
	var decodeErr error
	err := prefixeddb.NewPrefixedReader(s.db, electionPrefix).Iterate(nil, func(k, _ []byte) bool {
		id, err := decodeUint64(k)
		if err != nil {
			decodeErr = err
			return false
		}
		ids = append(ids, id)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate elections: %w", err)
	}
	return ids, decodeErr
}

// SetKeyHolderCommitment records the commitment A_{i,0} of key-holder
// index. A commitment can be set only once; once all of them are present
// their sum must equal the election key.
func (s *Storage) SetKeyHolderCommitment(eid uint64, index uint32, commitment secp256k1.Point) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wtx := s.db.WriteTx()
	defer wtx.Discard()

	e, err := s.election(wtx, eid)
	if err != nil {
		return err
	}
	if _, ok := e.KeyHolderKey(index); !ok {
		return fmt.Errorf("%w: index %d", ledger.ErrUnknownKeyHolder, index)
	}
	if prev, ok := e.KeyHolderCommitments[index]; ok {
		if prev.Equal(commitment) {
			return nil
		}
		return fmt.Errorf("%w: key-holder %d", ledger.ErrCommitmentSet, index)
	}
	e.KeyHolderCommitments[index] = commitment
	if err := e.CheckCommitments(); err != nil {
		return err
	}
	if err := setArtifact(wtx, electionPrefix, electionKey(eid), e); err != nil {
		return err
	}
	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("failed to commit commitment: %w", err)
	}
	s.cache.Add(eid, e.Clone())
	return nil
}
