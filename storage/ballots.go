package storage

import (
	"errors"
	"fmt"

	"github.com/stanbar/stellot-sub000/casting"
	"github.com/stanbar/stellot-sub000/db"
	"github.com/stanbar/stellot-sub000/db/prefixeddb"
	"github.com/stanbar/stellot-sub000/ledger"
)

// AddBallot appends the ballot of req and consumes its cast nullifier. The
// casting account must be issued and may cast only once. Signatures are
// checked by the caller.
func (s *Storage) AddBallot(eid uint64, req *casting.CastRequest) (uint64, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wtx := s.db.WriteTx()
	defer wtx.Discard()

	issued, spent, err := accountState(wtx, eid, req.PKCast)
	if err != nil {
		return 0, fmt.Errorf("failed to read casting account: %w", err)
	}
	if !issued {
		return 0, fmt.Errorf("%w: %s", ledger.ErrNotIssued, req.PKCast)
	}
	if spent {
		return 0, fmt.Errorf("%w: casting account %s already cast", ledger.ErrDuplicateNullifier, req.PKCast)
	}
	nfKey := subKey(eid, req.NfCast[:])
	used, err := has(wtx, castNullifierPrefix, nfKey)
	if err != nil {
		return 0, fmt.Errorf("failed to check cast nullifier: %w", err)
	}
	if used {
		return 0, fmt.Errorf("%w: cast nullifier %s", ledger.ErrDuplicateNullifier, req.NfCast)
	}

	index, err := ballotCount(wtx, eid)
	if err != nil {
		return 0, err
	}
	ballot := &ledger.EncryptedBallot{Index: index, NfCast: req.NfCast, C1: req.C1, C2: req.C2}
	if err := setArtifact(wtx, ballotPrefix, indexKey(eid, index), ballot); err != nil {
		return 0, err
	}
	if err := prefixeddb.NewPrefixedWriteTx(wtx, ballotCounterPrefix).Set(electionKey(eid), encodeUint64(index+1)); err != nil {
		return 0, fmt.Errorf("failed to update ballot counter: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(wtx, castNullifierPrefix).Set(nfKey, encodeUint64(index)); err != nil {
		return 0, fmt.Errorf("failed to consume cast nullifier: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(wtx, issuedAccountPrefix).Set(subKey(eid, req.PKCast[:]), req.NfCast[:]); err != nil {
		return 0, fmt.Errorf("failed to mark casting account: %w", err)
	}
	if err := wtx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit ballot: %w", err)
	}
	return index, nil
}

func ballotCount(r db.Reader, eid uint64) (uint64, error) {
	raw, err := prefixeddb.NewPrefixedReader(r, ballotCounterPrefix).Get(electionKey(eid))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read ballot counter: %w", err)
	}
	return decodeUint64(raw)
}

// BallotCount returns the number of ballots cast in the election.
func (s *Storage) BallotCount(eid uint64) (uint64, error) {
	return ballotCount(s.db, eid)
}

// Ballot returns ballot index, or ledger.ErrBallotNotFound.
func (s *Storage) Ballot(eid, index uint64) (*ledger.EncryptedBallot, error) {
	b := &ledger.EncryptedBallot{}
	if err := getArtifact(s.db, ballotPrefix, indexKey(eid, index), b); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ledger.ErrBallotNotFound, index)
		}
		return nil, err
	}
	return b, nil
}

// Ballots returns every ballot of the election ordered by index.
func (s *Storage) Ballots(eid uint64) ([]*ledger.EncryptedBallot, error) {
	var ballots []*ledger.EncryptedBallot
	var decodeErr error
	err := prefixeddb.NewPrefixedReader(s.db, ballotPrefix).Iterate(electionKey(eid), func(_, v []byte) bool {
		b := &ledger.EncryptedBallot{}
		if decodeErr = DecodeArtifact(v, b); decodeErr != nil {
			return false
		}
		ballots = append(ballots, b)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate ballots: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode ballot: %w", decodeErr)
	}
	return ballots, nil
}
