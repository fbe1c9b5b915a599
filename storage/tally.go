package storage

import (
	"errors"
	"fmt"
	"slices"

	"github.com/stanbar/stellot-sub000/ledger"
)

// SetTally stores the final counts with the audit log of the ballots they
// exclude and marks the election tallied. Posting the same counts again is a
// no-op; different counts fail with ledger.ErrTallyMismatch.
func (s *Storage) SetTally(eid uint64, counts []uint64, excluded []ledger.AuditEntry) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wtx := s.db.WriteTx()
	defer wtx.Discard()

	e, err := s.election(wtx, eid)
	if err != nil {
		return err
	}
	var prev []uint64
	err = getArtifact(wtx, tallyPrefix, electionKey(eid), &prev)
	switch {
	case err == nil:
		if slices.Equal(prev, counts) {
			return nil
		}
		return fmt.Errorf("%w: have %v, got %v", ledger.ErrTallyMismatch, prev, counts)
	case !errors.Is(err, ErrNotFound):
		return err
	}

	if err := setArtifact(wtx, tallyPrefix, electionKey(eid), counts); err != nil {
		return err
	}
	for _, entry := range excluded {
		if err := setArtifact(wtx, auditPrefix, indexKey(eid, entry.Ballot), entry); err != nil {
			return err
		}
	}
	e.Tallied = true
	if err := setArtifact(wtx, electionPrefix, electionKey(eid), e); err != nil {
		return err
	}
	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tally: %w", err)
	}
	s.cache.Add(eid, e.Clone())
	return nil
}

// Tally returns the final counts, or ledger.ErrNotTallied.
func (s *Storage) Tally(eid uint64) ([]uint64, error) {
	var counts []uint64
	if err := getArtifact(s.db, tallyPrefix, electionKey(eid), &counts); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ledger.ErrNotTallied, eid)
		}
		return nil, err
	}
	return counts, nil
}
