package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/stanbar/stellot-sub000/db"
	"github.com/stanbar/stellot-sub000/db/prefixeddb"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/shares"
)

func khKey(eid uint64, index uint32) []byte {
	return binary.BigEndian.AppendUint32(electionKey(eid), index)
}

// AddShareRecord stores the shares record of a key-holder. Each key-holder
// posts at most once; the returned slot is the arrival position.
func (s *Storage) AddShareRecord(eid uint64, rec *shares.Record) (uint32, error) {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wtx := s.db.WriteTx()
	defer wtx.Discard()

	key := khKey(eid, rec.KHIndex)
	exists, err := has(wtx, keyHolderSharesPrefix, key)
	if err != nil {
		return 0, fmt.Errorf("failed to check shares record: %w", err)
	}
	if exists {
		return 0, fmt.Errorf("%w: key-holder %d", ledger.ErrDuplicateShares, rec.KHIndex)
	}
	records, err := shareRecords(wtx, eid)
	if err != nil {
		return 0, err
	}
	if err := setArtifact(wtx, keyHolderSharesPrefix, key, rec); err != nil {
		return 0, err
	}
	if err := wtx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit shares record: %w", err)
	}
	return uint32(len(records)), nil
}

// ShareRecords returns the posted records ordered by key-holder index.
func (s *Storage) ShareRecords(eid uint64) ([]*shares.Record, error) {
	return shareRecords(s.db, eid)
}

func shareRecords(r db.Reader, eid uint64) ([]*shares.Record, error) {
	var records []*shares.Record
	var decodeErr error
	err := prefixeddb.NewPrefixedReader(r, keyHolderSharesPrefix).Iterate(electionKey(eid), func(_, v []byte) bool {
		rec := &shares.Record{}
		if decodeErr = DecodeArtifact(v, rec); decodeErr != nil {
			return false
		}
		records = append(records, rec)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate shares records: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode shares record: %w", decodeErr)
	}
	return records, nil
}
