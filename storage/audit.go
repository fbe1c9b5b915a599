package storage

import (
	"fmt"

	"github.com/stanbar/stellot-sub000/db/prefixeddb"
	"github.com/stanbar/stellot-sub000/ledger"
)

// AuditEntries returns the audit log of the election ordered by ballot. It
// is written by SetTally only.
func (s *Storage) AuditEntries(eid uint64) ([]ledger.AuditEntry, error) {
	var entries []ledger.AuditEntry
	var decodeErr error
	err := prefixeddb.NewPrefixedReader(s.db, auditPrefix).Iterate(electionKey(eid), func(_, v []byte) bool {
		var entry ledger.AuditEntry
		if decodeErr = DecodeArtifact(v, &entry); decodeErr != nil {
			return false
		}
		entries = append(entries, entry)
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate audit log: %w", err)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode audit entry: %w", decodeErr)
	}
	return entries, nil
}
