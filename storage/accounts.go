package storage

import (
	"errors"
	"fmt"

	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/db"
	"github.com/stanbar/stellot-sub000/db/prefixeddb"
	"github.com/stanbar/stellot-sub000/ledger"
)

// IssueAccount consumes nfIssue and registers pkCast as a casting account
// in a single transaction. It fails with ledger.ErrDuplicateNullifier if
// either was already used.
func (s *Storage) IssueAccount(eid uint64, pkCast ed25519.PublicKey, nfIssue hash.Nullifier) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wtx := s.db.WriteTx()
	defer wtx.Discard()

	nfKey := subKey(eid, nfIssue[:])
	used, err := has(wtx, issueNullifierPrefix, nfKey)
	if err != nil {
		return fmt.Errorf("failed to check issue nullifier: %w", err)
	}
	if used {
		return fmt.Errorf("%w: issue nullifier %s", ledger.ErrDuplicateNullifier, nfIssue)
	}
	accKey := subKey(eid, pkCast[:])
	issued, err := has(wtx, issuedAccountPrefix, accKey)
	if err != nil {
		return fmt.Errorf("failed to check casting account: %w", err)
	}
	if issued {
		return fmt.Errorf("%w: casting account %s already issued", ledger.ErrDuplicateNullifier, pkCast)
	}

	if err := prefixeddb.NewPrefixedWriteTx(wtx, issueNullifierPrefix).Set(nfKey, []byte{}); err != nil {
		return fmt.Errorf("failed to consume issue nullifier: %w", err)
	}
	if err := prefixeddb.NewPrefixedWriteTx(wtx, issuedAccountPrefix).Set(accKey, []byte{}); err != nil {
		return fmt.Errorf("failed to register casting account: %w", err)
	}
	if err := wtx.Commit(); err != nil {
		return fmt.Errorf("failed to commit issuance: %w", err)
	}
	return nil
}

// IsIssueNullifierUsed reports whether nf was consumed by an issuance.
func (s *Storage) IsIssueNullifierUsed(eid uint64, nf hash.Nullifier) (bool, error) {
	return has(s.db, issueNullifierPrefix, subKey(eid, nf[:]))
}

// IsCastNullifierUsed reports whether nf was consumed by a cast.
func (s *Storage) IsCastNullifierUsed(eid uint64, nf hash.Nullifier) (bool, error) {
	return has(s.db, castNullifierPrefix, subKey(eid, nf[:]))
}

// IsIssued reports whether pkCast holds a casting account.
func (s *Storage) IsIssued(eid uint64, pkCast ed25519.PublicKey) (bool, error) {
	return has(s.db, issuedAccountPrefix, subKey(eid, pkCast[:]))
}

// accountState returns whether the account exists and whether it already
// cast a ballot.
func accountState(r db.Reader, eid uint64, pkCast ed25519.PublicKey) (issued, spent bool, err error) {
	v, err := prefixeddb.NewPrefixedReader(r, issuedAccountPrefix).Get(subKey(eid, pkCast[:]))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, len(v) > 0, nil
}
