package ledger

import (
	"errors"

	"github.com/stanbar/stellot-sub000/issuance"
)

var (
	ErrElectionNotFound = errors.New("election not found")
	ErrBallotNotFound   = errors.New("ballot not found")
	ErrInvalidParams    = errors.New("invalid election parameters")
	// ErrDuplicateNullifier is returned when an issue or cast nullifier was
	// already consumed. The submission has no effect.
	ErrDuplicateNullifier = errors.New("nullifier already used")
	ErrVotingNotOpen      = errors.New("voting has not started")
	ErrVotingClosed       = errors.New("voting is closed")
	ErrVotingNotClosed    = errors.New("voting is still open")
	// ErrNotIssued is returned when a cast comes from a key the ledger never
	// issued a casting account to.
	ErrNotIssued        = errors.New("casting identity was not issued")
	ErrUnknownKeyHolder = errors.New("unknown key-holder")
	ErrDuplicateShares  = errors.New("key-holder already posted shares")
	ErrCommitmentSet    = errors.New("key-holder commitment already set")
	// ErrCommitmentMismatch is returned when the published key-holder
	// commitments do not add up to the election public key.
	ErrCommitmentMismatch = errors.New("key-holder commitments do not match the election key")
	ErrNotTallied         = errors.New("election not tallied")
	ErrInvalidTally       = errors.New("invalid tally")
	// ErrTallyMismatch is returned when a second finalization posts
	// different counts.
	ErrTallyMismatch         = errors.New("tally differs from the finalized one")
	ErrInsufficientApprovals = issuance.ErrInsufficientApprovals
)
