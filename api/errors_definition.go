//nolint:lll
package api

import (
	"fmt"
	"net/http"

	"github.com/stanbar/stellot-sub000/casting"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/shares"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX
// If you notice there's a gap, DON'T fill in the gap, that code was used in the past for some error
// (not anymore) and shouldn't be reused.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound       = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody          = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature       = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrMalformedElectionID    = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed election ID")}
	ErrElectionNotFound       = Error{Code: 40007, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("election not found")}
	ErrMalformedParam         = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrMalformedNullifier     = Error{Code: 40016, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed nullifier")}
	ErrDuplicateNullifier     = Error{Code: 40018, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("nullifier already used")}
	ErrVotingClosed           = Error{Code: 40020, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("election is not accepting votes")}
	ErrBallotNotFound         = Error{Code: 40023, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("ballot not found")}
	ErrVotingNotOpen          = Error{Code: 40024, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voting has not started")}
	ErrVotingNotClosed        = Error{Code: 40025, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voting is still open")}
	ErrNotIssued              = Error{Code: 40026, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("casting identity was not issued")}
	ErrInsufficientApprovals  = Error{Code: 40027, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("insufficient distributor approvals")}
	ErrUnknownKeyHolder       = Error{Code: 40028, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("unknown key-holder")}
	ErrDuplicateShares        = Error{Code: 40029, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("key-holder already posted shares")}
	ErrMalformedShares        = Error{Code: 40030, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed shares blob")}
	ErrCommitmentAlreadySet   = Error{Code: 40031, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("key-holder commitment already set")}
	ErrCommitmentMismatch     = Error{Code: 40032, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("key-holder commitments do not match the election key")}
	ErrInvalidElectionParams  = Error{Code: 40033, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid election parameters")}
	ErrNotTallied             = Error{Code: 40034, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("election not tallied")}
	ErrTallyMismatch          = Error{Code: 40035, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("tally differs from the finalized one")}
	ErrInvalidTally           = Error{Code: 40036, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid tally")}
	ErrAuditLogNotSupported   = Error{Code: 40037, HTTPstatus: http.StatusNotImplemented, Err: fmt.Errorf("ledger keeps no audit log")}
	ErrMalformedBallot        = Error{Code: 40038, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed ballot")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)

// errorMap binds protocol errors to their catalogue entry, in match order.
var errorMap = []struct {
	cause error
	api   Error
}{
	{ledger.ErrElectionNotFound, ErrElectionNotFound},
	{ledger.ErrBallotNotFound, ErrBallotNotFound},
	{ledger.ErrDuplicateNullifier, ErrDuplicateNullifier},
	{ledger.ErrVotingNotOpen, ErrVotingNotOpen},
	{ledger.ErrVotingClosed, ErrVotingClosed},
	{ledger.ErrVotingNotClosed, ErrVotingNotClosed},
	{ledger.ErrNotIssued, ErrNotIssued},
	{ledger.ErrInsufficientApprovals, ErrInsufficientApprovals},
	{ledger.ErrUnknownKeyHolder, ErrUnknownKeyHolder},
	{ledger.ErrDuplicateShares, ErrDuplicateShares},
	{shares.ErrMalformedBlob, ErrMalformedShares},
	{ledger.ErrCommitmentSet, ErrCommitmentAlreadySet},
	{ledger.ErrCommitmentMismatch, ErrCommitmentMismatch},
	{ledger.ErrInvalidParams, ErrInvalidElectionParams},
	{ledger.ErrNotTallied, ErrNotTallied},
	{ledger.ErrTallyMismatch, ErrTallyMismatch},
	{ledger.ErrInvalidTally, ErrInvalidTally},
	{casting.ErrMalformedBallot, ErrMalformedBallot},
	{ed25519.ErrSignatureVerification, ErrInvalidSignature},
}
