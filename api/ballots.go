package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stanbar/stellot-sub000/casting"
)

// issueAccount registers a casting identity.
// POST /elections/{eid}/accounts
func (a *API) issueAccount(w http.ResponseWriter, r *http.Request) {
	req := &IssueAccountRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	if err := a.ledger.IssueAccount(r.Context(), electionID(r), req.PKCast, req.NfIssue, req.Approvals); err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// cast appends an encrypted ballot.
// POST /elections/{eid}/ballots
func (a *API) cast(w http.ResponseWriter, r *http.Request) {
	req := &casting.CastRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	idx, err := a.ledger.Cast(r.Context(), electionID(r), req)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &CastResponse{Index: idx})
}

// ballots lists every ballot of an election in ledger order.
// GET /elections/{eid}/ballots
func (a *API) ballots(w http.ResponseWriter, r *http.Request) {
	list, err := a.ledger.Ballots(r.Context(), electionID(r))
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &BallotsResponse{Ballots: list, Count: uint64(len(list))})
}

// ballot returns one ballot by ledger index.
// GET /elections/{eid}/ballots/{index}
func (a *API) ballot(w http.ResponseWriter, r *http.Request) {
	idx, err := uintParam(r, BallotURLParam, 64)
	if err != nil {
		ErrMalformedParam.Withf("invalid ballot index %q", chi.URLParam(r, BallotURLParam)).Write(w)
		return
	}
	b, err := a.ledger.Ballot(r.Context(), electionID(r), idx)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, b)
}

// castNullifier reports whether a cast nullifier was spent.
// GET /elections/{eid}/nullifiers/cast/{nf}
func (a *API) castNullifier(w http.ResponseWriter, r *http.Request) {
	nf, ok := nullifierParam(w, r)
	if !ok {
		return
	}
	used, err := a.ledger.IsCastNullifierUsed(r.Context(), electionID(r), nf)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &NullifierResponse{Nullifier: nf, Used: used})
}

// issueNullifier reports whether an issue nullifier was spent.
// GET /elections/{eid}/nullifiers/issue/{nf}
func (a *API) issueNullifier(w http.ResponseWriter, r *http.Request) {
	nf, ok := nullifierParam(w, r)
	if !ok {
		return
	}
	used, err := a.ledger.IsIssueNullifierUsed(r.Context(), electionID(r), nf)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &NullifierResponse{Nullifier: nf, Used: used})
}
