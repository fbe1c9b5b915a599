package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/log"
)

// deploy creates a new election.
// POST /elections
func (a *API) deploy(w http.ResponseWriter, r *http.Request) {
	p := &ledger.DeployParams{}
	if !decodeBody(w, r, p) {
		return
	}
	eid, err := a.ledger.Deploy(r.Context(), p)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &DeployResponse{ElectionID: eid})
}

// election returns the state of an election.
// GET /elections/{eid}
func (a *API) election(w http.ResponseWriter, r *http.Request) {
	e, err := a.ledger.Election(r.Context(), electionID(r))
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, e)
}

// setCommitment records a key-holder's constant-term commitment.
// POST /elections/{eid}/keyholders/{idx}/commitment
func (a *API) setCommitment(w http.ResponseWriter, r *http.Request) {
	idx, err := uintParam(r, KeyHolderURLParam, 32)
	if err != nil || idx == 0 {
		ErrMalformedParam.Withf("invalid key-holder index %q", chi.URLParam(r, KeyHolderURLParam)).Write(w)
		return
	}
	req := &CommitmentRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	eid := electionID(r)
	if err := a.ledger.SetKeyHolderCommitment(r.Context(), eid, uint32(idx), req.Commitment, req.Signature); err != nil {
		apiError(err).Write(w)
		return
	}
	log.Debugw("key-holder commitment stored", "electionID", eid, "keyHolder", idx)
	httpWriteOK(w)
}
