package api

import (
	"net/http"

	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/shares"
)

// postShare stores a key-holder's signed shares record.
// POST /elections/{eid}/shares
func (a *API) postShare(w http.ResponseWriter, r *http.Request) {
	rec := &shares.Record{}
	if !decodeBody(w, r, rec) {
		return
	}
	slot, err := a.ledger.PostShare(r.Context(), electionID(r), rec)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &PostShareResponse{Slot: slot})
}

// shares lists the posted shares records.
// GET /elections/{eid}/shares
func (a *API) shares(w http.ResponseWriter, r *http.Request) {
	records, err := a.ledger.KeyHolderShares(r.Context(), electionID(r))
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &SharesResponse{Records: records})
}

// finalizeTally stores the final counts.
// POST /elections/{eid}/tally
func (a *API) finalizeTally(w http.ResponseWriter, r *http.Request) {
	req := &TallyRequest{}
	if !decodeBody(w, r, req) {
		return
	}
	eid := electionID(r)
	if err := a.ledger.FinalizeTally(r.Context(), eid, req.Counts); err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &TallyResponse{ElectionID: eid, Counts: req.Counts})
}

// tally returns the final counts.
// GET /elections/{eid}/tally
func (a *API) tally(w http.ResponseWriter, r *http.Request) {
	eid := electionID(r)
	counts, err := a.ledger.Tally(r.Context(), eid)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &TallyResponse{ElectionID: eid, Counts: counts})
}

// excluded lists the ballots excluded from the tally.
// GET /elections/{eid}/audit
func (a *API) excluded(w http.ResponseWriter, r *http.Request) {
	rec, ok := a.ledger.(ledger.AuditRecorder)
	if !ok {
		ErrAuditLogNotSupported.Write(w)
		return
	}
	eid := electionID(r)
	entries, err := rec.Excluded(r.Context(), eid)
	if err != nil {
		apiError(err).Write(w)
		return
	}
	httpWriteJSON(w, &AuditResponse{ElectionID: eid, Entries: entries})
}
