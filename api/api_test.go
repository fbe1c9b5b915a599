package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/stanbar/stellot-sub000/api"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/internal/testutil"
	"github.com/stanbar/stellot-sub000/ledger"
)

type testServer struct {
	*testutil.Fixture
	url string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	f := testutil.NewFixture(t, testutil.Options{KeyHolders: 3, Threshold: 2, OptionsCount: 3})
	a, err := api.New(&api.APIConfig{Host: "127.0.0.1", Port: 0, Ledger: f.Ledger})
	qt.Assert(t, err, qt.IsNil)
	srv := httptest.NewServer(a.Router())
	t.Cleanup(srv.Close)
	return &testServer{Fixture: f, url: srv.URL}
}

func (s *testServer) do(t *testing.T, method, path string, body, out any) (int, *api.ErrorResponse) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		qt.Assert(t, err, qt.IsNil)
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.url+path, rd)
	qt.Assert(t, err, qt.IsNil)
	resp, err := http.DefaultClient.Do(req)
	qt.Assert(t, err, qt.IsNil)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	qt.Assert(t, err, qt.IsNil)
	if resp.StatusCode != http.StatusOK {
		apiErr := &api.ErrorResponse{}
		qt.Assert(t, json.Unmarshal(data, apiErr), qt.IsNil, qt.Commentf("body: %s", data))
		return resp.StatusCode, apiErr
	}
	if out != nil {
		qt.Assert(t, json.Unmarshal(data, out), qt.IsNil)
	}
	return resp.StatusCode, nil
}

func TestPing(t *testing.T) {
	s := newTestServer(t)
	status, _ := s.do(t, http.MethodGet, api.PingEndpoint, nil, nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
}

func TestElectionEndpoints(t *testing.T) {
	c := qt.New(t)
	s := newTestServer(t)

	e := &ledger.Election{}
	status, _ := s.do(t, http.MethodGet, api.ElectionPath(api.ElectionEndpoint, s.EID), nil, e)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(e.ID, qt.Equals, s.EID)
	c.Assert(e.PublicKey.Equal(s.Ceremony.PublicKey), qt.IsTrue)
	c.Assert(e.KeyHolderCommitments, qt.HasLen, 3)

	c.Run("deploy", func(c *qt.C) {
		resp := &api.DeployResponse{}
		status, _ := s.do(t, http.MethodPost, api.ElectionsEndpoint, s.Params, resp)
		c.Assert(status, qt.Equals, http.StatusOK)
		c.Assert(resp.ElectionID, qt.Equals, s.EID+1)

		bad := *s.Params
		bad.OptionsCount = 0
		status, apiErr := s.do(t, http.MethodPost, api.ElectionsEndpoint, &bad, nil)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(apiErr.Code, qt.Equals, api.ErrInvalidElectionParams.Code)
	})

	c.Run("commitment already set", func(c *qt.C) {
		other := s.Ceremony.Shares[1].Commitment
		sig := ledger.SignCommitment(s.EID, 1, other, s.Ceremony.Identities[0])
		path := api.ElectionPath(api.CommitmentEndpoint, s.EID, api.KeyHolderURLParam, "1")
		status, apiErr := s.do(t, http.MethodPost, path, &api.CommitmentRequest{Commitment: other, Signature: sig}, nil)
		c.Assert(status, qt.Equals, http.StatusConflict)
		c.Assert(apiErr.Code, qt.Equals, api.ErrCommitmentAlreadySet.Code)
	})

	c.Run("commitment signed by the roster key", func(c *qt.C) {
		resp := &api.DeployResponse{}
		status, _ := s.do(t, http.MethodPost, api.ElectionsEndpoint, s.Params, resp)
		c.Assert(status, qt.Equals, http.StatusOK)
		eid := resp.ElectionID
		share := s.Ceremony.Shares[0]
		path := api.ElectionPath(api.CommitmentEndpoint, eid, api.KeyHolderURLParam, "1")

		// unsigned, signed by key-holder 2 and signed for another election
		for _, sig := range []ed25519.Signature{
			{},
			ledger.SignCommitment(eid, 1, share.Commitment, s.Ceremony.Identities[1]),
			ledger.SignCommitment(s.EID, 1, share.Commitment, s.Ceremony.Identities[0]),
		} {
			status, apiErr := s.do(t, http.MethodPost, path, &api.CommitmentRequest{Commitment: share.Commitment, Signature: sig}, nil)
			c.Assert(status, qt.Equals, http.StatusBadRequest)
			c.Assert(apiErr.Code, qt.Equals, api.ErrInvalidSignature.Code)
		}
		e := &ledger.Election{}
		status, _ = s.do(t, http.MethodGet, api.ElectionPath(api.ElectionEndpoint, eid), nil, e)
		c.Assert(status, qt.Equals, http.StatusOK)
		c.Assert(e.KeyHolderCommitments, qt.HasLen, 0)

		sig := ledger.SignCommitment(eid, 1, share.Commitment, s.Ceremony.Identities[0])
		status, _ = s.do(t, http.MethodPost, path, &api.CommitmentRequest{Commitment: share.Commitment, Signature: sig}, nil)
		c.Assert(status, qt.Equals, http.StatusOK)
		status, _ = s.do(t, http.MethodGet, api.ElectionPath(api.ElectionEndpoint, eid), nil, e)
		c.Assert(status, qt.Equals, http.StatusOK)
		c.Assert(e.KeyHolderCommitments, qt.HasLen, 1)
	})

	c.Run("malformed election id", func(c *qt.C) {
		status, apiErr := s.do(t, http.MethodGet, "/elections/abc", nil, nil)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(apiErr.Code, qt.Equals, api.ErrMalformedElectionID.Code)
	})

	c.Run("unknown election", func(c *qt.C) {
		status, apiErr := s.do(t, http.MethodGet, api.ElectionPath(api.ElectionEndpoint, 999), nil, nil)
		c.Assert(status, qt.Equals, http.StatusNotFound)
		c.Assert(apiErr.Code, qt.Equals, api.ErrElectionNotFound.Code)
	})

	c.Run("malformed body", func(c *qt.C) {
		status, apiErr := s.do(t, http.MethodPost, api.ElectionsEndpoint, "not an object", nil)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(apiErr.Code, qt.Equals, api.ErrMalformedBody.Code)
	})
}

func TestCastEndpoints(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()
	s := newTestServer(t)

	_, ci, err := s.Issue(ctx, "voter-001")
	c.Assert(err, qt.IsNil)
	req, err := ci.Cast(s.EID, 2, s.Params.PublicKey, s.Params.OptionsCount)
	c.Assert(err, qt.IsNil)

	resp := &api.CastResponse{}
	status, _ := s.do(t, http.MethodPost, api.ElectionPath(api.BallotsEndpoint, s.EID), req, resp)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(resp.Index, qt.Equals, uint64(0))

	status, apiErr := s.do(t, http.MethodPost, api.ElectionPath(api.BallotsEndpoint, s.EID), req, nil)
	c.Assert(status, qt.Equals, http.StatusConflict)
	c.Assert(apiErr.Code, qt.Equals, api.ErrDuplicateNullifier.Code)

	b := &ledger.EncryptedBallot{}
	status, _ = s.do(t, http.MethodGet, api.ElectionPath(api.BallotEndpoint, s.EID, api.BallotURLParam, "0"), nil, b)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(b.NfCast, qt.Equals, req.NfCast)
	c.Assert(b.C1.Equal(req.C1), qt.IsTrue)

	status, apiErr = s.do(t, http.MethodGet, api.ElectionPath(api.BallotEndpoint, s.EID, api.BallotURLParam, "7"), nil, nil)
	c.Assert(status, qt.Equals, http.StatusNotFound)
	c.Assert(apiErr.Code, qt.Equals, api.ErrBallotNotFound.Code)

	list := &api.BallotsResponse{}
	status, _ = s.do(t, http.MethodGet, api.ElectionPath(api.BallotsEndpoint, s.EID), nil, list)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(list.Count, qt.Equals, uint64(1))

	nfResp := &api.NullifierResponse{}
	path := api.ElectionPath(api.CastNullifierEndpoint, s.EID, api.NullifierURLParam, req.NfCast.Hex())
	status, _ = s.do(t, http.MethodGet, path, nil, nfResp)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(nfResp.Used, qt.IsTrue)

	status, apiErr = s.do(t, http.MethodGet,
		api.ElectionPath(api.CastNullifierEndpoint, s.EID, api.NullifierURLParam, "zz"), nil, nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, api.ErrMalformedNullifier.Code)

	// signed for another election
	_, stranger, err := s.Issue(ctx, "voter-002")
	c.Assert(err, qt.IsNil)
	forged, err := stranger.Cast(s.EID+1, 0, s.Params.PublicKey, s.Params.OptionsCount)
	c.Assert(err, qt.IsNil)
	status, apiErr = s.do(t, http.MethodPost, api.ElectionPath(api.BallotsEndpoint, s.EID), forged, nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, api.ErrInvalidSignature.Code)

	s.CloseVoting()
	req2, err := stranger.Cast(s.EID, 0, s.Params.PublicKey, s.Params.OptionsCount)
	c.Assert(err, qt.IsNil)
	status, apiErr = s.do(t, http.MethodPost, api.ElectionPath(api.BallotsEndpoint, s.EID), req2, nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, api.ErrVotingClosed.Code)
}

func TestTallyEndpoints(t *testing.T) {
	c := qt.New(t)
	s := newTestServer(t)

	status, apiErr := s.do(t, http.MethodGet, api.ElectionPath(api.TallyEndpoint, s.EID), nil, nil)
	c.Assert(status, qt.Equals, http.StatusNotFound)
	c.Assert(apiErr.Code, qt.Equals, api.ErrNotTallied.Code)

	status, apiErr = s.do(t, http.MethodPost, api.ElectionPath(api.TallyEndpoint, s.EID),
		&api.TallyRequest{Counts: []uint64{0, 0, 0}}, nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, api.ErrVotingNotClosed.Code)

	s.CloseVoting()
	status, apiErr = s.do(t, http.MethodPost, api.ElectionPath(api.TallyEndpoint, s.EID),
		&api.TallyRequest{Counts: []uint64{1, 0, 0}}, nil)
	c.Assert(status, qt.Equals, http.StatusBadRequest)
	c.Assert(apiErr.Code, qt.Equals, api.ErrInvalidTally.Code)

	audit := &api.AuditResponse{}
	status, _ = s.do(t, http.MethodGet, api.ElectionPath(api.AuditEndpoint, s.EID), nil, audit)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(audit.Entries, qt.HasLen, 0)

	tally := &api.TallyResponse{}
	status, _ = s.do(t, http.MethodPost, api.ElectionPath(api.TallyEndpoint, s.EID),
		&api.TallyRequest{Counts: []uint64{0, 0, 0}}, tally)
	c.Assert(status, qt.Equals, http.StatusOK)
	status, _ = s.do(t, http.MethodGet, api.ElectionPath(api.TallyEndpoint, s.EID), nil, tally)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(tally.Counts, qt.DeepEquals, []uint64{0, 0, 0})

	shares := &api.SharesResponse{}
	status, _ = s.do(t, http.MethodGet, api.ElectionPath(api.SharesEndpoint, s.EID), nil, shares)
	c.Assert(status, qt.Equals, http.StatusOK)
	c.Assert(shares.Records, qt.HasLen, 0)

	status, apiErr = s.do(t, http.MethodGet, fmt.Sprintf("/elections/%d/unknown", s.EID), nil, nil)
	c.Assert(status, qt.Equals, http.StatusNotFound)
	c.Assert(apiErr.Code, qt.Equals, api.ErrResourceNotFound.Code)
}
