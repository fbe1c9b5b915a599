// Package client implements ledger.Ledger on top of the HTTP API served by
// package api. Transient failures (transport errors and 5xx replies) are
// retried with exponential backoff; API errors are mapped back to the
// ledger errors they were produced from, so errors.Is works across the
// wire.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stanbar/stellot-sub000/api"
	"github.com/stanbar/stellot-sub000/casting"
	"github.com/stanbar/stellot-sub000/config"
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/issuance"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/log"
	"github.com/stanbar/stellot-sub000/shares"
)

var (
	_ ledger.Ledger        = (*Client)(nil)
	_ ledger.AuditRecorder = (*Client)(nil)
)

// Error is an API error reply without a ledger counterpart.
type Error struct {
	Status  int
	Code    int
	Message string
	cause   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger API error %d (HTTP %d): %s", e.Code, e.Status, e.Message)
}

// Unwrap returns the ledger error identified by the reply code, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// Client talks to a remote ledger.
type Client struct {
	base        string
	http        *http.Client
	timeout     time.Duration
	retryBudget time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each single request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetryBudget bounds the total time spent retrying a request. Zero
// disables retries.
func WithRetryBudget(d time.Duration) Option {
	return func(c *Client) { c.retryBudget = d }
}

// New returns a client for the API served at baseURL, e.g.
// "http://127.0.0.1:9090".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:        strings.TrimRight(baseURL, "/"),
		http:        &http.Client{},
		timeout:     config.DefaultLedgerTimeout,
		retryBudget: config.DefaultLedgerRetryBudget,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// transientError marks a failure worth retrying.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// request sends a JSON request and decodes a JSON reply into out. Write
// requests are retried too: a retried Cast or IssueAccount whose first
// attempt reached the ledger fails with ErrDuplicateNullifier.
func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}
	attempt := 0
	op := func() error {
		attempt++
		err := c.do(ctx, method, path, payload, out)
		var te *transientError
		if err == nil || !errors.As(err, &te) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	var err error
	if c.retryBudget <= 0 {
		err = op()
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
	} else {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 50 * time.Millisecond
		b.MaxElapsedTime = c.retryBudget
		err = backoff.RetryNotify(op, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
			log.Debugw("retrying ledger request", "method", method, "path", path,
				"attempt", attempt, "wait", wait.String(), "error", err.Error())
		})
	}
	var te *transientError
	if errors.As(err, &te) {
		return te.err
	}
	return err
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, c.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &transientError{err: fmt.Errorf("%s %s: %w", method, path, err)}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warnw("failed to close response body", "error", err.Error())
		}
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &transientError{err: fmt.Errorf("%s %s: reading reply: %w", method, path, err)}
	}
	if resp.StatusCode != http.StatusOK {
		apiErr := decodeError(resp.StatusCode, data)
		if resp.StatusCode >= http.StatusInternalServerError && resp.StatusCode != http.StatusNotImplemented {
			return &transientError{err: apiErr}
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decoding reply: %w", method, path, err)
	}
	return nil
}

// decodeError turns an error reply into an error wrapping the matching
// ledger error.
func decodeError(status int, body []byte) error {
	reply := &api.ErrorResponse{}
	if err := json.Unmarshal(body, reply); err != nil || reply.Code == 0 {
		return &Error{Status: status, Message: strings.TrimSpace(string(body))}
	}
	return &Error{Status: status, Code: reply.Code, Message: reply.Error, cause: api.CauseForCode(reply.Code)}
}

// Ping checks the API is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.request(ctx, http.MethodGet, api.PingEndpoint, nil, nil)
}

func (c *Client) Deploy(ctx context.Context, params *ledger.DeployParams) (ledger.ElectionID, error) {
	resp := &api.DeployResponse{}
	if err := c.request(ctx, http.MethodPost, api.ElectionsEndpoint, params, resp); err != nil {
		return 0, err
	}
	return resp.ElectionID, nil
}

func (c *Client) Election(ctx context.Context, eid ledger.ElectionID) (*ledger.Election, error) {
	e := &ledger.Election{}
	if err := c.request(ctx, http.MethodGet, api.ElectionPath(api.ElectionEndpoint, eid), nil, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (c *Client) SetKeyHolderCommitment(ctx context.Context, eid ledger.ElectionID, index uint32,
	commitment secp256k1.Point, sig ed25519.Signature,
) error {
	path := api.ElectionPath(api.CommitmentEndpoint, eid, api.KeyHolderURLParam, fmt.Sprint(index))
	return c.request(ctx, http.MethodPost, path, &api.CommitmentRequest{Commitment: commitment, Signature: sig}, nil)
}

func (c *Client) IssueAccount(ctx context.Context, eid ledger.ElectionID, pkCast ed25519.PublicKey,
	nfIssue hash.Nullifier, approvals []issuance.Approval,
) error {
	req := &api.IssueAccountRequest{PKCast: pkCast, NfIssue: nfIssue, Approvals: approvals}
	return c.request(ctx, http.MethodPost, api.ElectionPath(api.AccountsEndpoint, eid), req, nil)
}

func (c *Client) Cast(ctx context.Context, eid ledger.ElectionID, req *casting.CastRequest) (uint64, error) {
	resp := &api.CastResponse{}
	if err := c.request(ctx, http.MethodPost, api.ElectionPath(api.BallotsEndpoint, eid), req, resp); err != nil {
		return 0, err
	}
	return resp.Index, nil
}

func (c *Client) Ballot(ctx context.Context, eid ledger.ElectionID, index uint64) (*ledger.EncryptedBallot, error) {
	b := &ledger.EncryptedBallot{}
	path := api.ElectionPath(api.BallotEndpoint, eid, api.BallotURLParam, fmt.Sprint(index))
	if err := c.request(ctx, http.MethodGet, path, nil, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (c *Client) ballots(ctx context.Context, eid ledger.ElectionID) (*api.BallotsResponse, error) {
	resp := &api.BallotsResponse{}
	if err := c.request(ctx, http.MethodGet, api.ElectionPath(api.BallotsEndpoint, eid), nil, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Ballots(ctx context.Context, eid ledger.ElectionID) ([]*ledger.EncryptedBallot, error) {
	resp, err := c.ballots(ctx, eid)
	if err != nil {
		return nil, err
	}
	return resp.Ballots, nil
}

func (c *Client) BallotCount(ctx context.Context, eid ledger.ElectionID) (uint64, error) {
	resp, err := c.ballots(ctx, eid)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

func (c *Client) IsCastNullifierUsed(ctx context.Context, eid ledger.ElectionID, nf hash.Nullifier) (bool, error) {
	return c.nullifier(ctx, api.CastNullifierEndpoint, eid, nf)
}

func (c *Client) IsIssueNullifierUsed(ctx context.Context, eid ledger.ElectionID, nf hash.Nullifier) (bool, error) {
	return c.nullifier(ctx, api.IssueNullifierEndpoint, eid, nf)
}

func (c *Client) nullifier(ctx context.Context, endpoint string, eid ledger.ElectionID, nf hash.Nullifier) (bool, error) {
	resp := &api.NullifierResponse{}
	path := api.ElectionPath(endpoint, eid, api.NullifierURLParam, nf.Hex())
	if err := c.request(ctx, http.MethodGet, path, nil, resp); err != nil {
		return false, err
	}
	return resp.Used, nil
}

func (c *Client) PostShare(ctx context.Context, eid ledger.ElectionID, record *shares.Record) (uint32, error) {
	resp := &api.PostShareResponse{}
	if err := c.request(ctx, http.MethodPost, api.ElectionPath(api.SharesEndpoint, eid), record, resp); err != nil {
		return 0, err
	}
	return resp.Slot, nil
}

func (c *Client) KeyHolderShares(ctx context.Context, eid ledger.ElectionID) ([]*shares.Record, error) {
	resp := &api.SharesResponse{}
	if err := c.request(ctx, http.MethodGet, api.ElectionPath(api.SharesEndpoint, eid), nil, resp); err != nil {
		return nil, err
	}
	return resp.Records, nil
}

func (c *Client) FinalizeTally(ctx context.Context, eid ledger.ElectionID, counts []uint64) error {
	return c.request(ctx, http.MethodPost, api.ElectionPath(api.TallyEndpoint, eid), &api.TallyRequest{Counts: counts}, nil)
}

func (c *Client) Tally(ctx context.Context, eid ledger.ElectionID) ([]uint64, error) {
	resp := &api.TallyResponse{}
	if err := c.request(ctx, http.MethodGet, api.ElectionPath(api.TallyEndpoint, eid), nil, resp); err != nil {
		return nil, err
	}
	return resp.Counts, nil
}

func (c *Client) Excluded(ctx context.Context, eid ledger.ElectionID) ([]ledger.AuditEntry, error) {
	resp := &api.AuditResponse{}
	if err := c.request(ctx, http.MethodGet, api.ElectionPath(api.AuditEndpoint, eid), nil, resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}
