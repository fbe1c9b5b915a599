package api

import (
	"fmt"
	"net/url"
	"strings"
)

// Route constants for the API endpoints

const (
	// Health endpoints
	PingEndpoint = "/ping" // Health check endpoint

	// URL parameters
	ElectionURLParam  = "eid"   // URL parameter for election ID
	KeyHolderURLParam = "idx"   // URL parameter for key-holder index
	BallotURLParam    = "index" // URL parameter for ballot index
	NullifierURLParam = "nf"    // URL parameter for hex nullifiers

	// Election endpoints
	ElectionsEndpoint  = "/elections"                                                            // POST: Deploy election
	ElectionEndpoint   = ElectionsEndpoint + "/{" + ElectionURLParam + "}"                       // GET: Election state
	CommitmentEndpoint = ElectionEndpoint + "/keyholders/{" + KeyHolderURLParam + "}/commitment" // POST: Publish key-holder commitment

	// Issuance and casting endpoints
	AccountsEndpoint       = ElectionEndpoint + "/accounts"                                   // POST: Issue casting account
	BallotsEndpoint        = ElectionEndpoint + "/ballots"                                    // GET: List ballots, POST: Cast
	BallotEndpoint         = BallotsEndpoint + "/{" + BallotURLParam + "}"                    // GET: Ballot by index
	CastNullifierEndpoint  = ElectionEndpoint + "/nullifiers/cast/{" + NullifierURLParam + "}"  // GET: Cast nullifier status
	IssueNullifierEndpoint = ElectionEndpoint + "/nullifiers/issue/{" + NullifierURLParam + "}" // GET: Issue nullifier status

	// Tally endpoints
	SharesEndpoint = ElectionEndpoint + "/shares" // GET: List share records, POST: Post shares
	TallyEndpoint  = ElectionEndpoint + "/tally"  // GET: Final counts, POST: Finalize
	AuditEndpoint  = ElectionEndpoint + "/audit"  // GET: Ballots excluded by the tally
)

// EndpointWithParam creates an endpoint URL by replacing the parameter
// placeholder with the actual value. Used to build fully qualified
// endpoint URLs.
func EndpointWithParam(path, key, param string) string {
	rawKey := fmt.Sprintf("{%s}", key)

	// Always try to replace the placeholder, even if it's after the '?'
	if strings.Contains(path, rawKey) {
		return strings.Replace(path, rawKey, url.PathEscape(param), 1)
	}

	// Fallback: add as query param
	escapedKey := url.QueryEscape(key)
	escapedVal := url.QueryEscape(param)

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return fmt.Sprintf("%s%s%s=%s", path, sep, escapedKey, escapedVal)
}

// ElectionPath fills the election ID, and optionally more parameters given
// as key, value pairs, into path.
func ElectionPath(path string, eid uint64, params ...string) string {
	out := EndpointWithParam(path, ElectionURLParam, fmt.Sprint(eid))
	for i := 0; i+1 < len(params); i += 2 {
		out = EndpointWithParam(out, params[i], params[i+1])
	}
	return out
}

// LogExcludedPrefixes defines URL prefixes to exclude from request logging
var LogExcludedPrefixes = []string{
	PingEndpoint,
}
