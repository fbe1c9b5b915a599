// Package config holds the protocol limits and operational defaults shared by
// the ledger, the key-holders and the tally combiner.
package config

import "time"

const (
	// ProtocolVersion is bumped whenever a domain tag or a wire format changes.
	ProtocolVersion = 1

	// MaxOptionsCount bounds the brute-force discrete logarithm performed when
	// decoding a tallied ballot. Elections with more options are rejected at
	// deploy time.
	MaxOptionsCount = 1 << 16

	// MaxKeyHolders is the largest DKG ceremony accepted (m).
	MaxKeyHolders = 64

	// MaxDistributors bounds the distributor roster of an election.
	MaxDistributors = 64

	// MaxSharesPerRecord bounds the number of (C1, D) pairs a key-holder may
	// post in a single record.
	MaxSharesPerRecord = 1 << 20
)

const (
	// DefaultIssuanceSessionTTL is how long a distributor keeps an issuance
	// session alive waiting for the voter to consume it.
	DefaultIssuanceSessionTTL = 10 * time.Minute

	// DefaultIssuanceSessions is the maximum number of live issuance sessions.
	DefaultIssuanceSessions = 100_000

	// DefaultElectionCacheSize is the number of elections kept decoded in memory.
	DefaultElectionCacheSize = 256

	// DefaultLedgerTimeout applies to every single request to a remote ledger.
	DefaultLedgerTimeout = 30 * time.Second

	// DefaultLedgerRetryBudget is the total time spent retrying a transient
	// ledger failure before giving up.
	DefaultLedgerRetryBudget = 2 * time.Minute

	// DefaultCeremonyTimeout bounds a simulated DKG ceremony.
	DefaultCeremonyTimeout = time.Minute
)
