package api

import (
	"github.com/stanbar/stellot-sub000/crypto/ecc/secp256k1"
	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/issuance"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/shares"
)

// DeployResponse is returned when a new election is deployed.
type DeployResponse struct {
	ElectionID ledger.ElectionID `json:"electionId"`
}

// CommitmentRequest carries a key-holder's constant-term commitment A_{i,0}
// signed with its roster key.
type CommitmentRequest struct {
	Commitment secp256k1.Point   `json:"commitment"`
	Signature  ed25519.Signature `json:"signature"`
}

// IssueAccountRequest registers a casting identity backed by distributor
// approvals.
type IssueAccountRequest struct {
	PKCast    ed25519.PublicKey   `json:"pkCast"`
	NfIssue   hash.Nullifier      `json:"nfIssue"`
	Approvals []issuance.Approval `json:"approvals"`
}

// CastResponse returns the ledger index given to an accepted ballot.
type CastResponse struct {
	Index uint64 `json:"index"`
}

// BallotsResponse lists the ballots of an election in ledger order.
type BallotsResponse struct {
	Ballots []*ledger.EncryptedBallot `json:"ballots"`
	Count   uint64                    `json:"count"`
}

// NullifierResponse reports whether a nullifier was consumed.
type NullifierResponse struct {
	Nullifier hash.Nullifier `json:"nullifier"`
	Used      bool           `json:"used"`
}

// PostShareResponse returns the slot assigned to a posted shares record.
type PostShareResponse struct {
	Slot uint32 `json:"slot"`
}

// SharesResponse lists the posted key-holder records ordered by index.
type SharesResponse struct {
	Records []*shares.Record `json:"records"`
}

// TallyRequest finalizes an election with the combined counts.
type TallyRequest struct {
	Counts []uint64 `json:"counts"`
}

// TallyResponse is the finalized result of an election.
type TallyResponse struct {
	ElectionID ledger.ElectionID `json:"electionId"`
	Counts     []uint64          `json:"counts"`
}

// AuditResponse lists the ballots excluded from the tally.
type AuditResponse struct {
	ElectionID ledger.ElectionID   `json:"electionId"`
	Entries    []ledger.AuditEntry `json:"entries"`
}
