package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/stanbar/stellot-sub000/api"
	"github.com/stanbar/stellot-sub000/casting"
	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/issuance"
	"github.com/stanbar/stellot-sub000/log"
	"github.com/stanbar/stellot-sub000/types"
)

// voterFile is a voter's private state for one election.
type voterFile struct {
	ElectionID     uint64            `json:"election"`
	Secret         types.HexBytes    `json:"secret"`
	CastSK         string            `json:"cast_sk"`
	CastPK         ed25519.PublicKey `json:"cast_pk"`
	IssueNullifier hash.Nullifier    `json:"issue_nullifier"`
}

func (f *voterFile) load() (*issuance.Voter, *casting.CastingIdentity, error) {
	voter, err := issuance.NewVoter(f.Secret)
	if err != nil {
		return nil, nil, err
	}
	ci, err := casting.CastingIdentityFromHex(f.CastSK)
	if err != nil {
		return nil, nil, err
	}
	if ci.PublicKey() != f.CastPK {
		return nil, nil, fmt.Errorf("cast_pk does not match cast_sk")
	}
	return voter, ci, nil
}

func loadVoterFile(path string) (*voterFile, *issuance.Voter, *casting.CastingIdentity, error) {
	f := &voterFile{}
	if err := readJSON(path, f); err != nil {
		return nil, nil, nil, err
	}
	voter, ci, err := f.load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, voter, ci, nil
}

func newVoterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voter",
		Short: "voter operations",
	}
	cmd.AddCommand(newVoterInitCmd(), newVoterIssueCmd(), newVoterCastCmd())
	return cmd
}

func newVoterInitCmd() *cobra.Command {
	var (
		eid uint64
		out string
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "create a voter secret and a fresh casting identity",
		Long: `Writes the voter state to --out and prints the casting public key and
issue nullifier to hand to the distributors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			voter, err := issuance.GenerateVoter()
			if err != nil {
				return err
			}
			ci, err := voter.NewCastingIdentity()
			if err != nil {
				return err
			}
			f := &voterFile{
				ElectionID:     eid,
				Secret:         voter.Secret(),
				CastSK:         ci.Hex(),
				CastPK:         ci.PublicKey(),
				IssueNullifier: voter.IssueNullifier(eid),
			}
			if err := writeJSON(out, f, 0o600); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"cast_pubkey":     f.CastPK,
				"issue_nullifier": f.IssueNullifier,
			})
		},
	}
	cmd.Flags().Uint64Var(&eid, "election", 0, "election ID")
	cmd.Flags().StringVar(&out, "out", "voter.json", "voter file to write")
	_ = cmd.MarkFlagRequired("election")
	return cmd
}

func newVoterIssueCmd() *cobra.Command {
	var (
		voterPath string
		approvals []string
	)
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "register the casting identity with distributor approvals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, voter, ci, err := loadVoterFile(voterPath)
			if err != nil {
				return err
			}
			list := make([]issuance.Approval, len(approvals))
			for i, path := range approvals {
				if err := readJSON(path, &list[i]); err != nil {
					return err
				}
			}
			nf := voter.IssueNullifier(f.ElectionID)
			if err := ledgerClient().IssueAccount(cmd.Context(), f.ElectionID, ci.PublicKey(), nf, list); err != nil {
				return err
			}
			log.Infow("casting identity issued", "eid", f.ElectionID, "pkCast", ci.PublicKey().Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&voterPath, "voter", "voter.json", "voter file")
	cmd.Flags().StringSliceVar(&approvals, "approvals", nil, "approval files, comma-separated")
	_ = cmd.MarkFlagRequired("approvals")
	return cmd
}

func newVoterCastCmd() *cobra.Command {
	var (
		voterPath string
		option    uint64
	)
	cmd := &cobra.Command{
		Use:   "cast",
		Short: "encrypt and cast a ballot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, _, ci, err := loadVoterFile(voterPath)
			if err != nil {
				return err
			}
			cli := ledgerClient()
			e, err := cli.Election(ctx, f.ElectionID)
			if err != nil {
				return err
			}
			req, err := ci.Cast(e.ID, option, e.PublicKey, e.OptionsCount)
			if err != nil {
				return err
			}
			idx, err := cli.Cast(ctx, e.ID, req)
			if err != nil {
				return err
			}
			log.Infow("ballot cast", "eid", e.ID, "ballot", idx)
			return printJSON(cmd.OutOrStdout(), &api.CastResponse{Index: idx})
		},
	}
	cmd.Flags().StringVar(&voterPath, "voter", "voter.json", "voter file")
	cmd.Flags().Uint64Var(&option, "option", 0, "chosen option, 0-based")
	return cmd
}
