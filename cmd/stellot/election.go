package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/stanbar/stellot-sub000/api"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/issuance"
	"github.com/stanbar/stellot-sub000/keyholder"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/log"
)

func newElectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "election",
		Short: "deploy and inspect elections",
	}
	cmd.AddCommand(newElectionDeployCmd(), newElectionShowCmd())
	return cmd
}

func newElectionDeployCmd() *cobra.Command {
	var (
		title         string
		options       uint64
		start         string
		duration      time.Duration
		pubKeyFile    string
		votersFile    string
		distributors  []string
		distThreshold int
	)
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "deploy an election; key-holders then publish their commitments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pub, err := keyholder.LoadPublicKeyFile(pubKeyFile)
			if err != nil {
				return err
			}
			voters, err := readVoters(votersFile)
			if err != nil {
				return err
			}
			startTime := time.Now().UTC()
			if start != "" {
				if startTime, err = time.Parse(time.RFC3339, start); err != nil {
					return fmt.Errorf("invalid --start: %w", err)
				}
			}
			params := &ledger.DeployParams{
				Title:                title,
				OptionsCount:         options,
				StartTime:            startTime,
				EndTime:              startTime.Add(duration),
				PublicKey:            pub.PublicKey,
				EligibilityRoot:      issuance.StaticRoot(voters...),
				DistributorThreshold: distThreshold,
				KeyHolders:           pub.Identities,
				KeyHolderThreshold:   pub.Threshold,
			}
			for _, d := range distributors {
				pk, err := ed25519.PublicKeyFromHex(d)
				if err != nil {
					return fmt.Errorf("invalid distributor key %q: %w", d, err)
				}
				params.Distributors = append(params.Distributors, pk)
			}
			if err := params.Validate(); err != nil {
				return err
			}

			cli := ledgerClient()
			eid, err := cli.Deploy(ctx, params)
			if err != nil {
				return err
			}
			log.Infow("election deployed", "eid", eid, "title", title, "start", startTime, "end", params.EndTime)
			return printJSON(cmd.OutOrStdout(), &api.DeployResponse{ElectionID: eid})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "election title")
	cmd.Flags().Uint64Var(&options, "options", 2, "number of ballot options")
	cmd.Flags().StringVar(&start, "start", "", "voting start, RFC 3339 (now if empty)")
	cmd.Flags().DurationVar(&duration, "duration", 24*time.Hour, "voting window length")
	cmd.Flags().StringVar(&pubKeyFile, "pubkey", keyholder.PublicKeyFileName, "ceremony public output")
	cmd.Flags().StringVar(&votersFile, "voters", "voters.txt", "eligibility list, one identity per line")
	cmd.Flags().StringSliceVar(&distributors, "distributors", nil, "hex distributor public keys, comma-separated")
	cmd.Flags().IntVar(&distThreshold, "distributor-threshold", 1, "approvals needed to issue a casting identity")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("distributors")
	return cmd
}

func newElectionShowCmd() *cobra.Command {
	var eid uint64
	cmd := &cobra.Command{
		Use:   "show",
		Short: "print the ledger state of an election",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := ledgerClient().Election(cmd.Context(), eid)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		},
	}
	cmd.Flags().Uint64Var(&eid, "election", 0, "election ID")
	_ = cmd.MarkFlagRequired("election")
	return cmd
}
