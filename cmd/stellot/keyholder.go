package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/stanbar/stellot-sub000/keyholder"
	"github.com/stanbar/stellot-sub000/ledger"
	"github.com/stanbar/stellot-sub000/log"
	"github.com/stanbar/stellot-sub000/tally"
)

// proofsFile carries a key-holder's partial decryption proofs for audits.
type proofsFile struct {
	Index  uint32                 `json:"index"`
	Proofs []keyholder.AuditProof `json:"proofs"`
}

func newKeyHolderCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keyholder",
		Short: "key-holder operations",
	}
	cmd.AddCommand(
		newKeyHolderCommitCmd(),
		newKeyHolderPostCmd(),
		newKeyHolderFinalizeCmd(),
		newKeyHolderAuditCmd(),
	)
	return cmd
}

func newKeyHolderCommitCmd() *cobra.Command {
	var (
		credPath string
		eid      uint64
	)
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "publish the key-holder commitment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cred, err := keyholder.LoadCredential(credPath)
			if err != nil {
				return err
			}
			return keyholder.New(cred).PublishCommitment(cmd.Context(), ledgerClient(), eid)
		},
	}
	cmd.Flags().StringVar(&credPath, "credential", "", "credential file")
	cmd.Flags().Uint64Var(&eid, "election", 0, "election ID")
	_ = cmd.MarkFlagRequired("credential")
	_ = cmd.MarkFlagRequired("election")
	return cmd
}

func newKeyHolderPostCmd() *cobra.Command {
	var (
		credPath  string
		eid       uint64
		proofsOut string
	)
	cmd := &cobra.Command{
		Use:   "post",
		Short: "post signed decryption shares for every ballot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cred, err := keyholder.LoadCredential(credPath)
			if err != nil {
				return err
			}
			sub, err := keyholder.New(cred).Post(cmd.Context(), ledgerClient(), eid)
			if err != nil {
				return err
			}
			if proofsOut != "" {
				return writeJSON(proofsOut, &proofsFile{Index: cred.Index, Proofs: sub.Proofs}, 0o644)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&credPath, "credential", "", "credential file")
	cmd.Flags().Uint64Var(&eid, "election", 0, "election ID")
	cmd.Flags().StringVar(&proofsOut, "proofs-out", "", "write the decryption proofs to this file")
	_ = cmd.MarkFlagRequired("credential")
	_ = cmd.MarkFlagRequired("election")
	return cmd
}

func newKeyHolderFinalizeCmd() *cobra.Command {
	var (
		credDir string
		eid     uint64
	)
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "combine the posted shares and publish the tally",
		Long: `Combines the shares on the ledger and finalizes the tally. When
--credentials-dir is set, every credential found there posts its shares
first; key-holders that already posted are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cli := ledgerClient()
			if credDir != "" {
				paths, err := filepath.Glob(filepath.Join(credDir, "keyholder_*.json"))
				if err != nil {
					return err
				}
				for _, path := range paths {
					cred, err := keyholder.LoadCredential(path)
					if err != nil {
						return err
					}
					_, err = keyholder.New(cred).Post(ctx, cli, eid)
					if errors.Is(err, ledger.ErrDuplicateShares) {
						log.Infow("shares already posted", "eid", eid, "keyHolder", cred.Index)
						continue
					}
					if err != nil {
						return fmt.Errorf("key-holder %d: %w", cred.Index, err)
					}
				}
			}
			res, err := tally.New().Finalize(ctx, cli, eid)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&credDir, "credentials-dir", "", "post shares for the credentials in this directory first")
	cmd.Flags().Uint64Var(&eid, "election", 0, "election ID")
	_ = cmd.MarkFlagRequired("election")
	return cmd
}

func newKeyHolderAuditCmd() *cobra.Command {
	var (
		eid        uint64
		pubKeyFile string
		proofFiles []string
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "verify posted shares against their decryption proofs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pub, err := keyholder.LoadPublicKeyFile(pubKeyFile)
			if err != nil {
				return err
			}
			proofs := make(map[uint32][]keyholder.AuditProof, len(proofFiles))
			for _, path := range proofFiles {
				var f proofsFile
				if err := readJSON(path, &f); err != nil {
					return err
				}
				proofs[f.Index] = f.Proofs
			}
			cli := ledgerClient()
			e, err := cli.Election(ctx, eid)
			if err != nil {
				return err
			}
			records, err := cli.KeyHolderShares(ctx, eid)
			if err != nil {
				return err
			}
			if err := tally.Audit(e, pub.CommitmentSets(), records, proofs); err != nil {
				return err
			}
			log.Infow("shares audit passed", "eid", eid, "records", len(records))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&eid, "election", 0, "election ID")
	cmd.Flags().StringVar(&pubKeyFile, "pubkey", keyholder.PublicKeyFileName, "ceremony public output")
	cmd.Flags().StringSliceVar(&proofFiles, "proofs", nil, "proof files written by keyholder post, comma-separated")
	_ = cmd.MarkFlagRequired("election")
	return cmd
}
