package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stanbar/stellot-sub000/crypto/hash"
	"github.com/stanbar/stellot-sub000/crypto/signatures/ed25519"
	"github.com/stanbar/stellot-sub000/issuance"
	"github.com/stanbar/stellot-sub000/log"
)

// distributorFile is the on-disk distributor signing key.
type distributorFile struct {
	SK string            `json:"sk"`
	PK ed25519.PublicKey `json:"pk"`
}

func loadDistributorKey(path string) (*ed25519.PrivateKey, error) {
	var f distributorFile
	if err := readJSON(path, &f); err != nil {
		return nil, err
	}
	key, err := ed25519.PrivateKeyFromHex(f.SK)
	if err != nil {
		return nil, err
	}
	if key.Public() != f.PK {
		return nil, fmt.Errorf("%s: pk does not match sk", path)
	}
	return key, nil
}

// readVoters reads an eligibility list, one identity per line. Blank lines
// and lines starting with # are skipped.
func readVoters(path string) ([]string, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fd.Close()
	var ids []string
	sc := bufio.NewScanner(fd)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids = append(ids, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%s: empty eligibility list", path)
	}
	return ids, nil
}

func newDistributorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distributor",
		Short: "issuance distributor operations",
	}
	cmd.AddCommand(newDistributorKeygenCmd(), newDistributorApproveCmd())
	return cmd
}

func newDistributorKeygenCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "generate a distributor signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := ed25519.GenerateKey()
			if err != nil {
				return err
			}
			if err := writeJSON(out, &distributorFile{SK: key.Hex(), PK: key.Public()}, 0o600); err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"pk": key.Public()})
		},
	}
	cmd.Flags().StringVar(&out, "out", "distributor.json", "key file to write")
	return cmd
}

func newDistributorApproveCmd() *cobra.Command {
	var (
		keyFile    string
		votersFile string
		eid        uint64
		identity   string
		castPubKey string
		issueNf    string
		out        string
	)
	cmd := &cobra.Command{
		Use:   "approve",
		Short: "approve a casting identity for an eligible voter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			key, err := loadDistributorKey(keyFile)
			if err != nil {
				return err
			}
			voters, err := readVoters(votersFile)
			if err != nil {
				return err
			}
			pkCast, err := ed25519.PublicKeyFromHex(castPubKey)
			if err != nil {
				return fmt.Errorf("invalid --cast-pubkey: %w", err)
			}
			nf, err := hash.NullifierFromHex(issueNf)
			if err != nil {
				return fmt.Errorf("invalid --issue-nullifier: %w", err)
			}
			cli := ledgerClient()
			e, err := cli.Election(ctx, eid)
			if err != nil {
				return err
			}
			d := &issuance.Distributor{
				Key:        key,
				Oracle:     issuance.NewStaticOracle(voters...),
				Sessions:   issuance.NewSessionStore(0, 0),
				Nullifiers: cli,
			}
			proof := issuance.EligibilityProof{IdentityID: identity}
			session, err := d.Begin(ctx, eid, e.EligibilityRoot, proof)
			if err != nil {
				return err
			}
			approval, err := d.Approve(ctx, e.EligibilityRoot, &issuance.ApprovalRequest{
				ElectionID: eid,
				SessionID:  session,
				PKCast:     pkCast,
				NfIssue:    nf,
				Proof:      proof,
			})
			if err != nil {
				return err
			}
			log.Infow("casting identity approved", "eid", eid, "pkCast", pkCast.Hex())
			if out == "" {
				return printJSON(cmd.OutOrStdout(), approval)
			}
			return writeJSON(out, approval, 0o644)
		},
	}
	cmd.Flags().StringVar(&keyFile, "key", "distributor.json", "distributor key file")
	cmd.Flags().StringVar(&votersFile, "voters", "voters.txt", "eligibility list, one identity per line")
	cmd.Flags().Uint64Var(&eid, "election", 0, "election ID")
	cmd.Flags().StringVar(&identity, "identity", "", "voter identity to check")
	cmd.Flags().StringVar(&castPubKey, "cast-pubkey", "", "hex casting public key")
	cmd.Flags().StringVar(&issueNf, "issue-nullifier", "", "hex issue nullifier")
	cmd.Flags().StringVar(&out, "out", "", "approval file to write (stdout if empty)")
	for _, f := range []string{"election", "identity", "cast-pubkey", "issue-nullifier"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}
