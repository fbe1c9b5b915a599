package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/stanbar/stellot-sub000/crypto/elgamal/dkg"
	"github.com/stanbar/stellot-sub000/keyholder"
	"github.com/stanbar/stellot-sub000/log"
)

func newDKGCmd() *cobra.Command {
	var (
		parties   int
		threshold int
		outdir    string
	)
	cmd := &cobra.Command{
		Use:   "dkg",
		Short: "run a simulated t-of-m key generation ceremony",
		Long: `Runs a Feldman VSS ceremony in process and writes one keyholder_<i>.json
credential per key-holder plus the public combined_pubkey.json to --outdir.
Credential files hold secrets and must be handed to their owners privately.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := dkg.RunCeremony(cmd.Context(), parties, threshold)
			if err != nil {
				return err
			}
			for i, share := range res.Shares {
				path := filepath.Join(outdir, keyholder.FileName(share.Index))
				if err := keyholder.NewCredential(share, res.Identities[i]).Save(path); err != nil {
					return fmt.Errorf("save credential %d: %w", share.Index, err)
				}
			}
			pub := keyholder.NewPublicKeyFile(res)
			path := filepath.Join(outdir, keyholder.PublicKeyFileName)
			if err := pub.Save(path); err != nil {
				return err
			}
			log.Infow("ceremony output written", "dir", outdir, "publicKey", res.PublicKey.Hex())
			return printJSON(cmd.OutOrStdout(), pub)
		},
	}
	cmd.Flags().IntVar(&parties, "parties", 3, "number of key-holders (m)")
	cmd.Flags().IntVar(&threshold, "threshold", 2, "key-holders needed to decrypt (t)")
	cmd.Flags().StringVar(&outdir, "outdir", ".", "output directory")
	return cmd
}
