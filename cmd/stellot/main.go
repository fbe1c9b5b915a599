// Command stellot drives every role of an election: the DKG ceremony,
// distributors, key-holders, voters and the ledger API server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stanbar/stellot-sub000/api/client"
	"github.com/stanbar/stellot-sub000/log"
)

// Version is the build version, set at build time with -ldflags
var Version = "dev"

// cfg is loaded before any command runs.
var cfg *Config

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stellot",
		Short:         "anonymous threshold e-voting",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := validateConfig(c); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			cfg = c
			log.Init(cfg.Log.Level, cfg.Log.Output, nil)
			return nil
		},
	}
	addGlobalFlags(root.PersistentFlags())
	root.AddCommand(
		newDKGCmd(),
		newDistributorCmd(),
		newElectionCmd(),
		newVoterCmd(),
		newKeyHolderCmd(),
		newServeCmd(),
	)
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// ledgerClient connects to the configured ledger API.
func ledgerClient() *client.Client {
	return client.New(cfg.Ledger.URL,
		client.WithTimeout(cfg.Ledger.Timeout),
		client.WithRetryBudget(cfg.Ledger.Retry))
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeJSON stores v as indented JSON at path.
func writeJSON(path string, v any, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), perm)
}

// readJSON decodes the JSON file at path into out.
func readJSON(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
