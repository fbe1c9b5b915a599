package main

import (
	"github.com/spf13/cobra"
	"github.com/stanbar/stellot-sub000/log"
	"github.com/stanbar/stellot-sub000/service"
)

func newServeCmd() *cobra.Command {
	var disableLogging bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "serve a local ledger over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc := service.NewLedgerService(cfg.Datadir, cfg.DB.Type, cfg.API.Host, cfg.API.Port, disableLogging)
			if err := svc.Start(ctx); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				log.Infow("received signal, shutting down")
			case <-svc.Done():
			}
			return svc.Stop()
		},
	}
	cmd.Flags().BoolVar(&disableLogging, "api.disable-logging", false, "disable API request logging")
	return cmd
}
