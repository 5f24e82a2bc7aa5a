package main

import (
	"context"

	"github.com/spf13/cobra"

	"privacy-inspector/internal/adapters/mobile"
	"privacy-inspector/internal/services/scan"
	"privacy-inspector/internal/services/webapp"
)

func (c *cli) serveCmd() *cobra.Command {
	var enableJobs bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve recorded scans over a local HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			base, err := scanOptions(c.cfg)
			if err != nil {
				return err
			}
			opts := webapp.Options{
				Addr:            c.cfg.Serve.Addr,
				ReadTimeout:     c.cfg.Serve.ReadTimeout,
				WriteTimeout:    c.cfg.Serve.WriteTimeout,
				ShutdownTimeout: c.cfg.Serve.ShutdownTimeout,
				ExportDir:       c.cfg.ExportDir,
			}
			if enableJobs {
				opts.Scan = func(ctx context.Context, req webapp.ScanRequest, progress func(done, total int)) (*scan.Result, error) {
					so := base
					if req.PrivacyMode != "" {
						so.PrivacyMode = req.PrivacyMode
					}
					so.Progress = progress
					return scan.NewService(so, store, c.log).Run(ctx, mobile.InventoryCollector{Path: req.InventoryPath})
				}
			}
			return webapp.Run(ctx, opts, store, c.log)
		},
	}
	cmd.Flags().String("addr", "", "listen address")
	cmd.Flags().BoolVar(&enableJobs, "jobs", true, "allow POST /api/jobs/scan for offline inventories")
	bindKey(cmd.Flags(), "addr", "serve.addr")
	return cmd
}
