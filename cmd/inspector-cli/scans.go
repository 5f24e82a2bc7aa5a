package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"privacy-inspector/internal/domain/model"
)

func (c *cli) scansCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scans",
		Short: "Query recorded scans",
	}
	cmd.AddCommand(c.scansListCmd())
	cmd.AddCommand(c.scansShowCmd())
	return cmd
}

func (c *cli) scansListCmd() *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded scans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			rows, err := store.ListScans(ctx, limit, offset)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(c.out, "no scans recorded")
				return nil
			}
			tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "SCAN ID\tSTARTED\tOS\tDEVICE\tSTATUS\tAPPS\tHIGH\tMEDIUM\tLOW\tNOT FOUND")
			for _, s := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
					s.ScanID,
					time.Unix(s.StartedAt, 0).Format("2006-01-02 15:04"),
					s.OS, s.DeviceLabel, s.Status,
					s.TotalApps, s.HighCount, s.MediumCount, s.LowCount, s.NotFoundCount,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of scans")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of scans to skip")
	return cmd
}

func (c *cli) scansShowCmd() *cobra.Command {
	var level string
	cmd := &cobra.Command{
		Use:   "show <scan-id>",
		Short: "Show one scan with its apps, prechecks and report files as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			info, err := store.GetScan(ctx, args[0])
			if err != nil {
				return err
			}
			if info == nil {
				return fmt.Errorf("scan not found: %s", args[0])
			}
			prechecks, warnings, err := store.GetScanNotes(ctx, info.ScanID)
			if err != nil {
				return err
			}
			apps, err := store.ListScanApps(ctx, info.ScanID, strings.ToUpper(level))
			if err != nil {
				return err
			}
			files, err := store.ListReportFiles(ctx, info.ScanID)
			if err != nil {
				return err
			}

			out := struct {
				Scan      *model.ScanInfo        `json:"scan"`
				Prechecks []model.PrecheckResult `json:"prechecks"`
				Warnings  []string               `json:"warnings"`
				Apps      []model.ScanAppRow     `json:"apps"`
				Files     []model.ReportFile     `json:"files"`
			}{info, prechecks, warnings, apps, files}
			enc := json.NewEncoder(c.out)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "only list apps at this risk level (high|medium|low|not_found)")
	return cmd
}
