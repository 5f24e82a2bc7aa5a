package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"privacy-inspector/internal/services/bundle"
)

func (c *cli) exportCmd() *cobra.Command {
	var (
		outDir          string
		includeDatasets bool
		note            string
	)
	cmd := &cobra.Command{
		Use:   "export <scan-id>",
		Short: "Package a recorded scan and its reports into a verifiable ZIP",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			if outDir == "" {
				outDir = c.cfg.ExportDir
			}
			res, err := bundle.NewExporter(store, c.log).Export(ctx, bundle.ExportOptions{
				ScanID:          args[0],
				ExportDir:       outDir,
				IncludeDatasets: includeDatasets,
				PermissionTable: c.cfg.Rules.PermissionTable,
				Note:            note,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, "scan bundle exported")
			fmt.Fprintf(c.out, "zip=%s\n", res.ZipPath)
			fmt.Fprintf(c.out, "sha256=%s files=%d\n", res.ZipSHA256, res.FileCount)
			for _, w := range res.Warnings {
				fmt.Fprintf(c.out, "WARN %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&outDir, "out-dir", "", "output directory (default: export_dir from config)")
	cmd.Flags().BoolVar(&includeDatasets, "include-datasets", false, "include the dataset CSV files used by the scan")
	cmd.Flags().StringVar(&note, "note", "", "free-form note stored in manifest.json")
	return cmd
}

func (c *cli) verifyCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verify <bundle.zip>",
		Short: "Verify the hashes and manifest of an exported scan bundle",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			res, err := bundle.Verify(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(c.out, "zip=%s\n", args[0])
				fmt.Fprintf(c.out, "files_total=%d ok=%d failed=%d\n", res.Total, res.OKCount, res.Failed)
				for _, it := range res.Items {
					if it.Status == "ok" {
						continue
					}
					if it.Error != "" {
						fmt.Fprintf(c.out, "FAIL %s status=%s expected=%s actual=%s error=%s\n", it.Path, it.Status, it.Expected, it.Actual, it.Error)
					} else {
						fmt.Fprintf(c.out, "FAIL %s status=%s expected=%s actual=%s\n", it.Path, it.Status, it.Expected, it.Actual)
					}
				}
				for _, msg := range res.Inconsistencies {
					fmt.Fprintf(c.out, "FAIL manifest %s\n", msg)
				}
			}
			if !res.OK {
				return fmt.Errorf("bundle verify failed: %d files failed, %d inconsistencies", res.Failed, len(res.Inconsistencies))
			}
			if !asJSON {
				fmt.Fprintln(c.out, "bundle verify passed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	return cmd
}
