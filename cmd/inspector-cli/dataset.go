package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"privacy-inspector/internal/adapters/dataset"
	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/services/scan"
)

func (c *cli) datasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Inspect leaked dataset files",
	}
	cmd.AddCommand(c.datasetValidateCmd())
	return cmd
}

func (c *cli) datasetValidateCmd() *cobra.Command {
	var maxWarnings int
	cmd := &cobra.Command{
		Use:   "validate [csv... | -]",
		Short: "Load dataset files and report row counts and skipped rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				ix      *dataset.Index
				summary *model.LoadSummary
				err     error
			)
			loader := dataset.NewLoader(c.log)
			if len(args) == 1 && args[0] == "-" {
				ix, summary, err = loader.LoadReader(cmd.InOrStdin(), model.DatasetSource{Path: "-", Name: "stdin"})
			} else {
				paths := args
				if len(paths) == 0 {
					paths = c.cfg.Dataset.Paths
				}
				sources := dataset.Sources(paths, c.cfg.Dataset.PriorityMap())
				if len(sources) == 0 {
					return scan.ErrNoDatasetSources
				}
				ix, summary, err = loader.Load(cmd.Context(), sources)
			}
			if err != nil {
				return err
			}

			fmt.Fprintln(c.out, "dataset validation passed")
			for _, s := range summary.Sources {
				fmt.Fprintf(c.out, "source=%s priority=%d rows=%d sha256=%s\n", s.Path, s.Priority, s.Rows, s.SHA256)
			}
			fmt.Fprintf(c.out, "rows_read=%d entries=%d skipped=%d replaced=%d\n",
				summary.RowsRead, ix.Len(), summary.Skipped, summary.Replaced)

			for i, w := range summary.Warnings {
				if i >= maxWarnings {
					fmt.Fprintf(c.out, "... %d more\n", len(summary.Warnings)-maxWarnings)
					break
				}
				fmt.Fprintf(c.out, "WARN %s:%d %s\n", w.Source, w.Row, w.Reason)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxWarnings, "max-warnings", 20, "maximum number of row warnings to print")
	return cmd
}
