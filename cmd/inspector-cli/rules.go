package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"privacy-inspector/internal/services/scan"
)

func (c *cli) rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect the permission category table",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [permissions.yaml]",
		Short: "Validate a permission category table (default: configured or built-in)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.cfg.Rules.PermissionTable
			if len(args) == 1 {
				path = args[0]
			}
			table, err := scan.PermissionTable(cmd.Context(), path)
			if err != nil {
				return err
			}
			if path == "" {
				path = "(built-in)"
			}
			fmt.Fprintln(c.out, "rules validation passed")
			fmt.Fprintf(c.out, "file=%s version=%s\n", path, table.Version())
			fmt.Fprintf(c.out, "categories=%s\n", strings.Join(table.Categories(), ","))
			fmt.Fprintf(c.out, "privacy_critical=%s\n", strings.Join(table.CriticalCategories(), ","))
			return nil
		},
	})
	return cmd
}
