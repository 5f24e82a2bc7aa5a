package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"privacy-inspector/internal/adapters/dataset"
	"privacy-inspector/internal/adapters/mobile"
	"privacy-inspector/internal/app"
	"privacy-inspector/internal/platform/logger"
	"privacy-inspector/internal/services/matcher"
	"privacy-inspector/internal/services/privacy"
	"privacy-inspector/internal/services/render"
	"privacy-inspector/internal/services/scan"
)

// collectorFlags 是 scan 与 collect 共用的设备选择参数。
type collectorFlags struct {
	inventory string
	ios       bool
	serial    string
}

func (f *collectorFlags) register(cmd *cobra.Command, withInventory bool) {
	if withInventory {
		cmd.Flags().StringVar(&f.inventory, "inventory", "", "scan an inventory file written by 'collect' instead of a live device")
	}
	cmd.Flags().BoolVar(&f.ios, "ios", false, "collect from an iOS device via libimobiledevice")
	cmd.Flags().StringVar(&f.serial, "serial", "", "device serial (adb) or UDID (iOS); default: first authorized device")
}

func (f *collectorFlags) collector(log *logger.Logger) mobile.Collector {
	switch {
	case f.inventory != "":
		return mobile.InventoryCollector{Path: f.inventory}
	case f.ios:
		return mobile.NewIOSCollector(mobile.ExecRunner{}, f.serial, log)
	default:
		return mobile.NewAndroidCollector(mobile.ExecRunner{}, f.serial, log)
	}
}

// scanOptions 把配置转换为扫描参数。
func scanOptions(cfg *app.Config) (scan.Options, error) {
	mode, err := privacy.ParseMode(cfg.Scan.PrivacyMode)
	if err != nil {
		return scan.Options{}, err
	}
	formats, err := render.ParseFormats(cfg.Scan.Formats)
	if err != nil {
		return scan.Options{}, err
	}
	return scan.Options{
		DatasetSources:  dataset.Sources(cfg.Dataset.Paths, cfg.Dataset.PriorityMap()),
		PermissionTable: cfg.Rules.PermissionTable,
		Matcher: matcher.Options{
			FuzzyEnabled:   cfg.Matcher.FuzzyEnabled,
			FuzzyThreshold: cfg.Matcher.FuzzyThreshold,
		},
		Workers:        cfg.Scan.Workers,
		PrivacyMode:    mode,
		ReportsDir:     cfg.ReportsDir,
		Formats:        formats,
		ScannerVersion: app.Version,
	}, nil
}

// newProgressBar 返回给 scan.Options.Progress 用的回调；总数在第一次回调时才知道。
func newProgressBar(w io.Writer) func(done, total int) {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	return func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionShowCount(),
				progressbar.OptionSetWidth(40),
				progressbar.OptionSetDescription("Analyzing apps"),
				progressbar.OptionThrottle(65*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set(done)
	}
}

func (c *cli) scanCmd() *cobra.Command {
	var (
		dev   collectorFlags
		noDB  bool
		quiet bool
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Collect installed apps and write a privacy risk report",
		Long: `Collect the apps installed on a connected device (or read an offline
inventory), match them against the configured datasets and write reports.

Examples:
  inspector scan
  inspector scan --ios --serial 00008030-001A
  inspector scan --inventory pixel.json --privacy-mode masked --formats json,html,pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			opts, err := scanOptions(c.cfg)
			if err != nil {
				return err
			}
			if !quiet {
				opts.Progress = newProgressBar(c.errOut)
			}

			var store scan.Store
			if !noDB {
				db, s, err := c.openStore(ctx)
				if err != nil {
					return err
				}
				defer db.Close()
				store = s
			}

			res, err := scan.NewService(opts, store, c.log).Run(ctx, dev.collector(c.log))
			if err != nil {
				if errors.Is(err, mobile.ErrToolMissing) || errors.Is(err, mobile.ErrNoDevice) {
					return fmt.Errorf("%w (connect a device or pass --inventory)", err)
				}
				return err
			}

			fmt.Fprintln(c.out)
			render.PrintSummary(c.out, res.Document, res.Render)
			if len(res.Warnings) > 0 {
				fmt.Fprintf(c.out, "\nScan completed with %d warnings:\n", len(res.Warnings))
				for _, w := range res.Warnings {
					fmt.Fprintf(c.out, "  - %s\n", w)
				}
			}
			if !noDB {
				fmt.Fprintf(c.out, "\nScan ID: %s\n", res.Report.ScanID)
			}
			return nil
		},
	}
	dev.register(cmd, true)
	cmd.Flags().BoolVar(&noDB, "no-db", false, "do not record the scan in the database")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "hide the progress bar")
	cmd.Flags().Int("workers", 0, "number of concurrent app evaluations")
	cmd.Flags().String("privacy-mode", "", "privacy mode: off|masked")
	cmd.Flags().StringSlice("formats", nil, "report formats: json,html,pdf")
	cmd.Flags().StringSlice("dataset", nil, "dataset CSV files (repeatable)")
	cmd.Flags().String("permissions", "", "permission category table (YAML)")
	cmd.Flags().String("reports-dir", "", "report output directory")
	cmd.Flags().Bool("fuzzy", true, "enable fuzzy name matching")
	bindKey(cmd.Flags(), "workers", "scan.workers")
	bindKey(cmd.Flags(), "privacy-mode", "scan.privacy_mode")
	bindKey(cmd.Flags(), "formats", "scan.formats")
	bindKey(cmd.Flags(), "dataset", "dataset.paths")
	bindKey(cmd.Flags(), "permissions", "rules.permission_table")
	bindKey(cmd.Flags(), "reports-dir", "reports_dir")
	bindKey(cmd.Flags(), "fuzzy", "matcher.fuzzy_enabled")
	return cmd
}

func (c *cli) collectCmd() *cobra.Command {
	var (
		dev collectorFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Collect device info and installed apps into an inventory file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			col, err := dev.collector(c.log).Collect(cmd.Context())
			if err != nil {
				return err
			}
			if strings.TrimSpace(out) == "" {
				out = fmt.Sprintf("inventory_%s_%d.json", col.DeviceInfo.OS, time.Now().Unix())
			}
			if err := mobile.WriteInventory(out, col); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "inventory written: %s apps=%d warnings=%d\n", out, len(col.Apps), len(col.Warnings))
			return nil
		},
	}
	dev.register(cmd, false)
	cmd.Flags().StringVarP(&out, "out", "o", "", "inventory output path (default: inventory_<os>_<unix>.json)")
	return cmd
}
