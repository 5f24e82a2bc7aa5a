package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	sqliteadapter "privacy-inspector/internal/adapters/store/sqlite"
	"privacy-inspector/internal/app"
	"privacy-inspector/internal/platform/logger"
)

// viperKeyAnnotation 标记一个 flag 覆盖哪个配置键，执行命令前统一绑定。
const viperKeyAnnotation = "viper_key"

// cli 持有一次命令执行的配置、日志和输出。
type cli struct {
	v       *viper.Viper
	cfgFile string
	cfg     *app.Config
	log     *logger.Logger
	out     io.Writer
	errOut  io.Writer
}

// CLI 入口。所有子命令错误都统一输出到 stderr 并返回非 0 状态码。
func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "received interrupt signal, shutting down...")
		cancel()
	}()

	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	c := &cli{v: viper.New(), out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "inspector",
		Short: "App privacy risk scanner",
		Long: `inspector collects the apps installed on an Android or iOS device,
cross-references them against leaked data-broker datasets and writes
per-device risk reports (JSON, HTML, PDF).`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.initConfig,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default: ./config.yaml or ./config/config.yaml)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().String("log-format", "console", "log format (console, json)")
	root.PersistentFlags().String("db", "", "sqlite database path")
	bindKey(root.PersistentFlags(), "log-level", "log.level")
	bindKey(root.PersistentFlags(), "log-format", "log.format")
	bindKey(root.PersistentFlags(), "db", "db_path")

	root.AddCommand(c.scanCmd())
	root.AddCommand(c.collectCmd())
	root.AddCommand(c.datasetCmd())
	root.AddCommand(c.rulesCmd())
	root.AddCommand(c.scansCmd())
	root.AddCommand(c.exportCmd())
	root.AddCommand(c.verifyCmd())
	root.AddCommand(c.serveCmd())
	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.versionCmd())
	return root
}

// bindKey 给 flag 打上配置键注解。
func bindKey(fs *pflag.FlagSet, flag, key string) {
	_ = fs.SetAnnotation(flag, viperKeyAnnotation, []string{key})
}

// initConfig 只绑定当前命令可见的 flag，避免不同子命令的同名配置键互相覆盖。
func (c *cli) initConfig(cmd *cobra.Command, _ []string) error {
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		keys, ok := f.Annotations[viperKeyAnnotation]
		if !ok || len(keys) == 0 || bindErr != nil {
			return
		}
		bindErr = c.v.BindPFlag(keys[0], f)
	})
	if bindErr != nil {
		return fmt.Errorf("bind flags: %w", bindErr)
	}

	cfg, err := app.Load(c.v, c.cfgFile)
	if err != nil {
		return err
	}
	c.cfg = cfg

	lc := cfg.LoggerConfig()
	lc.Output = c.errOut
	c.log = logger.New(lc)
	return nil
}

// openStore 打开数据库并执行迁移。
func (c *cli) openStore(ctx context.Context) (*sql.DB, *sqliteadapter.Store, error) {
	db, err := sqliteadapter.Open(ctx, c.cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return db, sqliteadapter.NewStore(db), nil
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, store, err := c.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			version, err := store.GetSchemaMetaValue(ctx, "schema_version")
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "migrations applied successfully: db=%s schema_version=%s\n", c.cfg.DBPath, version)
			return nil
		},
	}
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			fmt.Fprintf(c.out, "inspector %s", app.Version)
			if app.Commit != "" {
				fmt.Fprintf(c.out, " (%s)", app.Commit)
			}
			if app.BuildTime != "" {
				fmt.Fprintf(c.out, " built %s", app.BuildTime)
			}
			fmt.Fprintln(c.out)
			return nil
		},
	}
}
