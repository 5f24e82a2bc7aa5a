// Package webapp 提供只读的扫描结果 HTTP API，以及基于离线清单的后台扫描任务。
package webapp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"privacy-inspector/internal/app"
	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/logger"
)

// Store 是 API 需要的查询接口，由 sqlite.Store 实现。
type Store interface {
	GetSchemaMetaValue(ctx context.Context, key string) (string, error)
	ListScans(ctx context.Context, limit, offset int) ([]model.ScanInfo, error)
	GetScan(ctx context.Context, scanID string) (*model.ScanInfo, error)
	GetScanReportJSON(ctx context.Context, scanID string) ([]byte, error)
	GetScanNotes(ctx context.Context, scanID string) ([]model.PrecheckResult, []string, error)
	ListScanApps(ctx context.Context, scanID, level string) ([]model.ScanAppRow, error)
	ListReportFiles(ctx context.Context, scanID string) ([]model.ReportFile, error)
	GetDatasetBundle(ctx context.Context, bundleID string) (*model.DatasetBundle, error)
}

// Options 定义 API 服务启动参数。
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// ExportDir 是 POST /api/scans/{id}/export 的输出目录。
	ExportDir string
	// Scan 为 nil 时不开放 /api/jobs/scan。
	Scan ScanFunc
}

func (o *Options) applyDefaults() {
	defaults := app.DefaultConfig().Serve
	if o.Addr == "" {
		o.Addr = defaults.Addr
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = defaults.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaults.WriteTimeout
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if o.ExportDir == "" {
		o.ExportDir = app.DefaultConfig().ExportDir
	}
}

// Run 启动 API 服务，ctx 取消后优雅关闭。
func Run(ctx context.Context, opts Options, store Store, log *logger.Logger) error {
	opts.applyDefaults()
	s := NewServer(ctx, opts, store, log)

	ln, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", opts.Addr, err)
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadTimeout:       opts.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Serve(ln)
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("api listening")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	s.log.Info().Msg("api shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
