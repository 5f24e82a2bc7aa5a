package webapp

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"privacy-inspector/internal/platform/logger"
)

// Server 是 API 的运行时对象。
type Server struct {
	opts  Options
	store Store
	log   *logger.Logger
	jobs  *jobManager

	// ctx 是后台任务的父 context，服务关闭时随之取消。
	ctx context.Context
}

// NewServer 创建 API 服务；ctx 控制后台扫描任务的生命周期。
func NewServer(ctx context.Context, opts Options, store Store, log *logger.Logger) *Server {
	opts.applyDefaults()
	return &Server{
		opts:  opts,
		store: store,
		log:   log.OrNop().WithComponent("webapp"),
		jobs:  newJobManager(),
		ctx:   ctx,
	}
}

// Handler 返回挂好全部路由的 http.Handler。
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", s.handleHealth)
		api.Get("/meta", s.handleMeta)

		api.Route("/scans", func(scans chi.Router) {
			scans.Get("/", s.handleListScans)
			scans.Route("/{scanID}", func(one chi.Router) {
				one.Get("/", s.handleGetScan)
				one.Get("/apps", s.handleScanApps)
				one.Get("/report", s.handleScanReport)
				one.Get("/files/{kind}", s.handleScanFile)
				one.Post("/export", s.handleScanExport)
			})
		})

		api.Route("/jobs", func(jobs chi.Router) {
			jobs.Get("/", s.handleListJobs)
			jobs.Post("/scan", s.handleJobScan)
			jobs.Get("/{jobID}", s.handleGetJob)
		})
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "not found"})
	})
	return r
}

// requestLogger 为每个请求记录一条 zerolog 日志。
func requestLogger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				log.Info().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Str("request_id", middleware.GetReqID(r.Context())).
					Msg("request completed")
			}()

			next.ServeHTTP(ww, r)
		}
		return http.HandlerFunc(fn)
	}
}
