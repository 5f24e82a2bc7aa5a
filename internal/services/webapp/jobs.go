package webapp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/platform/id"
	"privacy-inspector/internal/services/privacy"
	"privacy-inspector/internal/services/scan"
)

// ScanRequest 是后台扫描任务的输入。
type ScanRequest struct {
	// InventoryPath 是 collect 命令写出的清单文件，服务端只做离线扫描。
	InventoryPath string       `json:"inventory_path"`
	PrivacyMode   privacy.Mode `json:"privacy_mode,omitempty"`
}

// ScanFunc 执行一次扫描；progress 每评估完一个应用调用一次。
type ScanFunc func(ctx context.Context, req ScanRequest, progress func(done, total int)) (*scan.Result, error)

type jobManager struct {
	mu   sync.Mutex
	jobs map[string]*scanJob
}

func newJobManager() *jobManager {
	return &jobManager{jobs: make(map[string]*scanJob)}
}

type scanJob struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"` // running|success|failed
	CreatedAt  int64  `json:"created_at"`
	FinishedAt int64  `json:"finished_at,omitempty"`

	Request  ScanRequest        `json:"request"`
	Done     int                `json:"done"`
	Total    int                `json:"total"`
	Logs     []jobLogLine       `json:"logs,omitempty"`
	ScanID   string             `json:"scan_id,omitempty"`
	Summary  *model.RiskSummary `json:"summary,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Error    string             `json:"error,omitempty"`
}

type jobLogLine struct {
	Time    int64  `json:"time"`
	Message string `json:"message"`
}

func (m *jobManager) put(job *scanJob) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.JobID] = job
}

// update 在锁内修改 job，后台 goroutine 只通过这里写。
func (m *jobManager) update(job *scanJob, fn func(j *scanJob)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(job)
}

func copyJob(j *scanJob) scanJob {
	cpy := *j
	if len(cpy.Logs) > 0 {
		cpy.Logs = append([]jobLogLine(nil), cpy.Logs...)
	}
	if len(cpy.Warnings) > 0 {
		cpy.Warnings = append([]string(nil), cpy.Warnings...)
	}
	return cpy
}

func (m *jobManager) getCopy(jobID string) (scanJob, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[jobID]
	if !ok || j == nil {
		return scanJob{}, false
	}
	return copyJob(j), true
}

// listCopies 按创建时间倒序返回全部任务。
func (m *jobManager) listCopies() []scanJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scanJob, 0, len(m.jobs))
	for _, j := range m.jobs {
		if j == nil {
			continue
		}
		out = append(out, copyJob(j))
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt != out[b].CreatedAt {
			return out[a].CreatedAt > out[b].CreatedAt
		}
		return out[a].JobID > out[b].JobID
	})
	return out
}

func (s *Server) handleJobScan(w http.ResponseWriter, r *http.Request) {
	if s.opts.Scan == nil {
		writeError(w, http.StatusNotImplemented, fmt.Errorf("scan jobs are disabled"))
		return
	}
	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	req.InventoryPath = strings.TrimSpace(req.InventoryPath)
	if req.InventoryPath == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("inventory_path is required"))
		return
	}
	if req.PrivacyMode != "" {
		mode, err := privacy.ParseMode(string(req.PrivacyMode))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		req.PrivacyMode = mode
	}

	now := time.Now().Unix()
	job := &scanJob{
		JobID:     id.New("job"),
		Status:    "running",
		CreatedAt: now,
		Request:   req,
		Logs:      []jobLogLine{{Time: now, Message: "job created"}},
	}
	s.jobs.put(job)
	// 先返回一份拷贝，后台 goroutine 会继续修改 job。
	resp := copyJob(job)

	go s.runJob(job)

	writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) runJob(job *scanJob) {
	log := s.log.With().Str("job_id", job.JobID).Logger()
	progress := func(done, total int) {
		s.jobs.update(job, func(j *scanJob) {
			j.Done, j.Total = done, total
		})
	}

	res, err := s.opts.Scan(s.ctx, job.Request, progress)

	s.jobs.update(job, func(j *scanJob) {
		j.FinishedAt = time.Now().Unix()
		if err != nil {
			j.Status = "failed"
			j.Error = err.Error()
			j.Logs = append(j.Logs, jobLogLine{Time: j.FinishedAt, Message: "scan failed: " + err.Error()})
			return
		}
		j.Status = "success"
		if res.Report != nil {
			j.ScanID = res.Report.ScanID
			summary := res.Report.Summary
			j.Summary = &summary
		}
		j.Warnings = res.Warnings
		j.Logs = append(j.Logs, jobLogLine{Time: j.FinishedAt, Message: "scan finished"})
	})
	if err != nil {
		log.Error().Err(err).Msg("scan job failed")
		return
	}
	log.Info().Str("scan_id", job.ScanID).Msg("scan job finished")
}

func (s *Server) handleListJobs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs": s.jobs.listCopies(),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job, ok := s.jobs.getCopy(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("job not found: %s", jobID))
		return
	}
	writeJSON(w, http.StatusOK, job)
}
