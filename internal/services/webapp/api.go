package webapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"privacy-inspector/internal/app"
	"privacy-inspector/internal/domain/model"
	"privacy-inspector/internal/services/bundle"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "privacy-inspector",
		"version": app.Version,
		"time":    time.Now().Unix(),
	})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	rows, err := s.store.ListScans(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rows == nil {
		rows = []model.ScanInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": rows})
}

// scanDetail 是 GET /api/scans/{id} 的响应体。
type scanDetail struct {
	Scan      *model.ScanInfo        `json:"scan"`
	Dataset   *model.DatasetBundle   `json:"dataset,omitempty"`
	Prechecks []model.PrecheckResult `json:"prechecks"`
	Warnings  []string               `json:"warnings"`
	Files     []model.ReportFile     `json:"files"`
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	info, ok := s.lookupScan(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	prechecks, warnings, err := s.store.GetScanNotes(ctx, info.ScanID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	files, err := s.store.ListReportFiles(ctx, info.ScanID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	detail := scanDetail{
		Scan:      info,
		Prechecks: prechecks,
		Warnings:  warnings,
		Files:     files,
	}
	if info.DatasetBundleID != "" {
		if detail.Dataset, err = s.store.GetDatasetBundle(ctx, info.DatasetBundleID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	if detail.Prechecks == nil {
		detail.Prechecks = []model.PrecheckResult{}
	}
	if detail.Warnings == nil {
		detail.Warnings = []string{}
	}
	if detail.Files == nil {
		detail.Files = []model.ReportFile{}
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleScanApps(w http.ResponseWriter, r *http.Request) {
	info, ok := s.lookupScan(w, r)
	if !ok {
		return
	}
	level := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("level")))
	if level != "" && !validLevel(level) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid level: %s", level))
		return
	}
	apps, err := s.store.ListScanApps(r.Context(), info.ScanID, level)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if apps == nil {
		apps = []model.ScanAppRow{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scan_id": info.ScanID,
		"level":   level,
		"apps":    apps,
	})
}

// handleScanReport 原样返回落库的报告 JSON。
func (s *Server) handleScanReport(w http.ResponseWriter, r *http.Request) {
	info, ok := s.lookupScan(w, r)
	if !ok {
		return
	}
	raw, err := s.store.GetScanReportJSON(r.Context(), info.ScanID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

type exportRequest struct {
	IncludeDatasets bool   `json:"include_datasets"`
	Note            string `json:"note,omitempty"`
}

func (s *Server) handleScanExport(w http.ResponseWriter, r *http.Request) {
	info, ok := s.lookupScan(w, r)
	if !ok {
		return
	}
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	res, err := bundle.NewExporter(s.store, s.log).Export(r.Context(), bundle.ExportOptions{
		ScanID:          info.ScanID,
		ExportDir:       s.opts.ExportDir,
		IncludeDatasets: req.IncludeDatasets,
		Note:            req.Note,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// lookupScan 取 URL 中的 scan_id 并确认扫描存在；不存在时已写好 404。
func (s *Server) lookupScan(w http.ResponseWriter, r *http.Request) (*model.ScanInfo, bool) {
	scanID := strings.TrimSpace(chi.URLParam(r, "scanID"))
	info, err := s.store.GetScan(r.Context(), scanID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return nil, false
	}
	if info == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("scan not found: %s", scanID))
		return nil, false
	}
	return info, true
}

func validLevel(level string) bool {
	for _, l := range model.RiskLevels {
		if string(l) == level {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{
		"error": err.Error(),
	})
}

func parseInt(v string, def int) int {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
