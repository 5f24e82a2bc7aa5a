package webapp

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"

	"privacy-inspector/internal/platform/hash"
)

// handleScanFile 下载一次扫描生成的报告文件（json/html/pdf）。
// 磁盘文件与落库 sha256 不一致时返回 409，避免把被改动过的报告当原件发出去。
func (s *Server) handleScanFile(w http.ResponseWriter, r *http.Request) {
	info, ok := s.lookupScan(w, r)
	if !ok {
		return
	}
	kind := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "kind")))

	files, err := s.store.ListReportFiles(r.Context(), info.ScanID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	for _, f := range files {
		if f.Kind != kind {
			continue
		}
		sum, _, err := hash.File(f.FilePath)
		switch {
		case os.IsNotExist(err):
			writeError(w, http.StatusGone, fmt.Errorf("report file missing: %s", filepath.Base(f.FilePath)))
		case err != nil:
			writeError(w, http.StatusInternalServerError, err)
		case !strings.EqualFold(sum, f.SHA256):
			writeError(w, http.StatusConflict, fmt.Errorf("report file changed since scan: %s", filepath.Base(f.FilePath)))
		default:
			serveFile(w, r, f.FilePath, info.ScanID)
		}
		return
	}
	writeError(w, http.StatusNotFound, fmt.Errorf("no %s report for scan %s", kind, info.ScanID))
}

func serveFile(w http.ResponseWriter, r *http.Request, path string, downloadBase string) {
	name := filepath.Base(path)
	if downloadBase != "" {
		ext := filepath.Ext(name)
		name = downloadBase + ext
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}
