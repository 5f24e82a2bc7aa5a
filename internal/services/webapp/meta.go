package webapp

import (
	"net/http"
	"time"

	"privacy-inspector/internal/app"
)

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	schemaVersion, err := s.store.GetSchemaMetaValue(r.Context(), "schema_version")
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":   true,
		"time": time.Now().Unix(),
		"app": map[string]any{
			"version":    app.Version,
			"commit":     app.Commit,
			"build_time": app.BuildTime,
		},
		"db": map[string]any{
			"schema_version": schemaVersion,
		},
		"jobs": map[string]any{
			"scan_enabled": s.opts.Scan != nil,
		},
	})
}
