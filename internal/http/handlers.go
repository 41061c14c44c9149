package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kioshini/catalog-sync-service/internal/catalog"
	"github.com/kioshini/catalog-sync-service/internal/config"
	"github.com/kioshini/catalog-sync-service/internal/delta"
	httpopenapi "github.com/kioshini/catalog-sync-service/internal/http/openapi"
	"github.com/kioshini/catalog-sync-service/internal/model"
	"github.com/kioshini/catalog-sync-service/internal/syncer"
)

// App carries the handler dependencies: the catalog store for reads and the
// sync service for pipeline operations.
type App struct {
	Cfg     config.Config
	Store   *catalog.Store
	Sync    *syncer.Service
	started time.Time
}

// NewApp constructs the HTTP application.
func NewApp(cfg config.Config, st *catalog.Store, svc *syncer.Service) *App {
	return &App{Cfg: cfg, Store: st, Sync: svc, started: time.Now()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) startHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	// Monitoring outlives the request, so it hangs off the background context.
	if err := a.Sync.Start(context.Background()); err != nil {
		if errors.Is(err, syncer.ErrAlreadyRunning) {
			WriteJSONError(w, http.StatusConflict, "already_running", "")
			return
		}
		WriteJSONError(w, http.StatusInternalServerError, "start_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "monitoring_started"})
}

func (a *App) stopHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if err := a.Sync.Stop(); err != nil {
		WriteJSONError(w, http.StatusConflict, "not_running", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "monitoring_stopped"})
}

type processResult struct {
	Status string            `json:"status"`
	File   string            `json:"file"`
	Report model.ApplyReport `json:"report"`
}

func (a *App) processHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/sync/process/")
	if name == "" || strings.Contains(name, "/") {
		WriteJSONError(w, http.StatusNotFound, "file_not_found", "")
		return
	}
	rep, err := a.Sync.ProcessFileByName(r.Context(), name)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, processResult{Status: "processed", File: name, Report: rep})
	case errors.Is(err, syncer.ErrFileNotFound):
		WriteJSONError(w, http.StatusNotFound, "file_not_found", name)
	case errors.Is(err, syncer.ErrUnrecognized):
		WriteJSONError(w, http.StatusBadRequest, "unrecognized_file", name)
	case errors.Is(err, delta.ErrMalformed):
		WriteJSONError(w, http.StatusUnprocessableEntity, "malformed_file", name)
	default:
		WriteJSONError(w, http.StatusInternalServerError, "processing_failed", err.Error())
	}
}

func (a *App) resyncHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	if err := a.Sync.FullResync(r.Context()); err != nil {
		WriteJSONError(w, http.StatusInternalServerError, "resync_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "resync_complete",
		"entries": a.Store.Len(),
	})
}

func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, a.Sync.Status())
}

func (a *App) recentHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	writeJSON(w, http.StatusOK, a.Sync.RecentDeltaInfo())
}

type clampResult struct {
	Current float64 `json:"current"`
	Delta   float64 `json:"delta"`
	Result  float64 `json:"result"`
}

// clampHandler is the operator diagnostic: max(0, current+delta) without
// touching the catalog.
func (a *App) clampHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	q := r.URL.Query()
	cur, err := strconv.ParseFloat(q.Get("current"), 64)
	if err != nil || math.IsNaN(cur) || math.IsInf(cur, 0) {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "current must be a finite number")
		return
	}
	d, err := strconv.ParseFloat(q.Get("delta"), 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "delta must be a finite number")
		return
	}
	writeJSON(w, http.StatusOK, clampResult{Current: cur, Delta: d, Result: catalog.ClampAdd(cur, d)})
}

func (a *App) getItemHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/items/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	e, ok := a.Store.Get(parts[0], parts[1])
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	stat := a.Sync.Status()
	m := map[string]any{
		"catalog_entries":      a.Store.Len(),
		"processed_file_count": stat.ProcessedFileCount,
		"is_running":           stat.IsRunning,
		"is_processing":        stat.IsProcessing,
		"uptime_sec":           time.Since(a.started).Seconds(),
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
