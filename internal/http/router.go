package httpapi

import (
	"expvar"
	"net/http"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/sync/start", app.startHandler)
	mux.HandleFunc("/sync/stop", app.stopHandler)
	mux.HandleFunc("/sync/process/", app.processHandler)
	mux.HandleFunc("/sync/resync", app.resyncHandler)
	mux.HandleFunc("/sync/status", app.statusHandler)
	mux.HandleFunc("/sync/recent", app.recentHandler)
	mux.HandleFunc("/calc/clamp", app.clampHandler)
	mux.HandleFunc("/items/", app.getItemHandler)
	mux.HandleFunc("/healthz", app.healthHandler)
	mux.HandleFunc("/debug/metrics", app.metricsHandler)
	mux.Handle("/debug/vars", expvar.Handler())
	mux.HandleFunc("/openapi.yaml", app.openapiHandler)
	mux.HandleFunc("/docs", app.docsHandler)
	return WithRequestID(WithLogging(mux))
}
