package app

import (
	"net/http"

	"github.com/gorilla/mux"
)

// routes builds the full handler chain:
// security headers, CORS, request logging, then the router.
func (a *App) routes() http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = a.resp.NotFoundHandler()
	r.MethodNotAllowedHandler = a.resp.NotFoundHandler()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}).Methods(http.MethodGet, http.MethodHead)

	r.HandleFunc("/readyz", a.handleReady).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(a.limit.Wrap)

	v1r := api.PathPrefix("/v1").Subrouter()
	a.auth.Register(v1r)
	a.closets.Register(v1r, a.auth.Protect)

	var h http.Handler = r
	h = WithRequestLogging(h, a.log, a.metrics)
	h = WithCORS(h, a.cfg, a.log)
	return WithSecurityHeaders(h)
}

func (a *App) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.cfg.ReadinessRequireDB && a.db.driver != "postgres" {
		http.Error(w, "db not configured", http.StatusServiceUnavailable)
		return
	}
	if err := a.db.Ping(r.Context()); err != nil {
		a.log.Info("readyz.db.not_ready", "driver", a.db.driver, "err", err)
		http.Error(w, "db not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready\n"))
}
