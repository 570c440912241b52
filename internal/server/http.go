package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zeusync/mist/internal/core/observability/log"
	"github.com/zeusync/mist/web"
)

// ScriptPath serves the embedded browser client.
const ScriptPath = "/mist/mist.js"

// Router returns the HTTP surface: the websocket endpoint, the browser
// client and a health probe. The metrics and entity endpoints are mounted
// when configured.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get(s.cfg.WSPath, s.serveWebSocket)
	r.Get(ScriptPath, serveScript)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	if s.store != nil {
		r.Route(EntityPath, s.entityRoutes)
	}
	if s.gatherer != nil {
		r.Handle(s.metricsPath, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", log.String("remote_addr", r.RemoteAddr), log.Error(err))
		return
	}
	if err = s.handler.Serve(s.baseCtx, conn); err != nil {
		s.logger.Debug("websocket connection ended", log.Error(err))
	}
}

func serveScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	_, _ = w.Write(web.Script)
}
