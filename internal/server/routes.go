// Package server exposes the relay hub over HTTP.
package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Roomdrop/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Desktop and CLI clients send no Origin worth checking.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewRouter serves the health check and the websocket endpoint.
func NewRouter(hub *relay.Hub, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", healthCheck)
	r.Get("/ws", ServeWs(hub, logger))
	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Relay is healthy."))
}

// ServeWs upgrades the request and hands the connection to hub.
func ServeWs(hub *relay.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		logger.Debug("websocket connected", "remote", r.RemoteAddr, "request_id", middleware.GetReqID(r.Context()))
		hub.Serve(conn)
	}
}
