package net

import (
	"encoding/json"
	"net/http"

	server "sow-and-grow/server"
	"sow-and-grow/server/internal/net/proto"
	"sow-and-grow/server/internal/net/ws"
	"sow-and-grow/server/internal/telemetry"
	"sow-and-grow/server/logging"
)

// HTTPHandlerConfig tunes the HTTP surface.
type HTTPHandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   *logging.Metrics
}

// NewHTTPHandler builds the full HTTP surface: join handshake, websocket
// endpoint, diagnostics, and health.
func NewHTTPHandler(hub *server.Hub, cfg HTTPHandlerConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}

	wsHandler := ws.NewHandler(hub, ws.HandlerConfig{
		Logger:    logger,
		Publisher: cfg.Publisher,
	})

	mux := http.NewServeMux()

	mux.HandleFunc("/join", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id, snap := hub.Join()
		data, err := proto.EncodeJoinResponse(proto.JoinResponseV1{
			ID:            id,
			Entities:      snap.Entities,
			MatureObjects: snap.MatureObjects,
			Tick:          snap.Tick,
		})
		if err != nil {
			logger.Printf("failed to encode join response: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	})

	mux.HandleFunc("/ws", wsHandler.Handle)

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		payload := struct {
			Sessions any               `json:"sessions"`
			Counters map[string]uint64 `json:"counters,omitempty"`
		}{
			Sessions: hub.DiagnosticsSnapshot(),
			Counters: cfg.Metrics.TelemetrySnapshot(),
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			logger.Printf("failed to encode diagnostics: %v", err)
		}
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}
