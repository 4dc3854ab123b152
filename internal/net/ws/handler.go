package ws

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	server "sow-and-grow/server"
	"sow-and-grow/server/internal/net/intake"
	"sow-and-grow/server/internal/net/proto"
	"sow-and-grow/server/internal/telemetry"
	"sow-and-grow/server/logging"
	networklog "sow-and-grow/server/logging/network"
)

// HandlerConfig tunes the websocket endpoint.
type HandlerConfig struct {
	Logger    telemetry.Logger
	Publisher logging.Publisher
}

// Handler upgrades HTTP requests and runs the per-session read loop.
type Handler struct {
	hub       *server.Hub
	logger    telemetry.Logger
	publisher logging.Publisher
	upgrader  websocket.Upgrader
}

// NewHandler constructs a websocket handler for the given hub.
func NewHandler(hub *server.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.LoggerFunc(nil)
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = logging.NopPublisher()
	}
	return &Handler{
		hub:       hub,
		logger:    logger,
		publisher: publisher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

// Handle serves one websocket session until the connection drops.
func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	sessionID := r.URL.Query().Get("id")
	if sessionID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", sessionID, err)
		return
	}

	sess, snap, ok := h.hub.Subscribe(sessionID, conn)
	if !ok {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown session")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}

	data, err := server.EncodeSnapshotFrame(snap, time.Now())
	if err != nil {
		h.logger.Printf("failed to marshal initial snapshot for %s: %v", sessionID, err)
		h.hub.Disconnect(sessionID, "snapshot_encode_failed")
		return
	}
	if !sess.Send(data) {
		h.hub.Disconnect(sessionID, "initial_snapshot_stalled")
		return
	}

	ctx := intake.CommandContext{
		Enqueue:    h.hub.EnqueueCommand,
		HasSession: h.hub.HasSession,
		Bounds:     h.hub.WorldConfig(),
		Tick:       h.hub.Tick,
		Now:        time.Now,
	}

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			h.hub.Disconnect(sessionID, "read_failed")
			return
		}

		if !h.hub.AllowInbound(sessionID) {
			continue
		}

		msg, err := proto.DecodeClientMessage(payload)
		if err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", sessionID, err)
			networklog.ProtocolError(context.Background(), h.publisher, h.hub.Tick(),
				logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
				networklog.ProtocolErrorPayload{Detail: err.Error()})
			continue
		}

		switch msg.Type {
		case proto.TypeHeartbeat:
			now := time.Now()
			rtt, ok := h.hub.UpdateHeartbeat(sessionID, now, msg.SentAt)
			if !ok {
				continue
			}
			ack, err := proto.EncodeHeartbeat(proto.Heartbeat{
				ServerTime: now.UnixMilli(),
				ClientTime: msg.SentAt,
				RTTMillis:  rtt.Milliseconds(),
			})
			if err != nil {
				h.logger.Printf("failed to marshal heartbeat ack for %s: %v", sessionID, err)
				continue
			}
			if !sess.Send(ack) {
				h.hub.Disconnect(sessionID, "send_buffer_full")
				return
			}
		case proto.TypePlant, proto.TypeSnapshotRequest:
			seq := uint64(0)
			if msg.Seq != nil {
				seq = *msg.Seq
			}
			if seq > 0 {
				if last := sess.LastCommandSeq(); last > 0 && seq <= last {
					if ack, err := proto.EncodeCommandAck(proto.CommandAck{Seq: seq}); err == nil {
						sess.Send(ack)
					}
					continue
				}
			}
			_, accepted, reason := intake.StageClientCommand(ctx, sessionID, msg)
			if accepted {
				if seq > 0 {
					sess.StoreLastCommandSeq(seq)
				}
				continue
			}
			if seq > 0 {
				retry := reason == server.CommandRejectQueueLimit || reason == server.CommandRejectQueueFull
				reject, err := proto.EncodeCommandReject(proto.CommandReject{Seq: seq, Reason: reason, Retry: retry})
				if err == nil && !sess.Send(reject) {
					h.hub.Disconnect(sessionID, "send_buffer_full")
					return
				}
			}
			if reason == server.CommandRejectUnknownActor {
				h.logger.Printf("command ignored for unknown session %s", sessionID)
			}
		default:
			h.logger.Printf("unknown message type %q from %s", msg.Type, sessionID)
			networklog.ProtocolError(context.Background(), h.publisher, h.hub.Tick(),
				logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
				networklog.ProtocolErrorPayload{Detail: "unknown message type " + msg.Type})
		}
	}
}
