package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	server "sow-and-grow/server"
	"sow-and-grow/server/internal/net/proto"
)

func startTestServer(t *testing.T, hub *server.Hub) *httptest.Server {
	t.Helper()
	handler := NewHandler(hub, HandlerConfig{})
	srv := httptest.NewServer(http.HandlerFunc(handler.Handle))
	t.Cleanup(srv.Close)
	return srv
}

func dialSession(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL, sessionID), nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		t.Fatalf("failed to open websocket connection: %v", err)
	}
	t.Cleanup(func() {
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
		if resp != nil {
			resp.Body.Close()
		}
	})
	return conn
}

func websocketURL(t *testing.T, baseURL, sessionID string) string {
	t.Helper()
	parsed, err := url.Parse(baseURL)
	if err != nil {
		t.Fatalf("failed to parse test server url: %v", err)
	}
	parsed.Scheme = "ws"
	parsed.Path = "/"
	query := parsed.Query()
	query.Set("id", sessionID)
	parsed.RawQuery = query.Encode()
	return parsed.String()
}

func readFrame(t *testing.T, conn *websocket.Conn) proto.ServerFrame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read frame: %v", err)
	}
	frame, err := proto.DecodeServerFrame(payload)
	if err != nil {
		t.Fatalf("failed to decode frame %s: %v", payload, err)
	}
	return frame
}

// readFrameOfType skips unrelated frames until the wanted type arrives.
func readFrameOfType(t *testing.T, conn *websocket.Conn, frameType string) proto.ServerFrame {
	t.Helper()
	for i := 0; i < 16; i++ {
		frame := readFrame(t, conn)
		if frame.Type == frameType {
			return frame
		}
	}
	t.Fatalf("never received frame of type %q", frameType)
	return proto.ServerFrame{}
}

func TestHandleInitialSnapshot(t *testing.T) {
	hub := server.NewHubWithConfig(server.DefaultHubConfig())
	if err := hub.RestoreEntity("oak-sapling", 100, 100, 30); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	id, _ := hub.Join()

	srv := startTestServer(t, hub)
	conn := dialSession(t, srv, id)

	frame := readFrame(t, conn)
	if frame.Type != proto.TypeSnapshotMsg {
		t.Fatalf("expected snapshot as first frame, got %q", frame.Type)
	}
	if len(frame.Entities) != 1 || frame.Entities[0].ID != "64,64" {
		t.Fatalf("unexpected snapshot contents: %+v", frame.Entities)
	}
	if frame.Entities[0].GrowthTimer != 30 {
		t.Fatalf("expected growth timer in snapshot, got %v", frame.Entities[0].GrowthTimer)
	}
}

func TestHandlePlantRoundTrip(t *testing.T) {
	hub := server.NewHubWithConfig(server.DefaultHubConfig())
	id, _ := hub.Join()
	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	t.Cleanup(func() { close(stop) })

	srv := startTestServer(t, hub)
	conn := dialSession(t, srv, id)
	readFrame(t, conn) // initial snapshot

	request, err := json.Marshal(map[string]any{
		"ver":  proto.Version,
		"type": proto.TypePlant,
		"kind": "oak-sapling",
		"x":    100,
		"y":    100,
		"seq":  1,
	})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, request); err != nil {
		t.Fatalf("write request: %v", err)
	}

	ack := readFrameOfType(t, conn, proto.TypeCommandAckMsg)
	if ack.Seq != 1 {
		t.Fatalf("expected ack for seq 1, got %+v", ack)
	}
	if hub.GrowthCount() != 1 {
		t.Fatalf("expected planted entity in the world")
	}

	// Replaying the same sequence is acknowledged without a second plant.
	if err := conn.WriteMessage(websocket.TextMessage, request); err != nil {
		t.Fatalf("write duplicate: %v", err)
	}
	dup := readFrameOfType(t, conn, proto.TypeCommandAckMsg)
	if dup.Seq != 1 {
		t.Fatalf("expected duplicate ack for seq 1, got %+v", dup)
	}
	if hub.GrowthCount() != 1 {
		t.Fatalf("expected duplicate to leave the world unchanged")
	}
}

func TestHandleOccupiedCellReject(t *testing.T) {
	hub := server.NewHubWithConfig(server.DefaultHubConfig())
	if err := hub.RestoreEntity("oak-sapling", 100, 100, 0); err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	id, _ := hub.Join()
	stop := make(chan struct{})
	go hub.RunSimulation(stop)
	t.Cleanup(func() { close(stop) })

	srv := startTestServer(t, hub)
	conn := dialSession(t, srv, id)
	readFrame(t, conn)

	request, _ := json.Marshal(map[string]any{
		"ver":  proto.Version,
		"type": proto.TypePlant,
		"kind": "birch-sapling",
		"x":    110,
		"y":    70,
		"seq":  1,
	})
	if err := conn.WriteMessage(websocket.TextMessage, request); err != nil {
		t.Fatalf("write request: %v", err)
	}

	reject := readFrameOfType(t, conn, proto.TypeCommandRejectMsg)
	if reject.Reason != server.CommandRejectOccupied {
		t.Fatalf("expected cell_occupied, got %q", reject.Reason)
	}
}

func TestHandleHeartbeatAck(t *testing.T) {
	hub := server.NewHubWithConfig(server.DefaultHubConfig())
	id, _ := hub.Join()

	srv := startTestServer(t, hub)
	conn := dialSession(t, srv, id)
	readFrame(t, conn)

	sent := time.Now().UnixMilli()
	request, _ := json.Marshal(map[string]any{
		"ver":    proto.Version,
		"type":   proto.TypeHeartbeat,
		"sentAt": sent,
	})
	if err := conn.WriteMessage(websocket.TextMessage, request); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}

	ack := readFrameOfType(t, conn, proto.TypeHeartbeatMsg)
	if ack.ClientTime != sent {
		t.Fatalf("expected client time echoed, got %+v", ack)
	}
	if ack.ServerTime == 0 {
		t.Fatalf("expected server time on heartbeat ack")
	}
}

func TestHandleRejectsMissingID(t *testing.T) {
	hub := server.NewHubWithConfig(server.DefaultHubConfig())
	srv := startTestServer(t, hub)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 without id, got %d", resp.StatusCode)
	}
}

func TestHandleMalformedMessageIgnored(t *testing.T) {
	hub := server.NewHubWithConfig(server.DefaultHubConfig())
	id, _ := hub.Join()

	srv := startTestServer(t, hub)
	conn := dialSession(t, srv, id)
	readFrame(t, conn)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":`)); err != nil {
		t.Fatalf("write malformed: %v", err)
	}

	// The session survives the malformed payload.
	request, _ := json.Marshal(map[string]any{
		"ver":    proto.Version,
		"type":   proto.TypeHeartbeat,
		"sentAt": time.Now().UnixMilli(),
	})
	if err := conn.WriteMessage(websocket.TextMessage, request); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}
	ack := readFrameOfType(t, conn, proto.TypeHeartbeatMsg)
	if ack.Type != proto.TypeHeartbeatMsg {
		t.Fatalf("expected heartbeat ack after malformed payload")
	}
}

func TestHandleClosesConnectionForUnknownSessionID(t *testing.T) {
	hub := server.NewHubWithConfig(server.DefaultHubConfig())
	srv := startTestServer(t, hub)

	conn, resp, err := websocket.DefaultDialer.Dial(websocketURL(t, srv.URL, "never-joined"), nil)
	if err != nil {
		t.Fatalf("expected upgrade to succeed before the refusal: %v", err)
	}
	defer conn.Close()
	if resp != nil {
		resp.Body.Close()
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy-violation close for unknown id, got %v", err)
	}
	if hub.HasSession("never-joined") {
		t.Fatalf("expected no session registered for unknown id")
	}
}
