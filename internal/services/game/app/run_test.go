package server

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	platformgrpc "github.com/louisbranch/delving.space/internal/platform/grpc"
	"github.com/louisbranch/delving.space/internal/services/game/push"
)

func testConfig(t *testing.T, withPush bool) Config {
	t.Helper()
	cfg := Config{
		Addr:   "127.0.0.1:0",
		DBPath: filepath.Join(t.TempDir(), "game.db"),
	}
	if withPush {
		cfg.PushAddr = "127.0.0.1:0"
	}
	return cfg
}

// startServer serves a new server until the test ends.
func startServer(t *testing.T, cfg Config) (*Server, context.CancelFunc, <-chan error) {
	t.Helper()
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ctx)
	}()
	t.Cleanup(cancel)
	return srv, cancel, serveErr
}

// TestServeStopsOnContext verifies the server serves and stops on cancel.
func TestServeStopsOnContext(t *testing.T) {
	_, cancel, serveErr := startServer(t, testConfig(t, true))
	cancel()

	select {
	case err := <-serveErr:
		if err != nil {
			t.Fatalf("serve returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop in time")
	}
}

// TestHealthCheckReportsServing ensures gRPC health checks report SERVING.
func TestHealthCheckReportsServing(t *testing.T) {
	srv, _, _ := startServer(t, testConfig(t, false))
	if srv.PushAddr() != "" || srv.Hub() != nil {
		t.Fatal("expected push to be disabled")
	}

	conn, err := platformgrpc.Dial(normalizeAddress(t, srv.Addr()))
	if err != nil {
		t.Fatalf("dial server: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := platformgrpc.WaitForHealth(ctx, conn, HealthServices(), t.Logf); err != nil {
		t.Fatalf("wait for health: %v", err)
	}
}

// TestPushActionRoundTrip sends a solo action over the socket and expects
// both the published update and the direct reply.
func TestPushActionRoundTrip(t *testing.T) {
	srv, _, _ := startServer(t, testConfig(t, true))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := srv.Resolver().CreateCharacter(ctx, "hero", "Hero"); err != nil {
		t.Fatalf("create character: %v", err)
	}
	if _, err := srv.Resolver().StartRun(ctx, "hero", 1, 1, 0); err != nil {
		t.Fatalf("start run: %v", err)
	}

	conn, _, err := websocket.Dial(ctx, "ws://"+normalizeAddress(t, srv.PushAddr())+"/ws", nil)
	if err != nil {
		t.Fatalf("dial push: %v", err)
	}
	defer conn.CloseNow()

	if err := wsjson.Write(ctx, conn, push.Frame{Type: push.FrameSubscribe, Channel: push.PlayerChannel("hero")}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	var frame push.Frame
	if err := wsjson.Read(ctx, conn, &frame); err != nil || frame.Type != push.FrameSubscribed {
		t.Fatalf("subscribe reply = %+v, %v", frame, err)
	}

	body, _ := json.Marshal(map[string]any{"actor_id": "hero", "kind": "sticker"})
	if err := wsjson.Write(ctx, conn, push.Frame{Type: push.FrameAction, RequestID: "r1", Payload: body}); err != nil {
		t.Fatalf("send action: %v", err)
	}
	var got []string
	for len(got) < 2 {
		var f push.Frame
		if err := wsjson.Read(ctx, conn, &f); err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, f.Type)
	}
	if got[0] != push.FrameCombatUpdate || got[1] != push.FrameActionResult {
		t.Fatalf("frames = %v, want combat update then action result", got)
	}
}

func normalizeAddress(t *testing.T, addr string) string {
	t.Helper()

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("split address %q: %v", addr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}
