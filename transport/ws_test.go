package transport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/petal-labs/petalapp/schema"
	"github.com/petal-labs/petalapp/tool"
)

func testInfo(t *testing.T) Info {
	t.Helper()
	s, err := schema.NewBuilder("echo").String("text", "text to echo", true).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return Info{
		Name:    "echo-app",
		Version: "1.0.0",
		Tools: []tool.Descriptor{
			{Name: "echo", Description: "echoes text", Schema: s},
		},
	}
}

// startSession opens a WS transport on a free port and serves requests with
// the given responder until the test ends.
func startSession(t *testing.T, respond func(tool.Request) tool.Response) *wsConn {
	t.Helper()
	ws := NewWS("127.0.0.1:0", nil)
	conn, err := ws.Open(context.Background(), testInfo(t))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	wc := conn.(*wsConn)
	t.Cleanup(func() { wc.Close(context.Background()) })

	go func() {
		for req := range wc.Recv() {
			_ = wc.Send(context.Background(), respond(req))
		}
	}()
	return wc
}

func echoResponder(req tool.Request) tool.Response {
	if req.Tool != "echo" {
		return tool.Response{ID: req.ID, Err: tool.NewError(tool.ErrorCodeToolNotFound, "no tool registered as %q", req.Tool)}
	}
	text, _ := req.Input["text"].(string)
	return tool.Response{ID: req.ID, Content: text}
}

func dialTest(t *testing.T, wc *wsConn) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := Dial(ctx, "ws://"+wc.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestWS_Describe(t *testing.T) {
	wc := startSession(t, echoResponder)
	client := dialTest(t, wc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	info, err := client.Describe(ctx)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if info.Name != "echo-app" || len(info.Tools) != 1 || info.Tools[0].Name != "echo" {
		t.Errorf("info = %+v", info)
	}
}

func TestWS_CallRoundTrip(t *testing.T) {
	wc := startSession(t, echoResponder)
	client := dialTest(t, wc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Call(ctx, "echo", map[string]any{"action": "echo", "text": "hello"})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !resp.Ok() || resp.Content != "hello" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestWS_CallUnknownTool(t *testing.T) {
	wc := startSession(t, echoResponder)
	client := dialTest(t, wc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Call(ctx, "missing", nil)
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if resp.Ok() || resp.Err.Code != tool.ErrorCodeToolNotFound {
		t.Errorf("resp = %+v", resp)
	}
}

func TestWS_MalformedFrame(t *testing.T) {
	wc := startSession(t, echoResponder)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, _, err := websocket.Dial(ctx, "ws://"+wc.Addr(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer raw.Close(websocket.StatusNormalClosure, "")

	if err := raw.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var e envelope
	if err := wsjson.Read(ctx, raw, &e); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if e.Type != "error" || e.Error == nil {
		t.Fatalf("frame = %+v, want error envelope", e)
	}

	// The session survives: a well-formed invoke still succeeds.
	if err := wsjson.Write(ctx, raw, envelope{Type: "invoke", ID: "after", Tool: "echo", Input: map[string]any{"text": "ok"}}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := wsjson.Read(ctx, raw, &e); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if e.Type != "result" || e.ID != "after" || e.Content != "ok" {
		t.Errorf("frame = %+v", e)
	}
}

func TestWS_UnknownEnvelopeType(t *testing.T) {
	wc := startSession(t, echoResponder)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, _, err := websocket.Dial(ctx, "ws://"+wc.Addr(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer raw.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(ctx, raw, envelope{Type: "upload", ID: "x"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var e envelope
	if err := wsjson.Read(ctx, raw, &e); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if e.Type != "error" || e.ID != "x" {
		t.Errorf("frame = %+v, want addressed error envelope", e)
	}
}

func TestWS_Ping(t *testing.T) {
	wc := startSession(t, echoResponder)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	raw, _, err := websocket.Dial(ctx, "ws://"+wc.Addr(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer raw.Close(websocket.StatusNormalClosure, "")

	if err := wsjson.Write(ctx, raw, envelope{Type: "ping", ID: "p1"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var e envelope
	if err := wsjson.Read(ctx, raw, &e); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if e.Type != "pong" || e.ID != "p1" {
		t.Errorf("frame = %+v, want pong", e)
	}
}

func TestWS_NotifyReachesClient(t *testing.T) {
	wc := startSession(t, echoResponder)
	client := dialTest(t, wc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Describe first so the peer is registered before the broadcast.
	if _, err := client.Describe(ctx); err != nil {
		t.Fatalf("Describe: %v", err)
	}

	ev := Event{Channel: "general", User: "u1", Text: "ping"}
	if err := wc.Notify(ctx, ev); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	// Events are surfaced while the client waits for a reply; issue a call to
	// drive the read loop.
	if _, err := client.Call(ctx, "echo", map[string]any{"text": "x"}); err != nil {
		t.Fatalf("Call: %v", err)
	}

	select {
	case got := <-client.Events:
		if got.Text != "ping" || got.Channel != "general" {
			t.Errorf("event = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}

func TestWS_ConcurrentCalls(t *testing.T) {
	wc := startSession(t, echoResponder)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const n = 4
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		i := i
		go func() {
			client, err := Dial(ctx, "ws://"+wc.Addr())
			if err != nil {
				errs <- err
				return
			}
			defer client.Close()
			want := fmt.Sprintf("msg-%d", i)
			resp, err := client.Call(ctx, "echo", map[string]any{"text": want})
			if err != nil {
				errs <- err
				return
			}
			if resp.Content != want {
				errs <- fmt.Errorf("content = %q, want %q", resp.Content, want)
				return
			}
			errs <- nil
		}()
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Errorf("call %d: %v", i, err)
		}
	}
}
