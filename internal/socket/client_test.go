package socket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/minouverse/minouchat/internal/bus"
	"github.com/minouverse/minouchat/internal/status"
	"github.com/minouverse/minouchat/internal/wire"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{}

// testServer accepts one websocket connection and exposes it for the test.
func testServer(t *testing.T, handle func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handle(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startClient(t *testing.T, url string) (*Client, *bus.Bus) {
	t.Helper()
	b := bus.New()
	machine := status.NewMachine(b)
	logger := zap.NewNop()
	c := New(url, "test-token", machine, b, logger)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	connected, unsub := b.Subscribe("socket.connected", 1)
	defer unsub()
	go c.Run(ctx)

	select {
	case <-connected:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for socket.connected")
	}
	return c, b
}

func TestEmitReachesServer(t *testing.T) {
	frames := make(chan []byte, 1)
	url := testServer(t, func(conn *websocket.Conn) {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		frames <- raw
	})

	c, _ := startClient(t, url)

	err := c.Emit(wire.EventSendMessage, wire.SendMessage{
		TempID: "t1", ConversationID: "c1", SenderID: "u1", RecipientID: "u2", Content: "hi",
	})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}

	select {
	case raw := <-frames:
		env, err := wire.Decode(raw)
		if err != nil {
			t.Fatal(err)
		}
		if env.Event != wire.EventSendMessage {
			t.Errorf("event = %q, want send-message", env.Event)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server never received the frame")
	}
}

func TestInboundDispatch(t *testing.T) {
	url := testServer(t, func(conn *websocket.Conn) {
		raw, _ := wire.Encode(wire.EventUserTyping, wire.Typing{
			ConversationID: "c1", UserID: "u2", Typing: true,
		})
		_ = conn.WriteMessage(websocket.TextMessage, raw)
		// Keep the connection open so the client does not reconnect mid-test.
		time.Sleep(2 * time.Second)
	})

	c, _ := startClient(t, url)

	got := make(chan wire.Typing, 1)
	off := c.On(wire.EventUserTyping, func(data json.RawMessage) {
		var typ wire.Typing
		_ = json.Unmarshal(data, &typ)
		got <- typ
	})
	defer off()

	select {
	case typ := <-got:
		if typ.UserID != "u2" || !typ.Typing {
			t.Errorf("typing = %+v", typ)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("handler never fired")
	}
}

func TestOffStopsDispatch(t *testing.T) {
	b := bus.New()
	c := New("ws://unused", "", status.NewMachine(b), b, zap.NewNop())

	calls := 0
	off := c.On("new-message", func(json.RawMessage) { calls++ })
	c.dispatch(&wire.Envelope{Event: "new-message"})
	off()
	c.dispatch(&wire.Envelope{Event: "new-message"})

	if calls != 1 {
		t.Errorf("handler calls = %d, want 1", calls)
	}
}

func TestEmitWhileDisconnected(t *testing.T) {
	b := bus.New()
	c := New("ws://unused", "", status.NewMachine(b), b, zap.NewNop())

	err := c.Emit(wire.EventTyping, wire.Typing{ConversationID: "c1", UserID: "u1", Typing: true})
	if err != ErrNotConnected {
		t.Errorf("Emit() error = %v, want ErrNotConnected", err)
	}
}
