package socket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/minouverse/minouchat/internal/bus"
	"github.com/minouverse/minouchat/internal/status"
	"github.com/minouverse/minouchat/internal/wire"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	readLimit  = 64 * 1024
	backoffMin = time.Second
	backoffMax = 30 * time.Second
	sendBuffer = 64
)

// Client is the gorilla/websocket implementation of Channel. It owns the
// process-wide connection to the Minouverse socket endpoint, drives the
// connectivity state machine, and redials with capped exponential backoff.
type Client struct {
	url     string
	header  http.Header
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	mu       sync.RWMutex
	send     chan []byte // nil while disconnected
	handlers map[string]map[int]Handler
	nextID   int
}

// New creates a disconnected client. Run must be called to bring it online.
func New(socketURL, token string, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Client {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return &Client{
		url:      socketURL,
		header:   header,
		machine:  machine,
		bus:      b,
		logger:   logger,
		handlers: make(map[string]map[int]Handler),
	}
}

// Connected implements Channel.
func (c *Client) Connected() bool {
	return c.machine.Online()
}

// Emit implements Channel.
func (c *Client) Emit(event string, payload any) error {
	raw, err := wire.Encode(event, payload)
	if err != nil {
		return err
	}

	c.mu.RLock()
	send := c.send
	c.mu.RUnlock()
	if send == nil || !c.machine.Online() {
		return ErrNotConnected
	}

	select {
	case send <- raw:
		return nil
	default:
		// Write queue full means the connection is effectively dead.
		return ErrNotConnected
	}
}

// On implements Channel.
func (c *Client) On(event string, fn Handler) func() {
	c.mu.Lock()
	if c.handlers[event] == nil {
		c.handlers[event] = make(map[int]Handler)
	}
	id := c.nextID
	c.nextID++
	c.handlers[event][id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.handlers[event], id)
		c.mu.Unlock()
	}
}

// Run connects and keeps the connection alive until ctx is cancelled,
// redialing with backoff after every drop. Blocks; call in a goroutine.
func (c *Client) Run(ctx context.Context) {
	backoff := backoffMin
	for {
		if err := c.machine.Transition(status.Connecting); err != nil {
			return // machine closed
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			c.logger.Warn("socket dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			_ = c.machine.Transition(status.Reconnecting)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				c.shutdown()
				return
			}
			backoff = min(backoff*2, backoffMax)
			continue
		}

		backoff = backoffMin
		if err := c.machine.Transition(status.Connected); err != nil {
			_ = conn.Close()
			return
		}
		c.logger.Info("socket connected", zap.String("url", c.url))
		c.bus.Publish("socket.connected", nil)

		c.serve(ctx, conn)

		c.bus.Publish("socket.disconnected", nil)
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		default:
		}
		c.logger.Warn("socket disconnected, reconnecting")
		_ = c.machine.Transition(status.Reconnecting)
	}
}

// serve runs the read and write pumps for one connection and returns when
// either fails or ctx is cancelled.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	send := make(chan []byte, sendBuffer)
	c.mu.Lock()
	c.send = send
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.send = nil
		c.mu.Unlock()
		_ = conn.Close()
	}()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		c.readPump(conn)
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case raw := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.logger.Warn("socket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-readDone:
			return
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(readLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := wire.Decode(raw)
		if err != nil {
			c.logger.Warn("dropping malformed socket frame", zap.Error(err))
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) dispatch(env *wire.Envelope) {
	c.mu.RLock()
	fns := make([]Handler, 0, len(c.handlers[env.Event]))
	for _, fn := range c.handlers[env.Event] {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(env.Data)
	}
}

func (c *Client) shutdown() {
	_ = c.machine.Transition(status.Closed)
	c.logger.Info("socket closed")
}
