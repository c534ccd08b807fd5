// Package channel is the client side of the signaling socket: a
// gorilla/websocket connection with acknowledged requests, named event
// subscriptions and automatic reconnects.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Huddle/internal/core"
	"github.com/dkeye/Huddle/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected = errors.New("signaling channel not connected")
	ErrBackpressure = errors.New("signaling channel backpressure")
	ErrDisconnected = errors.New("signaling channel disconnected before ack")
	ErrClosed       = errors.New("signaling channel closed")
	ErrServer       = errors.New("server error")
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

type Config struct {
	URL string
	// ReconnectAttempts bounds consecutive failed dials after a drop.
	// Zero retries forever.
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Dialer            *websocket.Dialer
}

// Client implements core.Channel over one websocket at a time.
type Client struct {
	cfg Config

	mu      sync.Mutex
	conn    *conn
	subs    map[string]map[uint64]core.Handler
	pending map[uint64]chan protocol.Envelope

	nextID  atomic.Uint64
	done    chan struct{}
	closing sync.Once
	wg      sync.WaitGroup
}

var _ core.Channel = (*Client)(nil)

type conn struct {
	ws   *websocket.Conn
	send chan []byte
	gone chan struct{}
}

func New(cfg Config) *Client {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = time.Second
	}
	return &Client{
		cfg:     cfg,
		subs:    make(map[string]map[uint64]core.Handler),
		pending: make(map[uint64]chan protocol.Envelope),
		done:    make(chan struct{}),
	}
}

// Connect dials the server once. After it succeeds the client keeps itself
// connected until Close, announcing drops and recoveries as the disconnect,
// connect and connect_error events.
func (c *Client) Connect(ctx context.Context) error {
	cn, err := c.dial(ctx)
	if err != nil {
		c.dispatchString(protocol.EventConnectError, err.Error())
		return err
	}
	c.wg.Add(1)
	go c.supervise(cn)
	return nil
}

func (c *Client) dial(ctx context.Context) (*conn, error) {
	ws, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	ws.SetReadLimit(maxMessageSize)
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	cn := &conn{ws: ws, send: make(chan []byte, sendBuffer), gone: make(chan struct{})}

	c.mu.Lock()
	c.conn = cn
	c.mu.Unlock()

	log.Info().Str("module", "adapters.channel").Str("url", c.cfg.URL).Msg("connected")
	c.dispatch(protocol.EventConnect, nil)
	return cn, nil
}

// supervise runs the pumps of the live connection and redials after a drop.
func (c *Client) supervise(cn *conn) {
	defer c.wg.Done()
	for {
		go c.writePump(cn)
		c.readPump(cn)

		c.mu.Lock()
		c.conn = nil
		pending := c.pending
		c.pending = make(map[uint64]chan protocol.Envelope)
		c.mu.Unlock()
		for _, ch := range pending {
			close(ch)
		}

		select {
		case <-c.done:
			return
		default:
		}
		log.Warn().Str("module", "adapters.channel").Msg("disconnected")
		c.dispatch(protocol.EventDisconnect, nil)

		next, ok := c.redial()
		if !ok {
			return
		}
		cn = next
	}
}

func (c *Client) redial() (*conn, bool) {
	for attempt := 1; c.cfg.ReconnectAttempts == 0 || attempt <= c.cfg.ReconnectAttempts; attempt++ {
		select {
		case <-c.done:
			return nil, false
		case <-time.After(c.cfg.ReconnectDelay):
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		cn, err := c.dial(ctx)
		cancel()
		if err == nil {
			return cn, true
		}
		log.Warn().Err(err).Str("module", "adapters.channel").Int("attempt", attempt).Msg("reconnect failed")
		c.dispatchString(protocol.EventConnectError, err.Error())
	}
	log.Error().Str("module", "adapters.channel").Int("attempts", c.cfg.ReconnectAttempts).Msg("giving up on reconnect")
	return nil, false
}

func (c *Client) readPump(cn *conn) {
	defer func() {
		close(cn.gone)
		cn.ws.Close()
	}()
	_ = cn.ws.SetReadDeadline(time.Now().Add(pongWait))
	for {
		_, data, err := cn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("module", "adapters.channel").Msg("read error")
			}
			return
		}
		env, err := protocol.Decode(data)
		if err != nil {
			log.Debug().Err(err).Str("module", "adapters.channel").Msg("bad frame dropped")
			continue
		}
		switch {
		case env.Ack != 0 && (env.Type == protocol.EventAck || env.Type == protocol.EventError):
			c.resolve(env)
		case env.Type == protocol.EventPong:
		default:
			c.dispatch(env.Type, env.Payload)
		}
	}
}

func (c *Client) writePump(cn *conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		cn.ws.Close()
	}()
	for {
		select {
		case data := <-cn.send:
			_ = cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Warn().Err(err).Str("module", "adapters.channel").Msg("write error")
				return
			}
		case <-ticker.C:
			_ = cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-cn.gone:
			return
		case <-c.done:
			flush(cn)
			_ = cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = cn.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued so that a final leaveRoom goes out
// ahead of the close frame.
func flush(cn *conn) {
	for {
		select {
		case data := <-cn.send:
			_ = cn.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cn.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) resolve(env protocol.Envelope) {
	c.mu.Lock()
	ch, ok := c.pending[env.Ack]
	delete(c.pending, env.Ack)
	c.mu.Unlock()
	if !ok {
		log.Debug().Str("module", "adapters.channel").Uint64("ack", env.Ack).Msg("ack without request")
		return
	}
	ch <- env
}

func (c *Client) Emit(event string, payload any) error {
	data, err := protocol.Encode(event, 0, payload)
	if err != nil {
		return err
	}
	return c.write(data)
}

func (c *Client) write(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	c.mu.Lock()
	cn := c.conn
	c.mu.Unlock()
	if cn == nil {
		return ErrNotConnected
	}
	select {
	case cn.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

// Request sends event with a fresh ack number and decodes the server's
// acknowledgment into reply.
func (c *Client) Request(ctx context.Context, event string, payload any, reply any) error {
	ack := c.nextID.Add(1)
	data, err := protocol.Encode(event, ack, payload)
	if err != nil {
		return err
	}
	ch := make(chan protocol.Envelope, 1)
	c.mu.Lock()
	c.pending[ack] = ch
	c.mu.Unlock()
	forget := func() {
		c.mu.Lock()
		delete(c.pending, ack)
		c.mu.Unlock()
	}

	if err := c.write(data); err != nil {
		forget()
		return err
	}

	select {
	case env, ok := <-ch:
		if !ok {
			return ErrDisconnected
		}
		if env.Type == protocol.EventError {
			var ep protocol.ErrorPayload
			_ = json.Unmarshal(env.Payload, &ep)
			return fmt.Errorf("%w: %s", ErrServer, ep.Error)
		}
		if reply == nil || len(env.Payload) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Payload, reply); err != nil {
			return fmt.Errorf("decode %s ack: %w", event, err)
		}
		return nil
	case <-ctx.Done():
		forget()
		return ctx.Err()
	case <-c.done:
		return ErrClosed
	}
}

type subscription struct {
	c     *Client
	event string
	id    uint64
	once  sync.Once
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.c.mu.Lock()
		defer s.c.mu.Unlock()
		delete(s.c.subs[s.event], s.id)
	})
}

func (c *Client) Subscribe(event string, h core.Handler) core.Subscription {
	id := c.nextID.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs[event] == nil {
		c.subs[event] = make(map[uint64]core.Handler)
	}
	c.subs[event][id] = h
	return &subscription{c: c, event: event, id: id}
}

func (c *Client) dispatch(event string, payload json.RawMessage) {
	c.mu.Lock()
	hs := make([]core.Handler, 0, len(c.subs[event]))
	for _, h := range c.subs[event] {
		hs = append(hs, h)
	}
	c.mu.Unlock()
	if len(hs) == 0 {
		log.Debug().Str("module", "adapters.channel").Str("event", event).Msg("no subscribers")
		return
	}
	for _, h := range hs {
		h(payload)
	}
}

func (c *Client) dispatchString(event, s string) {
	raw, _ := json.Marshal(s)
	c.dispatch(event, raw)
}

// Close stops reconnecting and closes the live connection.
func (c *Client) Close() {
	c.closing.Do(func() {
		close(c.done)
		c.mu.Lock()
		cn := c.conn
		c.mu.Unlock()
		if cn != nil {
			select {
			case <-cn.gone:
			case <-time.After(writeWait):
				cn.ws.Close()
			}
		}
		c.wg.Wait()
	})
}
