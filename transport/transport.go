// Package transport owns the live interview channel: one websocket per
// session attempt carrying binary audio up and JSON events down.
package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"interview/errors"
	"interview/log"
)

var (
	ErrConnectionFailed = errors.New("connection failed")
	ErrNotOpen          = errors.New("connection is not open")
)

const DefaultURL = "ws://127.0.0.1:8001/ws/interview"

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20

	handshakeTimeout = 10 * time.Second
)

type State int

const (
	Connecting State = iota
	Open
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	}
	return "unknown"
}

type Cause int

const (
	CauseNormal Cause = iota // peer closed cleanly
	CauseError               // read or write failure
	CauseCaller              // Close was called
)

func (c Cause) String() string {
	switch c {
	case CauseNormal:
		return "normal"
	case CauseError:
		return "error"
	case CauseCaller:
		return "caller"
	}
	return "unknown"
}

// Closure describes why a connection ended. Err is nil for CauseCaller.
type Closure struct {
	Cause Cause
	Err   error
}

// Event is one inbound JSON frame. Speaker is empty for the interviewer.
type Event struct {
	Speaker  string `json:"speaker,omitempty"`
	Text     string `json:"text,omitempty"`
	AudioURL string `json:"audio_url,omitempty"`
}

// FromUser reports whether the event echoes the candidate's own speech.
func (e Event) FromUser() bool {
	return strings.EqualFold(e.Speaker, "user")
}

func (e Event) Empty() bool {
	return e.Text == "" && e.AudioURL == ""
}

type Option func(*Client)

// WithDialer replaces the default websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithHeader adds a header to every handshake.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithKeepalive overrides the ping period and pong deadline.
func WithKeepalive(ping, pong time.Duration) Option {
	return func(c *Client) {
		c.pingPeriod = ping
		c.pongWait = pong
	}
}

// Client dials connections to a single fixed endpoint.
type Client struct {
	url        string
	dialer     *websocket.Dialer
	header     http.Header
	pingPeriod time.Duration
	pongWait   time.Duration
}

func NewClient(url string, opts ...Option) *Client {
	if url == "" {
		url = DefaultURL
	}
	c := &Client{
		url:        url,
		dialer:     &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
		header:     http.Header{},
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) URL() string { return c.url }

// Open dials a fresh connection. The returned Conn is already Open; a failed
// dial returns an error marked ErrConnectionFailed.
func (c *Client) Open(ctx context.Context) (*Conn, error) {
	id := uuid.NewString()
	header := c.header.Clone()
	header.Set("X-Session-ID", id)

	started := time.Now()
	ws, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		err = errors.Wrapf(err, "dial %s", c.url)
		if resp != nil {
			err = errors.WithHintf(err, "server answered %s", resp.Status)
		} else {
			err = errors.WithHint(err, "is the interview server running?")
		}
		return nil, errors.Mark(err, ErrConnectionFailed)
	}

	conn := &Conn{
		id:        id,
		ws:        ws,
		state:     Open,
		started:   started,
		connectMs: float64(time.Since(started).Microseconds()) / 1000,
		pongWait:  c.pongWait,
		done:      make(chan struct{}),
	}
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(c.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(conn.pongWait))
	})
	go conn.readPump()
	go conn.pingLoop(c.pingPeriod)
	return conn, nil
}

// Conn is one live connection. Callbacks must not call back into Close.
type Conn struct {
	id        string
	ws        *websocket.Conn
	started   time.Time
	connectMs float64
	pongWait  time.Duration

	mu      sync.Mutex
	state   State
	closing bool
	onClose func(Closure)
	closure *Closure

	// deliverMu is held across each event delivery so Close can wait it out.
	deliverMu sync.Mutex
	onEvent   func(Event)

	writeMu sync.Mutex

	sentFrames   int
	sentBytes    int
	recvMessages int
	dropped      int

	closeOnce sync.Once
	done      chan struct{}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnEvent installs the single event consumer. Frames received while no
// consumer is installed are dropped.
func (c *Conn) OnEvent(cb func(Event)) {
	c.deliverMu.Lock()
	c.onEvent = cb
	c.deliverMu.Unlock()
}

// OnClose installs the close callback. If the connection has already ended
// cb runs immediately.
func (c *Conn) OnClose(cb func(Closure)) {
	c.mu.Lock()
	if c.closure != nil {
		cl := *c.closure
		c.mu.Unlock()
		cb(cl)
		return
	}
	c.onClose = cb
	c.mu.Unlock()
}

// Send writes one binary frame.
func (c *Conn) Send(payload []byte) error {
	if c.State() != Open {
		return ErrNotOpen
	}
	c.writeMu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.ws.WriteMessage(websocket.BinaryMessage, payload)
	c.writeMu.Unlock()
	if err == nil {
		c.mu.Lock()
		c.sentFrames++
		c.sentBytes += len(payload)
		c.mu.Unlock()
	}
	if err != nil {
		c.finish(Closure{Cause: CauseError, Err: errors.Wrap(err, "write audio frame")})
		return errors.Mark(err, ErrNotOpen)
	}
	return nil
}

// Close ends the connection. After it returns no more events are delivered.
func (c *Conn) Close() {
	c.mu.Lock()
	c.closing = true
	if c.state == Open || c.state == Connecting {
		c.state = Closed
	}
	c.mu.Unlock()

	c.deliverMu.Lock()
	c.onEvent = nil
	c.deliverMu.Unlock()

	c.writeMu.Lock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.finish(Closure{Cause: CauseCaller})
}

// Done is closed once the connection has ended for any reason.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) readPump() {
	for {
		kind, data, err := c.ws.ReadMessage()
		if err != nil {
			c.finish(classify(err))
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			log.Warnf("session %s: dropping malformed frame: %v", c.id, err)
			c.countDrop()
			continue
		}
		c.deliver(ev)
	}
}

func (c *Conn) deliver(ev Event) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	if c.onEvent == nil || c.State() != Open {
		c.countDrop()
		return
	}
	c.mu.Lock()
	c.recvMessages++
	c.mu.Unlock()
	c.onEvent(ev)
}

func (c *Conn) countDrop() {
	c.mu.Lock()
	c.dropped++
	c.mu.Unlock()
}

func (c *Conn) pingLoop(period time.Duration) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
		}
		c.writeMu.Lock()
		err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
		c.writeMu.Unlock()
		if err != nil {
			c.finish(Closure{Cause: CauseError, Err: errors.Wrap(err, "ping")})
			return
		}
	}
}

func classify(err error) Closure {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return Closure{Cause: CauseNormal}
	}
	return Closure{Cause: CauseError, Err: errors.Wrap(err, "read")}
}

// finish records the first closure, tears the socket down and reports once.
func (c *Conn) finish(cl Closure) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.closing {
			cl = Closure{Cause: CauseCaller}
		}
		if cl.Cause == CauseError {
			c.state = Failed
		} else {
			c.state = Closed
		}
		c.closure = &cl
		cb := c.onClose
		c.onClose = nil
		stats := log.StreamStats{
			SessionID:    c.id,
			ConnectMs:    c.connectMs,
			SentFrames:   c.sentFrames,
			SentKB:       float64(c.sentBytes) / 1024,
			RecvMessages: c.recvMessages,
			Dropped:      c.dropped,
			TotalMs:      float64(time.Since(c.started).Microseconds()) / 1000,
			Cause:        cl.Cause.String(),
		}
		c.mu.Unlock()

		close(c.done)
		c.ws.Close()
		log.Stream(stats)
		if cl.Err != nil {
			log.Warnf("session %s closed: %v", c.id, cl.Err)
		}
		if cb != nil {
			cb(cl)
		}
	})
}
