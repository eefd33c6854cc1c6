package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"interview/errors"
)

type peer struct {
	srv     *httptest.Server
	conns   chan *websocket.Conn
	headers chan http.Header
}

func newPeer(t *testing.T) *peer {
	t.Helper()
	p := &peer{conns: make(chan *websocket.Conn, 4), headers: make(chan http.Header, 4)}
	up := websocket.Upgrader{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		p.headers <- r.Header.Clone()
		p.conns <- ws
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *peer) url() string { return "ws" + strings.TrimPrefix(p.srv.URL, "http") }

func (p *peer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-p.conns:
		t.Cleanup(func() { ws.Close() })
		return ws
	case <-time.After(2 * time.Second):
		t.Fatal("peer never accepted")
		return nil
	}
}

func recvEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func recvClosure(t *testing.T, ch <-chan Closure) Closure {
	t.Helper()
	select {
	case cl := <-ch:
		return cl
	case <-time.After(2 * time.Second):
		t.Fatal("close callback never fired")
		return Closure{}
	}
}

func TestOpenSendAndReceive(t *testing.T) {
	p := newPeer(t)
	conn, err := NewClient(p.url()).Open(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	ws := p.accept(t)

	assert.Equal(t, Open, conn.State())
	assert.Equal(t, conn.ID(), (<-p.headers).Get("X-Session-ID"))

	events := make(chan Event, 4)
	conn.OnEvent(func(ev Event) { events <- ev })

	require.NoError(t, conn.Send([]byte{1, 2, 3}))
	kind, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, []byte{1, 2, 3}, data)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"text":"Why Go?","audio_url":"/q2.mp3"}`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"speaker":"user","text":"Because"}`)))

	first := recvEvent(t, events)
	assert.Equal(t, "Why Go?", first.Text)
	assert.Equal(t, "/q2.mp3", first.AudioURL)
	assert.False(t, first.FromUser())

	second := recvEvent(t, events)
	assert.True(t, second.FromUser())
}

func TestEventsWithoutConsumerAreDropped(t *testing.T) {
	p := newPeer(t)
	conn, err := NewClient(p.url()).Open(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	ws := p.accept(t)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"text":"early"}`)))
	// the pong comes back only after the early frame has been read
	pong := make(chan struct{}, 1)
	ws.SetPongHandler(func(string) error { pong <- struct{}{}; return nil })
	go ws.ReadMessage()
	require.NoError(t, ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second)))
	select {
	case <-pong:
	case <-time.After(2 * time.Second):
		t.Fatal("no pong")
	}

	events := make(chan Event, 4)
	conn.OnEvent(func(ev Event) { events <- ev })
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"text":"late"}`)))

	assert.Equal(t, "late", recvEvent(t, events).Text)
}

func TestDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewClient("ws" + strings.TrimPrefix(srv.URL, "http")).Open(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConnectionFailed))
	assert.Contains(t, errors.UserMessage(err), "404")
}

func TestPeerCloseReportsNormal(t *testing.T) {
	p := newPeer(t)
	conn, err := NewClient(p.url()).Open(context.Background())
	require.NoError(t, err)
	ws := p.accept(t)

	closed := make(chan Closure, 2)
	conn.OnClose(func(cl Closure) { closed <- cl })

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")))

	cl := recvClosure(t, closed)
	assert.Equal(t, CauseNormal, cl.Cause)
	assert.Equal(t, Closed, conn.State())
	assert.True(t, errors.Is(conn.Send([]byte{1}), ErrNotOpen))

	conn.Close()
	select {
	case extra := <-closed:
		t.Fatalf("close reported twice: %v", extra.Cause)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAbruptDropReportsError(t *testing.T) {
	p := newPeer(t)
	conn, err := NewClient(p.url()).Open(context.Background())
	require.NoError(t, err)
	ws := p.accept(t)

	closed := make(chan Closure, 1)
	conn.OnClose(func(cl Closure) { closed <- cl })
	ws.UnderlyingConn().Close()

	cl := recvClosure(t, closed)
	assert.Equal(t, CauseError, cl.Cause)
	assert.Error(t, cl.Err)
	assert.Equal(t, Failed, conn.State())
}

func TestCallerClose(t *testing.T) {
	p := newPeer(t)
	conn, err := NewClient(p.url()).Open(context.Background())
	require.NoError(t, err)
	ws := p.accept(t)

	closed := make(chan Closure, 1)
	conn.OnClose(func(cl Closure) { closed <- cl })
	events := make(chan Event, 4)
	conn.OnEvent(func(ev Event) { events <- ev })

	conn.Close()
	assert.Equal(t, CauseCaller, recvClosure(t, closed).Cause)
	assert.Equal(t, Closed, conn.State())
	assert.True(t, errors.Is(conn.Send([]byte{1}), ErrNotOpen))

	ws.WriteMessage(websocket.TextMessage, []byte(`{"text":"after close"}`))
	select {
	case ev := <-events:
		t.Fatalf("event delivered after Close: %q", ev.Text)
	case <-time.After(50 * time.Millisecond):
	}

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done not closed")
	}
}

func TestOnCloseAfterEnd(t *testing.T) {
	p := newPeer(t)
	conn, err := NewClient(p.url()).Open(context.Background())
	require.NoError(t, err)
	p.accept(t)

	conn.Close()
	got := make(chan Closure, 1)
	conn.OnClose(func(cl Closure) { got <- cl })
	assert.Equal(t, CauseCaller, recvClosure(t, got).Cause)
}

func TestKeepalivePings(t *testing.T) {
	p := newPeer(t)
	conn, err := NewClient(p.url(), WithKeepalive(20*time.Millisecond, time.Second)).Open(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	ws := p.accept(t)

	pinged := make(chan struct{}, 1)
	ws.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	go ws.ReadMessage()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no keepalive ping")
	}
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "caller", CauseCaller.String())
}
