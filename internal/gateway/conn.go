package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/ryanongwx/chessbet/internal/obslog"
	"github.com/ryanongwx/chessbet/internal/wallet"
	"github.com/ryanongwx/chessbet/pkg/matchdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	egressBuffer = 64
	writeTimeout = 10 * time.Second
)

// conn is one websocket endpoint. Outbound frames go through a buffered
// channel drained by a single egress goroutine; a consumer that cannot
// keep up is disconnected rather than allowed to block fan-out.
type conn struct {
	ws  *websocket.Conn
	hub *Hub

	egress chan *matchdto.Frame
	stop   chan struct{}
	once   sync.Once

	mu         sync.Mutex
	identity   wallet.Identity
	session    string              // room membership, at most one
	spectating map[string]struct{} // read-only memberships
}

func newConn(ws *websocket.Conn, hub *Hub) *conn {
	return &conn{
		ws:         ws,
		hub:        hub,
		egress:     make(chan *matchdto.Frame, egressBuffer),
		stop:       make(chan struct{}),
		spectating: make(map[string]struct{}),
	}
}

// send enqueues a frame without blocking. Returns false when the buffer is
// full, which the hub treats as a dead consumer.
func (c *conn) send(f *matchdto.Frame) bool {
	select {
	case c.egress <- f:
		return true
	default:
		return false
	}
}

func (c *conn) egressLoop(ctx context.Context) {
	for {
		select {
		case <-c.stop:
			return
		case f := <-c.egress:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.ws, f)
			cancel()
			if err != nil {
				obslog.L().Debug("gateway_write_error", zap.Error(err))
				c.close(websocket.StatusAbnormalClosure, "write failed")
				return
			}
		}
	}
}

func (c *conn) close(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		close(c.stop)
		_ = c.ws.Close(code, reason)
		c.hub.drop(c)
	})
}

func (c *conn) setIdentity(id wallet.Identity) {
	c.mu.Lock()
	c.identity = id
	c.mu.Unlock()
}

func (c *conn) getIdentity() wallet.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

func (c *conn) setSession(sid string) (prev string) {
	c.mu.Lock()
	prev = c.session
	c.session = sid
	c.mu.Unlock()
	return prev
}

func (c *conn) addSpectate(sid string) {
	c.mu.Lock()
	c.spectating[sid] = struct{}{}
	c.mu.Unlock()
}

// clearRoom forgets any membership bookkeeping for sid, participant or
// spectator alike.
func (c *conn) clearRoom(sid string) {
	c.mu.Lock()
	if c.session == sid {
		c.session = ""
	}
	delete(c.spectating, sid)
	c.mu.Unlock()
}
