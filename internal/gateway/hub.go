// Package gateway is the realtime push channel: a websocket hub with two
// kinds of subscription. Session rooms carry state deltas to both
// participants and any spectators; identity channels carry the same deltas
// keyed by wallet identity, so a participant who has not yet joined the
// room (for example a creator whose subscription lags the opponent's join)
// still hears session-start, forfeiture and timeout notifications.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/ryanongwx/chessbet/internal/lobby"
	"github.com/ryanongwx/chessbet/internal/obslog"
	"github.com/ryanongwx/chessbet/internal/wallet"
	"github.com/ryanongwx/chessbet/pkg/matchdto"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

type Hub struct {
	verifier *wallet.Verifier
	manager  *lobby.Manager

	mu         sync.RWMutex
	conns      map[*conn]struct{}
	rooms      map[string]map[*conn]struct{}
	identities map[wallet.Identity]map[*conn]struct{}
}

func NewHub(verifier *wallet.Verifier, manager *lobby.Manager) *Hub {
	return &Hub{
		verifier:   verifier,
		manager:    manager,
		conns:      make(map[*conn]struct{}),
		rooms:      make(map[string]map[*conn]struct{}),
		identities: make(map[wallet.Identity]map[*conn]struct{}),
	}
}

// Handler upgrades HTTP requests to websocket connections.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			CompressionMode: websocket.CompressionNoContextTakeover,
		})
		if err != nil {
			obslog.L().Debug("gateway_accept_error", zap.Error(err))
			return
		}
		c := newConn(ws, h)
		h.mu.Lock()
		h.conns[c] = struct{}{}
		h.mu.Unlock()
		ctx := r.Context()
		go c.egressLoop(ctx)
		h.readLoop(ctx, c)
	}
}

// Close drops every connection, including ones that never registered or
// joined a room.
func (h *Hub) Close() {
	h.mu.Lock()
	all := make([]*conn, 0, len(h.conns))
	for c := range h.conns {
		all = append(all, c)
	}
	h.mu.Unlock()
	for _, c := range all {
		c.close(websocket.StatusGoingAway, "server shutdown")
	}
}

// Publish implements lobby.Sink. The frame goes to the session room and to
// every listed participant's identity channel; a connection reachable both
// ways receives it once.
func (h *Hub) Publish(ev lobby.Event) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		obslog.L().Warn("gateway_marshal_error", zap.Error(err))
		return
	}
	frame := &matchdto.Frame{Type: ev.Type, SessionID: ev.SessionID, Payload: payload}

	h.mu.RLock()
	targets := make(map[*conn]struct{})
	for c := range h.rooms[ev.SessionID] {
		targets[c] = struct{}{}
	}
	for _, p := range ev.Participants {
		for c := range h.identities[wallet.Identity(p)] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()

	for c := range targets {
		if !c.send(frame) {
			c.close(websocket.StatusPolicyViolation, "slow consumer")
		}
	}
}

func (h *Hub) joinRoom(sid string, c *conn) {
	h.mu.Lock()
	if h.rooms[sid] == nil {
		h.rooms[sid] = make(map[*conn]struct{})
	}
	h.rooms[sid][c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) leaveRoom(sid string, c *conn) {
	h.mu.Lock()
	if set := h.rooms[sid]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, sid)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) bindIdentity(id wallet.Identity, c *conn) {
	h.mu.Lock()
	if h.identities[id] == nil {
		h.identities[id] = make(map[*conn]struct{})
	}
	h.identities[id][c] = struct{}{}
	h.mu.Unlock()
}

// drop removes the connection from every subscription.
func (h *Hub) drop(c *conn) {
	h.mu.Lock()
	delete(h.conns, c)
	for sid, set := range h.rooms {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, sid)
		}
	}
	if id := c.getIdentity(); id != "" {
		if set := h.identities[id]; set != nil {
			delete(set, c)
			if len(set) == 0 {
				delete(h.identities, id)
			}
		}
	}
	h.mu.Unlock()
}
