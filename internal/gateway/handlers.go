package gateway

import (
	"context"
	"encoding/json"

	"github.com/ryanongwx/chessbet/internal/lobby"
	"github.com/ryanongwx/chessbet/internal/rules"
	"github.com/ryanongwx/chessbet/internal/wallet"
	"github.com/ryanongwx/chessbet/pkg/matchdto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

func (h *Hub) readLoop(ctx context.Context, c *conn) {
	defer c.close(websocket.StatusNormalClosure, "bye")
	for {
		var frame matchdto.Frame
		if err := wsjson.Read(ctx, c.ws, &frame); err != nil {
			return
		}
		h.handle(ctx, c, &frame)
	}
}

func (h *Hub) handle(ctx context.Context, c *conn, f *matchdto.Frame) {
	switch f.Type {
	case matchdto.EvRegisterIdentity:
		h.handleRegister(c, f)
	case matchdto.EvJoinSession:
		h.handleJoin(ctx, c, f)
	case matchdto.EvLeaveSession:
		if f.SessionID != "" {
			c.clearRoom(f.SessionID)
			h.leaveRoom(f.SessionID, c)
		}
	case matchdto.EvSpectateSession:
		h.handleSpectate(ctx, c, f)
	case matchdto.EvMove:
		h.handleMove(ctx, c, f)
	case matchdto.EvOfferDraw, matchdto.EvAcceptDraw, matchdto.EvDeclineDraw, matchdto.EvWithdrawDraw:
		h.handleDraw(ctx, c, f)
	default:
		h.sendError(c, f.Type, matchdto.CodeValidation, "unknown frame type")
	}
}

// handleRegister authenticates the connection and binds its identity
// channel. The signature uses the register purpose with no entity.
func (h *Hub) handleRegister(c *conn, f *matchdto.Frame) {
	var p matchdto.RegisterIdentityPayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		h.sendError(c, f.Type, matchdto.CodeValidation, "bad payload")
		return
	}
	id, err := h.verifier.VerifyPurpose(p.Address, p.Message, p.Signature, wallet.PurposeRegister, wallet.NoEntity)
	if err != nil {
		h.sendError(c, f.Type, lobby.CodeFor(err), err.Error())
		return
	}
	c.setIdentity(id)
	h.bindIdentity(id, c)
	ack, _ := json.Marshal(matchdto.Profile{Identity: string(id)})
	c.send(&matchdto.Frame{Type: matchdto.EvRegisterIdentity, Payload: ack})
}

// handleJoin subscribes a registered participant to its session room. Room
// membership is at most one session per connection; joining another room
// replaces the previous membership.
func (h *Hub) handleJoin(ctx context.Context, c *conn, f *matchdto.Frame) {
	id := c.getIdentity()
	if id == "" {
		h.sendError(c, f.Type, matchdto.CodeAuthInvalid, "register identity first")
		return
	}
	s, err := h.manager.Snapshot(ctx, f.SessionID)
	if err != nil {
		h.sendError(c, f.Type, lobby.CodeFor(err), err.Error())
		return
	}
	if !s.Participant(id) {
		h.sendError(c, f.Type, matchdto.CodeStateConflict, "not a participant; use spectate_session")
		return
	}
	if prev := c.setSession(s.ID); prev != "" && prev != s.ID {
		h.leaveRoom(prev, c)
	}
	h.joinRoom(s.ID, c)
}

// handleSpectate grants read-only room membership and delivers an initial
// full snapshot. No identity required; spectators never gain move
// authorization.
func (h *Hub) handleSpectate(ctx context.Context, c *conn, f *matchdto.Frame) {
	s, err := h.manager.Snapshot(ctx, f.SessionID)
	if err != nil {
		h.sendError(c, f.Type, lobby.CodeFor(err), err.Error())
		return
	}
	c.addSpectate(s.ID)
	h.joinRoom(s.ID, c)
	snap, _ := json.Marshal(s.Projection())
	c.send(&matchdto.Frame{Type: matchdto.EvSessionSnapshot, SessionID: s.ID, Payload: snap})
}

func (h *Hub) handleMove(ctx context.Context, c *conn, f *matchdto.Frame) {
	id := c.getIdentity()
	if id == "" {
		h.sendError(c, f.Type, matchdto.CodeAuthInvalid, "register identity first")
		return
	}
	var p matchdto.MovePayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		h.sendError(c, f.Type, matchdto.CodeValidation, "bad payload")
		return
	}
	_, err := h.manager.Move(ctx, f.SessionID, id, rules.Ply{From: p.From, To: p.To, Promotion: p.Promotion})
	if err != nil {
		h.sendError(c, f.Type, lobby.CodeFor(err), err.Error())
	}
}

func (h *Hub) handleDraw(ctx context.Context, c *conn, f *matchdto.Frame) {
	id := c.getIdentity()
	if id == "" {
		h.sendError(c, f.Type, matchdto.CodeAuthInvalid, "register identity first")
		return
	}
	var err error
	switch f.Type {
	case matchdto.EvOfferDraw:
		_, err = h.manager.OfferDraw(ctx, f.SessionID, id)
	case matchdto.EvAcceptDraw:
		_, err = h.manager.AcceptDraw(ctx, f.SessionID, id)
	case matchdto.EvDeclineDraw:
		_, err = h.manager.DeclineDraw(ctx, f.SessionID, id)
	case matchdto.EvWithdrawDraw:
		_, err = h.manager.WithdrawDraw(ctx, f.SessionID, id)
	}
	if err != nil {
		h.sendError(c, f.Type, lobby.CodeFor(err), err.Error())
	}
}

func (h *Hub) sendError(c *conn, action matchdto.EventType, code matchdto.ErrorCode, reason string) {
	payload, _ := json.Marshal(matchdto.ErrorPayload{Action: action, Code: code, Reason: reason})
	c.send(&matchdto.Frame{Type: matchdto.EvError, Payload: payload})
}
