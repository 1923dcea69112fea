package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/ryanongwx/chessbet/internal/profile"
	"github.com/ryanongwx/chessbet/internal/session"
	"github.com/ryanongwx/chessbet/internal/wallet"
	"github.com/ryanongwx/chessbet/pkg/matchdto"
)

// authenticate verifies the signed envelope against the expected purpose
// and entity, cross-checking the path-claimed session id with the one the
// wallet actually signed.
func (s *Server) authenticate(req matchdto.SignedRequest, purpose, entityID string) (wallet.Identity, error) {
	return s.verifier.VerifyPurpose(req.Address, req.Message, req.Signature, purpose, entityID)
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req matchdto.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, matchdto.APIError{Code: matchdto.CodeValidation, Reason: "invalid json body"})
		return
	}
	id, err := s.authenticate(req.SignedRequest, wallet.PurposeCreate, wallet.NoEntity)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := s.manager.Create(r.Context(), id, req.Wager, strings.TrimSpace(req.EscrowRef))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.Projection())
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	st := session.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	if st == "" {
		st = session.StatusWaiting
	}
	if st != session.StatusWaiting && st != session.StatusPlaying {
		writeJSON(w, http.StatusBadRequest, matchdto.APIError{Code: matchdto.CodeValidation, Reason: "status must be waiting or playing"})
		return
	}
	sessions, err := s.manager.List(r.Context(), st)
	if err != nil {
		writeError(w, err)
		return
	}
	// Only the waiting list hides opponent and position; live sessions are
	// fully visible so spectators can pick one.
	if st == session.StatusWaiting {
		out := make([]*matchdto.LobbyProjection, 0, len(sessions))
		for _, sess := range sessions {
			out = append(out, sess.LobbyProjection())
		}
		writeJSON(w, http.StatusOK, out)
		return
	}
	out := make([]*matchdto.SessionProjection, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Projection())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Projection())
}

func (s *Server) getResult(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.ResultProjection())
}

// signedAction factors the four signed POST endpoints that share the
// (verify, mutate, project) shape.
func (s *Server) signedAction(w http.ResponseWriter, r *http.Request, purpose string,
	do func(sid string, id wallet.Identity) (*session.Session, error)) {

	sid := chi.URLParam(r, "id")
	var req matchdto.SignedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, matchdto.APIError{Code: matchdto.CodeValidation, Reason: "invalid json body"})
		return
	}
	id, err := s.authenticate(req, purpose, sid)
	if err != nil {
		writeError(w, err)
		return
	}
	sess, err := do(sid, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.Projection())
}

func (s *Server) joinSession(w http.ResponseWriter, r *http.Request) {
	s.signedAction(w, r, wallet.PurposeJoin, func(sid string, id wallet.Identity) (*session.Session, error) {
		return s.manager.Join(r.Context(), sid, id)
	})
}

func (s *Server) cancelSession(w http.ResponseWriter, r *http.Request) {
	s.signedAction(w, r, wallet.PurposeCancel, func(sid string, id wallet.Identity) (*session.Session, error) {
		return s.manager.Cancel(r.Context(), sid, id)
	})
}

func (s *Server) concedeSession(w http.ResponseWriter, r *http.Request) {
	s.signedAction(w, r, wallet.PurposeConcede, func(sid string, id wallet.Identity) (*session.Session, error) {
		return s.manager.Concede(r.Context(), sid, id)
	})
}

func (s *Server) timeoutSession(w http.ResponseWriter, r *http.Request) {
	s.signedAction(w, r, wallet.PurposeTimeout, func(sid string, id wallet.Identity) (*session.Session, error) {
		return s.manager.ReportTimeout(r.Context(), sid, id)
	})
}

func (s *Server) setProfile(w http.ResponseWriter, r *http.Request) {
	var req matchdto.SetProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, matchdto.APIError{Code: matchdto.CodeValidation, Reason: "invalid json body"})
		return
	}
	id, err := s.authenticate(req.SignedRequest, wallet.PurposeProfile, wallet.NoEntity)
	if err != nil {
		writeError(w, err)
		return
	}
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		writeJSON(w, http.StatusBadRequest, matchdto.APIError{Code: matchdto.CodeValidation, Reason: "display_name required"})
		return
	}
	if err := s.profiles.Set(r.Context(), id, name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchdto.Profile{Identity: string(id), DisplayName: name})
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	id := wallet.Identity(strings.TrimSpace(chi.URLParam(r, "identity")))
	name, err := s.profiles.Get(r.Context(), id)
	if errors.Is(err, profile.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, matchdto.APIError{Code: matchdto.CodeNotFound, Reason: err.Error()})
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, matchdto.Profile{Identity: string(id), DisplayName: name})
}
