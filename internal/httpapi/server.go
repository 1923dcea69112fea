// Package httpapi is the pull side of the protocol: the REST surface for
// lifecycle mutations and the snapshot endpoint clients poll to reconcile
// after a dropped push connection. Snapshot responses are total — always
// the full projection — so reapplying one is always safe.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ryanongwx/chessbet/internal/lobby"
	"github.com/ryanongwx/chessbet/internal/profile"
	"github.com/ryanongwx/chessbet/internal/wallet"
	"github.com/ryanongwx/chessbet/pkg/matchdto"
)

type Server struct {
	verifier *wallet.Verifier
	manager  *lobby.Manager
	profiles *profile.Store
}

func NewServer(verifier *wallet.Verifier, manager *lobby.Manager, profiles *profile.Store) *Server {
	return &Server{verifier: verifier, manager: manager, profiles: profiles}
}

// Router builds the chi mux. The websocket handler is mounted by the
// caller so this package stays transport-pure.
func (s *Server) Router(ws http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Get("/result", s.getResult)
			r.Post("/join", s.joinSession)
			r.Post("/cancel", s.cancelSession)
			r.Post("/concede", s.concedeSession)
			r.Post("/timeout", s.timeoutSession)
		})
	})
	r.Route("/profiles", func(r chi.Router) {
		r.Post("/", s.setProfile)
		r.Get("/{identity}", s.getProfile)
	})
	if ws != nil {
		r.Get("/ws", ws)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders the machine-readable envelope with the status implied
// by the taxonomy code.
func writeError(w http.ResponseWriter, err error) {
	code := lobby.CodeFor(err)
	writeJSON(w, statusFor(code, err), matchdto.APIError{Code: code, Reason: err.Error()})
}

func statusFor(code matchdto.ErrorCode, err error) int {
	switch code {
	case matchdto.CodeAuthInvalid, matchdto.CodeAuthStale:
		return http.StatusUnauthorized
	case matchdto.CodeValidation:
		return http.StatusBadRequest
	case matchdto.CodeNotFound:
		return http.StatusNotFound
	case matchdto.CodeStateConflict:
		// Ownership violations are forbidden; every other state-machine
		// precondition failure is a plain bad request.
		switch err {
		case lobby.ErrNotCreator, lobby.ErrNotParticipant:
			return http.StatusForbidden
		}
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}
