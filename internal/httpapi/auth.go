package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/hireloop/internal/auth"
	"github.com/spigell/hireloop/internal/authbridge"
	"github.com/spigell/hireloop/internal/navigation"
	"github.com/spigell/hireloop/internal/store"
)

type sessionView struct {
	Authenticated bool                 `json:"authenticated"`
	Identity      *authbridge.Identity `json:"identity,omitempty"`
	Home          string               `json:"home"`
}

func viewOf(id *authbridge.Identity) sessionView {
	return sessionView{Authenticated: id != nil, Identity: id, Home: navigation.Home(id)}
}

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

// signIn starts a local session for u and tells the bridge about it.
func (s *Server) signIn(r *http.Request, u *store.User) (*authbridge.Identity, error) {
	ra := authFrom(r.Context())
	id := identityOf(u)
	if err := ra.local.Set(r.Context(), id); err != nil {
		return nil, err
	}
	if err := ra.bridge.LocalChanged(r.Context(), id); err != nil {
		return nil, err
	}
	return id, nil
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.store.CreateUser(r.Context(), &store.User{
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		Role:         store.RoleCandidate,
		PasswordHash: hash,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.signIn(r, u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Info("candidate registered", zap.String("user_id", u.ID))
	writeJSON(w, http.StatusCreated, viewOf(id))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.store.GetUserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		err = auth.ErrInvalidCredentials
	}
	if err == nil {
		err = auth.CheckPassword(u.PasswordHash, req.Password)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	id, err := s.signIn(r, u)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, viewOf(id))
}

// logout ends the local session. The bridge then tombstones the remote one.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	ra := authFrom(r.Context())
	if err := ra.local.Clear(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := ra.bridge.LocalChanged(r.Context(), nil); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, viewOf(identityFrom(r.Context())))
}

func (s *Server) navigate(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("path")
	if target == "" {
		s.writeError(w, r, invalidBody("path query parameter is required"))
		return
	}
	writeJSON(w, http.StatusOK, navigation.Resolve(identityFrom(r.Context()), target))
}
