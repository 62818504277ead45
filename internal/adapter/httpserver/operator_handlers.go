package httpserver

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/goldstream/goldstream/internal/domain"
)

// OperatorLoginHandler opens a back-office session.
func (s *Server) OperatorLoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		op, pair, err := s.Auth.OperatorLogin(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.setRefreshCookie(w, pair.Refresh, s.Cfg.RefreshLifetime)
		writeJSON(w, http.StatusOK, map[string]any{
			"operator": map[string]any{"id": op.ID, "email": op.Email, "name": op.Name, "is_superuser": op.IsSuperuser},
			"token":    tokenResponse{AccessToken: pair.Access, RefreshToken: pair.Refresh, TokenType: "bearer"},
		})
	}
}

// OperatorUsersHandler pages members with the back-office filter.
func (s *Server) OperatorUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := pageFrom(r)
		f := domain.UserFilter{Search: r.URL.Query().Get("search")}
		switch r.URL.Query().Get("active") {
		case "true":
			v := true
			f.IsActive = &v
		case "false":
			v := false
			f.IsActive = &v
		}
		users, total, err := s.Operators.ListUsers(r.Context(), f, p.domain())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		out := make([]userResponse, 0, len(users))
		for _, u := range users {
			out = append(out, toUserResponse(u))
		}
		writeList(w, out, total, p)
	}
}

// OperatorUserHandler returns one member.
func (s *Server) OperatorUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		user, err := s.Operators.User(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(user))
	}
}

type activeRequest struct {
	IsActive bool `json:"is_active"`
}

// OperatorBlockUserHandler blocks or unblocks a member.
func (s *Server) OperatorBlockUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req activeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Operators.SetUserActive(r.Context(), id, req.IsActive); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type vipRequest struct {
	IsVIP bool `json:"is_vip"`
}

// OperatorVIPHandler grants or removes the VIP flag.
func (s *Server) OperatorVIPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req vipRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Operators.SetUserVIP(r.Context(), id, req.IsVIP); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type charityDreamRequest struct {
	UserID int64 `json:"user_id" validate:"required,gt=0"`
	dreamRequest
}

// OperatorCharityDreamHandler opens an immediately active charity dream.
func (s *Server) OperatorCharityDreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req charityDreamRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		dream, err := s.Operators.CreateCharityDream(r.Context(), req.UserID, req.input())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, toDreamResponse(dream))
	}
}

// OperatorActivateDreamHandler approves a dream, moving it straight to the
// active feed.
func (s *Server) OperatorActivateDreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		dream, err := s.Operators.ActivateDream(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toDreamResponse(dream))
	}
}

// OperatorSettingsHandler returns the platform settings row.
func (s *Server) OperatorSettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := s.Operators.PlatformSettings(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

type settingsRequest struct {
	ExchangeRate float64 `json:"exchange_rate" validate:"required,gt=0"`
	DreamLimit   int64   `json:"dream_limit" validate:"required,gt=0"`
}

// OperatorUpdateSettingsHandler rewrites the platform settings row.
func (s *Server) OperatorUpdateSettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req settingsRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		settings, err := s.Operators.UpdatePlatformSettings(r.Context(), domain.Settings{
			ID: 1, ExchangeRate: req.ExchangeRate, DreamLimit: req.DreamLimit,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

// RefreshRatesHandler triggers the exchange-rate refresh out of schedule.
// The route is guarded by the task token instead of an operator session so
// external schedulers can call it.
func (s *Server) RefreshRatesHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Task-Token")
		if s.Cfg.TaskToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.Cfg.TaskToken)) != 1 {
			writeError(w, r, fmt.Errorf("%w: bad task token", domain.ErrUnauthorized), nil)
			return
		}
		if err := s.Currencies.RefreshRates(r.Context()); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
	}
}
