package httpserver

import (
	"net/http"

	"github.com/goldstream/goldstream/internal/usecase"
)

type registerRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	Name         string `json:"name" validate:"required,max=64"`
	Surname      string `json:"surname" validate:"max=64"`
	ReferCode    string `json:"refer_code" validate:"omitempty,len=12"`
	CurrencyCode string `json:"currency_code" validate:"required,len=3"`
	Language     string `json:"language" validate:"omitempty,len=2"`
	CountryID    *int64 `json:"country_id"`
}

// RegisterHandler parks a registration and mails the confirm token. The
// token is echoed back outside production to ease local testing.
func (s *Server) RegisterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if req.Language == "" {
			req.Language = "en"
		}
		token, err := s.Auth.Register(r.Context(), usecase.RegisterInput{
			Email: req.Email, Password: req.Password, Name: req.Name, Surname: req.Surname,
			ReferCode: req.ReferCode, CurrencyCode: req.CurrencyCode,
			Language: req.Language, CountryID: req.CountryID,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		body := map[string]any{"status": "pending"}
		if !s.Cfg.IsProd() {
			body["confirm_token"] = token
		}
		writeJSON(w, http.StatusAccepted, body)
	}
}

type confirmRequest struct {
	Token string `json:"token" validate:"required"`
}

// ConfirmHandler finishes a registration and opens the first session.
func (s *Server) ConfirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		user, pair, err := s.Auth.Confirm(r.Context(), req.Token)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.setRefreshCookie(w, pair.Refresh, s.Cfg.RefreshLifetime)
		writeJSON(w, http.StatusCreated, map[string]any{
			"user":  toUserResponse(user),
			"token": tokenResponse{AccessToken: pair.Access, RefreshToken: pair.Refresh, TokenType: "bearer"},
		})
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginHandler checks credentials and opens a session.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		user, pair, err := s.Auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.setRefreshCookie(w, pair.Refresh, s.Cfg.RefreshLifetime)
		writeJSON(w, http.StatusOK, map[string]any{
			"user":  toUserResponse(user),
			"token": tokenResponse{AccessToken: pair.Access, RefreshToken: pair.Refresh, TokenType: "bearer"},
		})
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// RefreshHandler rotates the token pair. The refresh token comes from the
// httponly cookie or, for non-browser clients, the body.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		// The body is optional when the cookie is present.
		_ = decodeJSON(r, &req)
		pair, err := s.Auth.Refresh(r.Context(), refreshTokenFrom(r, req.RefreshToken))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.setRefreshCookie(w, pair.Refresh, s.Cfg.RefreshLifetime)
		writeJSON(w, http.StatusOK, tokenResponse{AccessToken: pair.Access, RefreshToken: pair.Refresh, TokenType: "bearer"})
	}
}

// LogoutHandler revokes the current session pair and drops the cookie.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		_ = decodeJSON(r, &req)
		claims := claimsFrom(r)
		if err := s.Auth.Logout(r.Context(), claims.JTI, refreshTokenFrom(r, req.RefreshToken)); err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.clearRefreshCookie(w)
		w.WriteHeader(http.StatusNoContent)
	}
}

type resetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// ResetRequestHandler mails a password reset token. Always 202 so the
// endpoint does not leak which emails exist.
func (s *Server) ResetRequestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "pending"})
	}
}

type resetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// ResetConfirmHandler swaps the password for a valid reset token and opens a
// fresh session.
func (s *Server) ResetConfirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetConfirmRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		user, pair, err := s.Auth.ResetPassword(r.Context(), req.Token, req.Password)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		s.setRefreshCookie(w, pair.Refresh, s.Cfg.RefreshLifetime)
		writeJSON(w, http.StatusOK, map[string]any{
			"user":  toUserResponse(user),
			"token": tokenResponse{AccessToken: pair.Access, RefreshToken: pair.Refresh, TokenType: "bearer"},
		})
	}
}

type changePasswordRequest struct {
	Current string `json:"current" validate:"required"`
	Next    string `json:"next" validate:"required,min=8,max=72"`
}

// ChangePasswordHandler swaps the password of the current member.
func (s *Server) ChangePasswordHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Auth.ChangePassword(r.Context(), userIDFrom(r), req.Current, req.Next); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
