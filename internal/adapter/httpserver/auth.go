package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goldstream/goldstream/internal/domain"
)

type claimsKey struct{}

// refreshCookie is the httponly cookie carrying the refresh token.
const refreshCookie = "refresh_token"

// RequireAuth validates the Bearer access token, rejects revoked and refresh
// tokens, and stores the claims in the request context.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, r, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized), nil)
			return
		}
		claims, err := s.Tokens.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if claims.IsRefresh() {
			writeError(w, r, fmt.Errorf("%w: refresh token not accepted here", domain.ErrUnauthorized), nil)
			return
		}
		revoked, err := s.Auth.IsRevoked(r.Context(), claims.JTI)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if revoked {
			writeError(w, r, fmt.Errorf("%w: token revoked", domain.ErrUnauthorized), nil)
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireOperator passes only operator tokens through.
func (s *Server) RequireOperator(next http.Handler) http.Handler {
	return s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)
		if !claims.IsOperator {
			writeError(w, r, fmt.Errorf("%w: operator token required", domain.ErrForbidden), nil)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

// RequireMember passes only member tokens through.
func (s *Server) RequireMember(next http.Handler) http.Handler {
	return s.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFrom(r)
		if claims.IsOperator {
			writeError(w, r, fmt.Errorf("%w: member token required", domain.ErrForbidden), nil)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func claimsFrom(r *http.Request) domain.TokenClaims {
	if v := r.Context().Value(claimsKey{}); v != nil {
		if c, ok := v.(domain.TokenClaims); ok {
			return c
		}
	}
	return domain.TokenClaims{}
}

func userIDFrom(r *http.Request) int64 { return claimsFrom(r).SubjectID }

// setRefreshCookie attaches the refresh token as an httponly cookie so
// browser clients never touch it from script.
func (s *Server) setRefreshCookie(w http.ResponseWriter, token string, lifetime time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(lifetime.Seconds()),
		HttpOnly: true,
		Secure:   s.Cfg.IsProd(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.Cfg.IsProd(),
		SameSite: http.SameSiteLaxMode,
	})
}

// refreshTokenFrom reads the refresh token from the cookie, falling back to
// the JSON body field for non-browser clients.
func refreshTokenFrom(r *http.Request, bodyToken string) string {
	if c, err := r.Cookie(refreshCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return bodyToken
}
