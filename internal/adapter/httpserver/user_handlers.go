package httpserver

import (
	"fmt"
	"net/http"

	"github.com/goldstream/goldstream/internal/domain"
	"github.com/goldstream/goldstream/internal/usecase"
)

// MeHandler returns the current profile with the unread counters.
func (s *Server) MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, counters, err := s.Users.Me(r.Context(), userIDFrom(r))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"user":     toUserResponse(user),
			"counters": counters,
		})
	}
}

type profileRequest struct {
	Name      string `json:"name" validate:"required,max=64"`
	Surname   string `json:"surname" validate:"max=64"`
	Phone     string `json:"phone" validate:"max=64"`
	Avatar    string `json:"avatar" validate:"omitempty,url"`
	Telegram  string `json:"telegram" validate:"max=64"`
	CountryID *int64 `json:"country_id"`
	IsFemale  *bool  `json:"is_female"`
}

// UpdateProfileHandler rewrites the mutable profile fields.
func (s *Server) UpdateProfileHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req profileRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		user, err := s.Users.UpdateProfile(r.Context(), userIDFrom(r), usecase.ProfileInput{
			Name: req.Name, Surname: req.Surname, Phone: req.Phone, Avatar: req.Avatar,
			Telegram: req.Telegram, CountryID: req.CountryID, IsFemale: req.IsFemale,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toUserResponse(user))
	}
}

type languageRequest struct {
	Language string `json:"language" validate:"required,len=2"`
}

// SetLanguageHandler changes the interface language.
func (s *Server) SetLanguageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req languageRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Users.SetLanguage(r.Context(), userIDFrom(r), req.Language); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type currencyRequest struct {
	Code string `json:"code" validate:"required,len=3"`
}

// SetCurrencyHandler switches the member to another active currency.
func (s *Server) SetCurrencyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req currencyRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Users.SetCurrency(r.Context(), userIDFrom(r), req.Code); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type joinRequest struct {
	ReferCode string `json:"refer_code" validate:"omitempty,len=12"`
	DreamID   int64  `json:"dream_id" validate:"omitempty,gt=0"`
}

// JoinStructureHandler attaches the member to a referer's structure, either
// by refer code or through a dream seen in the feed.
func (s *Server) JoinStructureHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req joinRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		var err error
		switch {
		case req.ReferCode != "":
			err = s.Users.JoinStructure(r.Context(), userIDFrom(r), req.ReferCode)
		case req.DreamID > 0:
			err = s.Users.JoinStructureByDream(r.Context(), userIDFrom(r), req.DreamID)
		default:
			err = fmt.Errorf("%w: refer_code or dream_id required", domain.ErrInvalidArgument)
		}
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CommunityHandler pages the member's referral subtree.
func (s *Server) CommunityHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := pageFrom(r)
		members, total, err := s.Users.Community(r.Context(), userIDFrom(r), p.domain())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeList(w, members, total, p)
	}
}

type counterRequest struct {
	Name string `json:"name" validate:"required"`
}

// ResetCounterHandler zeroes one of the unread counters.
func (s *Server) ResetCounterHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req counterRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Users.ResetCounter(r.Context(), userIDFrom(r), req.Name); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// NotificationSettingsHandler returns the member's notification toggles.
func (s *Server) NotificationSettingsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := s.Notifications.Settings(r.Context(), userIDFrom(r))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

type notificationToggleRequest struct {
	Type     string `json:"type" validate:"required,max=64"`
	IsActive bool   `json:"is_active"`
}

// ToggleNotificationHandler writes one notification toggle.
func (s *Server) ToggleNotificationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req notificationToggleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Notifications.Toggle(r.Context(), userIDFrom(r), req.Type, req.IsActive); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
