package httpserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/goldstream/goldstream/internal/domain"
	"github.com/goldstream/goldstream/internal/usecase"
)

type dreamRequest struct {
	Title       string `json:"title" validate:"required,max=64"`
	Description string `json:"description" validate:"max=10000"`
	Goal        int64  `json:"goal" validate:"required,gt=0"`
	Picture     string `json:"picture" validate:"omitempty,url"`
	CategoryID  *int64 `json:"category_id"`
	Language    string `json:"language" validate:"omitempty,len=2"`
}

func (req dreamRequest) input() usecase.DreamInput {
	lang := req.Language
	if lang == "" {
		lang = "en"
	}
	return usecase.DreamInput{
		Title: req.Title, Description: req.Description, Goal: req.Goal,
		Picture: req.Picture, CategoryID: req.CategoryID, Language: lang,
	}
}

// CreateDreamHandler opens a new dream for the member.
func (s *Server) CreateDreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dreamRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		dream, err := s.Dreams.Create(r.Context(), userIDFrom(r), req.input())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, toDreamResponse(dream))
	}
}

// DraftDreamHandler parks a dream in draft so the member can finish it later.
func (s *Server) DraftDreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dreamRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		dream, err := s.Dreams.CreateDraft(r.Context(), userIDFrom(r), req.input())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, toDreamResponse(dream))
	}
}

// PublishDreamHandler moves an own draft onto the referral ladder.
func (s *Server) PublishDreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		dream, err := s.Dreams.Publish(r.Context(), userIDFrom(r), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toDreamResponse(dream))
	}
}

// CloseDreamHandler closes an own active dream.
func (s *Server) CloseDreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		dream, err := s.Dreams.Close(r.Context(), userIDFrom(r), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toDreamResponse(dream))
	}
}

// DreamFeedHandler pages the public feed of active dreams. Optional filters:
// country, categories (comma separated ids).
func (s *Server) DreamFeedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := pageFrom(r)
		f := domain.DreamFilter{ExcludeUserID: userIDFrom(r)}
		if v, err := strconv.ParseInt(r.URL.Query().Get("country"), 10, 64); err == nil && v > 0 {
			f.CountryID = &v
		}
		if raw := r.URL.Query().Get("categories"); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil && id > 0 {
					f.CategoryIDs = append(f.CategoryIDs, id)
				}
			}
		}
		dreams, total, err := s.Dreams.ListActive(r.Context(), f, p.domain())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeList(w, toDreamResponses(dreams), total, p)
	}
}

// DreamHandler returns one dream visible to the caller.
func (s *Server) DreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		dream, err := s.Dreams.Get(r.Context(), id, userIDFrom(r))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toDreamResponse(dream))
	}
}

// MyDreamsHandler returns the member's dreams in a status.
func (s *Server) MyDreamsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := domain.DreamActive
		if v, err := strconv.Atoi(r.URL.Query().Get("status")); err == nil && v > 0 {
			status = domain.DreamStatus(v)
		}
		dreams, err := s.Dreams.ListMine(r.Context(), userIDFrom(r), status)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toDreamResponses(dreams))
	}
}

// ClimbingDreamHandler returns the member's climbing dream with its referral
// donations, regenerating expired slots on the way.
func (s *Server) ClimbingDreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dream, donations, err := s.Dreams.Climbing(r.Context(), userIDFrom(r))
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"dream":     toDreamResponse(dream),
			"donations": toDonationResponses(donations),
		})
	}
}

// UpdateDreamHandler rewrites an own dream.
func (s *Server) UpdateDreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req dreamRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		dream, err := s.Dreams.Update(r.Context(), userIDFrom(r), id, req.input())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toDreamResponse(dream))
	}
}

// DeleteDreamHandler removes an own, not yet activated dream.
func (s *Server) DeleteDreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		if err := s.Dreams.Delete(r.Context(), userIDFrom(r), id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DreamStatsHandler aggregates confirmed donations for an own dream.
func (s *Server) DreamStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		day, week, month, levels, err := s.Donations.Statistics(r.Context(), userIDFrom(r), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		resp := statsResponse{Day: toStatsEntry(day), Week: toStatsEntry(week), Month: toStatsEntry(month)}
		for _, l := range levels {
			resp.Levels = append(resp.Levels, toStatsEntry(l))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
