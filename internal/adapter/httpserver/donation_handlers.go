package httpserver

import (
	"net/http"
	"strconv"
)

type freeDonateRequest struct {
	DreamID int64  `json:"dream_id" validate:"required,gt=0"`
	Amount  int64  `json:"amount" validate:"required,gt=0"`
	Comment string `json:"comment" validate:"max=2048"`
}

// FreeDonateHandler opens a voluntary donation to an active dream.
func (s *Server) FreeDonateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req freeDonateRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		donation, err := s.Donations.FreeDonate(r.Context(), userIDFrom(r), req.DreamID, req.Amount, req.Comment)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusCreated, toDonationResponse(donation))
	}
}

type payRequest struct {
	Receipt string `json:"receipt" validate:"required,max=256"`
}

// PayDonationHandler attaches the payment receipt and moves the donation to
// the waiting state.
func (s *Server) PayDonationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		var req payRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err, nil)
			return
		}
		donation, err := s.Donations.Pay(r.Context(), userIDFrom(r), id, req.Receipt)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toDonationResponse(donation))
	}
}

// ConfirmDonationHandler acknowledges a received donation.
func (s *Server) ConfirmDonationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		donation, err := s.Donations.Confirm(r.Context(), userIDFrom(r), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toDonationResponse(donation))
	}
}

// MyDonationsHandler pages donations received by the member.
func (s *Server) MyDonationsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := pageFrom(r)
		donations, total, err := s.Donations.ListMine(r.Context(), userIDFrom(r), p.domain())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		// A client can pin one donation on top of the list, e.g. the one a
		// push notification pointed at.
		if pin, err := strconv.ParseInt(r.URL.Query().Get("pin"), 10, 64); err == nil && pin > 0 {
			pinned, err := s.Donations.Get(r.Context(), userIDFrom(r), pin)
			if err != nil {
				writeError(w, r, err, nil)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"items":  toDonationResponses(donations),
				"total":  total,
				"page":   p.Number,
				"size":   p.Size,
				"pinned": toDonationResponse(pinned),
			})
			return
		}
		writeList(w, toDonationResponses(donations), total, p)
	}
}

// DonationHandler returns one donation visible to the caller.
func (s *Server) DonationHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		donation, err := s.Donations.Get(r.Context(), userIDFrom(r), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, toDonationResponse(donation))
	}
}
