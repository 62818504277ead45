package httpserver

import (
	"time"

	"github.com/goldstream/goldstream/internal/domain"
)

type userResponse struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Surname    string     `json:"surname"`
	Email      string     `json:"email"`
	Phone      string     `json:"phone"`
	Avatar     string     `json:"avatar"`
	Telegram   string     `json:"telegram"`
	Language   string     `json:"language"`
	ReferCode  string     `json:"refer_code"`
	Referer    *string    `json:"referer,omitempty"`
	ReferCount int        `json:"refer_count"`
	IsVIP      bool       `json:"is_vip"`
	CountryID  *int64     `json:"country_id,omitempty"`
	CurrencyID int64      `json:"currency_id"`
	PaidTill   *time.Time `json:"paid_till,omitempty"`
	TrialTill  *time.Time `json:"trial_till,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID: u.ID, Name: u.Name, Surname: u.Surname, Email: u.Email, Phone: u.Phone,
		Avatar: u.Avatar, Telegram: u.Telegram, Language: u.Language,
		ReferCode: u.ReferCode, Referer: u.Referer, ReferCount: u.ReferCount,
		IsVIP: u.IsVIP, CountryID: u.CountryID, CurrencyID: u.CurrencyID,
		PaidTill: u.PaidTill, TrialTill: u.TrialTill, CreatedAt: u.CreatedAt,
	}
}

type dreamResponse struct {
	ID             int64      `json:"id"`
	UserID         int64      `json:"user_id"`
	Status         int16      `json:"status"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Collected      int64      `json:"collected"`
	Goal           int64      `json:"goal"`
	Picture        string     `json:"picture"`
	CategoryID     *int64     `json:"category_id,omitempty"`
	Type           string     `json:"type"`
	CurrencyID     int64      `json:"currency_id"`
	Language       string     `json:"language"`
	DonationsCount int        `json:"donations_count"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toDreamResponse(d domain.Dream) dreamResponse {
	return dreamResponse{
		ID: d.ID, UserID: d.UserID, Status: int16(d.Status), Title: d.Title,
		Description: d.Description, Collected: d.Collected, Goal: d.Goal,
		Picture: d.Picture, CategoryID: d.CategoryID, Type: d.Type,
		CurrencyID: d.CurrencyID, Language: d.Language,
		DonationsCount: d.DonationsCount, ClosedAt: d.ClosedAt, CreatedAt: d.CreatedAt,
	}
}

func toDreamResponses(ds []domain.Dream) []dreamResponse {
	out := make([]dreamResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDreamResponse(d))
	}
	return out
}

type donationResponse struct {
	ID              int64      `json:"id"`
	DreamID         int64      `json:"dream_id"`
	Receipt         string     `json:"receipt,omitempty"`
	RecipientID     int64      `json:"recipient_id"`
	SenderID        *int64     `json:"sender_id,omitempty"`
	LevelNumber     *int       `json:"level_number,omitempty"`
	Amount          int64      `json:"amount"`
	Status          int16      `json:"status"`
	Comment         string     `json:"comment,omitempty"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	ConfirmedAt     *time.Time `json:"confirmed_at,omitempty"`
	CurrencyID      int64      `json:"currency_id"`
	FirstCurrencyID int64      `json:"first_currency_id"`
	FirstAmount     int64      `json:"first_amount"`
	CreatedAt       time.Time  `json:"created_at"`
}

func toDonationResponse(d domain.Donation) donationResponse {
	return donationResponse{
		ID: d.ID, DreamID: d.DreamID, Receipt: d.Receipt, RecipientID: d.RecipientID,
		SenderID: d.SenderID, LevelNumber: d.LevelNumber, Amount: d.Amount,
		Status: int16(d.Status), Comment: d.Comment, ExpiresAt: d.ExpiresAt,
		PaidAt: d.PaidAt, ConfirmedAt: d.ConfirmedAt, CurrencyID: d.CurrencyID,
		FirstCurrencyID: d.FirstCurrencyID, FirstAmount: d.FirstAmount, CreatedAt: d.CreatedAt,
	}
}

func toDonationResponses(ds []domain.Donation) []donationResponse {
	out := make([]donationResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, toDonationResponse(d))
	}
	return out
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

type currencyResponse struct {
	ID         int64  `json:"id"`
	Code       string `json:"code"`
	Symbol     string `json:"symbol"`
	Name       string `json:"name"`
	Course     int64  `json:"course"`
	DreamLimit int64  `json:"dream_limit"`
}

func toCurrencyResponse(c domain.Currency) currencyResponse {
	return currencyResponse{ID: c.ID, Code: c.Code, Symbol: c.Symbol, Name: c.Name, Course: c.Course, DreamLimit: c.DreamLimit}
}

type statsResponse struct {
	Day    statsEntry   `json:"day"`
	Week   statsEntry   `json:"week"`
	Month  statsEntry   `json:"month"`
	Levels []statsEntry `json:"levels"`
}

type statsEntry struct {
	Sum   int64 `json:"sum"`
	Count int   `json:"count"`
	Level int   `json:"level,omitempty"`
}

func toStatsEntry(s domain.DonationStats) statsEntry {
	return statsEntry{Sum: s.Sum, Count: s.Count, Level: s.Level}
}
