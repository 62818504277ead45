package domain

import (
	"context"
	"errors"
	"time"
)

// Error taxonomy (sentinels)
var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrTokenExpired    = errors.New("token expired")
	ErrInternal        = errors.New("internal error")
)

// DreamStatus is the staged lifecycle of a dream. A fresh dream starts at
// Quart (or Half when its owner already has a referer), climbs as referral
// donations are confirmed, and closes once the goal is collected.
type DreamStatus int16

const (
	DreamDraft         DreamStatus = 10
	DreamQuart         DreamStatus = 20
	DreamHalf          DreamStatus = 30
	DreamThreeQuarters DreamStatus = 40
	DreamWhole         DreamStatus = 50
	DreamActive        DreamStatus = 60
	DreamClosed        DreamStatus = 70
)

// Dream types.
const (
	DreamTypeUser    = "user"
	DreamTypeCharity = "charity"
)

// DonationStatus enumerates the donation lifecycle.
type DonationStatus int16

const (
	DonationNew           DonationStatus = 10
	DonationWaiting       DonationStatus = 20
	DonationConfirmed     DonationStatus = 30
	DonationAutoConfirmed DonationStatus = 40
	DonationFailed        DonationStatus = 99
)

// Donation levels. Level 1 is the direct referral donation; levels 2-4 go to
// the sender's referral ancestors.
const (
	LevelReferal = 1
	LevelGold    = 2
	LevelSilver  = 3
	LevelBronze  = 4
)

// User is a network member. ReferCode is the user's own invitation code;
// Referer holds the refer code of the user who invited them (nil until the
// user joins somebody's structure).
type User struct {
	ID         int64
	Name       string
	Surname    string
	Email      string
	Phone      string
	Password   string
	BirthDate  *time.Time
	CountryID  *int64
	IsFemale   *bool
	IsActive   bool
	IsVIP      bool
	Language   string
	Avatar     string
	ReferCode  string
	Referer    *string
	ReferCount int
	PaidTill   *time.Time
	TrialTill  *time.Time
	CurrencyID int64
	Telegram   string

	ResetToken      *string
	ResetTokenValid *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasSubscription reports whether the user has a paid or trial subscription
// window covering now.
func (u User) HasSubscription(now time.Time) bool {
	if u.PaidTill != nil && !u.PaidTill.Before(now.Truncate(24*time.Hour)) {
		return true
	}
	return u.TrialTill != nil && u.TrialTill.After(now)
}

// Operator is a back-office account served by the operator API.
type Operator struct {
	ID          int64
	Email       string
	Name        string
	Password    string
	IsSuperuser bool
	CreatedAt   time.Time
}

// Dream is a crowdfunded wish. Goal and Collected are minor currency units.
// RefDonations stores ids of the referral donations generated for this dream
// while its owner climbs toward activation.
type Dream struct {
	ID             int64
	UserID         int64
	Status         DreamStatus
	Title          string
	Description    string
	Collected      int64
	Goal           int64
	Picture        string
	CategoryID     *int64
	RefDonations   []int64
	Type           string
	CurrencyID     int64
	Language       string
	DonationsCount int
	ClosedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Donation transfers value between two members. Amount is denominated in the
// recipient's currency, FirstAmount in the sender's (converted by course
// ratio at creation time). LevelNumber is nil for free donations.
type Donation struct {
	ID              int64
	DreamID         int64
	Receipt         string
	RecipientID     int64
	SenderID        *int64
	LevelNumber     *int
	Amount          int64
	Status          DonationStatus
	Comment         string
	ExpiresAt       *time.Time
	PaidAt          *time.Time
	ConfirmedAt     *time.Time
	CurrencyID      int64
	FirstCurrencyID int64
	FirstAmount     int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Currency course is expressed against the EUR base scaled by the finance
// ratio (course 100 == parity with EUR). DreamLimit is the maximum dream goal
// in this currency, minor units.
type Currency struct {
	ID         int64
	Code       string
	Symbol     string
	Name       string
	Course     int64
	SortNumber int
	IsActive   bool
	DreamLimit int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DonateSize is the fixed referral donation amount for a currency and level.
type DonateSize struct {
	CurrencyID int64
	Level      int
	Size       int64
}

// Category classifies dreams.
type Category struct {
	ID    int64
	Title string
	Image string
}

// Country as shown during registration; Title is localized upstream.
type Country struct {
	ID       int64
	Title    string
	Code     string
	IsActive bool
}

// Post is a published news item.
type Post struct {
	ID            int64
	Title         string
	CoverURL      string
	Language      string
	Text          string
	MarkupText    string
	Tags          []string
	IsPublished   bool
	PublishedDate *time.Time
	CreatedAt     time.Time
}

// Review is a landing-page testimonial.
type Review struct {
	ID       int64
	Name     string
	Photo    string
	Lang     string
	Text     string
	Sort     int
	IsActive bool
}

// NotificationSetting toggles a delivery channel for a notification type,
// e.g. "new_donation-email".
type NotificationSetting struct {
	UserID   int64
	Type     string
	IsActive bool
}

// Settings is the single back-office settings row.
type Settings struct {
	ID           int64
	ExchangeRate float64
	DreamLimit   int64
	UpdatedAt    time.Time
}

// CommunityMember is a node of the referral tree relative to some root user.
type CommunityMember struct {
	UserID int64
	Level  int
	Name   string
	Avatar string
}

// DreamCandidate is a (user, dream) pair eligible to receive a generated
// referral donation, ordered by the time of its last received donation.
type DreamCandidate struct {
	UserID     int64
	DreamID    int64
	LastDonate *time.Time
}

// DonationStats aggregates confirmed donations for a recipient.
type DonationStats struct {
	Sum   int64
	Count int
	Level int
}

// Context is an alias so ports don't import std context directly.
type Context = context.Context
