package usecase

import (
	"fmt"

	"github.com/goldstream/goldstream/internal/domain"
)

// UserService serves member profiles and the referral community views.
type UserService struct {
	Users      domain.UserRepository
	Dreams     domain.DreamRepository
	Currencies domain.CurrencyRepository
	Cache      domain.Cache
	MaxLevel   int
}

// NewUserService constructs a UserService. maxLevel bounds the community
// subtree depth.
func NewUserService(users domain.UserRepository, dreams domain.DreamRepository,
	currencies domain.CurrencyRepository, cache domain.Cache, maxLevel int) UserService {
	return UserService{Users: users, Dreams: dreams, Currencies: currencies, Cache: cache, MaxLevel: maxLevel}
}

// Me returns the profile together with the unread counters.
func (s UserService) Me(ctx domain.Context, userID int64) (domain.User, map[string]int64, error) {
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return domain.User{}, nil, err
	}
	counters, err := s.Cache.Counters(ctx, userID, domain.CounterUnreadEvents, domain.CounterUnconfirmedDonations)
	if err != nil {
		return domain.User{}, nil, err
	}
	return user, counters, nil
}

// ProfileInput is the mutable part of a profile.
type ProfileInput struct {
	Name      string
	Surname   string
	Phone     string
	Avatar    string
	Telegram  string
	CountryID *int64
	IsFemale  *bool
}

// UpdateProfile rewrites the mutable profile fields.
func (s UserService) UpdateProfile(ctx domain.Context, userID int64, in ProfileInput) (domain.User, error) {
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	user.Name = in.Name
	user.Surname = in.Surname
	user.Phone = in.Phone
	user.Avatar = in.Avatar
	user.Telegram = in.Telegram
	user.CountryID = in.CountryID
	user.IsFemale = in.IsFemale
	if err := s.Users.UpdateProfile(ctx, user); err != nil {
		return domain.User{}, err
	}
	return s.Users.Get(ctx, userID)
}

// SetLanguage changes the interface language.
func (s UserService) SetLanguage(ctx domain.Context, userID int64, language string) error {
	return s.Users.SetLanguage(ctx, userID, language)
}

// SetCurrency switches the member to another active currency.
func (s UserService) SetCurrency(ctx domain.Context, userID int64, code string) error {
	currency, err := s.Currencies.GetByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("%w: unknown currency %q", domain.ErrInvalidArgument, code)
	}
	if !currency.IsActive {
		return fmt.Errorf("%w: currency %q is inactive", domain.ErrInvalidArgument, code)
	}
	return s.Users.SetCurrency(ctx, userID, currency.ID)
}

// JoinStructure attaches the member to a referer's structure. Allowed once.
func (s UserService) JoinStructure(ctx domain.Context, userID int64, referCode string) error {
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if user.Referer != nil {
		return fmt.Errorf("%w: already in a structure", domain.ErrConflict)
	}
	referer, err := s.Users.GetByReferCode(ctx, referCode)
	if err != nil {
		return fmt.Errorf("%w: unknown refer code", domain.ErrInvalidArgument)
	}
	if referer.ID == userID {
		return fmt.Errorf("%w: cannot join own structure", domain.ErrInvalidArgument)
	}
	if err := s.Users.SetReferer(ctx, userID, referCode); err != nil {
		return err
	}
	// A member with a referer starts one stage higher, so open dreams catch up.
	if err := s.Dreams.PromoteByUser(ctx, userID, domain.DreamQuart, domain.DreamHalf); err != nil {
		return err
	}
	return s.Users.RecountRefs(ctx, referCode)
}

// JoinStructureByDream joins the structure of the dream's owner, so a member
// browsing the feed can join without knowing the refer code.
func (s UserService) JoinStructureByDream(ctx domain.Context, userID, dreamID int64) error {
	dream, err := s.Dreams.Get(ctx, dreamID)
	if err != nil {
		return fmt.Errorf("%w: unknown dream", domain.ErrInvalidArgument)
	}
	owner, err := s.Users.Get(ctx, dream.UserID)
	if err != nil {
		return err
	}
	if owner.ReferCode == "" {
		return fmt.Errorf("%w: dream owner has no structure", domain.ErrInvalidArgument)
	}
	return s.JoinStructure(ctx, userID, owner.ReferCode)
}

// Community pages the member's referral subtree down to MaxLevel.
func (s UserService) Community(ctx domain.Context, userID int64, p domain.Page) ([]domain.CommunityMember, int, error) {
	return s.Users.Community(ctx, userID, s.MaxLevel, p)
}

// ResetCounter zeroes one of the unread counters.
func (s UserService) ResetCounter(ctx domain.Context, userID int64, name string) error {
	switch name {
	case domain.CounterUnreadEvents, domain.CounterUnconfirmedDonations:
		return s.Cache.ResetCounter(ctx, userID, name)
	default:
		return fmt.Errorf("%w: unknown counter %q", domain.ErrInvalidArgument, name)
	}
}
