package usecase

import (
	"fmt"

	"github.com/goldstream/goldstream/internal/domain"
)

// OperatorService backs the back-office API: user management, charity dreams
// and platform settings.
type OperatorService struct {
	Operators    domain.OperatorRepository
	Users        domain.UserRepository
	Dreams       domain.DreamRepository
	Settings     domain.SettingsRepository
	CharityLimit int64
}

// NewOperatorService constructs an OperatorService.
func NewOperatorService(operators domain.OperatorRepository, users domain.UserRepository,
	dreams domain.DreamRepository, settings domain.SettingsRepository, charityLimit int64) OperatorService {
	return OperatorService{Operators: operators, Users: users, Dreams: dreams, Settings: settings, CharityLimit: charityLimit}
}

// Get returns an operator account.
func (s OperatorService) Get(ctx domain.Context, id int64) (domain.Operator, error) {
	return s.Operators.Get(ctx, id)
}

// ListUsers pages members with the back-office filter.
func (s OperatorService) ListUsers(ctx domain.Context, f domain.UserFilter, p domain.Page) ([]domain.User, int, error) {
	return s.Users.List(ctx, f, p)
}

// User returns one member.
func (s OperatorService) User(ctx domain.Context, id int64) (domain.User, error) {
	return s.Users.Get(ctx, id)
}

// SetUserActive blocks or unblocks a member.
func (s OperatorService) SetUserActive(ctx domain.Context, userID int64, active bool) error {
	if _, err := s.Users.Get(ctx, userID); err != nil {
		return err
	}
	return s.Users.SetActive(ctx, userID, active)
}

// SetUserVIP grants or removes the VIP flag. VIP members join the pool that
// replaces missing referral ancestors.
func (s OperatorService) SetUserVIP(ctx domain.Context, userID int64, vip bool) error {
	if _, err := s.Users.Get(ctx, userID); err != nil {
		return err
	}
	return s.Users.SetVIP(ctx, userID, vip)
}

// CreateCharityDream opens an immediately active charity dream under the
// given member account. Charity dreams always sit in the replacement pool.
func (s OperatorService) CreateCharityDream(ctx domain.Context, userID int64, in DreamInput) (domain.Dream, error) {
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return domain.Dream{}, err
	}
	if in.Goal <= 0 || in.Goal > s.CharityLimit {
		return domain.Dream{}, fmt.Errorf("%w: goal must be within 1..%d", domain.ErrInvalidArgument, s.CharityLimit)
	}
	d := domain.Dream{
		UserID:      user.ID,
		Status:      domain.DreamActive,
		Title:       in.Title,
		Description: in.Description,
		Goal:        in.Goal,
		Picture:     in.Picture,
		CategoryID:  in.CategoryID,
		Type:        domain.DreamTypeCharity,
		CurrencyID:  user.CurrencyID,
		Language:    in.Language,
	}
	id, err := s.Dreams.Create(ctx, d)
	if err != nil {
		return domain.Dream{}, err
	}
	return s.Dreams.Get(ctx, id)
}

// ActivateDream moves a dream straight to Active, skipping the referral
// ladder. Used by moderators to approve dreams stuck in an intermediate
// status.
func (s OperatorService) ActivateDream(ctx domain.Context, dreamID int64) (domain.Dream, error) {
	dream, err := s.Dreams.Get(ctx, dreamID)
	if err != nil {
		return domain.Dream{}, err
	}
	if dream.Status == domain.DreamClosed {
		return domain.Dream{}, fmt.Errorf("%w: dream is closed", domain.ErrConflict)
	}
	if dream.Status != domain.DreamActive {
		if err := s.Dreams.UpdateStatus(ctx, dreamID, domain.DreamActive); err != nil {
			return domain.Dream{}, err
		}
	}
	return s.Dreams.Get(ctx, dreamID)
}

// PlatformSettings returns the single settings row.
func (s OperatorService) PlatformSettings(ctx domain.Context) (domain.Settings, error) {
	return s.Settings.Get(ctx)
}

// UpdatePlatformSettings rewrites the settings row.
func (s OperatorService) UpdatePlatformSettings(ctx domain.Context, in domain.Settings) (domain.Settings, error) {
	if in.ExchangeRate <= 0 || in.DreamLimit <= 0 {
		return domain.Settings{}, fmt.Errorf("%w: settings values must be positive", domain.ErrInvalidArgument)
	}
	if err := s.Settings.Update(ctx, in); err != nil {
		return domain.Settings{}, err
	}
	return s.Settings.Get(ctx)
}
