package usecase

import (
	"errors"
	"fmt"
	"time"

	"github.com/goldstream/goldstream/internal/adapter/observability"
	"github.com/goldstream/goldstream/internal/domain"
)

// DreamConfig carries the tunables of the dream lifecycle.
type DreamConfig struct {
	NeedToDonateNum  int
	MaxDreamCount    int
	DonationLifetime time.Duration
}

// DreamService runs the dream lifecycle: creation, the climb through the
// staged statuses and the public feed.
type DreamService struct {
	Dreams     domain.DreamRepository
	Users      domain.UserRepository
	Donations  domain.DonationRepository
	Currencies domain.CurrencyRepository
	Cfg        DreamConfig
}

// NewDreamService constructs a DreamService.
func NewDreamService(dreams domain.DreamRepository, users domain.UserRepository,
	donations domain.DonationRepository, currencies domain.CurrencyRepository, cfg DreamConfig) DreamService {
	return DreamService{Dreams: dreams, Users: users, Donations: donations, Currencies: currencies, Cfg: cfg}
}

// DreamInput is the member-supplied part of a dream.
type DreamInput struct {
	Title       string
	Description string
	Goal        int64
	Picture     string
	CategoryID  *int64
	Language    string
}

// validateNew checks the per-member dream limit and the goal bounds of the
// member's currency.
func (s DreamService) validateNew(ctx domain.Context, userID int64, in DreamInput) (domain.User, error) {
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	count, err := s.Dreams.CountByUser(ctx, userID)
	if err != nil {
		return domain.User{}, err
	}
	if count >= s.Cfg.MaxDreamCount {
		return domain.User{}, fmt.Errorf("%w: dream limit reached", domain.ErrConflict)
	}
	currency, err := s.Currencies.Get(ctx, user.CurrencyID)
	if err != nil {
		return domain.User{}, err
	}
	if in.Goal <= 0 || in.Goal > currency.DreamLimit {
		return domain.User{}, fmt.Errorf("%w: goal must be within 1..%d", domain.ErrInvalidArgument, currency.DreamLimit)
	}
	return user, nil
}

// hasClimbingDream reports whether the member already has a dream working
// through the referral ladder. Only one climbs at a time.
func (s DreamService) hasClimbingDream(ctx domain.Context, userID int64) (bool, error) {
	for _, status := range []domain.DreamStatus{domain.DreamQuart, domain.DreamHalf, domain.DreamThreeQuarters, domain.DreamWhole} {
		if _, err := s.Dreams.FirstByUserStatus(ctx, userID, status); err == nil {
			return true, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return false, err
		}
	}
	return false, nil
}

func newUserDream(user domain.User, in DreamInput, status domain.DreamStatus) domain.Dream {
	return domain.Dream{
		UserID:      user.ID,
		Status:      status,
		Title:       in.Title,
		Description: in.Description,
		Goal:        in.Goal,
		Picture:     in.Picture,
		CategoryID:  in.CategoryID,
		Type:        domain.DreamTypeUser,
		CurrencyID:  user.CurrencyID,
		Language:    in.Language,
	}
}

// Create opens a new dream for the member and generates its referral
// donations. A member joined to a structure starts one stage higher.
func (s DreamService) Create(ctx domain.Context, userID int64, in DreamInput) (domain.Dream, error) {
	user, err := s.validateNew(ctx, userID, in)
	if err != nil {
		return domain.Dream{}, err
	}
	climbing, err := s.hasClimbingDream(ctx, userID)
	if err != nil {
		return domain.Dream{}, err
	}
	if climbing {
		return domain.Dream{}, fmt.Errorf("%w: another dream is already climbing", domain.ErrConflict)
	}
	status := domain.DreamQuart
	if user.Referer != nil {
		status = domain.DreamHalf
	}
	id, err := s.Dreams.Create(ctx, newUserDream(user, in, status))
	if err != nil {
		return domain.Dream{}, err
	}
	dream, err := s.Dreams.Get(ctx, id)
	if err != nil {
		return domain.Dream{}, err
	}
	if err := s.EnsureRefDonations(ctx, dream); err != nil {
		return domain.Dream{}, err
	}
	return s.Dreams.Get(ctx, id)
}

// CreateDraft parks a dream in Draft. Drafts stay off the referral ladder
// until published.
func (s DreamService) CreateDraft(ctx domain.Context, userID int64, in DreamInput) (domain.Dream, error) {
	user, err := s.validateNew(ctx, userID, in)
	if err != nil {
		return domain.Dream{}, err
	}
	id, err := s.Dreams.Create(ctx, newUserDream(user, in, domain.DreamDraft))
	if err != nil {
		return domain.Dream{}, err
	}
	return s.Dreams.Get(ctx, id)
}

// Publish moves an own draft onto the referral ladder and generates its
// referral donations.
func (s DreamService) Publish(ctx domain.Context, userID, dreamID int64) (domain.Dream, error) {
	dream, err := s.Dreams.Get(ctx, dreamID)
	if err != nil {
		return domain.Dream{}, err
	}
	if dream.UserID != userID {
		return domain.Dream{}, fmt.Errorf("%w: not the dream owner", domain.ErrForbidden)
	}
	if dream.Status != domain.DreamDraft {
		return domain.Dream{}, fmt.Errorf("%w: only drafts can be published", domain.ErrConflict)
	}
	climbing, err := s.hasClimbingDream(ctx, userID)
	if err != nil {
		return domain.Dream{}, err
	}
	if climbing {
		return domain.Dream{}, fmt.Errorf("%w: another dream is already climbing", domain.ErrConflict)
	}
	user, err := s.Users.Get(ctx, userID)
	if err != nil {
		return domain.Dream{}, err
	}
	status := domain.DreamQuart
	if user.Referer != nil {
		status = domain.DreamHalf
	}
	if err := s.Dreams.UpdateStatus(ctx, dreamID, status); err != nil {
		return domain.Dream{}, err
	}
	dream, err = s.Dreams.Get(ctx, dreamID)
	if err != nil {
		return domain.Dream{}, err
	}
	if err := s.EnsureRefDonations(ctx, dream); err != nil {
		return domain.Dream{}, err
	}
	return s.Dreams.Get(ctx, dreamID)
}

// EnsureRefDonations tops the dream's referral donations back up to the
// required count. Slots go to the owner's referral ancestors by level; an
// ancestor without an active dream or subscription is replaced from the pool
// of top fundraisers, VIPs and charity dreams, least recently donated first.
// Failed donations are regenerated, and a still-unpaid slot whose recipient
// went ineligible in the meantime is failed and refilled, so the call is safe
// to repeat.
func (s DreamService) EnsureRefDonations(ctx domain.Context, dream domain.Dream) error {
	if dream.Status >= domain.DreamActive {
		return nil
	}
	sender, err := s.Users.Get(ctx, dream.UserID)
	if err != nil {
		return err
	}
	senderCur, err := s.Currencies.Get(ctx, sender.CurrencyID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	live := make(map[int]int64, s.Cfg.NeedToDonateNum)
	usedRecipients := map[int64]bool{sender.ID: true}
	if len(dream.RefDonations) > 0 {
		existing, err := s.Donations.ListByIDs(ctx, dream.RefDonations)
		if err != nil {
			return err
		}
		for _, d := range existing {
			if d.Status == domain.DonationFailed || d.LevelNumber == nil {
				continue
			}
			if d.Status == domain.DonationNew {
				ok, err := s.recipientStillEligible(ctx, d, now)
				if err != nil {
					return err
				}
				if !ok {
					if err := s.Donations.Fail(ctx, d.ID); err != nil {
						return err
					}
					continue
				}
			}
			live[*d.LevelNumber] = d.ID
			usedRecipients[d.RecipientID] = true
		}
	}

	var missing []int
	for level := 1; level <= s.Cfg.NeedToDonateNum; level++ {
		if _, ok := live[level]; !ok {
			missing = append(missing, level)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	ancestors, err := s.Users.Ancestors(ctx, sender.ID, s.Cfg.NeedToDonateNum)
	if err != nil {
		return err
	}
	candidates, err := s.Dreams.ReplacementCandidates(ctx, sender.ID)
	if err != nil {
		return err
	}

	expiresAt := now.Add(s.Cfg.DonationLifetime)
	candIdx := 0
	var batch []domain.Donation
	for _, level := range missing {
		recipientID, targetDreamID, ok, err := s.pickRecipient(ctx, ancestors, level, usedRecipients, now)
		if err != nil {
			return err
		}
		if !ok {
			for candIdx < len(candidates) {
				c := candidates[candIdx]
				candIdx++
				if usedRecipients[c.UserID] {
					continue
				}
				recipientID, targetDreamID, ok = c.UserID, c.DreamID, true
				break
			}
		}
		if !ok {
			// Nobody left to receive this level; a later call retries.
			continue
		}
		usedRecipients[recipientID] = true

		recipient, err := s.Users.Get(ctx, recipientID)
		if err != nil {
			return err
		}
		recipCur, err := s.Currencies.Get(ctx, recipient.CurrencyID)
		if err != nil {
			return err
		}
		size, err := s.Currencies.DonateSize(ctx, sender.CurrencyID, level)
		if err != nil {
			return err
		}
		level := level
		batch = append(batch, domain.Donation{
			DreamID:         targetDreamID,
			RecipientID:     recipientID,
			SenderID:        &sender.ID,
			LevelNumber:     &level,
			Amount:          convertAmount(size.Size, senderCur.Course, recipCur.Course),
			Status:          domain.DonationNew,
			ExpiresAt:       &expiresAt,
			CurrencyID:      recipient.CurrencyID,
			FirstCurrencyID: sender.CurrencyID,
			FirstAmount:     size.Size,
		})
	}
	if len(batch) == 0 {
		return nil
	}

	ids, err := s.Donations.CreateBatch(ctx, batch)
	if err != nil {
		return err
	}
	observability.DonationsCreatedTotal.WithLabelValues("referral").Add(float64(len(ids)))

	all := make([]int64, 0, len(live)+len(ids))
	for _, id := range live {
		all = append(all, id)
	}
	all = append(all, ids...)
	return s.Dreams.SetRefDonations(ctx, dream.ID, all)
}

// pickRecipient tries the referral ancestor for the level. The ancestor must
// be active, subscribed, unused and own an active dream.
func (s DreamService) pickRecipient(ctx domain.Context, ancestors []domain.User, level int,
	used map[int64]bool, now time.Time) (int64, int64, bool, error) {
	if level > len(ancestors) {
		return 0, 0, false, nil
	}
	a := ancestors[level-1]
	if used[a.ID] || !a.IsActive || !a.HasSubscription(now) {
		return 0, 0, false, nil
	}
	target, err := s.Dreams.FirstByUserStatus(ctx, a.ID, domain.DreamActive)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, 0, false, nil
		}
		return 0, 0, false, err
	}
	return a.ID, target.ID, true, nil
}

// recipientStillEligible re-checks a not-yet-paid referral donation against
// the recipient rules: the recipient must still be active and subscribed and
// the target dream must still be active.
func (s DreamService) recipientStillEligible(ctx domain.Context, d domain.Donation, now time.Time) (bool, error) {
	recipient, err := s.Users.Get(ctx, d.RecipientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !recipient.IsActive || !recipient.HasSubscription(now) {
		return false, nil
	}
	target, err := s.Dreams.Get(ctx, d.DreamID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return target.Status == domain.DreamActive, nil
}

// Get returns a dream. Dreams outside the public feed are visible to their
// owner only.
func (s DreamService) Get(ctx domain.Context, id, viewerID int64) (domain.Dream, error) {
	dream, err := s.Dreams.Get(ctx, id)
	if err != nil {
		return domain.Dream{}, err
	}
	if dream.Status != domain.DreamActive && dream.UserID != viewerID {
		return domain.Dream{}, fmt.Errorf("%w: dream", domain.ErrNotFound)
	}
	return dream, nil
}

// ListActive pages the public feed of active dreams.
func (s DreamService) ListActive(ctx domain.Context, f domain.DreamFilter, p domain.Page) ([]domain.Dream, int, error) {
	return s.Dreams.ListActive(ctx, f, p)
}

// ListMine returns the member's dreams in the given status.
func (s DreamService) ListMine(ctx domain.Context, userID int64, status domain.DreamStatus) ([]domain.Dream, error) {
	return s.Dreams.ListByUserStatus(ctx, userID, status)
}

// Climbing returns the member's dream currently working through the referral
// ladder, together with its referral donations.
func (s DreamService) Climbing(ctx domain.Context, userID int64) (domain.Dream, []domain.Donation, error) {
	for _, status := range []domain.DreamStatus{domain.DreamQuart, domain.DreamHalf, domain.DreamThreeQuarters, domain.DreamWhole} {
		dream, err := s.Dreams.FirstByUserStatus(ctx, userID, status)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return domain.Dream{}, nil, err
		}
		if err := s.EnsureRefDonations(ctx, dream); err != nil {
			return domain.Dream{}, nil, err
		}
		dream, err = s.Dreams.Get(ctx, dream.ID)
		if err != nil {
			return domain.Dream{}, nil, err
		}
		donations, err := s.Donations.ListByIDs(ctx, dream.RefDonations)
		if err != nil {
			return domain.Dream{}, nil, err
		}
		return dream, donations, nil
	}
	return domain.Dream{}, nil, fmt.Errorf("%w: no climbing dream", domain.ErrNotFound)
}

// Close closes the member's own active dream and, when the member has a
// subscription, puts their fully climbed dream in its place.
func (s DreamService) Close(ctx domain.Context, userID, dreamID int64) (domain.Dream, error) {
	dream, err := s.Dreams.Get(ctx, dreamID)
	if err != nil {
		return domain.Dream{}, err
	}
	if dream.UserID != userID {
		return domain.Dream{}, fmt.Errorf("%w: not the dream owner", domain.ErrForbidden)
	}
	if dream.Status != domain.DreamActive {
		return domain.Dream{}, fmt.Errorf("%w: only active dreams can be closed", domain.ErrConflict)
	}
	if err := s.Dreams.Close(ctx, dreamID, time.Now().UTC()); err != nil {
		return domain.Dream{}, err
	}
	observability.DreamsClosedTotal.Inc()
	if err := activateNextDream(ctx, s.Dreams, s.Users, userID); err != nil {
		return domain.Dream{}, err
	}
	return s.Dreams.Get(ctx, dreamID)
}

// activateNextDream promotes the user's fully climbed dream to active after
// their active dream closed. Requires a subscription and no other active
// dream.
func activateNextDream(ctx domain.Context, dreams domain.DreamRepository, users domain.UserRepository, userID int64) error {
	user, err := users.Get(ctx, userID)
	if err != nil {
		return err
	}
	if !user.HasSubscription(time.Now().UTC()) {
		return nil
	}
	if _, err := dreams.FirstByUserStatus(ctx, userID, domain.DreamActive); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	whole, err := dreams.FirstByUserStatus(ctx, userID, domain.DreamWhole)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	return dreams.UpdateStatus(ctx, whole.ID, domain.DreamActive)
}

// Update rewrites the member-editable fields of an own, still-open dream.
func (s DreamService) Update(ctx domain.Context, userID, dreamID int64, in DreamInput) (domain.Dream, error) {
	dream, err := s.Dreams.Get(ctx, dreamID)
	if err != nil {
		return domain.Dream{}, err
	}
	if dream.UserID != userID {
		return domain.Dream{}, fmt.Errorf("%w: not the dream owner", domain.ErrForbidden)
	}
	if dream.Status == domain.DreamClosed {
		return domain.Dream{}, fmt.Errorf("%w: dream closed", domain.ErrConflict)
	}
	currency, err := s.Currencies.Get(ctx, dream.CurrencyID)
	if err != nil {
		return domain.Dream{}, err
	}
	if in.Goal <= 0 || in.Goal > currency.DreamLimit {
		return domain.Dream{}, fmt.Errorf("%w: goal must be within 1..%d", domain.ErrInvalidArgument, currency.DreamLimit)
	}
	if dream.Status >= domain.DreamActive && in.Goal < dream.Collected {
		return domain.Dream{}, fmt.Errorf("%w: goal below collected amount", domain.ErrInvalidArgument)
	}
	dream.Title = in.Title
	dream.Description = in.Description
	dream.Goal = in.Goal
	dream.Picture = in.Picture
	dream.CategoryID = in.CategoryID
	dream.Language = in.Language
	if err := s.Dreams.Update(ctx, dream); err != nil {
		return domain.Dream{}, err
	}
	return s.Dreams.Get(ctx, dreamID)
}

// Delete removes an own dream that has not activated and collected nothing.
func (s DreamService) Delete(ctx domain.Context, userID, dreamID int64) error {
	dream, err := s.Dreams.Get(ctx, dreamID)
	if err != nil {
		return err
	}
	if dream.UserID != userID {
		return fmt.Errorf("%w: not the dream owner", domain.ErrForbidden)
	}
	if dream.Status >= domain.DreamActive {
		return fmt.Errorf("%w: active dream cannot be deleted", domain.ErrConflict)
	}
	if len(dream.RefDonations) > 0 {
		confirmed, err := s.Donations.CountConfirmedIn(ctx, dream.RefDonations)
		if err != nil {
			return err
		}
		if confirmed > 0 {
			return fmt.Errorf("%w: dream has confirmed donations", domain.ErrConflict)
		}
	}
	return s.Dreams.Delete(ctx, dreamID)
}

// convertAmount converts minor units between currencies by course ratio
// against EUR.
func convertAmount(amount, fromCourse, toCourse int64) int64 {
	if fromCourse == 0 {
		return amount
	}
	return amount * toCourse / fromCourse
}
