package usecase

import (
	"fmt"
	"time"

	"github.com/goldstream/goldstream/internal/adapter/observability"
	"github.com/goldstream/goldstream/internal/domain"
)

// DonationConfig carries the tunables of the donation flow. MinimalDonation
// and MaxDonation bound free donations, in major EUR units.
type DonationConfig struct {
	NeedToDonateNum  int
	MinimalDonation  int64
	MaxDonation      int64
	DonationLifetime time.Duration
}

// DonationService runs the donation lifecycle: free donations, payment
// receipts and recipient confirmation with its dream side effects.
type DonationService struct {
	Donations  domain.DonationRepository
	Dreams     domain.DreamRepository
	Users      domain.UserRepository
	Currencies domain.CurrencyRepository
	Cache      domain.Cache
	Mailer     domain.Mailer
	Cfg        DonationConfig
}

// NewDonationService constructs a DonationService.
func NewDonationService(donations domain.DonationRepository, dreams domain.DreamRepository,
	users domain.UserRepository, currencies domain.CurrencyRepository,
	cache domain.Cache, mailer domain.Mailer, cfg DonationConfig) DonationService {
	return DonationService{
		Donations: donations, Dreams: dreams, Users: users, Currencies: currencies,
		Cache: cache, Mailer: mailer, Cfg: cfg,
	}
}

// FreeDonate opens a voluntary donation to an active dream. The amount is
// given in the sender's currency, minor units, and is converted into the
// recipient's currency by course ratio.
func (s DonationService) FreeDonate(ctx domain.Context, senderID, dreamID, amount int64, comment string) (domain.Donation, error) {
	dream, err := s.Dreams.Get(ctx, dreamID)
	if err != nil {
		return domain.Donation{}, err
	}
	if dream.Status != domain.DreamActive {
		return domain.Donation{}, fmt.Errorf("%w: dream is not accepting donations", domain.ErrConflict)
	}
	if dream.UserID == senderID {
		return domain.Donation{}, fmt.Errorf("%w: cannot donate to own dream", domain.ErrInvalidArgument)
	}
	sender, err := s.Users.Get(ctx, senderID)
	if err != nil {
		return domain.Donation{}, err
	}
	senderCur, err := s.Currencies.Get(ctx, sender.CurrencyID)
	if err != nil {
		return domain.Donation{}, err
	}
	// Course parity against EUR equals the finance ratio, so one major EUR
	// unit is Course minor units of the sender's currency.
	lo := s.Cfg.MinimalDonation * senderCur.Course
	hi := s.Cfg.MaxDonation * senderCur.Course
	if amount < lo || amount > hi {
		return domain.Donation{}, fmt.Errorf("%w: amount must be within %d..%d", domain.ErrInvalidArgument, lo, hi)
	}
	recipCur, err := s.Currencies.Get(ctx, dream.CurrencyID)
	if err != nil {
		return domain.Donation{}, err
	}

	expiresAt := time.Now().UTC().Add(s.Cfg.DonationLifetime)
	d := domain.Donation{
		DreamID:         dream.ID,
		RecipientID:     dream.UserID,
		SenderID:        &sender.ID,
		Amount:          convertAmount(amount, senderCur.Course, recipCur.Course),
		Status:          domain.DonationNew,
		Comment:         comment,
		ExpiresAt:       &expiresAt,
		CurrencyID:      dream.CurrencyID,
		FirstCurrencyID: sender.CurrencyID,
		FirstAmount:     amount,
	}
	id, err := s.Donations.Create(ctx, d)
	if err != nil {
		return domain.Donation{}, err
	}
	observability.DonationsCreatedTotal.WithLabelValues("free").Inc()
	return s.Donations.Get(ctx, id)
}

// Pay attaches the payment receipt and moves the donation to Waiting. Only
// the sender may pay, and only once.
func (s DonationService) Pay(ctx domain.Context, senderID, donationID int64, receipt string) (domain.Donation, error) {
	d, err := s.Donations.GetForUser(ctx, donationID, senderID)
	if err != nil {
		return domain.Donation{}, err
	}
	if d.SenderID == nil || *d.SenderID != senderID {
		return domain.Donation{}, fmt.Errorf("%w: not the donation sender", domain.ErrForbidden)
	}
	if d.Status != domain.DonationNew {
		return domain.Donation{}, fmt.Errorf("%w: donation already paid", domain.ErrConflict)
	}
	if err := s.Donations.MarkWaiting(ctx, donationID, receipt, d.FirstCurrencyID, d.FirstAmount); err != nil {
		return domain.Donation{}, err
	}

	if err := s.Cache.IncrCounter(ctx, d.RecipientID, domain.CounterUnconfirmedDonations); err != nil {
		return domain.Donation{}, err
	}
	recipient, err := s.Users.Get(ctx, d.RecipientID)
	if err != nil {
		return domain.Donation{}, err
	}
	if err := s.Mailer.Send(ctx, recipient.Email, domain.MailNewDonation, recipient.Language, nil); err != nil {
		return domain.Donation{}, err
	}
	return s.Donations.Get(ctx, donationID)
}

// Confirm acknowledges a received donation. Confirming adds to the dream's
// collected amount, closes the dream once the goal is met, and advances the
// sender's climbing dream when the donation was a referral one.
func (s DonationService) Confirm(ctx domain.Context, recipientID, donationID int64) (domain.Donation, error) {
	d, err := s.Donations.GetForUser(ctx, donationID, recipientID)
	if err != nil {
		return domain.Donation{}, err
	}
	if d.RecipientID != recipientID {
		return domain.Donation{}, fmt.Errorf("%w: not the donation recipient", domain.ErrForbidden)
	}
	if d.Status != domain.DonationWaiting {
		return domain.Donation{}, fmt.Errorf("%w: donation is not awaiting confirmation", domain.ErrConflict)
	}
	if err := s.Donations.Confirm(ctx, donationID, time.Now().UTC()); err != nil {
		return domain.Donation{}, err
	}
	observability.DonationsConfirmedTotal.Inc()

	if err := s.Dreams.AddCollected(ctx, d.DreamID, d.Amount); err != nil {
		return domain.Donation{}, err
	}
	if err := s.Dreams.RecountDonations(ctx, d.DreamID); err != nil {
		return domain.Donation{}, err
	}
	dream, err := s.Dreams.Get(ctx, d.DreamID)
	if err != nil {
		return domain.Donation{}, err
	}
	if dream.Status == domain.DreamActive && dream.Collected >= dream.Goal {
		if err := s.Dreams.Close(ctx, dream.ID, time.Now().UTC()); err != nil {
			return domain.Donation{}, err
		}
		observability.DreamsClosedTotal.Inc()
		if err := activateNextDream(ctx, s.Dreams, s.Users, dream.UserID); err != nil {
			return domain.Donation{}, err
		}
	}

	if d.LevelNumber != nil && d.SenderID != nil {
		if err := s.advanceSenderDream(ctx, d); err != nil {
			return domain.Donation{}, err
		}
	}
	return s.Donations.Get(ctx, donationID)
}

// advanceSenderDream moves the sender's climbing dream up the ladder as its
// referral donations get confirmed; the last confirmation activates it.
func (s DonationService) advanceSenderDream(ctx domain.Context, d domain.Donation) error {
	senderDream, err := s.Dreams.ByRefDonation(ctx, d.ID)
	if err != nil {
		return err
	}
	confirmed, err := s.Donations.CountConfirmedIn(ctx, senderDream.RefDonations)
	if err != nil {
		return err
	}
	next := statusForConfirmed(confirmed, s.Cfg.NeedToDonateNum)
	if next <= senderDream.Status {
		return nil
	}
	if err := s.Dreams.UpdateStatus(ctx, senderDream.ID, next); err != nil {
		return err
	}
	sender, err := s.Users.Get(ctx, *d.SenderID)
	if err != nil {
		return err
	}
	if err := s.Cache.IncrCounter(ctx, sender.ID, domain.CounterUnreadEvents); err != nil {
		return err
	}
	if next == domain.DreamActive && sender.Referer != nil {
		return s.Users.RecountRefs(ctx, *sender.Referer)
	}
	return nil
}

// statusForConfirmed maps confirmed referral donations to the dream stage.
func statusForConfirmed(confirmed, need int) domain.DreamStatus {
	if confirmed >= need {
		return domain.DreamActive
	}
	return domain.DreamQuart + domain.DreamStatus(confirmed)*10
}

// Get returns a donation visible to the user as sender or recipient.
func (s DonationService) Get(ctx domain.Context, userID, donationID int64) (domain.Donation, error) {
	return s.Donations.GetForUser(ctx, donationID, userID)
}

// ListMine pages donations received by the member.
func (s DonationService) ListMine(ctx domain.Context, userID int64, p domain.Page) ([]domain.Donation, int, error) {
	return s.Donations.ListMine(ctx, userID, p)
}

// Statistics aggregates confirmed donations for an own dream.
func (s DonationService) Statistics(ctx domain.Context, userID, dreamID int64) (day, week, month domain.DonationStats, levels []domain.DonationStats, err error) {
	dream, err := s.Dreams.Get(ctx, dreamID)
	if err != nil {
		return domain.DonationStats{}, domain.DonationStats{}, domain.DonationStats{}, nil, err
	}
	if dream.UserID != userID {
		return domain.DonationStats{}, domain.DonationStats{}, domain.DonationStats{}, nil,
			fmt.Errorf("%w: not the dream owner", domain.ErrForbidden)
	}
	return s.Donations.Statistics(ctx, userID, dreamID)
}

// ExpireStale fails unpaid donations past their lifetime. Replacement slots
// are regenerated when the sender next opens their climbing dream.
func (s DonationService) ExpireStale(ctx domain.Context) (int64, error) {
	n, err := s.Donations.ExpireStale(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		observability.DonationsExpiredTotal.Add(float64(n))
	}
	return n, nil
}
