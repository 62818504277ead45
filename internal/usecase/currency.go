package usecase

import (
	"log/slog"
	"math"

	"github.com/goldstream/goldstream/internal/adapter/observability"
	"github.com/goldstream/goldstream/internal/domain"
)

// CurrencyService serves the currency list and runs the exchange-rate
// refresh.
type CurrencyService struct {
	Currencies   domain.CurrencyRepository
	Settings     domain.SettingsRepository
	Rates        domain.RateSource
	FinanceRatio int64
	Log          *slog.Logger
}

// NewCurrencyService constructs a CurrencyService.
func NewCurrencyService(currencies domain.CurrencyRepository, settings domain.SettingsRepository,
	rates domain.RateSource, financeRatio int64, log *slog.Logger) CurrencyService {
	return CurrencyService{Currencies: currencies, Settings: settings, Rates: rates, FinanceRatio: financeRatio, Log: log}
}

// List pages the active currencies.
func (s CurrencyService) List(ctx domain.Context, p domain.Page) ([]domain.Currency, int, error) {
	return s.Currencies.ListActive(ctx, p)
}

// DonateSizes returns the referral donation amounts for a currency.
func (s CurrencyService) DonateSizes(ctx domain.Context, currencyID int64) ([]domain.DonateSize, error) {
	return s.Currencies.DonateSizes(ctx, currencyID)
}

// RefreshRates pulls the EUR rate for every active non-EUR currency and
// stores the scaled course. Failures for one currency do not stop the rest.
func (s CurrencyService) RefreshRates(ctx domain.Context) error {
	currencies, _, err := s.Currencies.ListActive(ctx, domain.Page{Number: 1, Size: 100})
	if err != nil {
		return err
	}
	for _, c := range currencies {
		if c.Code == "EUR" {
			continue
		}
		rate, err := s.Rates.Rate(ctx, c.Code)
		if err != nil {
			s.Log.WarnContext(ctx, "rate refresh failed", slog.String("code", c.Code), slog.Any("error", err))
			continue
		}
		course := int64(math.Round(rate * float64(s.FinanceRatio)))
		if course <= 0 {
			continue
		}
		if err := s.Currencies.UpdateCourse(ctx, c.Code, course); err != nil {
			return err
		}
		observability.ExchangeRateGauge.WithLabelValues(c.Code).Set(rate)
		if c.Code == "RUB" {
			settings, err := s.Settings.Get(ctx)
			if err != nil {
				return err
			}
			settings.ExchangeRate = rate
			if err := s.Settings.Update(ctx, settings); err != nil {
				return err
			}
		}
		s.Log.InfoContext(ctx, "rate refreshed", slog.String("code", c.Code), slog.Float64("rate", rate))
	}
	return nil
}
