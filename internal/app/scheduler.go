package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/goldstream/goldstream/internal/config"
	"github.com/goldstream/goldstream/internal/usecase"
)

// StartScheduler runs the periodic jobs: exchange-rate refresh and donation
// expiry. The returned stop function waits for running jobs to finish.
func StartScheduler(cfg config.Config, currencies usecase.CurrencyService,
	donations usecase.DonationService, log *slog.Logger) (func(), error) {
	c := cron.New()

	if _, err := c.AddFunc(cfg.RatesRefreshSpec, func() {
		ctx := context.Background()
		if err := currencies.RefreshRates(ctx); err != nil {
			log.Error("scheduled rate refresh failed", slog.Any("error", err))
		}
	}); err != nil {
		return nil, fmt.Errorf("op=scheduler.rates: %w", err)
	}

	if _, err := c.AddFunc(cfg.DonationExpirySpec, func() {
		ctx := context.Background()
		n, err := donations.ExpireStale(ctx)
		if err != nil {
			log.Error("scheduled donation expiry failed", slog.Any("error", err))
			return
		}
		if n > 0 {
			log.Info("stale donations expired", slog.Int64("count", n))
		}
	}); err != nil {
		return nil, fmt.Errorf("op=scheduler.expiry: %w", err)
	}

	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
