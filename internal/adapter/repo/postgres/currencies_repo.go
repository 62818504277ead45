package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/goldstream/goldstream/internal/domain"
)

// CurrencyRepo persists and loads currencies and donate sizes.
type CurrencyRepo struct{ Pool PgxPool }

// NewCurrencyRepo constructs a CurrencyRepo with the given pool.
func NewCurrencyRepo(p PgxPool) *CurrencyRepo { return &CurrencyRepo{Pool: p} }

const currencyColumns = `id, code, symbol, name, course, sort_number, is_active, dream_limit, created_at, updated_at`

func scanCurrency(row pgx.Row) (domain.Currency, error) {
	var c domain.Currency
	err := row.Scan(&c.ID, &c.Code, &c.Symbol, &c.Name, &c.Course, &c.SortNumber,
		&c.IsActive, &c.DreamLimit, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// Get loads a currency by id.
func (r *CurrencyRepo) Get(ctx domain.Context, id int64) (domain.Currency, error) {
	tracer := otel.Tracer("repo.currencies")
	ctx, span := tracer.Start(ctx, "currencies.Get")
	defer span.End()
	c, err := scanCurrency(r.Pool.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currency WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Currency{}, fmt.Errorf("op=currency.get: %w", domain.ErrNotFound)
		}
		return domain.Currency{}, fmt.Errorf("op=currency.get: %w", err)
	}
	return c, nil
}

// GetByCode loads a currency by ISO code.
func (r *CurrencyRepo) GetByCode(ctx domain.Context, code string) (domain.Currency, error) {
	tracer := otel.Tracer("repo.currencies")
	ctx, span := tracer.Start(ctx, "currencies.GetByCode")
	defer span.End()
	c, err := scanCurrency(r.Pool.QueryRow(ctx, `SELECT `+currencyColumns+` FROM currency WHERE code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Currency{}, fmt.Errorf("op=currency.get_by_code: %w", domain.ErrNotFound)
		}
		return domain.Currency{}, fmt.Errorf("op=currency.get_by_code: %w", err)
	}
	return c, nil
}

// ListActive pages the active currencies in sort order.
func (r *CurrencyRepo) ListActive(ctx domain.Context, p domain.Page) ([]domain.Currency, int, error) {
	tracer := otel.Tracer("repo.currencies")
	ctx, span := tracer.Start(ctx, "currencies.ListActive")
	defer span.End()
	q := `SELECT ` + currencyColumns + `, COUNT(*) OVER () AS total FROM currency
		WHERE is_active ORDER BY sort_number, id LIMIT $1 OFFSET $2`
	rows, err := r.Pool.Query(ctx, q, p.Size, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("op=currency.list_active: %w", err)
	}
	defer rows.Close()
	var out []domain.Currency
	var total int
	for rows.Next() {
		var c domain.Currency
		err := rows.Scan(&c.ID, &c.Code, &c.Symbol, &c.Name, &c.Course, &c.SortNumber,
			&c.IsActive, &c.DreamLimit, &c.CreatedAt, &c.UpdatedAt, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("op=currency.list_active: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("op=currency.list_active: %w", err)
	}
	return out, total, nil
}

// DonateSizes returns the per-level referral donation amounts for a currency.
func (r *CurrencyRepo) DonateSizes(ctx domain.Context, currencyID int64) ([]domain.DonateSize, error) {
	tracer := otel.Tracer("repo.currencies")
	ctx, span := tracer.Start(ctx, "currencies.DonateSizes")
	defer span.End()
	rows, err := r.Pool.Query(ctx, `SELECT currency_id, level, size FROM donate_size WHERE currency_id=$1 ORDER BY level`, currencyID)
	if err != nil {
		return nil, fmt.Errorf("op=currency.donate_sizes: %w", err)
	}
	defer rows.Close()
	var out []domain.DonateSize
	for rows.Next() {
		var s domain.DonateSize
		if err := rows.Scan(&s.CurrencyID, &s.Level, &s.Size); err != nil {
			return nil, fmt.Errorf("op=currency.donate_sizes: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=currency.donate_sizes: %w", err)
	}
	return out, nil
}

// DonateSize returns the amount for a currency and level.
func (r *CurrencyRepo) DonateSize(ctx domain.Context, currencyID int64, level int) (domain.DonateSize, error) {
	tracer := otel.Tracer("repo.currencies")
	ctx, span := tracer.Start(ctx, "currencies.DonateSize")
	defer span.End()
	var s domain.DonateSize
	err := r.Pool.QueryRow(ctx, `SELECT currency_id, level, size FROM donate_size WHERE currency_id=$1 AND level=$2`,
		currencyID, level).Scan(&s.CurrencyID, &s.Level, &s.Size)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.DonateSize{}, fmt.Errorf("op=currency.donate_size: %w", domain.ErrNotFound)
		}
		return domain.DonateSize{}, fmt.Errorf("op=currency.donate_size: %w", err)
	}
	return s, nil
}

// UpdateCourse sets a currency course by ISO code.
func (r *CurrencyRepo) UpdateCourse(ctx domain.Context, code string, course int64) error {
	tracer := otel.Tracer("repo.currencies")
	ctx, span := tracer.Start(ctx, "currencies.UpdateCourse")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE currency SET course=$2, updated_at=$3 WHERE code=$1`, code, course, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=currency.update_course: %w", err)
	}
	return nil
}

// Upsert inserts or updates a currency by code and returns its id. Seeding only.
func (r *CurrencyRepo) Upsert(ctx domain.Context, c domain.Currency) (int64, error) {
	tracer := otel.Tracer("repo.currencies")
	ctx, span := tracer.Start(ctx, "currencies.Upsert")
	defer span.End()
	q := `INSERT INTO currency (code, symbol, name, course, sort_number, is_active, dream_limit)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (code) DO UPDATE SET symbol=EXCLUDED.symbol, name=EXCLUDED.name,
			course=EXCLUDED.course, sort_number=EXCLUDED.sort_number,
			is_active=EXCLUDED.is_active, dream_limit=EXCLUDED.dream_limit, updated_at=now()
		RETURNING id`
	var id int64
	err := r.Pool.QueryRow(ctx, q, c.Code, c.Symbol, c.Name, c.Course, c.SortNumber, c.IsActive, c.DreamLimit).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("op=currency.upsert: %w", err)
	}
	return id, nil
}

// UpsertDonateSize inserts or updates a per-level donation amount. Seeding only.
func (r *CurrencyRepo) UpsertDonateSize(ctx domain.Context, s domain.DonateSize) error {
	tracer := otel.Tracer("repo.currencies")
	ctx, span := tracer.Start(ctx, "currencies.UpsertDonateSize")
	defer span.End()
	q := `INSERT INTO donate_size (currency_id, level, size) VALUES ($1,$2,$3)
		ON CONFLICT (currency_id, level) DO UPDATE SET size=EXCLUDED.size`
	_, err := r.Pool.Exec(ctx, q, s.CurrencyID, s.Level, s.Size)
	if err != nil {
		return fmt.Errorf("op=currency.upsert_donate_size: %w", err)
	}
	return nil
}

// SettingsRepo reads and writes the single back-office settings row.
type SettingsRepo struct{ Pool PgxPool }

// NewSettingsRepo constructs a SettingsRepo with the given pool.
func NewSettingsRepo(p PgxPool) *SettingsRepo { return &SettingsRepo{Pool: p} }

// Get returns the settings row.
func (r *SettingsRepo) Get(ctx domain.Context) (domain.Settings, error) {
	tracer := otel.Tracer("repo.settings")
	ctx, span := tracer.Start(ctx, "settings.Get")
	defer span.End()
	var s domain.Settings
	err := r.Pool.QueryRow(ctx, `SELECT id, exchange_rate, dream_limit, updated_at FROM admin_settings WHERE id=1`).
		Scan(&s.ID, &s.ExchangeRate, &s.DreamLimit, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Settings{}, fmt.Errorf("op=settings.get: %w", domain.ErrNotFound)
		}
		return domain.Settings{}, fmt.Errorf("op=settings.get: %w", err)
	}
	return s, nil
}

// Update rewrites the settings row.
func (r *SettingsRepo) Update(ctx domain.Context, s domain.Settings) error {
	tracer := otel.Tracer("repo.settings")
	ctx, span := tracer.Start(ctx, "settings.Update")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE admin_settings SET exchange_rate=$1, dream_limit=$2, updated_at=$3 WHERE id=1`,
		s.ExchangeRate, s.DreamLimit, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=settings.update: %w", err)
	}
	return nil
}
