package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/goldstream/goldstream/internal/domain"
)

// DonationRepo persists and loads donations from PostgreSQL.
type DonationRepo struct{ Pool PgxPool }

// NewDonationRepo constructs a DonationRepo with the given pool.
func NewDonationRepo(p PgxPool) *DonationRepo { return &DonationRepo{Pool: p} }

const donationColumns = `id, dream_id, receipt, recipient_id, sender_id, level_number, amount,
	status, comment, expires_at, paid_at, confirmed_at, currency_id, first_currency_id,
	first_amount, created_at, updated_at`

func scanDonation(row pgx.Row) (domain.Donation, error) {
	var d domain.Donation
	err := row.Scan(&d.ID, &d.DreamID, &d.Receipt, &d.RecipientID, &d.SenderID, &d.LevelNumber,
		&d.Amount, &d.Status, &d.Comment, &d.ExpiresAt, &d.PaidAt, &d.ConfirmedAt,
		&d.CurrencyID, &d.FirstCurrencyID, &d.FirstAmount, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

const donationInsert = `INSERT INTO donation (dream_id, receipt, recipient_id, sender_id,
	level_number, amount, status, comment, expires_at, currency_id, first_currency_id, first_amount)
	VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12) RETURNING id`

// Create inserts a donation and returns its id.
func (r *DonationRepo) Create(ctx domain.Context, d domain.Donation) (int64, error) {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.Create")
	defer span.End()
	var id int64
	err := r.Pool.QueryRow(ctx, donationInsert, d.DreamID, d.Receipt, d.RecipientID, d.SenderID,
		d.LevelNumber, d.Amount, d.Status, d.Comment, d.ExpiresAt, d.CurrencyID,
		d.FirstCurrencyID, d.FirstAmount).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("op=donation.create: %w", err)
	}
	return id, nil
}

// CreateBatch inserts several donations in one transaction, returning ids in
// input order. Used when generating the referral donation set for a dream.
func (r *DonationRepo) CreateBatch(ctx domain.Context, ds []domain.Donation) ([]int64, error) {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.CreateBatch")
	defer span.End()
	tx, err := r.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("op=donation.create_batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	ids := make([]int64, 0, len(ds))
	for _, d := range ds {
		var id int64
		err := tx.QueryRow(ctx, donationInsert, d.DreamID, d.Receipt, d.RecipientID, d.SenderID,
			d.LevelNumber, d.Amount, d.Status, d.Comment, d.ExpiresAt, d.CurrencyID,
			d.FirstCurrencyID, d.FirstAmount).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("op=donation.create_batch: %w", err)
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("op=donation.create_batch: %w", err)
	}
	return ids, nil
}

// Get loads a donation by id.
func (r *DonationRepo) Get(ctx domain.Context, id int64) (domain.Donation, error) {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.Get")
	defer span.End()
	d, err := scanDonation(r.Pool.QueryRow(ctx, `SELECT `+donationColumns+` FROM donation WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Donation{}, fmt.Errorf("op=donation.get: %w", domain.ErrNotFound)
		}
		return domain.Donation{}, fmt.Errorf("op=donation.get: %w", err)
	}
	return d, nil
}

// GetForUser loads a donation where the user is either side.
func (r *DonationRepo) GetForUser(ctx domain.Context, id, userID int64) (domain.Donation, error) {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.GetForUser")
	defer span.End()
	q := `SELECT ` + donationColumns + ` FROM donation WHERE id=$1 AND (recipient_id=$2 OR sender_id=$2)`
	d, err := scanDonation(r.Pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Donation{}, fmt.Errorf("op=donation.get_for_user: %w", domain.ErrNotFound)
		}
		return domain.Donation{}, fmt.Errorf("op=donation.get_for_user: %w", err)
	}
	return d, nil
}

// ListByIDs loads the donations with the given ids ordered by level.
func (r *DonationRepo) ListByIDs(ctx domain.Context, ids []int64) ([]domain.Donation, error) {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.ListByIDs")
	defer span.End()
	if len(ids) == 0 {
		return nil, nil
	}
	q := `SELECT ` + donationColumns + ` FROM donation WHERE id = ANY($1) ORDER BY level_number NULLS LAST, id`
	rows, err := r.Pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("op=donation.list_by_ids: %w", err)
	}
	defer rows.Close()
	var out []domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("op=donation.list_by_ids: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=donation.list_by_ids: %w", err)
	}
	return out, nil
}

// ListMine pages the user's donations, either sent or received, newest
// confirmation first.
func (r *DonationRepo) ListMine(ctx domain.Context, userID int64, p domain.Page) ([]domain.Donation, int, error) {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.ListMine")
	defer span.End()
	q := `SELECT ` + donationColumns + `, COUNT(*) OVER () AS total FROM donation
		WHERE recipient_id=$1 OR sender_id=$1
		ORDER BY confirmed_at DESC NULLS FIRST, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.Pool.Query(ctx, q, userID, p.Size, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("op=donation.list_mine: %w", err)
	}
	defer rows.Close()
	var out []domain.Donation
	var total int
	for rows.Next() {
		var d domain.Donation
		err := rows.Scan(&d.ID, &d.DreamID, &d.Receipt, &d.RecipientID, &d.SenderID, &d.LevelNumber,
			&d.Amount, &d.Status, &d.Comment, &d.ExpiresAt, &d.PaidAt, &d.ConfirmedAt,
			&d.CurrencyID, &d.FirstCurrencyID, &d.FirstAmount, &d.CreatedAt, &d.UpdatedAt, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("op=donation.list_mine: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("op=donation.list_mine: %w", err)
	}
	return out, total, nil
}

// MarkWaiting attaches a receipt and moves the donation to
// waiting-for-confirmation, recording the amount actually paid by the sender.
func (r *DonationRepo) MarkWaiting(ctx domain.Context, id int64, receipt string, firstCurrencyID, firstAmount int64) error {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.MarkWaiting")
	defer span.End()
	now := time.Now().UTC()
	q := `UPDATE donation SET receipt=$2, first_currency_id=$3, first_amount=$4,
		status=$5, paid_at=$6, updated_at=$6 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, id, receipt, firstCurrencyID, firstAmount, domain.DonationWaiting, now)
	if err != nil {
		return fmt.Errorf("op=donation.mark_waiting: %w", err)
	}
	return nil
}

// Confirm marks a waiting donation confirmed.
func (r *DonationRepo) Confirm(ctx domain.Context, id int64, at time.Time) error {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.Confirm")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE donation SET status=$2, confirmed_at=$3, updated_at=$3 WHERE id=$1`,
		id, domain.DonationConfirmed, at)
	if err != nil {
		return fmt.Errorf("op=donation.confirm: %w", err)
	}
	return nil
}

// Fail writes off a donation.
func (r *DonationRepo) Fail(ctx domain.Context, id int64) error {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.Fail")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE donation SET status=$2, updated_at=$3 WHERE id=$1`,
		id, domain.DonationFailed, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=donation.fail: %w", err)
	}
	return nil
}

// CountConfirmedIn counts confirmed donations among the given ids.
func (r *DonationRepo) CountConfirmedIn(ctx domain.Context, ids []int64) (int, error) {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.CountConfirmedIn")
	defer span.End()
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM donation WHERE id = ANY($1) AND confirmed_at IS NOT NULL`, ids).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("op=donation.count_confirmed_in: %w", err)
	}
	return n, nil
}

// CountBySender counts donations the user has sent.
func (r *DonationRepo) CountBySender(ctx domain.Context, senderID int64) (int, error) {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.CountBySender")
	defer span.End()
	var n int
	err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM donation WHERE sender_id=$1`, senderID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("op=donation.count_by_sender: %w", err)
	}
	return n, nil
}

// Statistics aggregates confirmed donations to the recipient for a dream:
// rolling day/week/month windows plus per-level totals.
func (r *DonationRepo) Statistics(ctx domain.Context, recipientID, dreamID int64) (day, week, month domain.DonationStats, levels []domain.DonationStats, err error) {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.Statistics")
	defer span.End()
	windows := `SELECT COALESCE(SUM(amount),0), COUNT(*) FROM donation
		WHERE recipient_id=$1 AND dream_id=$2 AND confirmed_at >= now() - $3::interval`
	for _, w := range []struct {
		interval string
		dst      *domain.DonationStats
	}{
		{"1 day", &day},
		{"7 days", &week},
		{"30 days", &month},
	} {
		if err = r.Pool.QueryRow(ctx, windows, recipientID, dreamID, w.interval).Scan(&w.dst.Sum, &w.dst.Count); err != nil {
			err = fmt.Errorf("op=donation.statistics: %w", err)
			return
		}
	}
	q := `SELECT COUNT(*), COALESCE(SUM(amount),0), COALESCE(level_number,0) FROM donation
		WHERE recipient_id=$1 AND dream_id=$2 AND confirmed_at IS NOT NULL
		GROUP BY level_number ORDER BY level_number NULLS LAST`
	rows, qerr := r.Pool.Query(ctx, q, recipientID, dreamID)
	if qerr != nil {
		err = fmt.Errorf("op=donation.statistics: %w", qerr)
		return
	}
	defer rows.Close()
	for rows.Next() {
		var s domain.DonationStats
		if err = rows.Scan(&s.Count, &s.Sum, &s.Level); err != nil {
			err = fmt.Errorf("op=donation.statistics: %w", err)
			return
		}
		levels = append(levels, s)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("op=donation.statistics: %w", err)
	}
	return
}

// ExpireStale fails New donations whose deadline passed and returns how many
// rows changed.
func (r *DonationRepo) ExpireStale(ctx domain.Context, now time.Time) (int64, error) {
	tracer := otel.Tracer("repo.donations")
	ctx, span := tracer.Start(ctx, "donations.ExpireStale")
	defer span.End()
	tag, err := r.Pool.Exec(ctx, `UPDATE donation SET status=$1, updated_at=$2 WHERE status=$3 AND expires_at IS NOT NULL AND expires_at < $2`,
		domain.DonationFailed, now, domain.DonationNew)
	if err != nil {
		return 0, fmt.Errorf("op=donation.expire_stale: %w", err)
	}
	return tag.RowsAffected(), nil
}
