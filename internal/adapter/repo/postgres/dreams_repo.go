package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/goldstream/goldstream/internal/domain"
)

// DreamRepo persists and loads dreams from PostgreSQL.
type DreamRepo struct{ Pool PgxPool }

// NewDreamRepo constructs a DreamRepo with the given pool.
func NewDreamRepo(p PgxPool) *DreamRepo { return &DreamRepo{Pool: p} }

const dreamColumns = `id, user_id, status, title, description, collected, goal, picture,
	category_id, ref_donations, type_dream, currency_id, language, donations_count,
	closed_at, created_at, updated_at`

func scanDream(row pgx.Row) (domain.Dream, error) {
	var d domain.Dream
	err := row.Scan(&d.ID, &d.UserID, &d.Status, &d.Title, &d.Description, &d.Collected,
		&d.Goal, &d.Picture, &d.CategoryID, &d.RefDonations, &d.Type, &d.CurrencyID,
		&d.Language, &d.DonationsCount, &d.ClosedAt, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

// Create inserts a new dream and returns its id.
func (r *DreamRepo) Create(ctx domain.Context, d domain.Dream) (int64, error) {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.Create")
	defer span.End()
	q := `INSERT INTO dream (user_id, status, title, description, goal, picture, category_id,
		ref_donations, type_dream, currency_id, language)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id`
	var id int64
	err := r.Pool.QueryRow(ctx, q, d.UserID, d.Status, d.Title, d.Description, d.Goal,
		d.Picture, d.CategoryID, refDonationsOrEmpty(d.RefDonations), d.Type, d.CurrencyID, d.Language).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("op=dream.create: %w", err)
	}
	return id, nil
}

func refDonationsOrEmpty(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

// Get loads a dream by id.
func (r *DreamRepo) Get(ctx domain.Context, id int64) (domain.Dream, error) {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.Get")
	defer span.End()
	d, err := scanDream(r.Pool.QueryRow(ctx, `SELECT `+dreamColumns+` FROM dream WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Dream{}, fmt.Errorf("op=dream.get: %w", domain.ErrNotFound)
		}
		return domain.Dream{}, fmt.Errorf("op=dream.get: %w", err)
	}
	return d, nil
}

// Update rewrites the editable fields of a dream.
func (r *DreamRepo) Update(ctx domain.Context, d domain.Dream) error {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.Update")
	defer span.End()
	q := `UPDATE dream SET title=$2, description=$3, goal=$4, picture=$5, category_id=$6,
		currency_id=$7, language=$8, updated_at=$9 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, d.ID, d.Title, d.Description, d.Goal, d.Picture,
		d.CategoryID, d.CurrencyID, d.Language, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=dream.update: %w", err)
	}
	return nil
}

// Delete removes a dream row.
func (r *DreamRepo) Delete(ctx domain.Context, id int64) error {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.Delete")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `DELETE FROM dream WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("op=dream.delete: %w", err)
	}
	return nil
}

// UpdateStatus moves a dream to the given lifecycle status.
func (r *DreamRepo) UpdateStatus(ctx domain.Context, id int64, status domain.DreamStatus) error {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.UpdateStatus")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE dream SET status=$2, updated_at=$3 WHERE id=$1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=dream.update_status: %w", err)
	}
	return nil
}

// PromoteByUser moves every dream of the user in status from to status to.
func (r *DreamRepo) PromoteByUser(ctx domain.Context, userID int64, from, to domain.DreamStatus) error {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.PromoteByUser")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE dream SET status=$3, updated_at=$4 WHERE user_id=$1 AND status=$2`,
		userID, from, to, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=dream.promote_by_user: %w", err)
	}
	return nil
}

// SetRefDonations replaces the generated referral donation ids of a dream.
func (r *DreamRepo) SetRefDonations(ctx domain.Context, id int64, donationIDs []int64) error {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.SetRefDonations")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE dream SET ref_donations=$2, updated_at=$3 WHERE id=$1`,
		id, refDonationsOrEmpty(donationIDs), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=dream.set_ref_donations: %w", err)
	}
	return nil
}

// AddCollected adds a confirmed donation amount to the collected total.
func (r *DreamRepo) AddCollected(ctx domain.Context, id int64, amount int64) error {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.AddCollected")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE dream SET collected=collected+$2, updated_at=$3 WHERE id=$1`,
		id, amount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=dream.add_collected: %w", err)
	}
	return nil
}

// Close marks an active dream closed. Only active dreams close.
func (r *DreamRepo) Close(ctx domain.Context, id int64, at time.Time) error {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.Close")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE dream SET status=$2, closed_at=$3, updated_at=$3 WHERE id=$1 AND status=$4`,
		id, domain.DreamClosed, at, domain.DreamActive)
	if err != nil {
		return fmt.Errorf("op=dream.close: %w", err)
	}
	return nil
}

// RecountDonations refreshes the cached confirmed-donation counter.
func (r *DreamRepo) RecountDonations(ctx domain.Context, id int64) error {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.RecountDonations")
	defer span.End()
	q := `UPDATE dream SET donations_count = (
		SELECT COUNT(*) FROM donation WHERE dream_id=$1 AND confirmed_at IS NOT NULL
	) WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, id)
	if err != nil {
		return fmt.Errorf("op=dream.recount_donations: %w", err)
	}
	return nil
}

// CountByUser counts the user's dreams in any status.
func (r *DreamRepo) CountByUser(ctx domain.Context, userID int64) (int, error) {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.CountByUser")
	defer span.End()
	var n int
	err := r.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM dream WHERE user_id=$1`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("op=dream.count_by_user: %w", err)
	}
	return n, nil
}

// FirstByUserStatus returns the user's oldest dream in the given status.
func (r *DreamRepo) FirstByUserStatus(ctx domain.Context, userID int64, status domain.DreamStatus) (domain.Dream, error) {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.FirstByUserStatus")
	defer span.End()
	q := `SELECT ` + dreamColumns + ` FROM dream WHERE user_id=$1 AND status=$2 ORDER BY id LIMIT 1`
	d, err := scanDream(r.Pool.QueryRow(ctx, q, userID, status))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Dream{}, fmt.Errorf("op=dream.first_by_user_status: %w", domain.ErrNotFound)
		}
		return domain.Dream{}, fmt.Errorf("op=dream.first_by_user_status: %w", err)
	}
	return d, nil
}

// ListByUserStatus returns all dreams of the user in the given status.
func (r *DreamRepo) ListByUserStatus(ctx domain.Context, userID int64, status domain.DreamStatus) ([]domain.Dream, error) {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.ListByUserStatus")
	defer span.End()
	q := `SELECT ` + dreamColumns + ` FROM dream WHERE user_id=$1 AND status=$2 ORDER BY id`
	rows, err := r.Pool.Query(ctx, q, userID, status)
	if err != nil {
		return nil, fmt.Errorf("op=dream.list_by_user_status: %w", err)
	}
	defer rows.Close()
	var out []domain.Dream
	for rows.Next() {
		d, err := scanDream(rows)
		if err != nil {
			return nil, fmt.Errorf("op=dream.list_by_user_status: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=dream.list_by_user_status: %w", err)
	}
	return out, nil
}

// ListActive pages through active dreams of other members with optional
// country and category filters.
func (r *DreamRepo) ListActive(ctx domain.Context, f domain.DreamFilter, p domain.Page) ([]domain.Dream, int, error) {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.ListActive")
	defer span.End()
	q := `SELECT ` + dreamColumns + `, COUNT(*) OVER () AS total FROM dream d
		WHERE d.status = $1 AND d.user_id <> $2
		AND ($3::bigint IS NULL OR EXISTS (SELECT 1 FROM users u WHERE u.id = d.user_id AND u.country_id = $3))
		AND (cardinality($4::bigint[]) = 0 OR d.category_id = ANY($4))
		ORDER BY d.created_at DESC LIMIT $5 OFFSET $6`
	cats := f.CategoryIDs
	if cats == nil {
		cats = []int64{}
	}
	rows, err := r.Pool.Query(ctx, q, domain.DreamActive, f.ExcludeUserID, f.CountryID, cats, p.Size, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("op=dream.list_active: %w", err)
	}
	defer rows.Close()
	var out []domain.Dream
	var total int
	for rows.Next() {
		var d domain.Dream
		err := rows.Scan(&d.ID, &d.UserID, &d.Status, &d.Title, &d.Description, &d.Collected,
			&d.Goal, &d.Picture, &d.CategoryID, &d.RefDonations, &d.Type, &d.CurrencyID,
			&d.Language, &d.DonationsCount, &d.ClosedAt, &d.CreatedAt, &d.UpdatedAt, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("op=dream.list_active: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("op=dream.list_active: %w", err)
	}
	return out, total, nil
}

// ByRefDonation finds the dream whose generated referral donations include
// the given donation id.
func (r *DreamRepo) ByRefDonation(ctx domain.Context, donationID int64) (domain.Dream, error) {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.ByRefDonation")
	defer span.End()
	q := `SELECT ` + dreamColumns + ` FROM dream WHERE $1 = ANY(ref_donations) LIMIT 1`
	d, err := scanDream(r.Pool.QueryRow(ctx, q, donationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Dream{}, fmt.Errorf("op=dream.by_ref_donation: %w", domain.ErrNotFound)
		}
		return domain.Dream{}, fmt.Errorf("op=dream.by_ref_donation: %w", err)
	}
	return d, nil
}

// ReplacementCandidates returns active dreams whose owners can still receive
// referral donations: active, subscribed, VIP or any, excluding the given
// user, least recently donated first. Used to fill gaps in the referral
// chain when an ancestor is missing or ineligible.
func (r *DreamRepo) ReplacementCandidates(ctx domain.Context, excludeUserID int64) ([]domain.DreamCandidate, error) {
	tracer := otel.Tracer("repo.dreams")
	ctx, span := tracer.Start(ctx, "dreams.ReplacementCandidates")
	defer span.End()
	q := `SELECT d.user_id, d.id, last_don.s FROM dream d
		JOIN users u ON u.id = d.user_id
		LEFT JOIN (SELECT dream_id, MAX(created_at) AS s FROM donation GROUP BY dream_id) last_don
			ON last_don.dream_id = d.id
		WHERE d.status = $1 AND d.user_id <> $2 AND u.is_active
		AND (u.paid_till >= CURRENT_DATE OR u.trial_till >= now())
		ORDER BY (d.type_dream = $3) DESC, u.is_vip DESC, last_don.s ASC NULLS FIRST`
	rows, err := r.Pool.Query(ctx, q, domain.DreamActive, excludeUserID, domain.DreamTypeCharity)
	if err != nil {
		return nil, fmt.Errorf("op=dream.replacement_candidates: %w", err)
	}
	defer rows.Close()
	var out []domain.DreamCandidate
	for rows.Next() {
		var c domain.DreamCandidate
		if err := rows.Scan(&c.UserID, &c.DreamID, &c.LastDonate); err != nil {
			return nil, fmt.Errorf("op=dream.replacement_candidates: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=dream.replacement_candidates: %w", err)
	}
	return out, nil
}
