package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/goldstream/goldstream/internal/domain"
)

// UserRepo persists and loads users from PostgreSQL.
type UserRepo struct{ Pool PgxPool }

// NewUserRepo constructs a UserRepo with the given pool.
func NewUserRepo(p PgxPool) *UserRepo { return &UserRepo{Pool: p} }

const userColumns = `id, name, surname, email, phone, password, reset_token, reset_token_valid_till,
	birth_date, country_id, is_female, is_active, is_vip, language, avatar, refer_code, referer,
	refer_count, paid_till, trial_till, currency_id, telegram, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	var referCode *string
	err := row.Scan(&u.ID, &u.Name, &u.Surname, &u.Email, &u.Phone, &u.Password,
		&u.ResetToken, &u.ResetTokenValid, &u.BirthDate, &u.CountryID, &u.IsFemale,
		&u.IsActive, &u.IsVIP, &u.Language, &u.Avatar, &referCode, &u.Referer,
		&u.ReferCount, &u.PaidTill, &u.TrialTill, &u.CurrencyID, &u.Telegram,
		&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return domain.User{}, err
	}
	if referCode != nil {
		u.ReferCode = *referCode
	}
	return u, nil
}

// Create inserts a new user and returns its id.
func (r *UserRepo) Create(ctx domain.Context, u domain.User) (int64, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Create")
	defer span.End()
	q := `INSERT INTO users (name, surname, email, phone, password, birth_date, country_id,
		is_female, is_active, language, avatar, refer_code, referer, trial_till, currency_id, telegram)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16) RETURNING id`
	var id int64
	err := r.Pool.QueryRow(ctx, q, u.Name, u.Surname, u.Email, u.Phone, u.Password,
		u.BirthDate, u.CountryID, u.IsFemale, u.IsActive, u.Language, u.Avatar,
		u.ReferCode, u.Referer, u.TrialTill, u.CurrencyID, u.Telegram).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("op=user.create: %w", err)
	}
	return id, nil
}

// Get loads a user by id.
func (r *UserRepo) Get(ctx domain.Context, id int64) (domain.User, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Get")
	defer span.End()
	u, err := scanUser(r.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("op=user.get: %w", domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("op=user.get: %w", err)
	}
	return u, nil
}

// GetByEmail loads a user by (lowercased) email.
func (r *UserRepo) GetByEmail(ctx domain.Context, email string) (domain.User, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.GetByEmail")
	defer span.End()
	u, err := scanUser(r.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email)=lower($1)`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("op=user.get_by_email: %w", domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("op=user.get_by_email: %w", err)
	}
	return u, nil
}

// GetByReferCode loads a user by their invitation code.
func (r *UserRepo) GetByReferCode(ctx domain.Context, code string) (domain.User, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.GetByReferCode")
	defer span.End()
	u, err := scanUser(r.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE refer_code=$1`, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("op=user.get_by_refer_code: %w", domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("op=user.get_by_refer_code: %w", err)
	}
	return u, nil
}

// GetByResetToken loads a user by a non-expired reset token.
func (r *UserRepo) GetByResetToken(ctx domain.Context, token string) (domain.User, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.GetByResetToken")
	defer span.End()
	q := `SELECT ` + userColumns + ` FROM users WHERE reset_token=$1 AND reset_token_valid_till >= now()`
	u, err := scanUser(r.Pool.QueryRow(ctx, q, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, fmt.Errorf("op=user.get_by_reset_token: %w", domain.ErrNotFound)
		}
		return domain.User{}, fmt.Errorf("op=user.get_by_reset_token: %w", err)
	}
	return u, nil
}

// EmailExists reports whether a user with the email already exists.
func (r *UserRepo) EmailExists(ctx domain.Context, email string) (bool, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.EmailExists")
	defer span.End()
	var exists bool
	err := r.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email)=lower($1))`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("op=user.email_exists: %w", err)
	}
	return exists, nil
}

// UpdateProfile updates mutable profile fields.
func (r *UserRepo) UpdateProfile(ctx domain.Context, u domain.User) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.UpdateProfile")
	defer span.End()
	q := `UPDATE users SET name=$2, surname=$3, phone=$4, birth_date=$5, country_id=$6,
		is_female=$7, avatar=$8, telegram=$9, updated_at=$10 WHERE id=$1`
	_, err := r.Pool.Exec(ctx, q, u.ID, u.Name, u.Surname, u.Phone, u.BirthDate,
		u.CountryID, u.IsFemale, u.Avatar, u.Telegram, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=user.update_profile: %w", err)
	}
	return nil
}

// UpdatePassword replaces the stored password hash.
func (r *UserRepo) UpdatePassword(ctx domain.Context, id int64, hash string) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.UpdatePassword")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE users SET password=$2, updated_at=$3 WHERE id=$1`, id, hash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=user.update_password: %w", err)
	}
	return nil
}

// UpdateResetToken sets or clears the password reset token.
func (r *UserRepo) UpdateResetToken(ctx domain.Context, id int64, token *string, validTill *time.Time) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.UpdateResetToken")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE users SET reset_token=$2, reset_token_valid_till=$3, updated_at=$4 WHERE id=$1`,
		id, token, validTill, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=user.update_reset_token: %w", err)
	}
	return nil
}

// SetReferer links the user into the structure of referCode's owner.
func (r *UserRepo) SetReferer(ctx domain.Context, id int64, referCode string) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.SetReferer")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE users SET referer=$2, updated_at=$3 WHERE id=$1`, id, referCode, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=user.set_referer: %w", err)
	}
	return nil
}

// SetCurrency changes the user's display currency.
func (r *UserRepo) SetCurrency(ctx domain.Context, id int64, currencyID int64) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.SetCurrency")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE users SET currency_id=$2, updated_at=$3 WHERE id=$1`, id, currencyID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=user.set_currency: %w", err)
	}
	return nil
}

// SetLanguage changes the user's interface language.
func (r *UserRepo) SetLanguage(ctx domain.Context, id int64, language string) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.SetLanguage")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE users SET language=$2, updated_at=$3 WHERE id=$1`, id, language, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=user.set_language: %w", err)
	}
	return nil
}

// SetActive blocks or unblocks the user.
func (r *UserRepo) SetActive(ctx domain.Context, id int64, active bool) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.SetActive")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE users SET is_active=$2, updated_at=$3 WHERE id=$1`, id, active, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=user.set_active: %w", err)
	}
	return nil
}

// SetVIP toggles the VIP flag.
func (r *UserRepo) SetVIP(ctx domain.Context, id int64, vip bool) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.SetVIP")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `UPDATE users SET is_vip=$2, updated_at=$3 WHERE id=$1`, id, vip, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("op=user.set_vip: %w", err)
	}
	return nil
}

// RecountRefs refreshes the cached referral counter of the code's owner:
// direct referrals holding an active dream.
func (r *UserRepo) RecountRefs(ctx domain.Context, referCode string) error {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.RecountRefs")
	defer span.End()
	q := `UPDATE users SET refer_count = (
		SELECT COUNT(DISTINCT u.id) FROM users u
		JOIN dream d ON d.user_id = u.id AND d.status = $2
		WHERE u.referer = $1
	) WHERE refer_code = $1`
	_, err := r.Pool.Exec(ctx, q, referCode, domain.DreamActive)
	if err != nil {
		return fmt.Errorf("op=user.recount_refs: %w", err)
	}
	return nil
}

// Community returns the user's referral subtree down to maxLevel, paginated.
func (r *UserRepo) Community(ctx domain.Context, userID int64, maxLevel int, p domain.Page) ([]domain.CommunityMember, int, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Community")
	defer span.End()
	q := `WITH RECURSIVE tmp AS (
		SELECT id, referer, refer_code, 0 AS level, name, avatar
		FROM users WHERE id = $1
		UNION ALL
		SELECT u.id, u.referer, u.refer_code, t.level + 1 AS level, u.name, u.avatar
		FROM tmp t JOIN users u ON u.referer = t.refer_code
		WHERE t.level < $2
	)
	SELECT id, level, name, avatar, COUNT(*) OVER () AS total
	FROM tmp WHERE level > 0
	ORDER BY level, id LIMIT $3 OFFSET $4`
	rows, err := r.Pool.Query(ctx, q, userID, maxLevel, p.Size, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("op=user.community: %w", err)
	}
	defer rows.Close()
	var out []domain.CommunityMember
	var total int
	for rows.Next() {
		var m domain.CommunityMember
		if err := rows.Scan(&m.UserID, &m.Level, &m.Name, &m.Avatar, &total); err != nil {
			return nil, 0, fmt.Errorf("op=user.community: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("op=user.community: %w", err)
	}
	return out, total, nil
}

// Ancestors walks the referer chain upward from the user, nearest first.
func (r *UserRepo) Ancestors(ctx domain.Context, userID int64, maxLevel int) ([]domain.User, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.Ancestors")
	defer span.End()
	q := `WITH RECURSIVE chain AS (
		SELECT u.*, 0 AS level FROM users u WHERE u.id = $1
		UNION ALL
		SELECT p.*, c.level + 1 AS level
		FROM chain c JOIN users p ON p.refer_code = c.referer
		WHERE c.level < $2
	)
	SELECT ` + userColumns + ` FROM chain WHERE level > 0 ORDER BY level`
	rows, err := r.Pool.Query(ctx, q, userID, maxLevel)
	if err != nil {
		return nil, fmt.Errorf("op=user.ancestors: %w", err)
	}
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("op=user.ancestors: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=user.ancestors: %w", err)
	}
	return out, nil
}

// List returns users for the operator UI with optional search and state filter.
func (r *UserRepo) List(ctx domain.Context, f domain.UserFilter, p domain.Page) ([]domain.User, int, error) {
	tracer := otel.Tracer("repo.users")
	ctx, span := tracer.Start(ctx, "users.List")
	defer span.End()
	q := `SELECT ` + userColumns + `, COUNT(*) OVER () AS total FROM users
		WHERE ($1 = '' OR name ILIKE '%'||$1||'%' OR surname ILIKE '%'||$1||'%' OR email ILIKE '%'||$1||'%')
		AND ($2::boolean IS NULL OR is_active = $2)
		ORDER BY id LIMIT $3 OFFSET $4`
	rows, err := r.Pool.Query(ctx, q, f.Search, f.IsActive, p.Size, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("op=user.list: %w", err)
	}
	defer rows.Close()
	var out []domain.User
	var total int
	for rows.Next() {
		var u domain.User
		var referCode *string
		err := rows.Scan(&u.ID, &u.Name, &u.Surname, &u.Email, &u.Phone, &u.Password,
			&u.ResetToken, &u.ResetTokenValid, &u.BirthDate, &u.CountryID, &u.IsFemale,
			&u.IsActive, &u.IsVIP, &u.Language, &u.Avatar, &referCode, &u.Referer,
			&u.ReferCount, &u.PaidTill, &u.TrialTill, &u.CurrencyID, &u.Telegram,
			&u.CreatedAt, &u.UpdatedAt, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("op=user.list: %w", err)
		}
		if referCode != nil {
			u.ReferCode = *referCode
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("op=user.list: %w", err)
	}
	return out, total, nil
}
