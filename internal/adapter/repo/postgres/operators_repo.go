package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/goldstream/goldstream/internal/domain"
)

// OperatorRepo loads back-office operator accounts.
type OperatorRepo struct{ Pool PgxPool }

// NewOperatorRepo constructs an OperatorRepo with the given pool.
func NewOperatorRepo(p PgxPool) *OperatorRepo { return &OperatorRepo{Pool: p} }

// GetByEmail loads an operator by email.
func (r *OperatorRepo) GetByEmail(ctx domain.Context, email string) (domain.Operator, error) {
	tracer := otel.Tracer("repo.operators")
	ctx, span := tracer.Start(ctx, "operators.GetByEmail")
	defer span.End()
	q := `SELECT id, email, name, password, is_superuser, created_at FROM operator WHERE lower(email)=lower($1)`
	var o domain.Operator
	err := r.Pool.QueryRow(ctx, q, email).Scan(&o.ID, &o.Email, &o.Name, &o.Password, &o.IsSuperuser, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Operator{}, fmt.Errorf("op=operator.get_by_email: %w", domain.ErrNotFound)
		}
		return domain.Operator{}, fmt.Errorf("op=operator.get_by_email: %w", err)
	}
	return o, nil
}

// Get loads an operator by id.
func (r *OperatorRepo) Get(ctx domain.Context, id int64) (domain.Operator, error) {
	tracer := otel.Tracer("repo.operators")
	ctx, span := tracer.Start(ctx, "operators.Get")
	defer span.End()
	q := `SELECT id, email, name, password, is_superuser, created_at FROM operator WHERE id=$1`
	var o domain.Operator
	err := r.Pool.QueryRow(ctx, q, id).Scan(&o.ID, &o.Email, &o.Name, &o.Password, &o.IsSuperuser, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Operator{}, fmt.Errorf("op=operator.get: %w", domain.ErrNotFound)
		}
		return domain.Operator{}, fmt.Errorf("op=operator.get: %w", err)
	}
	return o, nil
}

// Upsert inserts or updates an operator account by email. Seeding only.
func (r *OperatorRepo) Upsert(ctx domain.Context, op domain.Operator) error {
	tracer := otel.Tracer("repo.operators")
	ctx, span := tracer.Start(ctx, "operators.Upsert")
	defer span.End()
	q := `INSERT INTO operator (email, name, password, is_superuser) VALUES ($1,$2,$3,$4)
		ON CONFLICT (email) DO UPDATE SET name=EXCLUDED.name, password=EXCLUDED.password,
			is_superuser=EXCLUDED.is_superuser`
	if _, err := r.Pool.Exec(ctx, q, op.Email, op.Name, op.Password, op.IsSuperuser); err != nil {
		return fmt.Errorf("op=operator.upsert: %w", err)
	}
	return nil
}

// BlacklistRepo stores revoked JWT ids.
type BlacklistRepo struct{ Pool PgxPool }

// NewBlacklistRepo constructs a BlacklistRepo with the given pool.
func NewBlacklistRepo(p PgxPool) *BlacklistRepo { return &BlacklistRepo{Pool: p} }

// Add records a revoked jti. Duplicate revocations are a no-op.
func (r *BlacklistRepo) Add(ctx domain.Context, jti string) error {
	tracer := otel.Tracer("repo.blacklist")
	ctx, span := tracer.Start(ctx, "blacklist.Add")
	defer span.End()
	_, err := r.Pool.Exec(ctx, `INSERT INTO blacklist (jti) VALUES ($1) ON CONFLICT DO NOTHING`, jti)
	if err != nil {
		return fmt.Errorf("op=blacklist.add: %w", err)
	}
	return nil
}

// Contains reports whether the jti has been revoked.
func (r *BlacklistRepo) Contains(ctx domain.Context, jti string) (bool, error) {
	tracer := otel.Tracer("repo.blacklist")
	ctx, span := tracer.Start(ctx, "blacklist.Contains")
	defer span.End()
	var exists bool
	err := r.Pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM blacklist WHERE jti=$1)`, jti).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("op=blacklist.contains: %w", err)
	}
	return exists, nil
}
