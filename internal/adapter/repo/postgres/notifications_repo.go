package postgres

import (
	"fmt"

	"go.opentelemetry.io/otel"

	"github.com/goldstream/goldstream/internal/domain"
)

// NotificationRepo stores per-user notification channel toggles.
type NotificationRepo struct{ Pool PgxPool }

// NewNotificationRepo constructs a NotificationRepo with the given pool.
func NewNotificationRepo(p PgxPool) *NotificationRepo { return &NotificationRepo{Pool: p} }

// Settings returns all toggles the user has ever set.
func (r *NotificationRepo) Settings(ctx domain.Context, userID int64) ([]domain.NotificationSetting, error) {
	tracer := otel.Tracer("repo.notifications")
	ctx, span := tracer.Start(ctx, "notifications.Settings")
	defer span.End()
	rows, err := r.Pool.Query(ctx,
		`SELECT user_id, notification_type, is_active FROM notifications WHERE user_id=$1 ORDER BY notification_type`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("op=notifications.settings: %w", err)
	}
	defer rows.Close()
	var out []domain.NotificationSetting
	for rows.Next() {
		var s domain.NotificationSetting
		if err := rows.Scan(&s.UserID, &s.Type, &s.IsActive); err != nil {
			return nil, fmt.Errorf("op=notifications.settings: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("op=notifications.settings: %w", err)
	}
	return out, nil
}

// Upsert writes one toggle.
func (r *NotificationRepo) Upsert(ctx domain.Context, s domain.NotificationSetting) error {
	tracer := otel.Tracer("repo.notifications")
	ctx, span := tracer.Start(ctx, "notifications.Upsert")
	defer span.End()
	q := `INSERT INTO notifications (user_id, notification_type, is_active) VALUES ($1,$2,$3)
		ON CONFLICT (user_id, notification_type) DO UPDATE SET is_active=EXCLUDED.is_active`
	if _, err := r.Pool.Exec(ctx, q, s.UserID, s.Type, s.IsActive); err != nil {
		return fmt.Errorf("op=notifications.upsert: %w", err)
	}
	return nil
}
