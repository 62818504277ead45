package usecase

import (
	"fmt"
	"strings"

	"github.com/goldstream/goldstream/internal/domain"
)

// Notification channels a member can toggle per event type, stored as
// "type-channel" keys.
var notificationChannels = []string{"email", "push"}

// NotificationService stores per-user notification preferences.
type NotificationService struct {
	Notifications domain.NotificationRepository
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(n domain.NotificationRepository) NotificationService {
	return NotificationService{Notifications: n}
}

// Settings returns the member's notification toggles.
func (s NotificationService) Settings(ctx domain.Context, userID int64) ([]domain.NotificationSetting, error) {
	return s.Notifications.Settings(ctx, userID)
}

// Toggle writes one notification toggle. The type must carry a known channel
// suffix, e.g. "new_donation-email".
func (s NotificationService) Toggle(ctx domain.Context, userID int64, typ string, active bool) error {
	if !validNotificationType(typ) {
		return fmt.Errorf("%w: unknown notification type %q", domain.ErrInvalidArgument, typ)
	}
	return s.Notifications.Upsert(ctx, domain.NotificationSetting{UserID: userID, Type: typ, IsActive: active})
}

func validNotificationType(typ string) bool {
	idx := strings.LastIndex(typ, "-")
	if idx <= 0 || idx == len(typ)-1 {
		return false
	}
	channel := typ[idx+1:]
	for _, c := range notificationChannels {
		if c == channel {
			return true
		}
	}
	return false
}
