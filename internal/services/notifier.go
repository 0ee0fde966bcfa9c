package services

import (
	"context"
	"log/slog"

	"github.com/healthmesh/agent-coordination/internal/models"
)

// NotificationStore is the append side of the per-user notification log.
type NotificationStore interface {
	AppendNotification(ctx context.Context, n *models.Notification) error
}

// Notifier appends user-facing notifications. Best effort: a failed append
// is logged and reported as false, never rolled up into the caller's error.
type Notifier struct {
	store  NotificationStore
	logger *slog.Logger
}

func NewNotifier(store NotificationStore, logger *slog.Logger) *Notifier {
	return &Notifier{store: store, logger: logger}
}

// Notify appends the notification record and reports success.
func (n *Notifier) Notify(ctx context.Context, notification *models.Notification) bool {
	if err := n.store.AppendNotification(ctx, notification); err != nil {
		n.logger.Warn("failed to append notification",
			slog.String("user_id", notification.UserID),
			slog.String("type", notification.Type),
			slog.Any("error", err))
		return false
	}
	return true
}
