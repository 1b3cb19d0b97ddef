package repository

import (
	"context"

	"dispatch/internal/domain"
)

// NotificationRepository defines the persistence operations for
// notifications. Rows are write-once; only the read flag changes.
type NotificationRepository interface {
	// Create persists a new notification.
	Create(ctx context.Context, n *domain.Notification) error

	// ListByRecipient retrieves a recipient's notifications, newest first.
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]*domain.Notification, error)

	// MarkRead flips the read flag for a recipient's notification.
	MarkRead(ctx context.Context, id, recipientID string) error
}
