package domain

import "time"

// NotificationType classifies a notification by the event it reports.
type NotificationType string

const (
	NotificationTripApproved    NotificationType = "TRIP_APPROVED"
	NotificationTripRejected    NotificationType = "TRIP_REJECTED"
	NotificationTripCompleted   NotificationType = "TRIP_COMPLETED"
	NotificationTripCancelled   NotificationType = "TRIP_CANCELLED"
	NotificationTripStarted     NotificationType = "TRIP_STARTED"
	NotificationDriverAssigned  NotificationType = "DRIVER_ASSIGNED"
	NotificationPaymentFailed   NotificationType = "PAYMENT_FAILED"
	NotificationPaymentReminder NotificationType = "PAYMENT_REMINDER"
	NotificationInvoiceSent     NotificationType = "INVOICE_SENT"
	NotificationInvoiceOverdue  NotificationType = "INVOICE_OVERDUE"
)

// Notification is a write-once record of a message sent to a user. Read is
// flipped by the recipient, nothing else mutates the row.
type Notification struct {
	ID          string
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	TripID      string
	// DedupeKey is tripID:newStatus for transition events so a stricter
	// downstream sender can drop duplicates from retried transitions.
	DedupeKey string
	Read      bool
	CreatedAt time.Time
}
