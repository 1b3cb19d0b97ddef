package domain

// Action is a dispatcher-initiated lifecycle action on a trip.
type Action string

const (
	ActionApprove      Action = "approve"
	ActionReject       Action = "reject"
	ActionComplete     Action = "complete"
	ActionRetryApprove Action = "retry_approve"
	ActionAdminCancel  Action = "admin_cancel"
	ActionAssignDriver Action = "assign_driver"
	ActionStart        Action = "start"
)

// transitions is the authoritative transition table. A (status, action)
// pair absent from the table is an invalid transition and leaves the trip
// unmodified. The approve path lands in APPROVED_PENDING_PAYMENT as a
// reservation; the payment outcome finalizes it to UPCOMING or
// PAYMENT_FAILED.
var transitions = map[TripStatus]map[Action]TripStatus{
	TripStatusPending: {
		ActionApprove:     TripStatusApprovedPendingPayment,
		ActionReject:      TripStatusCancelled,
		ActionAdminCancel: TripStatusCancelled,
	},
	TripStatusApprovedPendingPayment: {
		ActionAdminCancel: TripStatusCancelled,
	},
	TripStatusPaymentFailed: {
		ActionRetryApprove: TripStatusApprovedPendingPayment,
		ActionAdminCancel:  TripStatusCancelled,
	},
	TripStatusUpcoming: {
		ActionAssignDriver: TripStatusUpcoming,
		ActionStart:        TripStatusInProgress,
		ActionComplete:     TripStatusCompleted,
		ActionAdminCancel:  TripStatusCancelled,
	},
	TripStatusAwaitingDriverAcceptance: {
		ActionStart:       TripStatusInProgress,
		ActionComplete:    TripStatusCompleted,
		ActionAdminCancel: TripStatusCancelled,
	},
	TripStatusInProgress: {
		ActionComplete:    TripStatusCompleted,
		ActionAdminCancel: TripStatusCancelled,
	},
}

// NextStatus returns the status a trip in `from` moves to under `action`.
// ok is false when the transition is not in the table.
func NextStatus(from TripStatus, action Action) (TripStatus, bool) {
	next, ok := transitions[from]
	if !ok {
		return "", false
	}
	to, ok := next[action]
	return to, ok
}
