package service

import "errors"

var (
	// ErrInvalidTripID is returned when trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrInvalidInvoiceID is returned when invoice ID is empty.
	ErrInvalidInvoiceID = errors.New("invalid invoice id")

	// ErrInvalidAction is returned when the action name is not recognized.
	ErrInvalidAction = errors.New("invalid action")

	// ErrRoleNotAllowed is returned when the caller's role may not apply
	// lifecycle actions.
	ErrRoleNotAllowed = errors.New("role not allowed")

	// ErrInvalidTransition is returned when the action is not legal from
	// the trip's current status. The trip is left unmodified.
	ErrInvalidTransition = errors.New("invalid transition for current status")

	// ErrConflictingTransition is returned when a concurrent request won
	// the compare-and-swap. Callers should re-read the trip before retrying.
	ErrConflictingTransition = errors.New("conflicting concurrent transition")

	// ErrPaymentRetryLimit is returned when a payment-failed trip has
	// exhausted its retry budget.
	ErrPaymentRetryLimit = errors.New("payment retry limit reached")

	// ErrReminderLimit is returned when a trip has exhausted its payment
	// reminder budget.
	ErrReminderLimit = errors.New("payment reminder limit reached")

	// ErrReminderNotApplicable is returned when a reminder is requested for
	// a trip that is not parked on a declined payment.
	ErrReminderNotApplicable = errors.New("payment reminder not applicable")

	// ErrDriverInactive is returned when assigning an inactive driver.
	ErrDriverInactive = errors.New("driver is inactive")

	// ErrDriverAssignmentBusy is returned when the driver assignment lock
	// is held by a concurrent request.
	ErrDriverAssignmentBusy = errors.New("driver assignment in progress")

	// ErrDriverAlreadyRegistered is returned when a driver with the same
	// email already exists.
	ErrDriverAlreadyRegistered = errors.New("driver already registered")

	// ErrInvoiceFinalized is returned when mutating a paid or cancelled
	// invoice.
	ErrInvoiceFinalized = errors.New("invoice is in a terminal state")

	// ErrNothingToInvoice is returned when a facility month close finds no
	// completed trips.
	ErrNothingToInvoice = errors.New("no completed trips to invoice")

	// ErrInvoiceExists is returned when the facility month was already
	// closed.
	ErrInvoiceExists = errors.New("invoice already exists for this month")
)
