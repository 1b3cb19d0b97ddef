package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/middleware"
	"dispatch/internal/service"
)

// TripHandler handles HTTP requests for trips.
type TripHandler struct {
	lifecycle *service.LifecycleService
}

// NewTripHandler creates a new TripHandler.
func NewTripHandler(lifecycle *service.LifecycleService) *TripHandler {
	return &TripHandler{lifecycle: lifecycle}
}

// CreateTripRequest is the HTTP request body for creating a trip.
type CreateTripRequest struct {
	RiderID         string  `json:"rider_id,omitempty"`
	FacilityID      string  `json:"facility_id,omitempty"`
	ManagedClientID string  `json:"managed_client_id,omitempty"`
	Price           float64 `json:"price"`
	PickupAddress   string  `json:"pickup_address"`
	DropoffAddress  string  `json:"dropoff_address"`
	PickupAt        string  `json:"pickup_at"` // RFC 3339
}

// CancelTripRequest is the HTTP request body for reject and admin cancel.
type CancelTripRequest struct {
	Reason string `json:"reason,omitempty"`
}

// AssignDriverRequest is the HTTP request body for assigning a driver.
type AssignDriverRequest struct {
	DriverID          string `json:"driver_id"`
	RequireAcceptance bool   `json:"require_acceptance,omitempty"`
}

// TripResponse is the HTTP representation of a trip.
type TripResponse struct {
	ID                   string  `json:"id"`
	RiderID              string  `json:"rider_id,omitempty"`
	FacilityID           string  `json:"facility_id,omitempty"`
	ManagedClientID      string  `json:"managed_client_id,omitempty"`
	Status               string  `json:"status"`
	Price                float64 `json:"price"`
	PaymentStatus        string  `json:"payment_status"`
	PaymentFailureReason string  `json:"payment_failure_reason,omitempty"`
	PaymentRetryCount    int     `json:"payment_retry_count"`
	PaymentReminderCount int     `json:"payment_reminder_count"`
	PickupAddress        string  `json:"pickup_address"`
	DropoffAddress       string  `json:"dropoff_address"`
	PickupAt             string  `json:"pickup_at"`
	CompletedAt          string  `json:"completed_at,omitempty"`
	DriverID             string  `json:"driver_id,omitempty"`
	CancelReason         string  `json:"cancel_reason,omitempty"`
	CreatedAt            string  `json:"created_at"`
}

// ActionResponse is the HTTP response for a lifecycle action. Payment is set
// only for approve and retry-approve.
type ActionResponse struct {
	Trip    TripResponse    `json:"trip"`
	Payment *PaymentOutcome `json:"payment,omitempty"`
}

// PaymentOutcome reports the capture result of an approval.
type PaymentOutcome struct {
	Captured bool   `json:"captured"`
	Reason   string `json:"reason,omitempty"`
}

func tripResponse(trip *domain.Trip) TripResponse {
	resp := TripResponse{
		ID:                   trip.ID,
		RiderID:              trip.RiderID,
		FacilityID:           trip.FacilityID,
		ManagedClientID:      trip.ManagedClientID,
		Status:               string(trip.Status),
		Price:                trip.Price,
		PaymentStatus:        string(trip.PaymentStatus),
		PaymentFailureReason: string(trip.PaymentFailureReason),
		PaymentRetryCount:    trip.PaymentRetryCount,
		PaymentReminderCount: trip.PaymentReminderCount,
		PickupAddress:        trip.PickupAddress,
		DropoffAddress:       trip.DropoffAddress,
		PickupAt:             trip.PickupAt.Format(time.RFC3339),
		DriverID:             trip.DriverID,
		CancelReason:         trip.CancelReason,
		CreatedAt:            trip.CreatedAt.Format(time.RFC3339),
	}
	if trip.CompletedAt != nil {
		resp.CompletedAt = trip.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

// CreateTrip handles POST /v1/trips
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req CreateTripRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	pickupAt, err := time.Parse(time.RFC3339, req.PickupAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "pickup_at must be RFC 3339"})
		return
	}

	trip, err := h.lifecycle.CreateTrip(c.Request.Context(), service.CreateTripRequest{
		RiderID:         req.RiderID,
		FacilityID:      req.FacilityID,
		ManagedClientID: req.ManagedClientID,
		Price:           req.Price,
		PickupAddress:   req.PickupAddress,
		DropoffAddress:  req.DropoffAddress,
		PickupAt:        pickupAt,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, tripResponse(trip))
}

// GetTrip handles GET /v1/trips/:id
func (h *TripHandler) GetTrip(c *gin.Context) {
	trip, err := h.lifecycle.GetTrip(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// ListTrips handles GET /v1/trips?status=UPCOMING
func (h *TripHandler) ListTrips(c *gin.Context) {
	status := domain.TripStatus(c.Query("status"))

	trips, err := h.lifecycle.ListTrips(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]TripResponse, 0, len(trips))
	for _, trip := range trips {
		response = append(response, tripResponse(trip))
	}
	respondJSON(c, http.StatusOK, response)
}

// Approve handles POST /v1/trips/:id/approve
func (h *TripHandler) Approve(c *gin.Context) {
	h.applyAction(c, domain.ActionApprove, service.ActionOptions{})
}

// RetryApprove handles POST /v1/trips/:id/retry-approve
func (h *TripHandler) RetryApprove(c *gin.Context) {
	h.applyAction(c, domain.ActionRetryApprove, service.ActionOptions{})
}

// Reject handles POST /v1/trips/:id/reject
func (h *TripHandler) Reject(c *gin.Context) {
	var req CancelTripRequest
	_ = c.ShouldBindJSON(&req)
	h.applyAction(c, domain.ActionReject, service.ActionOptions{Reason: req.Reason})
}

// AdminCancel handles POST /v1/trips/:id/cancel
func (h *TripHandler) AdminCancel(c *gin.Context) {
	var req CancelTripRequest
	_ = c.ShouldBindJSON(&req)
	h.applyAction(c, domain.ActionAdminCancel, service.ActionOptions{Reason: req.Reason})
}

// Complete handles POST /v1/trips/:id/complete
func (h *TripHandler) Complete(c *gin.Context) {
	h.applyAction(c, domain.ActionComplete, service.ActionOptions{})
}

// Start handles POST /v1/trips/:id/start
func (h *TripHandler) Start(c *gin.Context) {
	h.applyAction(c, domain.ActionStart, service.ActionOptions{})
}

// AssignDriver handles POST /v1/trips/:id/assign-driver
func (h *TripHandler) AssignDriver(c *gin.Context) {
	var req AssignDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}
	h.applyAction(c, domain.ActionAssignDriver, service.ActionOptions{
		DriverID:          req.DriverID,
		RequireAcceptance: req.RequireAcceptance,
	})
}

// SendPaymentReminder handles POST /v1/trips/:id/payment-reminder
func (h *TripHandler) SendPaymentReminder(c *gin.Context) {
	trip, err := h.lifecycle.SendPaymentReminder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, tripResponse(trip))
}

// PurgeTrip handles DELETE /v1/trips/:id
func (h *TripHandler) PurgeTrip(c *gin.Context) {
	role, _ := middleware.CallerRole(c)

	if err := h.lifecycle.PurgeTrip(c.Request.Context(), c.Param("id"), role); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// applyAction runs a lifecycle action and writes the outcome. An approval
// whose capture failed is reported with a payment status code so clients can
// distinguish a declined card (402) from a gateway fault (502) without
// parsing the body.
func (h *TripHandler) applyAction(c *gin.Context, action domain.Action, opts service.ActionOptions) {
	role, _ := middleware.CallerRole(c)

	result, err := h.lifecycle.ApplyAction(c.Request.Context(), c.Param("id"), action, role, opts)
	if err != nil {
		respondError(c, err)
		return
	}

	response := ActionResponse{Trip: tripResponse(result.Trip)}
	code := http.StatusOK

	if result.Payment != nil {
		response.Payment = &PaymentOutcome{
			Captured: result.Payment.Captured,
			Reason:   string(result.Payment.Reason),
		}
		if !result.Payment.Captured {
			switch result.Payment.Reason {
			case domain.PaymentFailureDeclined:
				code = http.StatusPaymentRequired
			case domain.PaymentFailureGatewayError:
				code = http.StatusBadGateway
			}
		}
	}

	respondJSON(c, code, response)
}
