package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"dispatch/internal/domain"
	"dispatch/internal/service"
)

// InvoiceHandler handles HTTP requests for invoices.
type InvoiceHandler struct {
	invoiceService *service.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler.
func NewInvoiceHandler(invoiceService *service.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// CloseMonthRequest is the HTTP request body for closing a facility month.
type CloseMonthRequest struct {
	FacilityID string `json:"facility_id"`
	Month      string `json:"month"` // YYYY-MM
}

// InvoiceResponse is the HTTP representation of an invoice.
type InvoiceResponse struct {
	ID         string  `json:"id"`
	TripID     string  `json:"trip_id,omitempty"`
	FacilityID string  `json:"facility_id,omitempty"`
	Month      string  `json:"month,omitempty"`
	Amount     float64 `json:"amount"`
	Status     string  `json:"status"`
	DueAt      string  `json:"due_at"`
	CreatedAt  string  `json:"created_at"`
}

func invoiceResponse(invoice *domain.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:         invoice.ID,
		TripID:     invoice.TripID,
		FacilityID: invoice.FacilityID,
		Month:      invoice.Month,
		Amount:     invoice.Amount,
		Status:     string(invoice.Status),
		DueAt:      invoice.DueAt.Format(time.RFC3339),
		CreatedAt:  invoice.CreatedAt.Format(time.RFC3339),
	}
}

// CloseMonth handles POST /v1/invoices/close-month
func (h *InvoiceHandler) CloseMonth(c *gin.Context) {
	var req CloseMonthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	invoice, err := h.invoiceService.CloseFacilityMonth(c.Request.Context(), req.FacilityID, req.Month)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, invoiceResponse(invoice))
}

// GetInvoice handles GET /v1/invoices/:id
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, invoiceResponse(invoice))
}

// ListByStatus handles GET /v1/invoices?status=SENT
func (h *InvoiceHandler) ListByStatus(c *gin.Context) {
	status := domain.InvoiceStatus(c.Query("status"))

	invoices, err := h.invoiceService.ListByStatus(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]InvoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		response = append(response, invoiceResponse(invoice))
	}
	respondJSON(c, http.StatusOK, response)
}

// Approve handles POST /v1/invoices/:id/approve
func (h *InvoiceHandler) Approve(c *gin.Context) {
	h.advance(c, h.invoiceService.Approve)
}

// Send handles POST /v1/invoices/:id/send
func (h *InvoiceHandler) Send(c *gin.Context) {
	h.advance(c, h.invoiceService.Send)
}

// MarkPaid handles POST /v1/invoices/:id/paid
func (h *InvoiceHandler) MarkPaid(c *gin.Context) {
	h.advance(c, h.invoiceService.MarkPaid)
}

// Cancel handles POST /v1/invoices/:id/cancel
func (h *InvoiceHandler) Cancel(c *gin.Context) {
	h.advance(c, h.invoiceService.Cancel)
}

// SweepOverdue handles POST /v1/invoices/sweep-overdue
func (h *InvoiceHandler) SweepOverdue(c *gin.Context) {
	flagged, err := h.invoiceService.SweepOverdue(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"flagged": flagged})
}

func (h *InvoiceHandler) advance(c *gin.Context, fn func(ctx context.Context, id string) (*domain.Invoice, error)) {
	invoice, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, invoiceResponse(invoice))
}
