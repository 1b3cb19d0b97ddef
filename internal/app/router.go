package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"dispatch/internal/domain"
	"dispatch/internal/handler"
	"dispatch/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	TripHandler         *handler.TripHandler
	DriverHandler       *handler.DriverHandler
	InvoiceHandler      *handler.InvoiceHandler
	NotificationHandler *handler.NotificationHandler
	RedisClient         *redis.Client
	NewRelicApp         *newrelic.Application
	JWTSecret           []byte
}

// NewRouter creates a new Gin router with all routes registered. Every route
// except the health check sits behind the access guard; booking mutations are
// additionally restricted to dispatching roles.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	router.Use(middleware.IdempotencyMiddleware(deps.RedisClient))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.Use(middleware.Authenticate(deps.JWTSecret))

	dispatching := middleware.RequireRole(domain.RoleDispatcher, domain.RoleAdmin)
	adminOnly := middleware.RequireRole(domain.RoleAdmin)

	// Trip routes.
	trips := v1.Group("/trips")
	{
		trips.POST("", deps.TripHandler.CreateTrip)
		trips.GET("", deps.TripHandler.ListTrips)
		trips.GET("/:id", deps.TripHandler.GetTrip)

		// Lifecycle actions, dispatcher or admin only.
		trips.POST("/:id/approve", dispatching, deps.TripHandler.Approve)
		trips.POST("/:id/retry-approve", dispatching, deps.TripHandler.RetryApprove)
		trips.POST("/:id/reject", dispatching, deps.TripHandler.Reject)
		trips.POST("/:id/cancel", dispatching, deps.TripHandler.AdminCancel)
		trips.POST("/:id/complete", dispatching, deps.TripHandler.Complete)
		trips.POST("/:id/start", dispatching, deps.TripHandler.Start)
		trips.POST("/:id/assign-driver", dispatching, deps.TripHandler.AssignDriver)
		trips.POST("/:id/payment-reminder", dispatching, deps.TripHandler.SendPaymentReminder)
		trips.DELETE("/:id", adminOnly, deps.TripHandler.PurgeTrip)
	}

	// Driver routes.
	drivers := v1.Group("/drivers")
	{
		drivers.POST("", dispatching, deps.DriverHandler.Register)
		drivers.GET("", deps.DriverHandler.GetAll)
		drivers.GET("/:id", deps.DriverHandler.GetDriver)
		drivers.POST("/:id/activate", dispatching, deps.DriverHandler.Activate)
		drivers.POST("/:id/deactivate", dispatching, deps.DriverHandler.Deactivate)
		drivers.POST("/audit", adminOnly, deps.DriverHandler.AuditStatuses)
	}

	// Invoice routes.
	invoices := v1.Group("/invoices")
	invoices.Use(dispatching)
	{
		invoices.POST("/close-month", deps.InvoiceHandler.CloseMonth)
		invoices.POST("/sweep-overdue", deps.InvoiceHandler.SweepOverdue)
		invoices.GET("", deps.InvoiceHandler.ListByStatus)
		invoices.GET("/:id", deps.InvoiceHandler.GetInvoice)
		invoices.POST("/:id/approve", deps.InvoiceHandler.Approve)
		invoices.POST("/:id/send", deps.InvoiceHandler.Send)
		invoices.POST("/:id/paid", deps.InvoiceHandler.MarkPaid)
		invoices.POST("/:id/cancel", deps.InvoiceHandler.Cancel)
	}

	// Notification routes, scoped to the caller.
	notifications := v1.Group("/notifications")
	{
		notifications.GET("", deps.NotificationHandler.List)
		notifications.POST("/:id/read", deps.NotificationHandler.MarkRead)
	}

	return router
}
