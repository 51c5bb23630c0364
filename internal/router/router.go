// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/njcabinets/sales-backend/internal/cache"
	"github.com/njcabinets/sales-backend/internal/config"
	"github.com/njcabinets/sales-backend/internal/handlers"
	"github.com/njcabinets/sales-backend/internal/middleware"
	"github.com/njcabinets/sales-backend/internal/services"
	"github.com/njcabinets/sales-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config, cacheStore *cache.Store) *gin.Engine {
	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	customerService := services.NewCustomerService(db)
	manufacturerService := services.NewManufacturerService(db, cacheStore)
	proposalService := services.NewProposalService(db, customerService)
	orderService := services.NewOrderService(db)
	authService := services.NewAuthService(db, cfg)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	customerHandler := handlers.NewCustomerHandler(customerService)
	manufacturerHandler := handlers.NewManufacturerHandler(manufacturerService)
	proposalHandler := handlers.NewProposalHandler(proposalService, orderService, notificationService)
	orderHandler := handlers.NewOrderHandler(orderService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS(cfg))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
			auth.POST("/users", middleware.AuthRequired(), middleware.AdminRequired(), authHandler.CreateUser)
		}

		// Customer routes
		customers := v1.Group("/customers")
		customers.Use(middleware.AuthRequired())
		{
			customers.POST("", customerHandler.CreateCustomer)
			customers.GET("", customerHandler.ListCustomers)
			customers.GET("/:id", customerHandler.GetCustomer)
			customers.PUT("/:id", customerHandler.UpdateCustomer)
			customers.DELETE("/:id", middleware.AdminRequired(), customerHandler.DeleteCustomer)
		}

		// Manufacturer and catalog routes
		manufacturers := v1.Group("/manufacturers")
		manufacturers.Use(middleware.AuthRequired())
		{
			manufacturers.GET("", manufacturerHandler.ListManufacturers)
			manufacturers.GET("/:id", manufacturerHandler.GetManufacturer)
			manufacturers.GET("/:id/catalog", manufacturerHandler.ListCatalogItems)
			manufacturers.POST("", middleware.AdminRequired(), manufacturerHandler.CreateManufacturer)
			manufacturers.PUT("/:id", middleware.AdminRequired(), manufacturerHandler.UpdateManufacturer)
			manufacturers.DELETE("/:id", middleware.AdminRequired(), manufacturerHandler.DeleteManufacturer)
			manufacturers.POST("/:id/catalog", middleware.AdminRequired(), manufacturerHandler.CreateCatalogItem)
		}

		// Proposal routes
		proposals := v1.Group("/proposals")
		proposals.Use(middleware.AuthRequired())
		{
			proposals.POST("", proposalHandler.CreateProposal)
			proposals.GET("", proposalHandler.ListProposals)
			proposals.GET("/:id", proposalHandler.GetProposal)
			proposals.PUT("/:id", proposalHandler.UpdateProposal)
			proposals.DELETE("/:id", middleware.AdminRequired(), proposalHandler.DeleteProposal)
			proposals.GET("/:id/totals", proposalHandler.GetTotals)
			proposals.POST("/:id/send", proposalHandler.SendProposal)
			proposals.POST("/:id/accept", proposalHandler.AcceptProposal)
			proposals.POST("/:id/reject", proposalHandler.RejectProposal)
			proposals.POST("/:id/expire", proposalHandler.ExpireProposal)
			proposals.POST("/:id/lock", proposalHandler.LockProposal)
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.GET("", orderHandler.ListOrders)
			orders.GET("/:id", orderHandler.GetOrder)
			orders.POST("/convert/:proposalId", orderHandler.ConvertProposal)
			orders.PATCH("/:id/status", orderHandler.UpdateOrderStatus)
		}

		// Dashboard routes
		dashboard := v1.Group("/dashboard")
		dashboard.Use(middleware.AuthRequired())
		{
			dashboard.GET("/counts", proposalHandler.GetCounts)
			dashboard.GET("/latest", proposalHandler.GetLatestProposals)
		}
	}

	return r
}
