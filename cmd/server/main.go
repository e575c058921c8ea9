package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/tripline/booking-backend/internal/config"
	"github.com/tripline/booking-backend/internal/database"
	"github.com/tripline/booking-backend/internal/handlers"
	"github.com/tripline/booking-backend/internal/middleware"
	"github.com/tripline/booking-backend/internal/services"
	"github.com/tripline/booking-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Tripline Booking & Settlement Engine")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Repositories
	tripRepo := database.NewTripRepository(db)
	voucherRepo := database.NewVoucherRepository(db)
	sessionRepo := database.NewSessionRepository(db)
	receiptRepo := database.NewReceiptRepository(db)
	ticketRepo := database.NewTicketRepository(db)
	gnplRepo := database.NewGnplRepository(db, receiptRepo)
	remittanceRepo := database.NewRemittanceRepository(db)

	// Services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry)
	notifier := services.NewLogNotifier(logger)
	gatewayService := services.NewGatewayService(cfg.Gateway, logger)
	pricingService := services.NewPricingService(tripRepo, voucherRepo, cfg.Booking.Currency, logger)
	bookingService := services.NewBookingService(
		tripRepo, sessionRepo, receiptRepo,
		pricingService, gatewayService,
		cfg.Booking, cfg.Gateway.ReturnURL, logger,
	)
	settlementService := services.NewSettlementService(
		receiptRepo, ticketRepo, remittanceRepo,
		pricingService, notifier, cfg.Booking, logger,
	)
	gnplService := services.NewGnplService(
		gnplRepo, receiptRepo, pricingService, notifier,
		cfg.Gnpl, cfg.Booking.RestoreSeatsOnReject, logger,
	)
	reconciliationService := services.NewReconciliationService(receiptRepo, logger)

	fileStore, err := services.NewLocalFileStore(cfg.Booking.AttachmentDir, "/attachments")
	if err != nil {
		logger.Fatalf("Failed to initialize attachment store: %v", err)
	}

	// Scheduled jobs: penalty accrual, due reminders, session expiry
	cronService := services.NewCronService(gnplService, sessionRepo, cfg.Jobs, cfg.Booking.SessionTTL, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	// Handlers
	bookingHandler := handlers.NewBookingHandler(
		bookingService, pricingService, gatewayService,
		fileStore, cfg.Booking.AttachmentMaxBytes, logger,
	)
	settlementHandler := handlers.NewSettlementHandler(settlementService, logger)
	gnplHandler := handlers.NewGnplHandler(gnplService, logger)
	reconciliationHandler := handlers.NewReconciliationHandler(reconciliationService, logger)
	tripHandler := handlers.NewTripHandler(tripRepo, voucherRepo, cfg.Booking.Currency, logger)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthCheckHandler(db))
	router.Static("/attachments", cfg.Booking.AttachmentDir)

	v1 := router.Group("/api/v1")
	{
		// Public routes
		v1.GET("/trips", tripHandler.ListTrips)
		v1.GET("/trips/:trip_id", tripHandler.GetTrip)
		v1.GET("/pricing/quote", bookingHandler.Quote)
		v1.POST("/payments/webhook", bookingHandler.GatewayWebhook)

		// Customer routes (authenticated)
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(jwtService))
		{
			bookings.POST("/start", bookingHandler.StartBooking)
			bookings.POST("/sessions/:session_id/cancel", bookingHandler.CancelSession)
			bookings.POST("/receipts", bookingHandler.SubmitReceipt)
			bookings.POST("/attachments", bookingHandler.UploadAttachment)
		}

		gnpl := v1.Group("/gnpl")
		gnpl.Use(middleware.AuthMiddleware(jwtService))
		{
			gnpl.POST("/accounts", gnplHandler.Originate)
			gnpl.GET("/accounts", gnplHandler.ListAccounts)
			gnpl.GET("/accounts/:account_id", gnplHandler.GetAccount)
			gnpl.POST("/accounts/:account_id/payments", gnplHandler.Pay)
		}

		// Admin routes. The role gate keeps customers out; the capability
		// checker decides which staff role may take which action.
		capabilities := middleware.NewRoleChecker(map[string][]string{
			"trip_manage":       {"admin"},
			"receipt_decide":    {"admin", "operator"},
			"ticket_check_in":   {"admin", "operator", "conductor"},
			"manual_sale":       {"admin", "operator"},
			"remittance_manage": {"admin", "operator"},
			"remittance_decide": {"admin"},
			"gnpl_decide":       {"admin"},
			"reconcile":         {"admin"},
		})

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService))
		admin.Use(middleware.RequireRole("admin", "operator", "conductor"))
		{
			admin.POST("/trips", middleware.RequireCapability(capabilities, "trip_manage"), tripHandler.CreateTrip)
			admin.PUT("/trips/:trip_id/status", middleware.RequireCapability(capabilities, "trip_manage"), tripHandler.UpdateTripStatus)
			admin.POST("/vouchers", middleware.RequireCapability(capabilities, "trip_manage"), tripHandler.CreateVoucher)

			admin.GET("/receipts/:receipt_id", middleware.RequireCapability(capabilities, "receipt_decide"), settlementHandler.GetReceipt)
			admin.POST("/receipts/:receipt_id/decide", middleware.RequireCapability(capabilities, "receipt_decide"), settlementHandler.Decide)
			admin.POST("/tickets/:ticket_number/check-in", middleware.RequireCapability(capabilities, "ticket_check_in"), settlementHandler.CheckIn)
			admin.POST("/sales", middleware.RequireCapability(capabilities, "manual_sale"), settlementHandler.ManualSale)

			admin.POST("/remittances", middleware.RequireCapability(capabilities, "remittance_manage"), settlementHandler.CreateRemittance)
			admin.GET("/remittances", middleware.RequireCapability(capabilities, "remittance_manage"), settlementHandler.ListRemittances)
			admin.POST("/remittances/:remittance_id/decide", middleware.RequireCapability(capabilities, "remittance_decide"), settlementHandler.DecideRemittance)

			admin.POST("/gnpl/accounts/:account_id/decide", middleware.RequireCapability(capabilities, "gnpl_decide"), gnplHandler.Decide)
			admin.POST("/gnpl/accrue", middleware.RequireCapability(capabilities, "gnpl_decide"), gnplHandler.AccruePenalties)
			admin.POST("/gnpl/remind", middleware.RequireCapability(capabilities, "gnpl_decide"), gnplHandler.SendReminders)

			admin.POST("/reconcile", middleware.RequireCapability(capabilities, "reconcile"), reconciliationHandler.Reconcile)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cronService.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}
	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      c.Request.URL.RawQuery,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
		}).Info("Request completed")
	}
}

func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
