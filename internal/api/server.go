package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reserva/internal/cache"
	"reserva/internal/config"
	"reserva/internal/database"
	"reserva/internal/external"
	"reserva/internal/handlers"
	"reserva/internal/messaging"
	"reserva/internal/metrics"
	"reserva/internal/middleware"
	"reserva/internal/repository"
	"reserva/internal/service"
)

// Server is the HTTP API server
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	valkey   *cache.ValkeyClient
	services *service.Services
	repos    *repository.Repositories
}

// NewServer builds the server and wires all dependencies
func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	// Valkey is optional: without it auth falls back to the database and
	// score reads skip the cache.
	valkeyClient, err := cache.NewValkeyClient(cfg.Valkey)
	if err != nil {
		log.Printf("Valkey unavailable, running without cache: %v", err)
		valkeyClient = nil
	}

	escrowClient := external.NewEscrowClient(cfg.Escrow)

	repos := repository.NewRepositories(db)
	m := metrics.New()

	services := service.NewServices(repos, valkeyClient, natsClient, escrowClient, m, cfg.Trust)

	router := gin.Default()
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		valkey:   valkeyClient,
		services: services,
		repos:    repos,
	}

	server.setupRoutes()

	return server
}

// setupRoutes registers all API routes
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)

	// API routes
	api := s.router.Group("/api")
	// Basic Auth is mandatory for all API routes
	api.Use(middleware.BasicAuth(s.repos.Consumers, s.valkey))
	{
		// Reservation lifecycle endpoints
		reservations := api.Group("/reservations")
		{
			reservations.POST("", h.CreateReservation)
			reservations.GET("", h.ListReservations)
			reservations.GET("/:id", h.GetReservation)
			reservations.GET("/ref/:ref", h.GetReservationByRef)
			reservations.PATCH("/:id/accept", h.ProAccept)
			reservations.PATCH("/:id/refuse", h.ProRefuse)
			reservations.PATCH("/:id/hold", h.ProHold)
			reservations.PATCH("/:id/requestDeposit", h.ProRequestDeposit)
			reservations.PATCH("/:id/depositPaid", h.ConfirmDepositPaid)
			reservations.PATCH("/:id/proCancel", h.ProCancel)
			reservations.PATCH("/:id/cancel", h.ClientCancel)
			reservations.PATCH("/:id/confirmVenue", h.ConfirmVenue)
			reservations.PATCH("/:id/checkIn", h.CheckInQR)
			reservations.PATCH("/:id/upgrade", h.UpgradeFreeToPaid)
			reservations.POST("/:id/declareNoShow", h.DeclareNoShow)
		}

		// No-show dispute endpoints
		disputes := api.Group("/disputes")
		{
			disputes.GET("/:id", h.GetDispute)
			disputes.POST("/:id/respond", h.RespondToDispute)
			disputes.POST("/:id/arbitrate", h.ArbitrateDispute)
		}

		// Trust and reliability endpoints
		clients := api.Group("/clients")
		{
			clients.GET("/:id/score", h.GetClientScore)
			clients.POST("/:id/liftSuspension", h.LiftSuspension)
		}

		establishments := api.Group("/establishments")
		{
			establishments.GET("/:id/trust", h.GetEstablishmentTrust)
			establishments.GET("/:id/sanctions", h.GetEstablishmentSanctions)
		}

		api.GET("/me/score", h.GetMyScore)

		// Waitlist endpoints
		waitlist := api.Group("/waitlist")
		{
			waitlist.POST("/claim", h.ClaimWaitlistOffer)
		}
	}

	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	// Prometheus metrics endpoint
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// healthCheck reports process and database pool health
func (s *Server) healthCheck(c *gin.Context) {
	check := s.db.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if check.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"status":   check.Status,
		"service":  "reserva-api",
		"version":  "1.0.0",
		"database": check,
	})
}

// Run starts the HTTP server
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for tests
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Cleanup closes all connections
func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			log.Printf("Error closing NATS connection: %v", err)
		}
	}

	if s.valkey != nil {
		if err := s.valkey.Close(); err != nil {
			log.Printf("Error closing Valkey connection: %v", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
			return err
		}
	}

	return nil
}
