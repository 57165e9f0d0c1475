package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowride/flow/internal/cache"
	"github.com/flowride/flow/internal/config"
	"github.com/flowride/flow/internal/database"
	"github.com/flowride/flow/internal/handler"
	"github.com/flowride/flow/internal/jobs"
	"github.com/flowride/flow/internal/middleware"
	"github.com/flowride/flow/internal/push"
	"github.com/flowride/flow/internal/repository"
	"github.com/flowride/flow/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/newrelic/go-agent/v3/newrelic"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize New Relic (optional)
	var nrApp *newrelic.Application
	if cfg.NewRelicEnabled && cfg.NewRelicLicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelicAppName),
			newrelic.ConfigLicense(cfg.NewRelicLicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
			newrelic.ConfigAppLogForwardingEnabled(true),
			newrelic.ConfigInfoLogger(os.Stdout),
		)
		if err != nil {
			log.Printf("Warning: Failed to initialize New Relic: %v", err)
		} else {
			log.Println("New Relic initialized successfully")
			if err := nrApp.WaitForConnection(10 * time.Second); err != nil {
				log.Printf("Warning: New Relic connection timeout: %v", err)
			}
		}
	}

	// Initialize PostgreSQL
	db, err := database.NewPostgres(
		cfg.DatabaseURL,
		cfg.DBMaxConnections,
		cfg.DBMaxIdleConnections,
	)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer db.Close()
	log.Println("Connected to PostgreSQL")

	// Initialize Redis
	redis, err := database.NewRedis(cfg.RedisURL, cfg.RedisPassword)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()
	log.Println("Connected to Redis")

	// Initialize caches
	driverIndex := cache.NewDriverIndex(redis.Client, cfg.GeohashPrecision)
	locationFeed := cache.NewLocationFeed(redis.Client)

	// Initialize repositories
	riderRepo := repository.NewRiderRepository(db.DB)
	driverRepo := repository.NewDriverRepository(db.DB)
	rideRepo := repository.NewRideRepository(db.DB)
	offerRepo := repository.NewOfferRepository(db.DB)
	reconRepo := repository.NewReconciliationRepository(db.DB)

	// Initialize services
	processor := service.NewStripeProcessor(cfg.StripeSecretKey, cfg.Currency)
	paymentService := service.NewPaymentService(processor, reconRepo)
	pusher := push.NewExpoSender(cfg.ExpoPushURL)
	offerBoard := service.NewOfferBoard()
	pricingService := service.NewPricingService()

	dispatchService := service.NewDispatchService(
		rideRepo, driverRepo, riderRepo, offerRepo,
		driverIndex, offerBoard, paymentService, pusher,
		service.DispatchConfig{
			RadiusKM:     cfg.MatchRadiusKM,
			OfferTimeout: cfg.OfferTimeout,
			OfferLockTTL: cfg.OfferLockTTL,
		},
	)
	rideService := service.NewRideService(
		rideRepo, riderRepo, driverRepo, driverIndex,
		paymentService, pricingService, dispatchService, pusher,
	)
	driverService := service.NewDriverService(driverRepo, rideRepo, driverIndex, locationFeed)
	payoutService := service.NewPayoutService(rideRepo, driverRepo, paymentService, service.PayoutConfig{
		CommissionRate:     cfg.CommissionRate,
		CommissionCapCents: cfg.CommissionCapCents,
		MonthlyFeeCents:    cfg.MonthlySubscriptionFee,
		YearlyFeeCents:     cfg.YearlySubscriptionFee,
	})

	// Background jobs
	jobCtx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	reaper := jobs.NewReaper(driverRepo, driverIndex, cfg.HeartbeatStaleAfter)
	scheduler := jobs.NewScheduler(reaper, payoutService, nrApp,
		cfg.ReaperInterval, cfg.PayoutInterval, cfg.SubscriptionInterval)
	scheduler.Start(jobCtx)

	// Initialize handlers
	riderHandler := handler.NewRiderHandler(riderRepo)
	rideHandler := handler.NewRideHandler(rideService)
	driverHandler := handler.NewDriverHandler(driverService, dispatchService)
	sseHandler := handler.NewSSEHandler(rideRepo, locationFeed)

	// Create router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middleware.Recovery)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// New Relic middleware
	if nrApp != nil {
		r.Use(middleware.NewRelic(nrApp))
	}

	// Rate limiter (100 requests per minute per IP)
	rateLimiter := middleware.NewRateLimiter(redis.Client, 100, time.Minute)
	r.Use(rateLimiter.Handler)

	// Idempotency middleware
	idempotencyMw := middleware.NewIdempotencyMiddleware(redis.Client)
	r.Use(idempotencyMw.Handler)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := db.Health(ctx); err != nil {
			http.Error(w, "database unhealthy", http.StatusServiceUnavailable)
			return
		}
		if err := redis.Health(ctx); err != nil {
			http.Error(w, "redis unhealthy", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","services":{"database":"up","redis":"up"}}`))
	})

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		riderHandler.RegisterRoutes(r)
		rideHandler.RegisterRoutes(r)
		driverHandler.RegisterRoutes(r)
		sseHandler.RegisterRoutes(r)
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		stopJobs()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	log.Printf("Server starting on port %s", cfg.Port)
	log.Println("API endpoints:")
	log.Println("  POST /v1/riders                  - Create rider")
	log.Println("  POST /v1/drivers                 - Create driver")
	log.Println("  POST /v1/rides                   - Request ride")
	log.Println("  GET  /v1/rides/{id}              - Get ride")
	log.Println("  POST /v1/rides/{id}/cancel       - Cancel ride")
	log.Println("  POST /v1/rides/{id}/status       - Advance ride status")
	log.Println("  POST /v1/drivers/{id}/location   - Report driver location")
	log.Println("  POST /v1/drivers/{id}/respond    - Answer ride offer")
	log.Println("  GET  /v1/rides/{id}/track        - SSE live tracking")

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
