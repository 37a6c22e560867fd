package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"time"

	clerk "github.com/clerk/clerk-sdk-go/v2"
	gorilllaHandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"solveStreakAPI/handlers"
	"solveStreakAPI/internal/invalidation"
	"solveStreakAPI/internal/notification"
	"solveStreakAPI/internal/repository/postgres"
	"solveStreakAPI/middleware"
	"solveStreakAPI/services"

	_ "net/http/pprof"
)

var (
	dbPool              *pgxpool.Pool
	userService         *services.UserService
	checkInService      *services.CheckInService
	deadlineService     *services.DeadlineService
	notificationService *services.NotificationService
	reminderSweeper     *services.ReminderSweeper
	fcmService          *notification.FCMService
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	clerkSecretKey := os.Getenv("CLERK_SECRET_KEY")
	if clerkSecretKey == "" {
		log.Fatal("CLERK_SECRET_KEY environment variable is not set")
	}
	clerk.SetKey(clerkSecretKey)
	log.Println("Clerk initialized successfully")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		log.Fatal("Failed to parse database URL:", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	dbPool, err = pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Fatal("Failed to create connection pool:", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	log.Println("Successfully connected to Postgres")

	userRepo := postgres.NewUserRepository(dbPool)
	ledgerRepo := postgres.NewLedgerRepository(dbPool)
	milestoneRepo := postgres.NewMilestoneRepository(dbPool)
	deviceRepo := postgres.NewDeviceRepository(dbPool)

	// Status reads are cached client-side; mutations publish invalidations
	// over Redis so other instances drop theirs. Without Redis this is a
	// single-instance deployment and a no-op publisher is fine.
	var invalidator invalidation.Publisher = invalidation.Noop{}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		db := 0
		if v := os.Getenv("REDIS_DB"); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				db = parsed
			}
		}
		invalidator = invalidation.NewRedisPublisher(addr, os.Getenv("REDIS_PASSWORD"), db)
		log.Println("Redis invalidation publisher initialized")
	}

	notificationService = services.NewNotificationService(deviceRepo)
	userService = services.NewUserService(userRepo, invalidator)
	checkInService = services.NewCheckInService(userRepo, ledgerRepo, milestoneRepo, invalidator)
	checkInService.SetNotifier(notificationService)
	deadlineService = services.NewDeadlineService(userRepo, ledgerRepo)
	reminderSweeper = services.NewReminderSweeper(userRepo, ledgerRepo, notificationService, 5*time.Minute, time.Hour)

	fcmService, err = notification.NewFCMService("./serviceAccountKey.json")
	if err != nil {
		log.Printf("Warning: Could not initialize FCM: %v", err)
	} else {
		notificationService.SetPushProvider(fcmService)
		log.Println("FCM Push Provider initialized successfully")
	}

	middleware.InitPrometheus()
	services.InitMetrics()
}

func main() {
	defer func() {
		log.Println("Closing database connection pool...")
		dbPool.Close()
	}()

	userHandler := handlers.NewUserHandler(userService)
	streakHandler := handlers.NewStreakHandler(checkInService, deadlineService)
	notificationHandler := handlers.NewNotificationHandler(notificationService, userService)
	webhookHandler := handlers.NewWebhookHandler(userService)

	r := mux.NewRouter()

	go middleware.CleanupVisitors()

	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MonitorMiddleware)

	r.Handle("/metrics", middleware.BasicAuthMiddleware(promhttp.Handler()))
	r.PathPrefix("/debug/pprof/").Handler(middleware.PprofSecurityMiddleware(http.DefaultServeMux))

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := dbPool.Ping(ctx); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status": "unhealthy", "error": "database connection failed"}`))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "healthy", "service": "solveStreak-api"}`))
	}).Methods("GET")

	r.HandleFunc("/webhooks/clerk", webhookHandler.HandleClerkWebhook).Methods("POST")

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	protected := r.PathPrefix("/api/v1").Subrouter()
	protected.Use(middleware.ClerkAuthMiddleware)

	protected.HandleFunc("/user", userHandler.GetProfile).Methods("GET")
	protected.HandleFunc("/user/update-profile", userHandler.UpdateProfile).Methods("PUT")
	protected.HandleFunc("/user/delete-account", userHandler.DeleteAccount).Methods("DELETE")

	protected.HandleFunc("/user/solve", streakHandler.LogProblem).Methods("POST")
	protected.HandleFunc("/user/streak", streakHandler.GetStatus).Methods("GET")
	protected.HandleFunc("/user/streak/recompute", streakHandler.Recompute).Methods("POST")
	protected.HandleFunc("/user/freeze", streakHandler.SetFreeze).Methods("POST")
	protected.HandleFunc("/user/freeze", streakHandler.ClearFreeze).Methods("DELETE")
	protected.HandleFunc("/user/calendar", streakHandler.GetCalendar).Methods("GET")

	protected.HandleFunc("/notifications/register-device", notificationHandler.RegisterDevice).Methods("POST")

	// CORS configuration
	corsHandler := gorilllaHandlers.CORS(
		gorilllaHandlers.AllowedOrigins([]string{"*"}),
		gorilllaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorilllaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Pprof-Secret"}),
		gorilllaHandlers.ExposedHeaders([]string{"Content-Length"}),
		gorilllaHandlers.AllowCredentials(),
	)

	if err := reminderSweeper.Start(); err != nil {
		log.Fatal("Failed to start reminder sweeper:", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3333"
	}
	port = ":" + port

	server := http.Server{
		Addr:         port,
		Handler:      corsHandler(r),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Error starting server:", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	sig := <-sigChan
	log.Println("Got signal:", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	reminderSweeper.Stop()
	notificationService.Stop()

	log.Println("Server shutdown complete")
}
