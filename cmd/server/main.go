package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/asturias-jnll/Capstone2-sub000/internal/config"
	"github.com/asturias-jnll/Capstone2-sub000/internal/database"
	"github.com/asturias-jnll/Capstone2-sub000/internal/handlers"
	mW "github.com/asturias-jnll/Capstone2-sub000/internal/middleware"
	"github.com/asturias-jnll/Capstone2-sub000/internal/services"
)

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("ledger.scatter_strategy", "LEDGER_SCATTER_STRATEGY")
	viper.BindEnv("ledger.notification_queue", "LEDGER_NOTIFICATION_QUEUE")
	viper.BindEnv("server.port", "PORT")

	if err := viper.ReadInConfig(); err != nil {
		logrus.Infof("config file not found, using defaults: %v", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	serverCfg := config.LoadServerConfig()
	ledgerCfg := config.LoadLedgerConfig()

	db := database.MustConnect()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	var notifier services.Notifier = services.NopNotifier{}
	if redisClient != nil {
		notifier = services.NewRedisNotifier(redisClient, ledgerCfg.NotificationQueue)
	}

	strategy := services.ParseScatterStrategy(ledgerCfg.ScatterStrategy)
	ledgerService := services.NewLedgerService(db, log)
	directory := services.NewLedgerDirectory(db, log, strategy)
	changeRequestService := services.NewChangeRequestService(db, directory, notifier, log)

	ledgerHandler := handlers.NewLedgerHandler(ledgerService, directory)
	changeRequestHandler := handlers.NewChangeRequestHandler(changeRequestService)
	branchHandler := handlers.NewBranchHandler()

	// Setup router
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(chimw.Timeout(serverCfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/branches", branchHandler.List)

		r.Group(func(r chi.Router) {
			r.Use(mW.Identity)

			r.Post("/transactions", ledgerHandler.Create)
			r.Get("/transactions", ledgerHandler.List)
			r.Get("/transactions/stats", ledgerHandler.Stats)
			r.Get("/transactions/{txID}", ledgerHandler.Get)
			r.Put("/transactions/{txID}", ledgerHandler.Update)
			r.Delete("/transactions/{txID}", ledgerHandler.Delete)

			r.Post("/change-requests", changeRequestHandler.Create)
			r.Get("/change-requests", changeRequestHandler.List)
			r.Post("/change-requests/{requestID}/approve", changeRequestHandler.Approve)
			r.Post("/change-requests/{requestID}/reject", changeRequestHandler.Reject)
		})
	})

	server := &http.Server{
		Addr:         ":" + serverCfg.Port,
		Handler:      r,
		ReadTimeout:  serverCfg.ReadTimeout,
		WriteTimeout: serverCfg.WriteTimeout,
		IdleTimeout:  serverCfg.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		log.Infof("server starting on :%s", serverCfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Info("server stopped")
}
