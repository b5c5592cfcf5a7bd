/**
 * @description
 * This is the main entry point for the registration-service. It is responsible for
 * initializing all components of the service, including configuration, the Google
 * Sheets repository, the Flutterwave payment gateway client, the funnel session
 * store, the core application service, and the HTTP server. It wires everything
 * together and starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/redis/go-redis/v9: Optional backend for store-endpoint rate limiting.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/flutterwave: Client for the Flutterwave v3 API.
 * - pkg/sheetsclient: Client for the Google Sheets v4 API.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/lfic/registration-service/internal/api"
	"github.com/lfic/registration-service/internal/app"
	"github.com/lfic/registration-service/internal/config"
	"github.com/lfic/registration-service/internal/store"
	"github.com/lfic/registration-service/pkg/flutterwave"
	"github.com/lfic/registration-service/pkg/sheetsclient"
)

func main() {
	// Load environment variables from a .env file for local development.
	// In production, variables are injected by the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment variables\"")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}

	log.Printf("level=info component=bootstrap msg=\"starting registration-service\" port=%s", cfg.ServerPort)

	// Initialize the registration store. Missing Google credentials should not
	// prevent the service from booting; persistence degrades and confirmed
	// payments will report a support-contact outcome instead of silently dropping rows.
	var repository store.Repository
	if strings.TrimSpace(cfg.GoogleServiceAccountEmail) == "" ||
		strings.TrimSpace(cfg.GooglePrivateKey) == "" ||
		strings.TrimSpace(cfg.GoogleSheetID) == "" {
		log.Printf("level=warn component=bootstrap msg=\"google sheets not configured; persistence disabled\" email_set=%t key_set=%t sheet_set=%t",
			strings.TrimSpace(cfg.GoogleServiceAccountEmail) != "",
			strings.TrimSpace(cfg.GooglePrivateKey) != "",
			strings.TrimSpace(cfg.GoogleSheetID) != "",
		)
		repository = store.UnavailableRepository{}
	} else {
		sheetsClient, clientErr := sheetsclient.NewClient(cfg.GoogleServiceAccountEmail, cfg.GooglePrivateKey)
		if clientErr != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"google sheets client init failed\" err=%v", clientErr)
		}
		repository = store.NewSheetsRepository(sheetsClient, cfg.GoogleSheetID, cfg.SheetTitle)
		log.Println("level=info component=bootstrap msg=\"google sheets repository initialized\"")
	}

	// Initialize the client for the Flutterwave API.
	gateway := flutterwave.NewClient(cfg.FlutterwaveBaseURL, cfg.FlutterwaveSecretKey)

	// Optional Redis-backed rate limiting for the public store endpoint.
	var redisClient *redis.Client
	var storeLimiter api.StoreRateLimiter
	if cfg.StoreRateLimitPerMinute > 0 {
		if strings.TrimSpace(cfg.RedisURL) == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; store rate limiting disabled\" env=REDIS_URL")
		} else {
			redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
			if parseErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; store rate limiting disabled\" err=%v", parseErr)
			} else {
				redisClient = redis.NewClient(redisOptions)
				pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancelPing()
				if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
					log.Printf("level=warn component=bootstrap msg=\"redis ping failed; store rate limiting disabled\" err=%v", pingErr)
					redisClient.Close()
					redisClient = nil
				} else {
					defer redisClient.Close()
					storeLimiter = app.NewRedisStoreRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
					log.Println("level=info component=bootstrap msg=\"redis connected\"")
				}
			}
		}
	}

	// Funnel sessions live in memory and expire after the configured TTL.
	sessionTTL := time.Duration(cfg.FunnelSessionTTLMinutes) * time.Minute
	sessions := app.NewSessionStore(sessionTTL)
	sessions.StartJanitor(time.Minute)
	defer sessions.Stop()

	// Initialize the core application service with its dependencies.
	registrationService := app.NewService(repository, gateway, app.PaymentConfig{
		Amount:          cfg.PaymentAmount,
		Currency:        cfg.PaymentCurrency,
		PaymentOptions:  cfg.PaymentOptions,
		Title:           cfg.PaymentTitle,
		Description:     cfg.PaymentDescription,
		LogoURL:         cfg.PaymentLogoURL,
		RedirectBaseURL: cfg.PaymentRedirectBase,
	})

	// Initialize the API handlers and router.
	handlers := api.NewFunnelHandlers(
		sessions,
		app.NewCollector(),
		registrationService,
		repository,
		storeLimiter,
		cfg.StoreRateLimitPerMinute,
		cfg.FlutterwavePublicKey,
		cfg.TelegramGroupLink,
	)
	router := api.Routes(handlers)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
