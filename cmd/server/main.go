// Package main is the entry point for the loop generation service.
// @title OBSIDIAN-Neural Loop Service API
// @version 1.0
// @description Request-admission front for the GPU-bound loop generation pipeline (vision description, LLM prompt decision, diffusion audio synthesis)

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8000
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/obsidian-neural/loop-service/docs"
	"github.com/obsidian-neural/loop-service/internal/api/handlers"
	"github.com/obsidian-neural/loop-service/internal/api/middleware"
	"github.com/obsidian-neural/loop-service/internal/api/routes"
	"github.com/obsidian-neural/loop-service/internal/config"
	"github.com/obsidian-neural/loop-service/internal/core/cache"
	"github.com/obsidian-neural/loop-service/internal/core/docdb"
	rediscache "github.com/obsidian-neural/loop-service/internal/infrastructure/cache/redis"
	"github.com/obsidian-neural/loop-service/internal/infrastructure/docdb/mongodb"
	"github.com/obsidian-neural/loop-service/internal/pkg/encryption"
	"github.com/obsidian-neural/loop-service/internal/services/admission"
	"github.com/obsidian-neural/loop-service/internal/services/credits"
	"github.com/obsidian-neural/loop-service/internal/services/decision"
	"github.com/obsidian-neural/loop-service/internal/services/llm"
	"github.com/obsidian-neural/loop-service/internal/services/orchestrator"
	"github.com/obsidian-neural/loop-service/internal/services/sessions"
	"github.com/obsidian-neural/loop-service/internal/services/synth"
	"github.com/obsidian-neural/loop-service/internal/services/vision"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	setupLogging(cfg.Log)

	ctx := context.Background()

	// The credential ledger is only needed in gated mode
	var docDBClient docdb.Client
	if cfg.Mode == config.ModeGated {
		docDBClient, err = mongodb.NewClient(ctx, &mongodb.ClientConfig{
			URI:          cfg.DocDB.URI,
			DatabaseName: cfg.DocDB.Database,
		})
		if err != nil {
			log.Fatalf("failed to initialize document db client: %v", err)
		}
		defer docDBClient.Close(ctx)

		if err := docDBClient.EnsureIndexes(ctx); err != nil {
			log.Printf("warning: failed to ensure indexes: %v", err)
		}
	}

	// Initialize cache client (optional)
	var cacheClient cache.Client
	if cfg.Cache.Enabled {
		cacheClient, err = rediscache.NewCache(rediscache.Config{
			Host:       cfg.Cache.Host,
			Port:       cfg.Cache.Port,
			Password:   cfg.Cache.Password,
			DB:         cfg.Cache.DB,
			DefaultTTL: cfg.Cache.TTL,
		})
		if err != nil {
			log.Fatalf("failed to initialize cache client: %v", err)
		}
		defer cacheClient.Close()
	}

	// Initialize encryptor
	encryptor := createEncryptor(cfg.Encryption)

	// Initialize credit authority
	authority := createAuthority(ctx, cfg, docDBClient, encryptor)

	// Initialize session store and cleanup sweeper
	sessionStore := sessions.NewStore(sessions.Config{
		SystemPrompt:   decision.SystemPrompt,
		HistoryCeiling: cfg.Sessions.HistoryCeiling,
	})
	sweeper := sessions.NewSweeper(sessions.SweeperConfig{
		Store:    sessionStore,
		Interval: cfg.Sessions.CleanupInterval,
		TTL:      cfg.Sessions.IdleTTL,
	})
	sweeper.Start()
	defer sweeper.Stop()

	// Initialize the admission controller guarding the generation resource
	admissionController := admission.NewController(cfg.Admission.WaitTimeout)

	// Initialize the generation pipeline
	orch, err := orchestrator.New(orchestrator.Config{
		Authority:        authority,
		Admission:        admissionController,
		Engine:           createEngine(cfg, sessionStore),
		Describer:        createDescriber(cfg, cacheClient),
		Synthesizer:      createSynthesizer(cfg),
		BypassLLM:        cfg.Generation.BypassLLM,
		FallbackDuration: cfg.Generation.FallbackDuration,
	})
	if err != nil {
		log.Fatalf("failed to initialize orchestrator: %v", err)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Setup router
	router := setupRouter(cfg, cacheClient, docDBClient, sessionStore, authority, orch)

	// Create HTTP server
	srv := &http.Server{
		Addr:    cfg.Server.Address(),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Starting server on %s (mode: %s)", cfg.Server.Address(), cfg.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

// setupLogging configures the global zerolog logger.
func setupLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		zlog.Logger = zlog.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// createEncryptor creates the at-rest encryptor based on the configuration.
func createEncryptor(cfg config.EncryptionConfig) encryption.Encryptor {
	if cfg.Key == "" {
		log.Println("warning: SECRETS_ENCRYPTION_KEY not set, using NoOp encryptor")
		return encryption.NewNoOpEncryptor()
	}

	encryptor, err := encryption.NewAESEncryptor(cfg.Key)
	if err != nil {
		log.Fatalf("failed to initialize encryptor: %v", err)
	}
	return encryptor
}

// createAuthority selects the credit authority for the configured operating
// mode. In gated mode with an empty ledger, a first API key is provisioned
// and logged once.
func createAuthority(ctx context.Context, cfg *config.Config, docDBClient docdb.Client, encryptor encryption.Encryptor) credits.Authority {
	if cfg.Mode == config.ModeOpen {
		log.Println("Development mode: API key validation bypassed")
		return credits.NewOpen(cfg.Generation.Cost)
	}

	count, err := docDBClient.Credentials().Count(ctx)
	if err != nil {
		log.Fatalf("failed to read credential ledger: %v", err)
	}
	if count == 0 {
		apiKey, err := credits.Provision(ctx, docDBClient.Credentials(), encryptor, credits.ProvisionRequest{
			Name:      "First API Key",
			IsLimited: false,
		})
		if err != nil {
			log.Fatalf("failed to provision first API key: %v", err)
		}
		log.Printf("No API keys found - generated first API key (SAVE THIS, it won't be shown again): %s", apiKey)
	}

	return credits.NewLedger(credits.LedgerConfig{
		Credentials: docDBClient.Credentials(),
		Cost:        cfg.Generation.Cost,
	})
}

// createEngine creates the conversational decision engine, or nil when the
// LLM is bypassed.
func createEngine(cfg *config.Config, store *sessions.Store) *decision.Engine {
	if cfg.Generation.BypassLLM {
		return nil
	}

	llmClient := llm.NewClient(&llm.ClientConfig{
		BaseURL: cfg.LLM.URL,
		Timeout: cfg.LLM.Timeout,
	})
	return decision.NewEngine(store, llmClient)
}

// createDescriber creates the vision collaborator, cached when a cache
// client is available.
func createDescriber(cfg *config.Config, cacheClient cache.Client) vision.Describer {
	client := vision.NewClient(&vision.ClientConfig{
		BaseURL: cfg.Vision.URL,
		Timeout: cfg.Vision.Timeout,
	})
	if cacheClient == nil {
		return client
	}
	return vision.NewCachedDescriber(client, cacheClient, cfg.Cache.TTL)
}

// createSynthesizer creates the synthesis collaborator, or the silence stub
// in test mode.
func createSynthesizer(cfg *config.Config) synth.Synthesizer {
	if cfg.Generation.TestMode {
		log.Println("Test mode: synthesis bypassed, serving silence")
		return &synth.Stub{Delay: 3 * time.Second}
	}

	return synth.NewClient(&synth.ClientConfig{
		BaseURL: cfg.Synth.URL,
		Timeout: cfg.Synth.Timeout,
	})
}

// setupRouter creates and configures the Gin router.
func setupRouter(cfg *config.Config, cacheClient cache.Client, docDBClient docdb.Client, sessionStore *sessions.Store, authority credits.Authority, orch *orchestrator.Orchestrator) *gin.Engine {
	router := gin.New()

	// Create middleware
	loggingMw := middleware.NewLoggingMiddleware()
	errorMw := middleware.NewErrorMiddleware()
	authMw := middleware.NewAuthMiddleware(cfg.Mode == config.ModeOpen)

	// Create handlers
	healthHandler := handlers.NewHealthHandler(cacheClient, docDBClient)
	generateHandler := handlers.NewGenerateHandler(orch)
	authHandler := handlers.NewAuthHandler(authority)
	sessionsHandler := handlers.NewSessionsHandler(sessionStore)

	// Setup routes
	routesCfg := &routes.Config{
		HealthHandler:   healthHandler,
		GenerateHandler: generateHandler,
		AuthHandler:     authHandler,
		SessionsHandler: sessionsHandler,
		AuthMiddleware:  authMw,
	}

	routes.SetupWithMiddleware(router, routesCfg, loggingMw, errorMw)

	// Swagger documentation endpoint
	router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return router
}
