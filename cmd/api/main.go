// Package main is the entry point for the API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/isdb-fas/fasdesk/internal/attachment"
	"github.com/isdb-fas/fasdesk/internal/config"
	"github.com/isdb-fas/fasdesk/internal/handler"
	"github.com/isdb-fas/fasdesk/internal/llm"
	"github.com/isdb-fas/fasdesk/internal/middleware"
	natsclient "github.com/isdb-fas/fasdesk/internal/nats"
	"github.com/isdb-fas/fasdesk/internal/responder"
	"github.com/isdb-fas/fasdesk/internal/service"
	"github.com/isdb-fas/fasdesk/pkg/logger"
	"github.com/isdb-fas/fasdesk/pkg/tracing"
)

const serviceName = "fasdesk"

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}

	log.Info("starting API server",
		zap.String("responder_backend", cfg.ResponderBackend),
		zap.String("attachment_store", cfg.AttachmentStore),
	)

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, serviceName, cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Connect to NATS when event fan-out is enabled
	var (
		natsClient    *natsclient.Client
		streamManager *natsclient.StreamManager
		sessionOpts   = []service.SessionOption{
			service.WithSampleConversations(cfg.SeedSamples),
			service.WithIdleTTL(cfg.SessionIdleTTL),
			service.WithMaxSessions(cfg.MaxSessions),
		}
		history       handler.EventHistory
	)
	if cfg.NATSEnabled {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			Name:     serviceName,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		streamManager = natsclient.NewStreamManager(natsClient, natsclient.StreamConfig{MaxAge: cfg.NATSStreamMaxAge}, log)
		if err := streamManager.EnsureStream(ctx); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		sessionOpts = append(sessionOpts, service.WithPublisher(streamManager))
		history = streamManager
	}

	// Attachment blob store
	var (
		blobs    attachment.BlobStore
		memBlobs *attachment.MemoryStore
	)
	switch cfg.AttachmentStore {
	case config.AttachmentStoreS3:
		blobs, err = attachment.NewS3Store(ctx, attachment.S3Config{
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			KeyPrefix: cfg.S3KeyPrefix,
		})
		if err != nil {
			log.Fatal("failed to create S3 store", zap.Error(err))
		}
	default:
		memBlobs = attachment.NewMemoryStore("/files/")
		blobs = memBlobs
	}

	// Responder
	resp, err := newResponder(cfg, log)
	if err != nil {
		log.Fatal("failed to create responder", zap.Error(err))
	}

	// Initialize services
	sessions := service.NewSessionManager(blobs, log, sessionOpts...)
	dispatcher := service.NewDispatcher(resp, cfg.ResponderTimeout, log)
	conversationSvc := service.NewConversationService(sessions, dispatcher, log)
	messageSvc := service.NewMessageService(sessions, dispatcher, log)
	uploadSvc := service.NewUploadService(sessions, log)

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(natsClient, sessions)
	sessionHandler := handler.NewSessionHandler(conversationSvc, sessions)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(messageSvc, log)
	streamHandler := handler.NewStreamHandler(sessions, cfg.SSEHeartbeatPeriod, log)
	uploadHandler := handler.NewUploadHandler(uploadSvc, cfg.MaxUploadBytes, log)
	eventHandler := handler.NewEventHandler(history, log)

	// Create router
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// In-memory attachment blobs
	if memBlobs != nil {
		r.Get("/files/{id}", handler.NewFileHandler(memBlobs).Serve)
	}

	// API routes, scoped to the caller's session
	r.Route("/api/v1", func(r chi.Router) {
		if cfg.AuthEnabled {
			r.Use(middleware.Auth(cfg.JWTSecret))
		} else {
			r.Use(middleware.Session)
		}
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		// Session
		r.Get("/session", sessionHandler.Get)
		r.Put("/session", sessionHandler.SetCategory)
		r.Get("/preferences", sessionHandler.GetPreferences)
		r.Put("/preferences", sessionHandler.SetPreferences)

		// Conversations
		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Post("/", conversationHandler.Create)
			r.Delete("/", conversationHandler.Delete)
			r.Post("/load", conversationHandler.Load)
			r.Post("/rename", conversationHandler.Rename)
		})

		// Messages
		r.Route("/messages", func(r chi.Router) {
			r.Get("/", messageHandler.List)
			r.Post("/", messageHandler.Send)
			r.Delete("/", messageHandler.Clear)
			r.Get("/{id}/download", messageHandler.Download)
		})

		// Uploads
		r.Route("/uploads", func(r chi.Router) {
			r.Get("/", uploadHandler.List)
			r.Post("/", uploadHandler.Upload)
			r.Delete("/", uploadHandler.Clear)
			r.Delete("/{id}", uploadHandler.Remove)
		})

		// Streaming and event history
		r.Get("/stream", streamHandler.Stream)
		r.Get("/events", eventHandler.List)
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	server.RegisterOnShutdown(streamHandler.Close)

	// Refresh the stream size gauge and drop idle sessions in the background
	statsCtx, stopStats := context.WithCancel(ctx)
	defer stopStats()
	if streamManager != nil {
		go recordStreamInfo(statsCtx, streamManager, log)
	}
	if cfg.SessionIdleTTL > 0 {
		go evictIdleSessions(statsCtx, sessions, cfg.SessionIdleTTL, log)
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		log.Warn("abandoned pending responses", zap.Error(err))
	}

	log.Info("server stopped")
}

// newResponder builds the configured answer backend.
func newResponder(cfg *config.Config, log *logger.Logger) (responder.Responder, error) {
	if cfg.ResponderBackend != config.BackendLLM {
		return responder.NewRemoteResponder(responder.Config{
			UseCaseURL:     cfg.UseCaseURL,
			ReverseURL:     cfg.ReverseURL,
			EnhancementURL: cfg.EnhancementURL,
			ComplianceURL:  cfg.ComplianceURL,
			PollDelay:      cfg.EnhancementPollDelay,
			Timeout:        cfg.ResponderTimeout,
		}, log), nil
	}

	var (
		client llm.Client
		err    error
	)
	switch {
	case cfg.OpenAIBaseURL != "" && cfg.OpenAIAPIKey != "":
		client = llm.NewOpenAIClientWithBaseURL(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	case llm.Provider(cfg.DefaultLLM) == llm.ProviderOpenAI && cfg.OpenAIAPIKey != "":
		client, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	case cfg.AnthropicAPIKey != "":
		client, err = llm.NewClient(llm.ProviderAnthropic, cfg.AnthropicAPIKey)
	default:
		client, err = llm.NewClient(llm.ProviderOpenAI, cfg.OpenAIAPIKey)
	}
	if err != nil {
		return nil, err
	}
	log.Info("using LLM responder", zap.String("provider", client.Name()))
	return responder.NewLLMResponder(client, cfg.LLMModel, log), nil
}

func recordStreamInfo(ctx context.Context, m *natsclient.StreamManager, log *logger.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.RecordStreamInfo(ctx); err != nil {
				log.Debug("failed to record stream info", zap.Error(err))
			}
		}
	}
}

func evictIdleSessions(ctx context.Context, sessions *service.SessionManager, ttl time.Duration, log *logger.Logger) {
	period := ttl / 4
	if period < time.Minute {
		period = time.Minute
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.EvictIdle(ctx); n > 0 {
				log.Info("evicted idle sessions", zap.Int("count", n), zap.Int("live", sessions.Len()))
			}
		}
	}
}
