// Package main provides the entry point for the database service.
package main

import (
	"context"
	"crypto/tls"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hackit-taiwan/database-service/src/internal/application/handler"
	"github.com/hackit-taiwan/database-service/src/internal/application/router"
	"github.com/hackit-taiwan/database-service/src/internal/domain/service"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/config"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/console"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/logger"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/ratelimit"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/security"
	"github.com/hackit-taiwan/database-service/src/internal/infrastructure/store"
	"github.com/hackit-taiwan/database-service/src/internal/version"
)

func main() {
	if handleSpecialCommands() {
		return
	}

	runServer()
}

// handleSpecialCommands processes version and help commands. Returns
// true if a special command was handled and the program should exit.
func handleSpecialCommands() bool {
	var (
		showVersion = flag.Bool("version", false, "Show version information")
		showHelp    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return true
	}

	if *showVersion {
		console.Println(version.GetFullVersion())
		return true
	}

	return false
}

// runServer starts the main server.
func runServer() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	stopRotation := initializeLogger(cfg)
	defer stopRotation()
	defer logger.Close()

	components := initializeComponents(cfg)
	defer components.cleanup()

	server := createHTTPServer(cfg, components)
	startGracefulShutdown(server)
	startServer(server, components.tlsConfig)
}

// serverComponents holds all initialized server components.
type serverComponents struct {
	mongoClient *mongo.Client
	handler     http.Handler
	tlsConfig   *config.TLSConfig
}

// cleanup releases component resources.
func (c *serverComponents) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.mongoClient.Disconnect(ctx); err != nil {
		logger.Errorf("Failed to disconnect from MongoDB: %v", err)
	}
}

// initializeLogger sets up the logging system and starts the rotation
// check for file output. Returns the monitor's stop function.
func initializeLogger(cfg *config.Config) func() {
	logCfg := logger.Config{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFilePath,
		MaxSize:    10 * 1024 * 1024, // 10MB
		MaxBackups: 5,
	}
	if err := logger.Initialize(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		// Continue with stdout logging
	}
	return logger.StartRotationMonitor(logCfg, time.Minute)
}

// initializeComponents creates and wires all server components.
func initializeComponents(cfg *config.Config) *serverComponents {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	mongoClient, err := store.Connect(ctx, cfg.MongoURI)
	if err != nil {
		logger.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	users := store.NewMongoStore(mongoClient.Database(cfg.MongoDatabase))
	if err := users.EnsureIndexes(ctx); err != nil {
		logger.Fatalf("Failed to ensure indexes: %v", err)
	}

	limiter := buildRateLimiter(cfg)
	authenticator := security.NewAuthenticator(security.Config{
		Secret:         cfg.APISecretKey,
		ValidityWindow: time.Duration(cfg.SignatureValidityWindow) * time.Second,
		AllowedHosts:   cfg.AllowedHosts,
		Production:     cfg.IsProduction(),
	}, limiter)

	cache := service.NewAvatarCache(users, service.AvatarCacheConfig{
		Enabled:    cfg.AvatarCacheEnabled,
		TTL:        time.Duration(cfg.AvatarCacheTTLSeconds) * time.Second,
		MaxBytes:   cfg.AvatarMaxFileSizeBytes(),
		MaxEntries: cfg.AvatarCacheMaxEntries,
	})

	tlsConfig := config.LoadTLSConfig()
	if err := tlsConfig.Validate(); err != nil {
		logger.Warnf("TLS configuration error: %v", err)
		logger.Info("Starting without TLS (HTTP only)")
		tlsConfig.Enabled = false
	}

	mux := router.New(router.Deps{
		Users: handler.NewUserHandler(users),
		Avatar: handler.NewAvatarHandler(cache, handler.AvatarHandlerConfig{
			ETagEnabled:         cfg.AvatarETagEnabled,
			LastModifiedEnabled: cfg.AvatarLastModifiedEnabled,
		}),
		Health:         handler.NewHealthHandler(cfg.Environment),
		Auth:           handler.NewAuthHandler(cfg.APISecretKey),
		Authenticator:  authenticator,
		AllowedOrigins: cfg.AllowedOrigins,
		Production:     cfg.IsProduction(),
		Registry:       nil, // default prometheus registry
	})

	logServerInfo(cfg, tlsConfig)

	return &serverComponents{
		mongoClient: mongoClient,
		handler:     mux,
		tlsConfig:   tlsConfig,
	}
}

// buildRateLimiter selects the Redis-backed window when an address is
// configured, falling back to the in-memory one.
func buildRateLimiter(cfg *config.Config) ratelimit.Window {
	limitCfg := ratelimit.Config{
		Enabled:           cfg.RateLimitEnabled,
		RequestsPerWindow: cfg.RateLimitRequests,
		WindowSize:        time.Minute,
		MaxClients:        cfg.RateLimitMaxClients,
	}

	if cfg.RateLimitRedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RateLimitRedisAddr})
		logger.Infof("Rate limiting backed by Redis at %s", cfg.RateLimitRedisAddr)
		return ratelimit.NewRedisWindow(rdb, limitCfg)
	}
	return ratelimit.NewMemoryWindow(limitCfg)
}

// createHTTPServer creates and configures the HTTP server.
func createHTTPServer(cfg *config.Config, components *serverComponents) *http.Server {
	var serverTLSConfig *tls.Config
	if components.tlsConfig.Enabled {
		var err error
		serverTLSConfig, err = components.tlsConfig.GetTLSConfig()
		if err != nil {
			logger.Fatalf("Failed to configure TLS: %v", err)
		}
	}

	return &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           components.handler,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		MaxHeaderBytes:    1 << 16, // 64KB
		TLSConfig:         serverTLSConfig,
	}
}

// logServerInfo logs server startup information.
func logServerInfo(cfg *config.Config, tlsConfig *config.TLSConfig) {
	protocol := "HTTP"
	if tlsConfig.Enabled {
		protocol = "HTTPS"
	}

	logger.Infof("Starting database service on %s (%s)", cfg.ListenAddr(), protocol)
	logger.Infof("Version: %s", version.GetFullVersion())
	logger.Infof("Environment: %s", cfg.Environment)
	logger.Infof("MongoDB database: %s", cfg.MongoDatabase)
	logger.Infof("Rate limiting: enabled=%v, %d req/min", cfg.RateLimitEnabled, cfg.RateLimitRequests)
	logger.Infof("Avatar cache: enabled=%v, ttl=%ds", cfg.AvatarCacheEnabled, cfg.AvatarCacheTTLSeconds)
}

// startGracefulShutdown sets up graceful shutdown handling.
func startGracefulShutdown(server *http.Server) {
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			logger.Errorf("Server shutdown error: %v", err)
		}
	}()
}

// startServer starts the HTTP/HTTPS server.
func startServer(server *http.Server, tlsConfig *config.TLSConfig) {
	var err error
	if tlsConfig.Enabled {
		logger.Infof("Starting HTTPS server with certificates from %s", tlsConfig.CertFile)
		err = server.ListenAndServeTLS(tlsConfig.CertFile, tlsConfig.KeyFile)
	} else {
		err = server.ListenAndServe()
	}

	if err != nil && err != http.ErrServerClosed {
		logger.Fatalf("Failed to start server: %v", err)
	}

	logger.Info("Database service stopped")
}

func printHelp() {
	console.Println("HackIt Database Service")
	console.Println()
	console.Println("Usage:")
	console.Println("  database-service [options]")
	console.Println()
	console.Println("Options:")
	console.Println("  --version     Show version information")
	console.Println("  --help        Show this help message")
	console.Println()
	console.Println("Environment Variables:")
	console.Println("  API_SECRET_KEY              Shared secret for request signing (required)")
	console.Println("  SERVICE_HOST                Bind address (default: 0.0.0.0)")
	console.Println("  SERVICE_PORT                Port to listen on (default: 8001)")
	console.Println("  MONGODB_URI                 MongoDB connection string (default: mongodb://localhost:27017)")
	console.Println("  MONGODB_DATABASE            Database name (default: hackit)")
	console.Println("  ENVIRONMENT                 development or production (default: development)")
	console.Println("  ALLOWED_HOSTS               Comma-separated host allow-list globs")
	console.Println("  API_RATE_LIMIT_REQUESTS     Requests per minute per client (default: 100)")
	console.Println("  RATE_LIMIT_REDIS_ADDR       Optional Redis address for the rate-limit window")
	console.Println("  AVATAR_CACHE_TTL_SECONDS    Avatar cache TTL (default: 300)")
	console.Println("  LOG_LEVEL                   Log level: debug, info, warn, error (default: info)")
}
