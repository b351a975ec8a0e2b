// Package main initializes and starts the DieCompare server, setting up
// configuration, logging, the record store, services, handlers, and HTTP.
package main

import (
	"cmp"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/atinyakov/diecompare/internal/config"
	"github.com/atinyakov/diecompare/internal/db"
	"github.com/atinyakov/diecompare/internal/feed"
	"github.com/atinyakov/diecompare/internal/logger"
	"github.com/atinyakov/diecompare/internal/repository"
	"github.com/atinyakov/diecompare/internal/seal"
	"github.com/atinyakov/diecompare/internal/server/handler/http"
	"github.com/atinyakov/diecompare/internal/service"
	"github.com/atinyakov/diecompare/internal/session"
	"github.com/atinyakov/diecompare/internal/store"
	"github.com/atinyakov/diecompare/internal/visibility"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		stdlog.Fatalf("failed to init logger: %v", err)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dies, creds, closeStore := openStore(ctx, options, zapLogger)
	defer closeStore()

	// Initialize business-logic services.
	sealer := seal.New(options.ScryptN)
	resolver := visibility.NewResolver(sealer, zapLogger)
	catalogService := service.NewCatalogService(dies, resolver, sealer, zapLogger)
	authService := service.NewAuthService(creds, zapLogger)

	if created, err := authService.Bootstrap(ctx, options.BootstrapUser, options.BootstrapPasswordHash); err != nil {
		zapLogger.Fatal("cannot bootstrap credential", zap.Error(err))
	} else if !created && options.BootstrapUser != "" {
		zapLogger.Info("credentials exist, bootstrap skipped")
	}

	secret := []byte(options.JWTSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			zapLogger.Fatal("cannot generate session secret", zap.Error(err))
		}
		zapLogger.Warn("no jwt secret configured, sessions will not survive a restart")
	}
	sessions := session.NewManager(secret, options.SessionTTL, zapLogger)
	sweeperDone := sessions.StartSweeper(ctx, time.Minute)

	// Create HTTP handlers and build the router with middleware and routes.
	handlers := http.Handlers{
		Sessions:    &http.SessionHandler{Sessions: sessions, Auth: authService, Catalog: catalogService},
		Dies:        &http.DieHandler{Catalog: catalogService},
		Compare:     &http.CompareHandler{Catalog: catalogService},
		Credentials: &http.CredentialHandler{Credentials: authService},
	}
	router := http.NewRouter(handlers, sessions, http.RouterOptions{
		AllowedOrigins: options.AllowedOrigins,
		LoginRateLimit: options.LoginRateLimit,
	}, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if options.TLSCert != "" {
			zapLogger.Info("starting HTTPS server", zap.String("addr", options.Address))
			serveErr <- server.ListenAndServeTLS(options.TLSCert, options.TLSKey)
			return
		}
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Address))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			zapLogger.Fatal("server failed", zap.Error(err))
		}
	case <-ctx.Done():
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zapLogger.Error("graceful shutdown failed", zap.Error(err))
		}
	}
	<-sweeperDone
}

// openStore returns the die and credential stores. With a database DSN
// both live in SQL; otherwise dies are loaded from the feeds into memory
// and credentials exist only for the life of the process.
func openStore(ctx context.Context, options *config.Options, log *zap.Logger) (service.DieRepository, service.CredentialRepository, func()) {
	if options.DatabaseDSN != "" {
		sqlDB, err := db.Open(options.DatabaseDriver, options.DatabaseDSN)
		if err != nil {
			log.Fatal("cannot init database", zap.Error(err))
		}
		if options.PublicFeed != "" || options.PrivateFeed != "" {
			log.Warn("feeds are ignored when a database is configured; use dietool import")
		}
		return repository.NewSQLDieRepository(sqlDB), repository.NewSQLCredentialRepository(sqlDB), func() { _ = sqlDB.Close() }
	}

	mem := store.NewMemory()
	client := &nethttp.Client{Timeout: 30 * time.Second}
	loader := feed.NewLoader(mem,
		feed.SourceFor(options.PublicFeed, client),
		feed.SourceFor(options.PrivateFeed, client),
		log,
	)
	if _, err := loader.Load(ctx); err != nil {
		// Each side fails on its own; whatever loaded is served.
		log.Error("feed load failed", zap.Error(err))
	}

	closeStore := func() {}
	if options.ReloadInterval > 0 {
		watchDone := loader.Watch(ctx, options.ReloadInterval)
		closeStore = func() { <-watchDone }
	}
	return mem, store.NewCredentials(), closeStore
}
