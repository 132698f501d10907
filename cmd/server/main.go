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

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"kasirinaja/backoffice/internal/config"
	"kasirinaja/backoffice/internal/domain"
	"kasirinaja/backoffice/internal/httpapi"
	"kasirinaja/backoffice/internal/logger"
	"kasirinaja/backoffice/internal/metrics"
	"kasirinaja/backoffice/internal/service"
	"kasirinaja/backoffice/internal/session"
	"kasirinaja/backoffice/internal/store"
	"kasirinaja/backoffice/internal/store/gormstore"
	"kasirinaja/backoffice/internal/store/memory"
	"kasirinaja/backoffice/internal/store/migrations"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	lg := logger.New(logger.Options{
		ServiceName: "kasirinaja-backoffice",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})
	if err := validateSecurityConfig(cfg); err != nil {
		lg.Error(context.Background(), "config.insecure", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		db, err := gormstore.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL)
		if err != nil {
			lg.Error(ctx, "repository.unavailable", fmt.Errorf("DATABASE_URL is set; refusing to start with in-memory fallback: %w", err))
			os.Exit(1)
		}
		if cfg.AutoMigrate {
			if err := migrations.Up(ctx, db.SQLDB(), db.Driver()); err != nil {
				lg.Error(ctx, "repository.migrate_failed", err)
				os.Exit(1)
			}
		}
		if err := seedAdmin(ctx, db, cfg); err != nil {
			lg.Error(ctx, "repository.seed_failed", err)
			os.Exit(1)
		}
		repo = db
		closers = append(closers, db.Close)
		lg.Info(lg.WithField(ctx, "driver", db.Driver()), "repository.ready")
	} else {
		repo = memory.NewSeeded()
		lg.Info(lg.WithField(ctx, "driver", "memory"), "repository.ready")
	}

	var sessionStore session.Store = session.NewMemoryStore()
	if cfg.RedisAddr != "" {
		redisStore := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisStore.Ping(ctx); err != nil {
			lg.Warn(ctx, "sessions.redis_unavailable", err)
		} else {
			sessionStore = redisStore
			closers = append(closers, redisStore.Close)
		}
	}
	sessions := session.NewManager(sessionStore, cfg.SessionTTL())

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mtx := metrics.New(registry)

	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, cfg.AccessTokenTTL(), cfg.ManagerPIN, cfg.BranchID, repo)
	svc := service.New(repo, service.Options{
		DefaultBranchID: cfg.BranchID,
		ShiftsPerPage:   cfg.ShiftsPerPage,
		Logger:          lg,
		Metrics:         mtx,
		ManagerPIN:      auth,
	})
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        lg,
		Metrics:       mtx,
		Sessions:      sessions,
		SecureCookies: !cfg.IsDev(),
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		lg.Info(lg.WithField(context.Background(), "addr", cfg.Address()), "server.listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error(context.Background(), "server.failed", err)
			os.Exit(1)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		lg.Error(shutdownCtx, "server.shutdown_failed", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			lg.Warn(shutdownCtx, "server.close_failed", err)
		}
	}

	lg.Info(shutdownCtx, "server.stopped")
}

type userSeeder interface {
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
}

// seedAdmin creates the first admin on an empty database. The plain password
// is upgraded to bcrypt when the AuthManager loads users.
func seedAdmin(ctx context.Context, users userSeeder, cfg config.Config) error {
	existing, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 || cfg.SeedAdminPassword == "" {
		return nil
	}
	if len(cfg.SeedAdminPassword) < 8 {
		return fmt.Errorf("SEED_ADMIN_PASSWORD must be at least 8 characters")
	}
	return users.CreateUser(ctx, domain.UserAccount{
		Username:  "admin",
		Name:      "Store Admin",
		Password:  cfg.SeedAdminPassword,
		Role:      domain.RoleAdmin,
		BranchID:  cfg.BranchID,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	})
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

// validatePINStrength rejects PINs that are all the same digit,
// sequential (ascending or descending), or from a known-weak list.
func validatePINStrength(pin string) error {
	known := map[string]bool{
		"123456": true, "654321": true, "000000": true, "111111": true,
		"222222": true, "333333": true, "444444": true, "555555": true,
		"666666": true, "777777": true, "888888": true, "999999": true,
		"121212": true, "112233": true, "123123": true,
	}
	if known[pin] {
		return fmt.Errorf("common PIN not allowed")
	}

	allSame := true
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return fmt.Errorf("all-same-digit PIN not allowed")
	}

	ascending, descending := true, true
	for i := 1; i < len(pin); i++ {
		diff := int(pin[i]) - int(pin[i-1])
		if diff != 1 {
			ascending = false
		}
		if diff != -1 {
			descending = false
		}
	}
	if ascending || descending {
		return fmt.Errorf("sequential PIN not allowed")
	}

	return nil
}
