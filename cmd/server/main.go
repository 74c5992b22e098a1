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
	"github.com/rs/zerolog/log"

	"invoicecore/internal/cache"
	"invoicecore/internal/config"
	"invoicecore/internal/httpapi"
	"invoicecore/internal/logger"
	"invoicecore/internal/sequence"
	"invoicecore/internal/service"
	"invoicecore/internal/store"
	"invoicecore/internal/store/memory"
	pgstore "invoicecore/internal/store/postgres"
	"invoicecore/internal/tax"
)

func main() {
	// A missing .env file is normal in deployed environments.
	_ = godotenv.Load()

	cfg := config.Load()
	logCfg := logger.DefaultConfig()
	logCfg.Level, logCfg.Format, logCfg.Output = cfg.LogLevel, cfg.LogFormat, cfg.LogOutput
	if err := logger.Setup(logCfg); err != nil {
		fmt.Fprintf(os.Stderr, "invalid log configuration: %v\n", err)
		os.Exit(1)
	}
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid security configuration")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		repo     store.Repository
		counters sequence.CounterStore
	)
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback")
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("schema migration failed")
		}
		repo, counters = pg, pg
		closers = append(closers, pg.Close)
		log.Info().Msg("repository: postgres")
	} else {
		mem, err := memory.NewSeeded()
		if err != nil {
			log.Fatal().Err(err).Msg("seed in-memory store")
		}
		repo, counters = mem, mem
		log.Info().Msg("repository: in-memory")
	}

	invoiceCache := cache.InvoiceCache(cache.NoopInvoiceCache{})
	if cfg.RedisAddr != "" {
		client := cache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		redisCache := cache.NewRedisInvoiceCache(client)
		if err := redisCache.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using noop cache")
			_ = client.Close()
		} else {
			invoiceCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Info().Msg("cache: redis")
			// Without a database the counter would reset on restart; keep it in redis.
			if cfg.DatabaseURL == "" {
				counters = cache.NewRedisCounterStore(client)
				log.Info().Msg("invoice counter: redis")
			}
		}
	} else {
		log.Info().Msg("cache: noop")
	}

	rates := tax.RateTable{Default: cfg.GSTRate, ByHSN: cfg.GSTRatesByHSN}
	if err := rates.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid GST rate table")
	}

	allocator := sequence.NewAllocator(counters, sequence.InvoiceCounter, cfg.InvoiceNumberPrefix)
	svc := service.New(repo, allocator, invoiceCache, service.Options{
		SellerID:        cfg.SellerID,
		SellerStateCode: cfg.SellerStateCode,
		Rates:           rates,
		RoundOffEnabled: cfg.RoundOffEnabled,
		CacheTTL:        time.Duration(cfg.InvoiceCacheTTLSeconds) * time.Second,
	})
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Address()).Msg("invoice service listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Error().Err(err).Msg("close error")
		}
	}

	log.Info().Msg("server stopped")
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

	// Reject all-same-digit PINs.
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

	// Reject ascending or descending sequential PINs (e.g. 123456, 987654).
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
