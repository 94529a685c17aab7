package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httpadp "fastpay-ledger/internal/adapter/http"
	idemp "fastpay-ledger/internal/adapter/middleware"
	"fastpay-ledger/internal/adapter/rates"
	"fastpay-ledger/internal/adapter/repository/kv"
	"fastpay-ledger/internal/adapter/repository/mysql"
	"fastpay-ledger/internal/config"
	"fastpay-ledger/internal/domain/currency"
	"fastpay-ledger/internal/domain/uow"
	"fastpay-ledger/internal/infrastructure/cache"
	"fastpay-ledger/internal/infrastructure/db"
	eventsinfra "fastpay-ledger/internal/infrastructure/events"
	"fastpay-ledger/internal/infrastructure/kvstore"
	"fastpay-ledger/internal/infrastructure/logger"
	currencyuc "fastpay-ledger/internal/usecase/currency"
	"fastpay-ledger/internal/usecase/ledger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, lg); err != nil {
		lg.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, lg *zap.Logger) error {
	rdb := openRedis(cfg, lg)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	tx, closeStore, err := openLedgerStore(ctx, cfg, rdb, lg)
	if err != nil {
		return err
	}
	defer closeStore()

	var notifier ledger.Notifier = eventsinfra.NewBroker(0)
	if rdb != nil {
		notifier = eventsinfra.NewRedisNotifier(rdb, cfg.KeyPrefix, lg.Named("events"))
	}
	opts := []ledger.Option{
		ledger.WithPolicy(cfg.Policy()),
		ledger.WithNotifier(notifier),
		ledger.WithLogger(lg.Named("ledger")),
	}
	defaults := ledger.OpenAccountInput{Name: "Account holder"}
	if cfg.Mode == config.ModeLocal {
		if cfg.GuestLatencyMs > 0 {
			opts = append(opts, ledger.WithLatency(ledger.FixedLatency(time.Duration(cfg.GuestLatencyMs)*time.Millisecond)))
		}
		defaults = ledger.OpenAccountInput{Name: "Demo User", OpeningBalance: cfg.GuestOpeningBalance}
	}
	uc := ledger.NewUsecase(tx, opts...)

	if cfg.Mode == config.ModeLocal {
		view, err := uc.EnsureAccount(ctx, cfg.GuestUserID, defaults)
		if err != nil {
			return err
		}
		lg.Info("guest account ready",
			zap.String("user_id", view.UserID),
			zap.String("account_number", view.AccountNumber),
			zap.String("balance", view.Balance.StringFixed(2)))
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Logger(), middleware.Recover())

	var mutating []echo.MiddlewareFunc
	if rdb != nil {
		ttl := time.Duration(cfg.IdempTTLSecs) * time.Second
		mutating = append(mutating, idemp.IdempotencyMiddleware(rdb, ttl, lg.Named("idempotency")))
	}
	httpadp.Register(e, httpadp.Routes{
		Health:   httpadp.NewHandler(),
		Accounts: httpadp.NewAccountHandler(uc, defaults, lg.Named("http")),
		Loans:    httpadp.NewLoanHandler(uc, lg.Named("http")),
		Currency: httpadp.NewCurrencyHandler(newCurrency(cfg, rdb, lg), lg.Named("http")),
	}, mutating...)

	addr := ":" + cfg.AppPort
	errCh := make(chan error, 1)
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("mode", cfg.Mode))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		// open event streams do not end on their own
		lg.Warn("graceful shutdown timed out, closing", zap.Error(err))
		return e.Close()
	}
	return nil
}

// openRedis returns nil when Redis is not configured or not reachable; the
// components that need it fall back to in-process versions.
func openRedis(cfg *config.Config, lg *zap.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		lg.Warn("redis unavailable, using in-process cache and events without idempotency", zap.Error(err))
		return nil
	}
	return rdb
}

func openLedgerStore(ctx context.Context, cfg *config.Config, rdb *redis.Client, lg *zap.Logger) (uow.UnitOfWork, func(), error) {
	if cfg.Mode == config.ModeLocal {
		var store kv.Store = kvstore.NewMemory()
		if cfg.KVBackend == config.KVRedis {
			if rdb == nil {
				return nil, nil, errors.New("KV_BACKEND=redis but redis is unavailable")
			}
			store = kvstore.NewRedis(rdb, cfg.KeyPrefix)
		}
		u := kv.NewUoW(store, cfg.KVKey, cfg.GuestUserID, cfg.Policy(), lg.Named("kv"))
		upgraded, err := u.Upgrade(ctx)
		if err != nil {
			return nil, nil, err
		}
		if upgraded {
			lg.Info("upgraded stored guest snapshot", zap.String("key", cfg.KVKey))
		}
		return u, func() {}, nil
	}

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, nil, err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return mysql.NewGormUoW(gdb), func() { _ = sqlDB.Close() }, nil
}

func newCurrency(cfg *config.Config, rdb *redis.Client, lg *zap.Logger) *currencyuc.Usecase {
	var rc currencyuc.Cache = cache.NewMemoryRates(time.Now)
	if rdb != nil {
		rc = cache.NewRedisRates(rdb)
	}

	var sources []currency.Source
	if cfg.RatesAPIKey != "" {
		sources = append(sources, rates.NewPrimary(cfg.RatesPrimaryURL, cfg.RatesAPIKey, nil))
	}
	sources = append(sources,
		rates.NewFallback(cfg.RatesFallbackURL, nil),
		rates.NewBackup(cfg.RatesBackupURL, nil),
	)

	fallback := currency.Fallback()
	if len(cfg.FallbackRates) > 0 {
		fallback = currency.Rates{Base: "USD", Values: cfg.FallbackRates}
	}
	return currencyuc.NewUsecase(rc, sources,
		currencyuc.WithFallback(fallback),
		currencyuc.WithTTL(time.Duration(cfg.RatesTTLSecs)*time.Second),
		currencyuc.WithLogger(lg.Named("currency")),
	)
}
