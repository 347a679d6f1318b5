package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/turf-reservation/internal/availability"
	"github.com/iliyamo/turf-reservation/internal/config"
	"github.com/iliyamo/turf-reservation/internal/database"
	"github.com/iliyamo/turf-reservation/internal/handler"
	"github.com/iliyamo/turf-reservation/internal/ledger"
	"github.com/iliyamo/turf-reservation/internal/locker"
	"github.com/iliyamo/turf-reservation/internal/middleware"
	"github.com/iliyamo/turf-reservation/internal/queue"
	"github.com/iliyamo/turf-reservation/internal/realtime"
	"github.com/iliyamo/turf-reservation/internal/repository"
	"github.com/iliyamo/turf-reservation/internal/router"
	"github.com/iliyamo/turf-reservation/internal/schedule"
	"github.com/iliyamo/turf-reservation/internal/service"
)

func main() {
	_ = godotenv.Load(".env") // optional; real environment wins

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	log.SetLevel(logLevel(cfg.LogLevel))
	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	store, catalog, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// Redis is optional: without it caching and rate limiting are off and
	// unit locks stay in process.
	rcfg, err := config.LoadRedisConfig()
	if err != nil {
		return err
	}
	rdb := config.NewRedisClient(rcfg)
	if rdb == nil {
		log.Warnf("redis unavailable at %s; cache, rate limit and shared locks disabled", rcfg.Addr)
	} else {
		defer rdb.Close()
	}

	opts := []ledger.Option{}
	if cfg.Lock.Backend == "redis" {
		if rdb == nil {
			return errors.New("LOCK_BACKEND=redis but redis is unavailable")
		}
		opts = append(opts, ledger.WithLocker(locker.NewRedis(rdb, cfg.Lock.Prefix, cfg.Lock.TTL, cfg.Lock.Wait)))
	}
	led := ledger.New(store, opts...)

	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}

	hub := realtime.NewHub(cfg.Queue.LiveBuffer)
	defer hub.Close()
	notifiers := []service.Notifier{hub}
	if rdb != nil && cacheCfg.Enabled {
		notifiers = append(notifiers, middleware.NewCachePurger(cacheCfg, rdb))
	}
	if cfg.Queue.Enabled {
		pub := queue.NewPublisher(cfg.Queue.URL, cfg.Queue.Exchange)
		defer pub.Close()
		notifiers = append(notifiers, pub)
	}
	if cfg.Queue.AuditEnabled {
		audit := queue.AuditConsumer{
			URL:      cfg.Queue.URL,
			Exchange: cfg.Queue.Exchange,
			Queue:    cfg.Queue.AuditQueue,
			LogPath:  cfg.Queue.AuditLogPath,
		}
		go func() {
			if err := audit.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorf("audit-consumer: %v", err)
			}
		}()
	}

	cal := schedule.NewCalendar(loc)
	svc := service.NewBookingService(service.Deps{
		Ledger:       led,
		Approval:     ledger.NewApproval(led, catalog),
		Availability: availability.New(store),
		Catalog:      catalog,
		Calendar:     cal,
		Pricing:      schedule.Pricing{Granularity: cal.Granularity},
		Notifiers:    notifiers,
	})

	if cfg.Job.CompletionEnabled {
		job, err := service.NewCompletionJob(led, cfg.Job.CompletionSchedule)
		if err != nil {
			return err
		}
		job.Start()
		defer job.Stop()
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetLevel(logLevel(cfg.LogLevel))
	e.Use(middleware.NewTokenBucket(rlCfg, rdb))

	resH := handler.NewReservationHandler(svc)
	router.RegisterRoutes(e)
	router.RegisterPublic(e, resH, middleware.NewRedisCache(cacheCfg, rdb))
	router.RegisterCustomer(e, resH, cfg.JWTSecret)
	router.RegisterOwner(e, handler.NewOwnerReservationHandler(svc), handler.NewLiveHandler(svc, hub), cfg.JWTSecret)

	addr := ":" + cfg.Port
	errc := make(chan error, 1)
	go func() {
		log.Infof("listening on %s (env=%s, store=%s, tz=%s)", addr, cfg.Env, cfg.Store, loc)
		errc <- e.Start(addr)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")
	hub.Close() // ends open live streams so Shutdown does not wait on them
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// openStore returns the reservation store and the catalog for the
// configured backend, plus a function releasing them.
func openStore(ctx context.Context, cfg config.Config) (ledger.Store, service.Catalog, func(), error) {
	if cfg.Store == config.StoreMemory {
		catalog, err := repository.LoadMemoryCatalog(cfg.SeedFile)
		if err != nil {
			return nil, nil, nil, err
		}
		log.Warnf("using the in-memory store; reservations are lost on restart")
		return ledger.NewMemoryStore(), catalog, func() {}, nil
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, nil, nil, err
	}
	closeDB := func() { closeQuietly(db) }
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			closeDB()
			return nil, nil, nil, err
		}
	}
	return repository.NewReservationRepo(db), repository.NewCatalogRepo(db), closeDB, nil
}

func closeQuietly(db *sql.DB) {
	if err := db.Close(); err != nil {
		log.Warnf("close database: %v", err)
	}
}

func logLevel(s string) log.Lvl {
	switch strings.ToLower(s) {
	case "debug":
		return log.DEBUG
	case "warn":
		return log.WARN
	case "error":
		return log.ERROR
	case "off":
		return log.OFF
	}
	return log.INFO
}
