package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/api"
	"github.com/sanosuguru/go-event-booking/internal/api/handler"
	"github.com/sanosuguru/go-event-booking/internal/api/middleware"
	"github.com/sanosuguru/go-event-booking/internal/application"
	"github.com/sanosuguru/go-event-booking/internal/config"
	"github.com/sanosuguru/go-event-booking/internal/domain/booking"
	"github.com/sanosuguru/go-event-booking/internal/domain/event"
	"github.com/sanosuguru/go-event-booking/internal/domain/seatlock"
	"github.com/sanosuguru/go-event-booking/internal/domain/transaction"
	"github.com/sanosuguru/go-event-booking/internal/infrastructure/memory"
	"github.com/sanosuguru/go-event-booking/internal/infrastructure/postgres"
	"github.com/sanosuguru/go-event-booking/internal/infrastructure/rabbitmq"
	"github.com/sanosuguru/go-event-booking/internal/infrastructure/realtime"
	redisinfra "github.com/sanosuguru/go-event-booking/internal/infrastructure/redis"
	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
	"github.com/sanosuguru/go-event-booking/internal/pkg/metrics"
	"github.com/sanosuguru/go-event-booking/internal/worker"
)

// store は選択したストアの各ポート
type store struct {
	txm       transaction.Manager
	events    event.Repository
	inventory event.Inventory
	bookings  booking.Repository
	stats     booking.StatsReader
	balances  booking.BalanceReader
	ping      handler.CheckFunc
	close     func() error
}

func main() {
	cfg := config.Load()
	log := logger.Init(cfg.Env)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal("ストアの初期化に失敗しました", zap.Error(err))
	}
	defer st.close()

	m := metrics.New()
	checks := map[string]handler.CheckFunc{"store": st.ping}

	// Redis はキャッシュ・ノード間中継・スイーパーのリースにだけ使う
	var (
		cache  application.AvailabilityCache
		relay  seatlock.Relay
		leases *redisinfra.LeaseManager
	)
	if cfg.Redis.Enabled {
		rc := redisinfra.NewClient(&cfg.Redis)
		defer rc.Close()
		if err := redisinfra.Ping(ctx, rc); err != nil {
			log.Warn("Redisに接続できません。キャッシュなしで起動します", zap.Error(err))
		} else {
			cache = redisinfra.NewAvailabilityCache(rc, cfg.Redis.CacheTTL)
			relay = redisinfra.NewSeatLockRelay(rc)
			leases = redisinfra.NewLeaseManager(rc)
			checks["redis"] = redisinfra.ReadinessCheck(rc)
		}
	}

	opts := []application.BookingOption{application.WithMetrics(m)}
	if cache != nil {
		opts = append(opts, application.WithAvailabilityCache(cache))
	}
	if cfg.RabbitMQ.Enabled {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL)
		if err != nil {
			log.Warn("RabbitMQに接続できません。ドメインイベントは送信しません", zap.Error(err))
		} else {
			defer pub.Close()
			opts = append(opts, application.WithPublisher(pub))
		}
	}

	eventService := application.NewEventService(st.events, st.inventory, cache)
	bookingService := application.NewBookingService(st.txm, st.inventory, st.events, st.bookings, opts...)
	statsService := application.NewStatsService(st.stats)
	reconciliation := application.NewReconciliationService(st.balances)

	hub := realtime.NewHub(realtime.HubConfig{
		LockTTL:    cfg.Advisory.LockTTL,
		SendBuffer: cfg.Advisory.SendBuffer,
	}, relay, m)
	go func() {
		if err := hub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("座席ロック中継の受信が停止しました", zap.Error(err))
		}
	}()

	sweeper := worker.NewConservationSweeper(reconciliation, m, cfg.Worker.SweepInterval)
	if leases != nil {
		sweeper.WithLease(worker.LeaseFrom(leases, cfg.Worker.SweepLeaseTTL), cfg.Worker.SweepLeaseTTL)
	}
	go sweeper.Start(ctx)

	e := api.NewEcho()
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	middleware.SetupMiddleware(e, m)

	metricsCfg := middleware.LoadMetricsConfig()
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(metricsCfg))

	handler.Routes{
		Health:    handler.NewHealthHandler(checks),
		Events:    handler.NewEventHandler(eventService, bookingService),
		Bookings:  handler.NewBookingHandler(bookingService),
		Stats:     handler.NewStatsHandler(statsService),
		SeatLocks: handler.NewSeatLockHandler(hub, eventService),
		JWTSecret: cfg.Auth.JWTSecret,
	}.Register(e)

	go func() {
		log.Info("サーバーを起動します",
			zap.String("port", cfg.Server.Port),
			zap.String("store", cfg.Store.Driver),
		)
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("サーバーをシャットダウンしています...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("サーバーシャットダウンエラー", zap.Error(err))
	}
	sweeper.Stop()

	log.Info("サーバーが正常にシャットダウンしました")
}

func openStore(cfg *config.Config) (*store, error) {
	if cfg.UseMemoryStore() {
		s := memory.NewStore()
		events := s.Events()
		return &store{
			txm:       s.TxManager(),
			events:    events,
			inventory: events,
			bookings:  s.Bookings(),
			stats:     s.Bookings(),
			balances:  s.Bookings(),
			ping:      func(context.Context) error { return nil },
			close:     func() error { return nil },
		}, nil
	}

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
		db.Close()
		return nil, err
	}
	return postgresStore(db), nil
}

func postgresStore(db *sqlx.DB) *store {
	events := postgres.NewEventRepository(db)
	bookings := postgres.NewBookingRepository(db)
	return &store{
		txm:       postgres.NewTxManager(db),
		events:    events,
		inventory: events,
		bookings:  bookings,
		stats:     bookings,
		balances:  bookings,
		ping:      func(ctx context.Context) error { return postgres.Ping(ctx, db) },
		close:     db.Close,
	}
}
