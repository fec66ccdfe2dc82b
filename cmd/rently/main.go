package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"rently/internal/app/commands"
	availabilityapp "rently/internal/app/handlers/availability"
	bookingapp "rently/internal/app/handlers/booking"
	"rently/internal/app/middleware"
	appoutbox "rently/internal/app/outbox"
	"rently/internal/app/policies"
	"rently/internal/app/queries"
	authsvc "rently/internal/app/services/auth"
	"rently/internal/app/uow"
	domainad "rently/internal/domain/ad"
	domainbooking "rently/internal/domain/booking"
	"rently/internal/domain/shared/money"
	"rently/internal/infra/broker/kafka"
	"rently/internal/infra/config"
	"rently/internal/infra/db/mongo"
	ginserver "rently/internal/infra/http/gin"
	"rently/internal/infra/locks"
	"rently/internal/infra/obs"
	infraoutbox "rently/internal/infra/outbox"
	"rently/internal/infra/security"
	"rently/internal/infra/storage/memory"
	redisstore "rently/internal/infra/storage/redis"
	"rently/internal/infra/sweep"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	app, err := buildApplication(cfg, logger)
	if err != nil {
		logger.Error("application wiring failed", "error", err)
		os.Exit(1)
	}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Probes: app.probes,
	}, app.handlers)

	fixturesPath := cfg.AdFixturesPath
	if fixturesPath == "" {
		fixturesPath = filepath.Join("data", "ads.json")
	}
	if err := app.loadAdFixtures(ctx, fixturesPath, logger); err != nil {
		logger.Warn("ad fixtures load failed", "error", err, "path", fixturesPath)
	}

	if app.outboxWorker != nil {
		go func() {
			if err := app.outboxWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("outbox worker stopped", "error", err)
			}
		}()
	}
	if app.sweeper != nil {
		go func() {
			if err := app.sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("hold sweeper stopped", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type application struct {
	handlers     ginserver.Handlers
	probes       map[string]obs.ReadinessProbe
	outboxWorker *infraoutbox.Worker
	sweeper      *sweep.Worker
	ads          domainad.Repository
}

func buildApplication(cfg config.Config, logger *slog.Logger) (application, error) {
	app := application{probes: map[string]obs.ReadinessProbe{}}

	var (
		uowFactory  uow.UoWFactory
		outboxStore infraoutbox.Store
	)
	if cfg.MongoURI != "" {
		client, err := mongo.New(cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return application{}, fmt.Errorf("mongo connect: %w", err)
		}
		bookingRepo := mongo.NewBookingRepository(client.DB)
		if err := bookingRepo.EnsureIndexes(context.Background()); err != nil {
			return application{}, fmt.Errorf("mongo indexes: %w", err)
		}
		adRepo := mongo.NewAdRepository(client.DB)
		uowFactory = mongo.Factory{
			DB:           client.DB,
			AdsRepo:      adRepo,
			BookingRepo:  bookingRepo,
			Availability: bookingRepo,
		}
		outboxStore = mongo.NewOutboxStore(client.DB)
		app.ads = adRepo
		app.probes["mongo"] = func() error {
			probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(probeCtx)
		}
		logger.Info("storage configured", "backend", "mongo", "db", cfg.MongoDB)
	} else {
		adRepo := memory.NewAdRepository()
		bookingRepo := memory.NewBookingRepository()
		uowFactory = memory.Factory{
			AdsRepo:      adRepo,
			BookingRepo:  bookingRepo,
			Availability: bookingRepo,
		}
		outboxStore = memory.NewOutboxStore()
		app.ads = adRepo
		logger.Info("storage configured", "backend", "memory")
	}

	var idStore middleware.IdempotencyStore
	if cfg.RedisAddr != "" {
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		store := redisstore.NewIdempotencyStore(client, cfg.IdempotencyTTL)
		app.probes["redis"] = func() error {
			probeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return store.Ping(probeCtx)
		}
		idStore = store
	} else {
		idStore = memory.NewIdempotencyStore()
	}

	box := memory.NewOutbox(outboxStore)
	encoder := appoutbox.JSONEventEncoder{}

	policy, err := domainbooking.NewPolicy(cfg.CancelFeeTiers)
	if err != nil {
		return application{}, fmt.Errorf("cancellation policy: %w", err)
	}
	hold := policies.HoldPolicy{
		AutoRejectOverlapping: cfg.AutoRejectOverlapping,
		PendingTTL:            cfg.PendingHoldTTL,
	}
	locker := locks.NewKeyedLocker()

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory: uowFactory,
		Outbox:     box,
		Encoder:    encoder,
	})
	commands.RegisterHandler(commandBus, bookingapp.ConfirmBookingCommand{}.Key(), &bookingapp.ConfirmBookingHandler{
		UoWFactory:  uowFactory,
		Locker:      locker,
		Hold:        hold,
		Outbox:      box,
		Encoder:     encoder,
		LockWait:    cfg.ConfirmLockWait,
		LockRetries: cfg.ConfirmLockRetries,
		Logger:      logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.RejectBookingCommand{}.Key(), &bookingapp.RejectBookingHandler{
		UoWFactory: uowFactory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.CancelBookingCommand{}.Key(), &bookingapp.CancelBookingHandler{
		UoWFactory: uowFactory,
		Policy:     policy,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.ExpirePendingCommand{}.Key(), &bookingapp.ExpirePendingHandler{
		UoWFactory: uowFactory,
		Outbox:     box,
		Encoder:    encoder,
		Logger:     logger,
	})

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, bookingapp.QuoteCancellationQuery{}.Key(), &bookingapp.QuoteCancellationHandler{
		UoWFactory: uowFactory,
		Policy:     policy,
	})
	queries.RegisterHandler(queryBus, bookingapp.ListTenantBookingsQuery{}.Key(), &bookingapp.ListTenantBookingsHandler{
		UoWFactory: uowFactory,
	})
	queries.RegisterHandler(queryBus, bookingapp.ListAdBookingsQuery{}.Key(), &bookingapp.ListAdBookingsHandler{
		UoWFactory: uowFactory,
	})
	queries.RegisterHandler(queryBus, availabilityapp.GetBusyIntervalsQuery{}.Key(), &availabilityapp.GetBusyIntervalsHandler{
		UoWFactory: uowFactory,
	})

	commandBusWithMiddleware := middleware.ChainCommands(
		commandBus,
		middleware.Validation(),
		middleware.Idempotency(idStore, nil),
		middleware.Transaction(uowFactory, nil),
		middleware.OutboxFlush(box),
	)
	queryBusWithMiddleware := middleware.ChainQueries(queryBus)

	authService := &authsvc.Service{
		Users:      memory.NewUserRepository(),
		Sessions:   memory.NewSessionStore(),
		Passwords:  security.BcryptHasher{Cost: bcrypt.DefaultCost},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	authMW := ginserver.AuthMiddleware{Service: authService, Logger: logger}

	app.handlers = ginserver.Handlers{
		Booking: ginserver.BookingHandler{
			Commands: commandBusWithMiddleware,
			Queries:  queryBusWithMiddleware,
		},
		Availability: ginserver.AvailabilityHandler{
			Queries: queryBusWithMiddleware,
		},
		Auth:           ginserver.AuthHandler{Service: authService, Logger: logger},
		AuthMiddleware: authMW.Handle,
	}

	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
		if err != nil {
			return application{}, fmt.Errorf("kafka producer: %w", err)
		}
		app.outboxWorker = &infraoutbox.Worker{
			Store:       outboxStore,
			Producer:    producer,
			Interval:    cfg.OutboxPollInterval,
			TopicPrefix: cfg.KafkaTopicPrefix,
			Backoff:     cfg.RetryBackoff,
		}
		logger.Info("outbox publisher configured", "brokers", cfg.KafkaBrokers)
	}

	if cfg.PendingHoldTTL > 0 {
		app.sweeper = &sweep.Worker{
			Bus:      commandBusWithMiddleware,
			TTL:      cfg.PendingHoldTTL,
			Interval: cfg.SweepInterval,
			Logger:   logger,
		}
		logger.Info("hold sweeper configured", "ttl", cfg.PendingHoldTTL)
	}

	return app, nil
}

func (a application) loadAdFixtures(ctx context.Context, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("ad fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	var fixtures []adFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}
	now := time.Now()
	for _, fx := range fixtures {
		entity, err := domainad.New(domainad.CreateParams{
			ID:          domainad.AdID(fx.ID),
			OwnerID:     fx.OwnerID,
			Title:       fx.Title,
			Location:    fx.Location,
			PricePerDay: money.Money{Amount: fx.PricePerDayCents, Currency: fx.Currency},
			Rooms:       fx.Rooms,
			HousingType: fx.HousingType,
			IsActive:    fx.IsActive,
			Now:         now,
		})
		if err != nil {
			logger.Error("fixture invalid", "ad_id", fx.ID, "error", err)
			continue
		}
		if err := a.ads.Save(ctx, entity); err != nil {
			logger.Error("cannot store fixture ad", "ad_id", fx.ID, "error", err)
			continue
		}
		logger.Info("ad fixture imported", "ad_id", entity.ID)
	}
	return nil
}

type adFixture struct {
	ID               string `json:"id"`
	OwnerID          string `json:"owner_id"`
	Title            string `json:"title"`
	Location         string `json:"location"`
	PricePerDayCents int64  `json:"price_per_day_cents"`
	Currency         string `json:"currency"`
	Rooms            int    `json:"rooms"`
	HousingType      string `json:"housing_type"`
	IsActive         bool   `json:"is_active"`
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
