package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fleetbook/internal/api"
	"fleetbook/internal/auth"
	"fleetbook/internal/cache"
	"fleetbook/internal/config"
	"fleetbook/internal/jobs"
	"fleetbook/internal/logger"
	"fleetbook/internal/notify"
	"fleetbook/internal/repository"
	"fleetbook/internal/service"

	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	calendarCache := cache.CalendarCache(cache.NopCalendarCache{})
	if cfg.RedisAddr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisCacheDB)
		if err != nil {
			log.Warn("calendar cache disabled", zap.Error(err))
		} else {
			defer client.Close()
			calendarCache = cache.NewRedisCalendarCache(client, cfg.CalendarCacheTTL)
		}
	}

	notifiers := notify.Multi{notify.LogNotifier{Logger: log}}
	if cfg.NotificationsEnabled && cfg.RedisAddr != "" {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisQueueDB}
		queue := asynq.NewClient(redisOpt)
		defer queue.Close()
		notifiers = append(notifiers, notify.NewTaskNotifier(queue, log))

		sender := notify.NewProviderSender(notify.SenderConfig{
			SendgridAPIKey:   cfg.SendgridAPIKey,
			FromEmail:        cfg.SendgridFromEmail,
			FromName:         cfg.SendgridFromName,
			TwilioAccountSID: cfg.TwilioAccountSID,
			TwilioAuthToken:  cfg.TwilioAuthToken,
			TwilioFromNumber: cfg.TwilioFromNumber,
		}, log)
		worker := notify.NewWorker(redisOpt, sender, log)
		if err := worker.Start(); err != nil {
			log.Error("notification worker failed to start", zap.Error(err))
		} else {
			defer worker.Shutdown()
		}
	}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := notify.NewKafkaProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Warn("kafka publishing disabled", zap.Error(err))
		} else {
			publisher := notify.NewKafkaPublisher(producer, cfg.KafkaTopic, log)
			defer publisher.Close()
			notifiers = append(notifiers, publisher)
		}
	}

	stripe.Key = cfg.StripeKey
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	svc := service.NewReservationService(service.Deps{
		Store:    store,
		Notifier: notifiers,
		Cache:    calendarCache,
		Logger:   log,
	}, service.Options{
		GracePeriod:       cfg.GracePeriod,
		SweepBatchSize:    cfg.SweepBatchSize,
		AllocationTimeout: cfg.AllocationTimeout,
		AllocationRetries: cfg.AllocationRetries,
		PriceTolerance:    cfg.PriceTolerance,
		DefaultPickupHour: cfg.DefaultPickupHour,
	})
	authService := service.NewAuthService(store, jwtManager, log)

	scheduler, err := jobs.NewScheduler(svc, jobs.Schedules{
		Sweep:      cfg.SweepSchedule,
		Completion: cfg.CompletionSchedule,
	}, log)
	if err != nil {
		log.Fatal("invalid job schedule", zap.Error(err))
	}
	scheduler.Start()

	router := api.NewRouter(api.Handlers{
		Reservations: api.NewReservationHandler(svc, log),
		Fleet:        api.NewFleetHandler(svc, log),
		Admin:        api.NewAdminHandler(svc, log),
		Auth:         api.NewAuthHandler(authService, log),
		Stripe:       api.NewStripeWebhookHandler(cfg.StripeWebhookSecret, svc, log),
	}, api.RouterConfig{
		JWT:             jwtManager,
		Logger:          log,
		RateLimitPerMin: cfg.RateLimitPerMin,
		CORSOrigins:     cfg.CORSOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("server running", zap.String("port", cfg.AppPort), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", zap.Error(err))
	}
	select {
	case <-scheduler.Stop().Done():
	case <-shutdownCtx.Done():
		log.Warn("scheduled jobs still running at shutdown")
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Store, error) {
	if cfg.StoreDriver == "memory" {
		log.Warn("using in-memory store, data is lost on restart")
		return repository.NewMemoryStore(), nil
	}
	store, err := repository.OpenPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}
