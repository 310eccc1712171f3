package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/courtnotify/internal/api"
	"github.com/charlesng35/courtnotify/internal/app"
	"github.com/charlesng35/courtnotify/internal/app/maintenance"
	iauth "github.com/charlesng35/courtnotify/internal/auth"
	"github.com/charlesng35/courtnotify/internal/database"
	"github.com/charlesng35/courtnotify/internal/events"
	"github.com/charlesng35/courtnotify/internal/lock"
	"github.com/charlesng35/courtnotify/internal/middleware"
	"github.com/charlesng35/courtnotify/internal/monitoring"
	"github.com/charlesng35/courtnotify/internal/monitoring/checks"
	"github.com/charlesng35/courtnotify/internal/push"
	"github.com/charlesng35/courtnotify/internal/services"
	"github.com/charlesng35/courtnotify/internal/store"
	"github.com/charlesng35/courtnotify/pkg/logger"
)

// runtimeStack bundles long-lived services used by the server process.
type runtimeStack struct {
	DB         *gorm.DB
	Redis      *redis.Client
	Store      *store.GormStore
	Gateway    push.Gateway
	Monitoring *monitoring.Module
	Sweeps     *services.SweepService
	Scheduler  *maintenance.Scheduler
	Triggers   *services.MatchEventService
	Consumer   *events.Consumer
	Router     *gin.Engine
}

// gatewayFactory builds the push gateway. Tests replace it to avoid credentials.
var gatewayFactory = newGateway

// bootstrapRuntime initialises storage, the notification pipeline, the
// background jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if mode := strings.TrimSpace(cfg.Server.GinMode); mode != "" {
		gin.SetMode(mode)
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Store, err = store.NewGormStore(stack.DB, store.WithQueryTimeout(cfg.Database.QueryTimeout))
	if err != nil {
		return nil, fmt.Errorf("initialise store: %w", err)
	}

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = lock.NewRedisClient(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to in-process leases and rate limits", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	stack.Gateway, err = gatewayFactory(ctx, cfg.Push)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Push.Location()
	if err != nil {
		return nil, err
	}
	composer := services.NewComposer(loc, cfg.Push.AppName)

	resolver, err := services.NewRecipientResolver(stack.Store,
		services.WithFanOut(cfg.Sweeps.FanOut),
		services.WithLookupBatchSize(cfg.Sweeps.LookupBatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("initialise recipient resolver: %w", err)
	}

	dispatcher, err := services.NewDispatcher(stack.Gateway, stack.Store, services.WithSendTimeout(cfg.Push.Timeout))
	if err != nil {
		return nil, fmt.Errorf("initialise dispatcher: %w", err)
	}

	tracker, err := services.NewReminderTracker(stack.Store)
	if err != nil {
		return nil, fmt.Errorf("initialise reminder tracker: %w", err)
	}

	stack.Sweeps, err = services.NewSweepService(services.SweepDependencies{
		Matches:       stack.Store,
		Notifications: stack.Store,
		Tracker:       tracker,
		Resolver:      resolver,
		Composer:      composer,
		Dispatcher:    dispatcher,
	}, services.SweepConfig{
		ReminderHorizon: cfg.Sweeps.ReminderHorizon,
		RetentionDays:   cfg.Sweeps.RetentionDays,
		BatchSize:       cfg.Sweeps.BatchSize,
		FanOut:          cfg.Sweeps.FanOut,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise sweeps: %w", err)
	}

	if cfg.Sweeps.Enabled {
		if err := stack.buildScheduler(cfg); err != nil {
			return nil, err
		}
		if err := stack.Scheduler.Start(); err != nil {
			return nil, fmt.Errorf("start sweep jobs: %w", err)
		}
	}

	stack.Triggers, err = services.NewMatchEventService(services.MatchEventDependencies{
		Users:      stack.Store,
		Resolver:   resolver,
		Composer:   composer,
		Dispatcher: dispatcher,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise trigger handlers: %w", err)
	}

	if cfg.Kafka.Enabled {
		if err := stack.buildConsumer(cfg); err != nil {
			return nil, err
		}
	}

	custom, err := services.NewCustomNotificationService(resolver, composer, dispatcher)
	if err != nil {
		return nil, fmt.Errorf("initialise custom notifications: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	var rateStore middleware.RateStore
	if stack.Redis != nil {
		if rateStore, err = middleware.NewRedisRateStore(stack.Redis); err != nil {
			return nil, fmt.Errorf("initialise rate store: %w", err)
		}
	} else {
		rateStore = middleware.NewMemoryRateStore()
	}

	stack.registerHealthChecks(cfg)

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:        cfg,
		JWT:           jwtSvc,
		Notifications: custom,
		RateStore:     rateStore,
		Monitoring:    stack.Monitoring,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func (s *runtimeStack) buildScheduler(cfg *app.Config) error {
	opts := []maintenance.Option{
		maintenance.WithJobTimeout(cfg.Sweeps.JobTimeout),
		maintenance.WithReminderSchedule(cfg.Sweeps.ReminderSchedule),
		maintenance.WithStatusSchedule(cfg.Sweeps.StatusSchedule),
		maintenance.WithRetentionSchedule(cfg.Sweeps.RetentionSchedule),
	}
	if cfg.Sweeps.Lease {
		if s.Redis != nil {
			locker, err := lock.NewRedisLocker(s.Redis)
			if err != nil {
				return fmt.Errorf("initialise sweep lease: %w", err)
			}
			opts = append(opts, maintenance.WithLocker(locker))
		} else {
			opts = append(opts, maintenance.WithLocker(lock.NewMemoryLocker()))
		}
	}

	scheduler, err := maintenance.NewScheduler(s.Sweeps, opts...)
	if err != nil {
		return fmt.Errorf("initialise scheduler: %w", err)
	}
	s.Scheduler = scheduler
	return nil
}

func (s *runtimeStack) buildConsumer(cfg *app.Config) error {
	router, err := events.NewRouter(s.Triggers)
	if err != nil {
		return fmt.Errorf("initialise event router: %w", err)
	}
	group, err := events.NewConsumerGroup(events.Config{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.Group,
		Topic:   cfg.Kafka.Topic,
	})
	if err != nil {
		return fmt.Errorf("initialise consumer group: %w", err)
	}
	s.Consumer, err = events.NewConsumer(cfg.Kafka.Topic, group, router)
	if err != nil {
		_ = group.Close()
		return fmt.Errorf("initialise consumer: %w", err)
	}
	return nil
}

func (s *runtimeStack) registerHealthChecks(cfg *app.Config) {
	health := s.Monitoring.Health()
	health.RegisterLiveness(checks.Sweeps(0))
	health.RegisterReadiness(checks.Database(s.DB, cfg.Database.QueryTimeout))
	if s.Redis != nil {
		health.RegisterReadiness(checks.Redis(s.Redis, cfg.Cache.Redis.Timeout))
	}
}

func newGateway(ctx context.Context, cfg app.PushConfig) (push.Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "fcm":
		gateway, err := push.NewFCMGateway(ctx, push.FCMConfig{
			ProjectID:       strings.TrimSpace(cfg.ProjectID),
			CredentialsFile: strings.TrimSpace(cfg.CredentialsFile),
		})
		if err != nil {
			return nil, fmt.Errorf("initialise fcm gateway: %w", err)
		}
		return gateway, nil
	case "", "log":
		return push.NewLogGateway(), nil
	default:
		return nil, fmt.Errorf("unsupported push provider %q", cfg.Provider)
	}
}

// Shutdown stops background jobs and releases resources. The Kafka consumer
// closes its group when its context ends.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
			log.Warn("sweeps still running at shutdown", zap.Error(ctx.Err()))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.OpenConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.Prepare(db); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", dbCfg.Driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
