package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/auth"
	"live-quiz-service/internal/config"
	"live-quiz-service/internal/infra/memory"
	"live-quiz-service/internal/infra/postgres"
	"live-quiz-service/internal/infra/postgres/migrations"
	"live-quiz-service/internal/infra/rabbitmq"
	redisinfra "live-quiz-service/internal/infra/redis"
	transport "live-quiz-service/internal/transport/http"
)

// components is the assembled service graph for one process.
type components struct {
	service  *app.SessionService
	hub      *app.Hub
	sweeper  *app.Sweeper
	relay    *redisinfra.Relay
	verifier *auth.Verifier
	health   map[string]transport.HealthCheck

	closers []func() error
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		_ = c.closers[i]()
	}
}

func storePolicy(cfg config.Config) app.RetryPolicy {
	return app.RetryPolicy{
		Timeout:  config.TTLDuration(cfg.Session.StoreTimeout, 2*time.Second),
		Attempts: cfg.Session.StoreRetries,
		Backoff:  config.TTLDuration(cfg.Session.StoreBackoff, 25*time.Millisecond),
	}
}

// openPostgres connects bun (sessions, answer events) and pgx (quiz definitions) to one database.
func openPostgres(ctx context.Context, cfg config.Config, logger *slog.Logger) (*bun.DB, *pgxpool.Pool, error) {
	db := postgres.Open(cfg.Postgres.URL)
	if err := postgres.Ping(ctx, db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		applied, err := migrations.Apply(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("migrations applied", "count", len(applied), "names", applied)
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("connect quiz pool: %w", err)
	}
	return db, pool, nil
}

// buildComponents wires storage by configuration: Postgres when a URL is set (memory otherwise),
// Redis caches and relay when an address is set, RabbitMQ notifications when a URL is set.
func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func buildComponents(ctx context.Context, cfg config.Config, logger *slog.Logger) (*components, error) {
	c := &components{
		hub:    app.NewHub(),
		health: map[string]transport.HealthCheck{},
	}
	policy := storePolicy(cfg)

	var (
		store   app.SessionStore
		answers app.AnswerLog
		loader  memory.QuizLoader
	)
	if cfg.Postgres.URL != "" {
		db, pool, err := openPostgres(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, db.Close, func() error { pool.Close(); return nil })
		c.health["postgres"] = func(r *http.Request) error { return postgres.Ping(r.Context(), db) }
		store = postgres.NewSessionStore(db)
		answers = postgres.NewAnswerLog(db)
		loader = postgres.NewQuizLoader(pool)
	} else {
		logger.Warn("postgres url empty, sessions are kept in memory")
		store = memory.NewSessionStore()
		answers = memory.NewAnswerLog()
		loader = memory.NewStaticQuizLoader(sampleQuizzes())
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var (
		quizzes   app.QuizRepository
		cache     app.SummaryCache
		publisher app.Publisher = c.hub
	)
	if cfg.Redis.Addr != "" {
		client := newRedisClient(cfg)
		c.closers = append(c.closers, client.Close)
		c.health["redis"] = func(r *http.Request) error { return client.Ping(r.Context()).Err() }
		quizzes = redisinfra.NewQuizRepository(client, loader, quizTTL, logger)
		cache = redisinfra.NewSummaryCache(client, config.TTLDuration(cfg.Redis.TTL, 24*time.Hour), logger)
		if cfg.Redis.Relay {
			publisher = redisinfra.NewBroadcaster(client)
			c.relay = redisinfra.NewRelay(client, c.hub, logger)
		}
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
		cache = memory.NewSummaryCache()
	}

	notifier, err := rabbitmq.NewNotifier(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.closers = append(c.closers, notifier.Close)

	c.verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.Admins, cfg.Auth.TrustHeader)
	c.service = app.NewSessionService(store, quizzes, app.Options{
		Answers:            answers,
		Cache:              cache,
		Publisher:          publisher,
		Notifier:           notifier,
		Logger:             logger,
		Policy:             policy,
		AllocationAttempts: cfg.Session.AllocationAttempts,
		InsertAttempts:     cfg.Session.InsertAttempts,
		InsertBackoff:      config.TTLDuration(cfg.Session.InsertBackoff, 20*time.Millisecond),
	})
	c.sweeper = app.NewSweeper(store, answers, cache, app.SweeperConfig{
		Retention: config.TTLDuration(cfg.Session.Retention, app.DefaultRetention),
		Interval:  config.TTLDuration(cfg.Session.CleanupInterval, 24*time.Hour),
		Policy:    policy,
		Logger:    logger,
	})
	return c, nil
}
