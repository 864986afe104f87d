package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"

	"live-quiz-service/internal/config"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/postgres"
	"live-quiz-service/internal/infra/postgres/migrations"
	redisinfra "live-quiz-service/internal/infra/redis"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

// NewSeedCmd stores the bundled sample quizzes in the quizzes table.
func NewSeedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample quiz definitions into Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	logger := newLogger(cfg, os.Stderr)

	db := postgres.Open(cfg.Postgres.URL)
	defer db.Close()

	applied, err := migrations.Apply(ctx, db)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		logger.Info("no new migrations")
		return nil
	}
	logger.Info("migrations applied", "names", applied)
	return nil
}

func runSeed(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}
	logger := newLogger(cfg, os.Stderr)

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	var evict quizEvicter
	if cfg.Redis.Addr != "" {
		client := newRedisClient(cfg)
		defer client.Close()
		evict = redisinfra.NewQuizRepository(client, nil, 0, logger)
	}
	return seedQuizzes(ctx, postgres.NewQuizLoader(pool), evict, sampleQuizzes(), logger)
}

type quizSaver interface {
	SaveQuiz(ctx context.Context, quiz domain.Quiz) error
}

type quizEvicter interface {
	Invalidate(ctx context.Context, quizID string) error
}

// seedQuizzes upserts each quiz and drops its shared cached definition so running instances
// pick up the new version. A failed eviction only delays that until the cache TTL expires.
func seedQuizzes(ctx context.Context, saver quizSaver, evict quizEvicter, quizzes map[string]domain.Quiz, logger *slog.Logger) error {
	for _, quiz := range quizzes {
		if err := saver.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
		if evict != nil {
			if err := evict.Invalidate(ctx, quiz.ID); err != nil {
				logger.Warn("cached quiz definition not evicted", "quiz", quiz.ID, "err", err)
			}
		}
		logger.Info("quiz stored", "quiz", quiz.ID, "questions", len(quiz.Questions))
	}
	return nil
}
