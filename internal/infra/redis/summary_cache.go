package redis

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"live-quiz-service/internal/domain"
)

// SummaryCache shares code → session summaries between instances. Each code is one hash,
// HSET quiz:code:{code} id .. quizId .. status .., expiring after ttl. Entries are hints only;
// the service reconciles every hit against the durable store, so failures are logged and dropped.
type SummaryCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewSummaryCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *SummaryCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryCache{client: client, ttl: ttl, logger: logger}
}

func (c *SummaryCache) Put(ctx context.Context, summary domain.SessionSummary) {
	key := codeKey(summary.Code)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"id":     summary.ID,
		"quizId": summary.QuizID,
		"status": string(summary.Status),
	})
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("summary cache write failed", slog.String("code", summary.Code), slog.Any("error", err))
	}
}

func (c *SummaryCache) Lookup(ctx context.Context, code string) (domain.SessionSummary, bool) {
	fields, err := c.client.HGetAll(ctx, codeKey(code)).Result()
	if err != nil {
		c.logger.Warn("summary cache read failed", slog.String("code", code), slog.Any("error", err))
		return domain.SessionSummary{}, false
	}
	id := fields["id"]
	if id == "" {
		return domain.SessionSummary{}, false
	}
	return domain.SessionSummary{
		ID:     id,
		Code:   code,
		QuizID: fields["quizId"],
		Status: domain.SessionStatus(fields["status"]),
	}, true
}

func (c *SummaryCache) Release(ctx context.Context, code string) {
	if err := c.client.Del(ctx, codeKey(code)).Err(); err != nil {
		c.logger.Warn("summary cache release failed", slog.String("code", code), slog.Any("error", err))
	}
}

func codeKey(code string) string {
	return "quiz:code:" + code
}
