package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// DefaultRetention is how long ended sessions are kept before purge.
const DefaultRetention = 48 * time.Hour

// SweepReport counts what one sweep removed.
type SweepReport struct {
	Sessions     int
	AnswerEvents int
	Failed       int
}

// Sweeper purges ended sessions older than the retention window.
type Sweeper struct {
	store     SessionStore
	answers   AnswerLog
	cache     SummaryCache
	retention time.Duration
	interval  time.Duration
	policy    RetryPolicy
	logger    *slog.Logger
	now       func() time.Time
}

// SweeperConfig tunes a Sweeper; zero values get defaults.
type SweeperConfig struct {
	Retention time.Duration
	Interval  time.Duration
	Policy    RetryPolicy
	Logger    *slog.Logger
	Now       func() time.Time
}

func NewSweeper(store SessionStore, answers AnswerLog, cache SummaryCache, cfg SweeperConfig) *Sweeper {
	sw := &Sweeper{
		store:     store,
		answers:   answers,
		cache:     cache,
		retention: cfg.Retention,
		interval:  cfg.Interval,
		policy:    cfg.Policy,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if sw.cache == nil {
		sw.cache = noopCache{}
	}
	if sw.retention <= 0 {
		sw.retention = DefaultRetention
	}
	if sw.interval <= 0 {
		sw.interval = 24 * time.Hour
	}
	if sw.policy == (RetryPolicy{}) {
		sw.policy = DefaultRetryPolicy
	}
	if sw.logger == nil {
		sw.logger = slog.Default()
	}
	if sw.now == nil {
		sw.now = time.Now
	}
	return sw
}

// Sweep deletes every session that ended before now minus retention, answer events first.
// Non-ended sessions are never touched. Running it twice deletes nothing the second time.
func (sw *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	cutoff := sw.now().UTC().Add(-sw.retention)

	var expired []domain.SessionSummary
	err := sw.policy.do(ctx, func(ctx context.Context) error {
		var err error
		expired, err = sw.store.ListEndedBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		return SweepReport{}, fmt.Errorf("list expired sessions: %w", err)
	}

	var report SweepReport
	for _, summary := range expired {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		events, deleted, err := sw.purge(ctx, summary)
		if err != nil {
			report.Failed++
			sw.logger.Warn("retention purge failed", slog.String("session", summary.ID), slog.Any("error", err))
			continue
		}
		report.AnswerEvents += events
		if deleted {
			report.Sessions++
		}
	}

	metrics.CleanupDeleted.WithLabelValues("sessions").Add(float64(report.Sessions))
	metrics.CleanupDeleted.WithLabelValues("answer_events").Add(float64(report.AnswerEvents))
	sw.logger.Info("retention sweep finished",
		slog.Time("cutoff", cutoff),
		slog.Int("sessions", report.Sessions),
		slog.Int("answerEvents", report.AnswerEvents),
		slog.Int("failed", report.Failed))
	return report, nil
}

func (sw *Sweeper) purge(ctx context.Context, summary domain.SessionSummary) (int, bool, error) {
	events := 0
	if sw.answers != nil {
		err := sw.policy.do(ctx, func(ctx context.Context) error {
			var err error
			events, err = sw.answers.DeleteBySession(ctx, summary.ID)
			return err
		})
		if err != nil {
			return 0, false, fmt.Errorf("delete answer events: %w", err)
		}
	}
	var deleted bool
	err := sw.policy.do(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = sw.store.Delete(ctx, summary.ID)
		return err
	})
	if err != nil {
		return events, false, fmt.Errorf("delete session: %w", err)
	}
	sw.cache.Release(ctx, summary.Code)
	return events, deleted, nil
}

// Run sweeps once immediately and then every interval until ctx is done.
func (sw *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(sw.interval)
	defer ticker.Stop()
	for {
		if _, err := sw.Sweep(ctx); err != nil && ctx.Err() == nil {
			sw.logger.Error("retention sweep failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
