package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

const (
	codeMin   = 100000
	codeSpace = 900000

	PathRandom   = "random"
	PathFallback = "fallback"
)

// CodeChecker reports whether a code is held by any retained session.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeAllocator draws random 6-digit codes and checks them against the store. After the random
// budget it tries a clock-derived code and one offset probe, then gives up.
type CodeAllocator struct {
	checker  CodeChecker
	attempts int
	policy   RetryPolicy
	random   func() (int, error)
	now      func() time.Time
}

// NewCodeAllocator builds an allocator; attempts <= 0 means 10.
func NewCodeAllocator(checker CodeChecker, attempts int, policy RetryPolicy) *CodeAllocator {
	if attempts <= 0 {
		attempts = 10
	}
	return &CodeAllocator{
		checker:  checker,
		attempts: attempts,
		policy:   policy,
		random:   cryptoRandom,
		now:      time.Now,
	}
}

func cryptoRandom() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return 0, err
	}
	return int(n.Int64()), nil
}

// FormatCode maps n in [0, 900000) onto the 6-digit code space.
func FormatCode(n int) string {
	return fmt.Sprintf("%06d", codeMin+((n%codeSpace)+codeSpace)%codeSpace)
}

func (a *CodeAllocator) Allocate(ctx context.Context) (Allocation, error) {
	probes := 0
	for i := 0; i < a.attempts; i++ {
		n, err := a.random()
		if err != nil {
			return Allocation{}, fmt.Errorf("draw code: %w", err)
		}
		code := FormatCode(n)
		probes++
		free, err := a.isFree(ctx, code)
		if err != nil {
			return Allocation{Probes: probes}, err
		}
		if free {
			return Allocation{Code: code, Path: PathRandom, Probes: probes}, nil
		}
	}

	base := a.now().Nanosecond() / 1000
	offset, err := a.random()
	if err != nil || offset == 0 {
		offset = codeSpace / 2
	}
	for _, n := range []int{base, base + offset} {
		code := FormatCode(n)
		probes++
		free, err := a.isFree(ctx, code)
		if err != nil {
			return Allocation{Probes: probes}, err
		}
		if free {
			return Allocation{Code: code, Path: PathFallback, Probes: probes}, nil
		}
	}
	return Allocation{Probes: probes}, domain.ErrCodeSpaceExhausted
}

func (a *CodeAllocator) isFree(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := a.policy.do(ctx, func(ctx context.Context) error {
		var err error
		exists, err = a.checker.CodeExists(ctx, code)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("check code: %w", err)
	}
	return !exists, nil
}

// LoggingAllocator records allocation outcomes without touching the allocation control flow.
type LoggingAllocator struct {
	next   Allocator
	logger *slog.Logger
}

func NewLoggingAllocator(next Allocator, logger *slog.Logger) *LoggingAllocator {
	return &LoggingAllocator{next: next, logger: logger}
}

func (l *LoggingAllocator) Allocate(ctx context.Context) (Allocation, error) {
	start := time.Now()
	alloc, err := l.next.Allocate(ctx)
	attrs := []any{
		slog.Int("probes", alloc.Probes),
		slog.Duration("took", time.Since(start)),
	}
	switch {
	case err == nil:
		metrics.CodeAllocations.WithLabelValues(alloc.Path).Inc()
		level := slog.LevelDebug
		if alloc.Path == PathFallback {
			level = slog.LevelWarn
		}
		l.logger.Log(ctx, level, "session code allocated", append(attrs, slog.String("path", alloc.Path))...)
	case domain.KindOf(err) == domain.KindUnavailable && !domain.IsTransient(err):
		metrics.CodeAllocations.WithLabelValues("exhausted").Inc()
		l.logger.Error("session code space exhausted", attrs...)
	default:
		metrics.CodeAllocations.WithLabelValues("error").Inc()
		l.logger.Error("session code allocation failed", append(attrs, slog.Any("error", err))...)
	}
	return alloc, err
}
