package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

var codePattern = regexp.MustCompile(`^[0-9]{6}$`)

// CreateSession returns the caller's live session for the quiz, or creates one with a fresh code.
func (s *SessionService) CreateSession(ctx context.Context, quizID string, creator domain.Identity) (*domain.Session, error) {
	quizID = strings.TrimSpace(quizID)
	if quizID == "" {
		return nil, domain.Validationf("quizId is required")
	}
	if creator.UserID == "" {
		return nil, domain.Validationf("creator identity is required")
	}

	existing, err := s.findLive(ctx, quizID, creator.UserID)
	if err == nil {
		metrics.SessionsCreated.WithLabelValues("existing").Inc()
		return existing, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		metrics.SessionsCreated.WithLabelValues("failed").Inc()
		return nil, err
	}

	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		metrics.SessionsCreated.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("load quiz %s: %w", quizID, err)
	}
	if len(quiz.Questions) == 0 {
		metrics.SessionsCreated.WithLabelValues("failed").Inc()
		return nil, domain.Validationf("quiz %s has no questions", quizID)
	}

	for attempt := 1; attempt <= s.insertAttempts; attempt++ {
		alloc, err := s.alloc.Allocate(ctx)
		if err != nil {
			metrics.SessionsCreated.WithLabelValues("failed").Inc()
			return nil, err
		}

		session := &domain.Session{
			ID:                   uuid.NewString(),
			QuizID:               quizID,
			CreatorID:            creator.UserID,
			Code:                 alloc.Code,
			Status:               domain.StatusWaiting,
			CurrentQuestionIndex: -1,
			Quiz:                 quiz.Clone(),
			Participants:         []domain.Participant{},
			CreatedAt:            s.now().UTC(),
		}
		err = s.policy.do(ctx, func(ctx context.Context) error {
			return s.store.Insert(ctx, session)
		})
		switch {
		case err == nil:
			s.cache.Put(ctx, session.Summary())
			metrics.SessionsCreated.WithLabelValues("created").Inc()
			s.logger.Info("session created",
				slog.String("session", session.ID),
				slog.String("quiz", quizID),
				slog.String("code", session.Code),
				slog.Int("attempt", attempt))
			return session, nil
		case errors.Is(err, domain.ErrLiveSessionExists):
			metrics.SessionsCreated.WithLabelValues("existing").Inc()
			return s.findLive(ctx, quizID, creator.UserID)
		case errors.Is(err, domain.ErrDuplicateCode):
			metrics.InsertRetries.Inc()
			s.logger.Debug("session code taken at insert, retrying",
				slog.String("code", alloc.Code), slog.Int("attempt", attempt))
			if serr := sleepCtx(ctx, s.jitter(attempt)); serr != nil {
				return nil, serr
			}
		default:
			metrics.SessionsCreated.WithLabelValues("failed").Inc()
			return nil, fmt.Errorf("insert session: %w", err)
		}
	}

	metrics.SessionsCreated.WithLabelValues("failed").Inc()
	s.logger.Warn("session insert retries exhausted", slog.String("quiz", quizID), slog.Int("attempts", s.insertAttempts))
	return nil, domain.ErrTemporarilyUnavailable
}

func (s *SessionService) findLive(ctx context.Context, quizID, creatorID string) (*domain.Session, error) {
	var sess *domain.Session
	err := s.policy.do(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.store.FindLive(ctx, quizID, creatorID)
		return err
	})
	return sess, err
}

// GetSessionByID returns the durable session record.
func (s *SessionService) GetSessionByID(ctx context.Context, id string) (*domain.Session, error) {
	return s.load(ctx, id)
}

// GetSessionByCode resolves a join code. The summary cache is only a hint; the durable record
// always decides.
func (s *SessionService) GetSessionByCode(ctx context.Context, code string) (*domain.Session, error) {
	code = strings.TrimSpace(code)
	if !codePattern.MatchString(code) {
		return nil, domain.Validationf("code must be 6 digits")
	}

	if summary, ok := s.cache.Lookup(ctx, code); ok {
		sess, err := s.load(ctx, summary.ID)
		switch {
		case err == nil && sess.Code == code:
			return sess, nil
		case err == nil || errors.Is(err, domain.ErrSessionNotFound):
			s.logger.Debug("stale summary cache entry", slog.String("code", code), slog.String("session", summary.ID))
			s.cache.Release(ctx, code)
		default:
			return nil, err
		}
	}

	var sess *domain.Session
	err := s.policy.do(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.store.GetByCode(ctx, code)
		return err
	})
	if err != nil {
		return nil, err
	}
	if sess.IsLive() {
		s.cache.Put(ctx, sess.Summary())
	}
	return sess, nil
}

// ListSessionsForQuiz returns every retained session of a quiz, newest first.
func (s *SessionService) ListSessionsForQuiz(ctx context.Context, quizID string) ([]*domain.Session, error) {
	if strings.TrimSpace(quizID) == "" {
		return nil, domain.Validationf("quizId is required")
	}
	var out []*domain.Session
	err := s.policy.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.store.ListByQuiz(ctx, quizID)
		return err
	})
	return out, err
}
