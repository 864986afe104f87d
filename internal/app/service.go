package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
)

const maxCASAttempts = 5

// Options wires optional collaborators into a SessionService. Zero values get defaults.
type Options struct {
	Answers    AnswerLog
	Cache      SummaryCache
	Publisher  Publisher
	Notifier   LifecycleNotifier
	Authorizer Authorizer
	Allocator  Allocator
	Logger     *slog.Logger

	Policy             RetryPolicy
	AllocationAttempts int
	InsertAttempts     int
	InsertBackoff      time.Duration

	Now     func() time.Time
	Shuffle func(n int, swap func(i, j int))
}

// SessionService contains the live quiz use cases: registry, state machine, answer ingestion.
type SessionService struct {
	store     SessionStore
	quizzes   QuizRepository
	answers   AnswerLog
	cache     SummaryCache
	publisher Publisher
	notifier  LifecycleNotifier
	authz     Authorizer
	alloc     Allocator
	logger    *slog.Logger

	policy         RetryPolicy
	insertAttempts int
	insertBackoff  time.Duration
	now            func() time.Time
	shuffle        func(n int, swap func(i, j int))

	locks *keyedMutex
}

func NewSessionService(store SessionStore, quizzes QuizRepository, opts Options) *SessionService {
	s := &SessionService{
		store:          store,
		quizzes:        quizzes,
		answers:        opts.Answers,
		cache:          opts.Cache,
		publisher:      opts.Publisher,
		notifier:       opts.Notifier,
		authz:          opts.Authorizer,
		logger:         opts.Logger,
		policy:         opts.Policy,
		insertAttempts: opts.InsertAttempts,
		insertBackoff:  opts.InsertBackoff,
		now:            opts.Now,
		shuffle:        opts.Shuffle,
		locks:          newKeyedMutex(),
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}
	if s.publisher == nil {
		s.publisher = NewHub()
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	if s.authz == nil {
		s.authz = CreatorAuthorizer{}
	}
	if s.policy == (RetryPolicy{}) {
		s.policy = DefaultRetryPolicy
	}
	if s.insertAttempts <= 0 {
		s.insertAttempts = 5
	}
	if s.insertBackoff <= 0 {
		s.insertBackoff = 20 * time.Millisecond
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.shuffle == nil {
		s.shuffle = rand.Shuffle
	}
	s.alloc = opts.Allocator
	if s.alloc == nil {
		s.alloc = NewLoggingAllocator(NewCodeAllocator(store, opts.AllocationAttempts, s.policy), s.logger)
	}
	return s
}

// load reads the authoritative session record.
func (s *SessionService) load(ctx context.Context, id string) (*domain.Session, error) {
	if id == "" {
		return nil, domain.Validationf("sessionId is required")
	}
	var sess *domain.Session
	err := s.policy.do(ctx, func(ctx context.Context) error {
		var err error
		sess, err = s.store.GetByID(ctx, id)
		return err
	})
	return sess, err
}

// mutate serialises a read-modify-write on one session. fn reports whether it changed the
// session; the write is conditional on the revision that was read, and a lost race reloads and
// re-evaluates fn against the fresh record. Each write carries a fresh WriteID so a retried
// write whose first try committed is recognised instead of being applied again.
func (s *SessionService) mutate(ctx context.Context, id string, fn func(sess *domain.Session) (bool, error)) (*domain.Session, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	sess, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	for attempt := 1; ; attempt++ {
		expected := sess.Revision
		changed, err := fn(sess)
		if err != nil {
			return nil, err
		}
		if !changed {
			return sess, nil
		}
		sess.Revision = expected + 1
		sess.WriteID = uuid.NewString()
		err = s.policy.do(ctx, func(ctx context.Context) error {
			return s.store.Update(ctx, sess, expected)
		})
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, domain.ErrStaleSession) {
			return nil, fmt.Errorf("save session: %w", err)
		}

		fresh, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if fresh.Revision == sess.Revision && fresh.WriteID == sess.WriteID {
			s.logger.Debug("session write committed before its acknowledgment was lost", slog.String("session", id))
			return fresh, nil
		}
		if attempt >= maxCASAttempts {
			return nil, domain.ErrStaleSession
		}
		s.logger.Debug("session write lost race, reloading", slog.String("session", id), slog.Int("attempt", attempt))
		sess = fresh
	}
}

func (s *SessionService) authorize(ctx context.Context, who domain.Identity, sess *domain.Session) error {
	if !s.authz.IsCreatorOrAdmin(ctx, who, sess) {
		return domain.ErrForbidden
	}
	return nil
}

func (s *SessionService) publish(ctx context.Context, events ...domain.Event) {
	for _, ev := range events {
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Warn("broadcast failed",
				slog.String("session", ev.SessionID),
				slog.String("type", string(ev.Type)),
				slog.Any("error", err))
		}
	}
}

func (s *SessionService) notify(ctx context.Context, eventType string, payload any) {
	if err := s.notifier.Notify(ctx, eventType, payload); err != nil {
		s.logger.Warn("lifecycle notification failed", slog.String("event", eventType), slog.Any("error", err))
	}
}

func (s *SessionService) jitter(attempt int) time.Duration {
	max := int64(s.insertBackoff) * int64(attempt)
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(max + 1))
}
