package app

import (
	"context"
	"time"

	"live-quiz-service/internal/domain"
)

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SessionStore is the durable, authoritative session record.
//
// Insert must fail with domain.ErrDuplicateCode when the code is taken by any retained session and
// with domain.ErrLiveSessionExists when (quiz, creator) already has a non-ended session.
// Update is conditional: it succeeds only if the stored revision equals expectedRevision and
// fails with domain.ErrStaleSession otherwise.
type SessionStore interface {
	Insert(ctx context.Context, session *domain.Session) error
	CodeExists(ctx context.Context, code string) (bool, error)
	FindLive(ctx context.Context, quizID, creatorID string) (*domain.Session, error)
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	GetByCode(ctx context.Context, code string) (*domain.Session, error)
	ListByQuiz(ctx context.Context, quizID string) ([]*domain.Session, error)
	Update(ctx context.Context, session *domain.Session, expectedRevision int64) error
	ListEndedBefore(ctx context.Context, cutoff time.Time) ([]domain.SessionSummary, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// AnswerLog stores AnswerEvents independently of the session document.
type AnswerLog interface {
	Append(ctx context.Context, event domain.AnswerEvent) error
	DeleteBySession(ctx context.Context, sessionID string) (int, error)
}

// SummaryCache maps codes to session summaries for fast lookup. It is never authoritative.
type SummaryCache interface {
	Put(ctx context.Context, summary domain.SessionSummary)
	Lookup(ctx context.Context, code string) (domain.SessionSummary, bool)
	Release(ctx context.Context, code string)
}

// Publisher fans a session event out to subscribers of its channel.
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// Authorizer answers "is this identity the session's creator or an admin".
type Authorizer interface {
	IsCreatorOrAdmin(ctx context.Context, identity domain.Identity, session *domain.Session) bool
}

// LifecycleNotifier receives session.started / session.ended for external collaborators.
type LifecycleNotifier interface {
	Notify(ctx context.Context, eventType string, payload any) error
}

// Allocation is a code that was free when checked, plus how it was found.
type Allocation struct {
	Code   string
	Path   string
	Probes int
}

// Allocator hands out candidate session codes that were free at check time.
type Allocator interface {
	Allocate(ctx context.Context) (Allocation, error)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, any) error { return nil }

type noopCache struct{}

func (noopCache) Put(context.Context, domain.SessionSummary)                  {}
func (noopCache) Lookup(context.Context, string) (domain.SessionSummary, bool) { return domain.SessionSummary{}, false }
func (noopCache) Release(context.Context, string)                             {}

// CreatorAuthorizer authorizes the session creator and identities flagged admin.
type CreatorAuthorizer struct{}

func (CreatorAuthorizer) IsCreatorOrAdmin(_ context.Context, identity domain.Identity, session *domain.Session) bool {
	return identity.Admin || (identity.UserID != "" && identity.UserID == session.CreatorID)
}
