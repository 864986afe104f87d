package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"live-quiz-service/internal/domain"
)

// SessionStore is the single-process session store: unique code index, one live session per
// (quiz, creator), revision-checked updates. Sessions are cloned on the way in and out.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	byCode   map[string]string
	live     map[liveKey]string
}

type liveKey struct {
	quizID    string
	creatorID string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*domain.Session),
		byCode:   make(map[string]string),
		live:     make(map[liveKey]string),
	}
}

func (s *SessionStore) Insert(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byCode[session.Code]; taken {
		return domain.ErrDuplicateCode
	}
	key := liveKey{quizID: session.QuizID, creatorID: session.CreatorID}
	if session.IsLive() {
		if _, exists := s.live[key]; exists {
			return domain.ErrLiveSessionExists
		}
		s.live[key] = session.ID
	}
	s.sessions[session.ID] = session.Clone()
	s.byCode[session.Code] = session.ID
	return nil
}

func (s *SessionStore) CodeExists(_ context.Context, code string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byCode[code]
	return ok, nil
}

func (s *SessionStore) FindLive(_ context.Context, quizID, creatorID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.live[liveKey{quizID: quizID, creatorID: creatorID}]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.sessions[id].Clone(), nil
}

func (s *SessionStore) GetByID(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

func (s *SessionStore) GetByCode(_ context.Context, code string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[code]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.sessions[id].Clone(), nil
}

func (s *SessionStore) ListByQuiz(_ context.Context, quizID string) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Session, 0)
	for _, session := range s.sessions {
		if session.QuizID == quizID {
			out = append(out, session.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *SessionStore) Update(_ context.Context, session *domain.Session, expectedRevision int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.sessions[session.ID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if current.Revision != expectedRevision {
		return domain.ErrStaleSession
	}
	if current.IsLive() && !session.IsLive() {
		delete(s.live, liveKey{quizID: current.QuizID, creatorID: current.CreatorID})
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

func (s *SessionStore) ListEndedBefore(_ context.Context, cutoff time.Time) ([]domain.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.SessionSummary
	for _, session := range s.sessions {
		if session.Status == domain.StatusEnded && session.EndedAt != nil && session.EndedAt.Before(cutoff) {
			out = append(out, session.Summary())
		}
	}
	return out, nil
}

func (s *SessionStore) Delete(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return false, nil
	}
	delete(s.sessions, id)
	if s.byCode[session.Code] == id {
		delete(s.byCode, session.Code)
	}
	key := liveKey{quizID: session.QuizID, creatorID: session.CreatorID}
	if s.live[key] == id {
		delete(s.live, key)
	}
	return true, nil
}

// Len reports how many sessions are retained.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// AnswerLog keeps AnswerEvents per session in memory.
type AnswerLog struct {
	mu     sync.Mutex
	events map[string][]domain.AnswerEvent
}

func NewAnswerLog() *AnswerLog {
	return &AnswerLog{events: make(map[string][]domain.AnswerEvent)}
}

func (l *AnswerLog) Append(_ context.Context, event domain.AnswerEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	event.Selected = append([]int(nil), event.Selected...)
	l.events[event.SessionID] = append(l.events[event.SessionID], event)
	return nil
}

func (l *AnswerLog) DeleteBySession(_ context.Context, sessionID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.events[sessionID])
	delete(l.events, sessionID)
	return n, nil
}

// Events returns a copy of a session's recorded events in append order.
func (l *AnswerLog) Events(sessionID string) []domain.AnswerEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.AnswerEvent(nil), l.events[sessionID]...)
}
