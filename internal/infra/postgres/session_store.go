package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

const (
	codeConstraint = "live_sessions_code_key"
	liveConstraint = "live_sessions_live_creator_idx"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:live_sessions,alias:ls"`

	ID                   string               `bun:"id,pk"`
	QuizID               string               `bun:"quiz_id,notnull"`
	CreatorID            string               `bun:"creator_id,notnull"`
	Code                 string               `bun:"code,notnull"`
	Status               string               `bun:"status,notnull"`
	CurrentQuestionIndex int                  `bun:"current_question_index,notnull"`
	Quiz                 domain.Quiz          `bun:"quiz,type:jsonb,notnull"`
	Participants         []domain.Participant `bun:"participants,type:jsonb,notnull"`
	CreatedAt            time.Time            `bun:"created_at,notnull"`
	StartedAt            *time.Time           `bun:"started_at"`
	EndedAt              *time.Time           `bun:"ended_at"`
	Revision             int64                `bun:"revision,notnull"`
	WriteID              string               `bun:"write_id,notnull"`
}

func toRow(s *domain.Session) *sessionRow {
	participants := s.Participants
	if participants == nil {
		participants = []domain.Participant{}
	}
	return &sessionRow{
		ID:                   s.ID,
		QuizID:               s.QuizID,
		CreatorID:            s.CreatorID,
		Code:                 s.Code,
		Status:               string(s.Status),
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		Quiz:                 s.Quiz,
		Participants:         participants,
		CreatedAt:            s.CreatedAt,
		StartedAt:            s.StartedAt,
		EndedAt:              s.EndedAt,
		Revision:             s.Revision,
		WriteID:              s.WriteID,
	}
}

func (r *sessionRow) toDomain() *domain.Session {
	s := &domain.Session{
		ID:                   r.ID,
		QuizID:               r.QuizID,
		CreatorID:            r.CreatorID,
		Code:                 r.Code,
		Status:               domain.SessionStatus(r.Status),
		CurrentQuestionIndex: r.CurrentQuestionIndex,
		Quiz:                 r.Quiz,
		Participants:         r.Participants,
		CreatedAt:            r.CreatedAt.UTC(),
		Revision:             r.Revision,
		WriteID:              r.WriteID,
	}
	if s.Participants == nil {
		s.Participants = []domain.Participant{}
	}
	if r.StartedAt != nil {
		t := r.StartedAt.UTC()
		s.StartedAt = &t
	}
	if r.EndedAt != nil {
		t := r.EndedAt.UTC()
		s.EndedAt = &t
	}
	return s
}

// SessionStore keeps sessions in live_sessions. Uniqueness of codes and of live
// (quiz, creator) pairs is enforced by the schema; updates are revision-checked.
type SessionStore struct {
	db *bun.DB
}

func NewSessionStore(db *bun.DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Insert(ctx context.Context, session *domain.Session) error {
	_, err := s.db.NewInsert().Model(toRow(session)).Exec(ctx)
	switch {
	case err == nil:
		return nil
	case constraintViolated(err, codeConstraint):
		return domain.ErrDuplicateCode
	case constraintViolated(err, liveConstraint):
		return domain.ErrLiveSessionExists
	}
	return fmt.Errorf("insert session: %w", translate(err))
}

func (s *SessionStore) CodeExists(ctx context.Context, code string) (bool, error) {
	exists, err := s.db.NewSelect().
		Model((*sessionRow)(nil)).
		Where("code = ?", code).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check code: %w", translate(err))
	}
	return exists, nil
}

func (s *SessionStore) FindLive(ctx context.Context, quizID, creatorID string) (*domain.Session, error) {
	return s.selectOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("quiz_id = ?", quizID).
			Where("creator_id = ?", creatorID).
			Where("status <> ?", string(domain.StatusEnded))
	})
}

func (s *SessionStore) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return s.selectOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("id = ?", id)
	})
}

func (s *SessionStore) GetByCode(ctx context.Context, code string) (*domain.Session, error) {
	return s.selectOne(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("code = ?", code)
	})
}

func (s *SessionStore) selectOne(ctx context.Context, where func(*bun.SelectQuery) *bun.SelectQuery) (*domain.Session, error) {
	row := new(sessionRow)
	err := where(s.db.NewSelect().Model(row)).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", translate(err))
	}
	return row.toDomain(), nil
}

func (s *SessionStore) ListByQuiz(ctx context.Context, quizID string) ([]*domain.Session, error) {
	var rows []sessionRow
	err := s.db.NewSelect().
		Model(&rows).
		Where("quiz_id = ?", quizID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", translate(err))
	}
	out := make([]*domain.Session, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *SessionStore) Update(ctx context.Context, session *domain.Session, expectedRevision int64) error {
	res, err := s.db.NewUpdate().
		Model(toRow(session)).
		WherePK().
		Where("revision = ?", expectedRevision).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update session: %w", translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if n == 1 {
		return nil
	}
	exists, err := s.db.NewSelect().Model((*sessionRow)(nil)).Where("id = ?", session.ID).Exists(ctx)
	if err != nil {
		return fmt.Errorf("update session: %w", translate(err))
	}
	if !exists {
		return domain.ErrSessionNotFound
	}
	return domain.ErrStaleSession
}

func (s *SessionStore) ListEndedBefore(ctx context.Context, cutoff time.Time) ([]domain.SessionSummary, error) {
	var rows []sessionRow
	err := s.db.NewSelect().
		Model(&rows).
		Column("id", "code", "quiz_id", "status").
		Where("status = ?", string(domain.StatusEnded)).
		Where("ended_at < ?", cutoff).
		Order("ended_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", translate(err))
	}
	out := make([]domain.SessionSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.SessionSummary{
			ID:     r.ID,
			Code:   r.Code,
			QuizID: r.QuizID,
			Status: domain.SessionStatus(r.Status),
		})
	}
	return out, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.NewDelete().
		Model((*sessionRow)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("delete session: %w", translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session: %w", err)
	}
	return n > 0, nil
}
