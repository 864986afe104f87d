package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"live-quiz-service/internal/domain"
)

type answerEventRow struct {
	bun.BaseModel `bun:"table:answer_events,alias:ae"`

	ID            string    `bun:"id,pk"`
	SessionID     string    `bun:"session_id,notnull"`
	QuizID        string    `bun:"quiz_id,notnull"`
	UserID        string    `bun:"user_id,notnull"`
	QuestionIndex int       `bun:"question_index,notnull"`
	Selected      []int     `bun:"selected,array"`
	Correct       bool      `bun:"correct,notnull"`
	Points        int       `bun:"points,notnull"`
	ElapsedMs     int64     `bun:"elapsed_ms,notnull"`
	AnsweredAt    time.Time `bun:"answered_at,notnull"`
}

// AnswerLog appends AnswerEvents to answer_events. A retried append of the same
// (session, user, question) is absorbed by the unique constraint.
type AnswerLog struct {
	db *bun.DB
}

func NewAnswerLog(db *bun.DB) *AnswerLog {
	return &AnswerLog{db: db}
}

func (l *AnswerLog) Append(ctx context.Context, event domain.AnswerEvent) error {
	selected := event.Selected
	if selected == nil {
		selected = []int{}
	}
	row := &answerEventRow{
		ID:            event.ID,
		SessionID:     event.SessionID,
		QuizID:        event.QuizID,
		UserID:        event.UserID,
		QuestionIndex: event.QuestionIndex,
		Selected:      selected,
		Correct:       event.Correct,
		Points:        event.Points,
		ElapsedMs:     event.ElapsedMs,
		AnsweredAt:    event.AnsweredAt,
	}
	_, err := l.db.NewInsert().
		Model(row).
		On("CONFLICT (session_id, user_id, question_index) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("append answer event: %w", translate(err))
	}
	return nil
}

func (l *AnswerLog) DeleteBySession(ctx context.Context, sessionID string) (int, error) {
	res, err := l.db.NewDelete().
		Model((*answerEventRow)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete answer events: %w", translate(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete answer events: %w", err)
	}
	return int(n), nil
}

// ListBySession returns a session's events in answer order.
func (l *AnswerLog) ListBySession(ctx context.Context, sessionID string) ([]domain.AnswerEvent, error) {
	var rows []answerEventRow
	err := l.db.NewSelect().
		Model(&rows).
		Where("session_id = ?", sessionID).
		Order("answered_at ASC", "user_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list answer events: %w", translate(err))
	}
	out := make([]domain.AnswerEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.AnswerEvent{
			ID:            r.ID,
			SessionID:     r.SessionID,
			QuizID:        r.QuizID,
			UserID:        r.UserID,
			QuestionIndex: r.QuestionIndex,
			Selected:      r.Selected,
			Correct:       r.Correct,
			Points:        r.Points,
			ElapsedMs:     r.ElapsedMs,
			AnsweredAt:    r.AnsweredAt.UTC(),
		})
	}
	return out, nil
}
