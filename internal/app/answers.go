package app

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

// SubmitAnswer records the caller's first answer to the current question and scores it.
func (s *SessionService) SubmitAnswer(ctx context.Context, who domain.Identity, sub domain.AnswerSubmission) (domain.AnswerAck, error) {
	if who.UserID == "" {
		return domain.AnswerAck{}, domain.Validationf("identity is required")
	}

	var (
		ack    domain.AnswerAck
		notice domain.AnswerNotice
		event  domain.AnswerEvent
	)
	sess, err := s.mutate(ctx, sub.SessionID, func(sess *domain.Session) (bool, error) {
		p, ok := sess.Participant(who.UserID)
		if !ok {
			return false, domain.ErrParticipantNotFound
		}
		if sess.Status != domain.StatusActive || sub.QuestionIndex != sess.CurrentQuestionIndex {
			return false, domain.ErrNotCurrentQuestion
		}
		if _, answered := p.AnswerFor(sub.QuestionIndex); answered {
			return false, domain.ErrAlreadyAnswered
		}
		q, _ := sess.CurrentQuestion()
		selected, err := domain.NormalizeSelection(sub.Selected, len(q.Options))
		if err != nil {
			return false, err
		}

		now := s.now().UTC()
		elapsed := domain.ClampElapsed(sub.ElapsedMs, q.TimeLimitMs)
		correct := domain.IsCorrectSelection(q, selected)
		points := domain.ScoreAnswer(q, correct, elapsed)
		p.Answers = append(p.Answers, domain.Answer{
			QuestionIndex: sub.QuestionIndex,
			Selected:      selected,
			Correct:       correct,
			Points:        points,
			ElapsedMs:     elapsed,
			AnsweredAt:    now,
		})
		p.Score += points

		ack = domain.AnswerAck{
			QuestionIndex:  sub.QuestionIndex,
			Correct:        correct,
			Points:         points,
			TotalScore:     p.Score,
			CorrectIndices: q.CorrectIndices(),
		}
		notice = domain.AnswerNotice{
			SessionID:     sess.ID,
			UserID:        p.UserID,
			DisplayName:   p.DisplayName,
			QuestionIndex: sub.QuestionIndex,
			ElapsedMs:     elapsed,
		}
		event = domain.AnswerEvent{
			ID:            uuid.NewString(),
			SessionID:     sess.ID,
			QuizID:        sess.QuizID,
			UserID:        p.UserID,
			QuestionIndex: sub.QuestionIndex,
			Selected:      selected,
			Correct:       correct,
			Points:        points,
			ElapsedMs:     elapsed,
			AnsweredAt:    now,
		}
		return true, nil
	})
	if err != nil {
		return domain.AnswerAck{}, err
	}

	metrics.Answers.WithLabelValues(strconv.FormatBool(ack.Correct)).Inc()
	s.appendAnswerEvent(ctx, event)
	s.publish(ctx, domain.Event{
		SessionID: sess.ID,
		Channel:   domain.ChannelModerators,
		Type:      domain.EventAnswerSubmitted,
		Payload:   notice,
	})
	return ack, nil
}

// appendAnswerEvent writes the analytics record. The score is already committed, so a failure
// here is logged and not surfaced.
func (s *SessionService) appendAnswerEvent(ctx context.Context, event domain.AnswerEvent) {
	if s.answers == nil {
		return
	}
	err := s.policy.do(ctx, func(ctx context.Context) error {
		return s.answers.Append(ctx, event)
	})
	if err != nil {
		s.logger.Warn("answer event not recorded",
			slog.String("session", event.SessionID),
			slog.String("user", event.UserID),
			slog.Int("question", event.QuestionIndex),
			slog.Any("error", err))
	}
}
