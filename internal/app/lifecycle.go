package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/metrics"
)

const maxDisplayNameLen = 64

// Lifecycle notification names.
const (
	NotifySessionStarted = "session.started"
	NotifySessionEnded   = "session.ended"
)

// AdvanceResult describes the outcome of next-question.
type AdvanceResult struct {
	// Advanced is false when the session had already moved past fromIndex.
	Advanced     bool                          `json:"advanced"`
	Ended        bool                          `json:"ended"`
	CurrentIndex int                           `json:"currentQuestionIndex"`
	Question     *domain.ModeratorQuestionView `json:"question,omitempty"`
	Leaderboard  *domain.Leaderboard           `json:"leaderboard,omitempty"`
}

// JoinResult is the snapshot returned to a joining participant.
type JoinResult struct {
	Session     domain.SessionView              `json:"session"`
	Participant domain.ParticipantSummary       `json:"participant"`
	Question    *domain.ParticipantQuestionView `json:"question,omitempty"`
	// Answer is the caller's own answer to the current question, for reconnect recovery.
	Answer   *domain.Answer `json:"answer,omitempty"`
	Rejoined bool           `json:"rejoined"`
}

// ModeratorSnapshot is returned by teacher-join.
type ModeratorSnapshot struct {
	Session     domain.SessionView            `json:"session"`
	Question    *domain.ModeratorQuestionView `json:"question,omitempty"`
	Leaderboard domain.Leaderboard            `json:"leaderboard"`
}

// Start moves a waiting session to its first question.
func (s *SessionService) Start(ctx context.Context, sessionID string, who domain.Identity) (domain.ModeratorQuestionView, error) {
	var pv domain.ParticipantQuestionView
	var mv domain.ModeratorQuestionView
	sess, err := s.mutate(ctx, sessionID, func(sess *domain.Session) (bool, error) {
		if err := s.authorize(ctx, who, sess); err != nil {
			return false, err
		}
		if err := requireStatus(sess, domain.StatusWaiting); err != nil {
			return false, err
		}
		if sess.QuestionCount() == 0 {
			return false, domain.Validationf("quiz has no questions")
		}
		now := s.now().UTC()
		sess.Status = domain.StatusActive
		sess.CurrentQuestionIndex = 0
		sess.StartedAt = &now
		if sess.Quiz.Settings.ShuffleQuestions {
			qs := sess.Quiz.Questions
			s.shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
		}
		s.shuffleCurrentOptions(sess)
		pv, mv, _ = domain.QuestionViews(sess)
		return true, nil
	})
	if err != nil {
		return domain.ModeratorQuestionView{}, err
	}

	metrics.Transitions.WithLabelValues(string(domain.StatusActive)).Inc()
	s.logger.Info("session started", slog.String("session", sess.ID), slog.Int("questions", sess.QuestionCount()))
	s.publish(ctx,
		domain.Event{SessionID: sess.ID, Channel: domain.ChannelParticipants, Type: domain.EventQuestionStarted, Payload: pv},
		domain.Event{SessionID: sess.ID, Channel: domain.ChannelModerators, Type: domain.EventQuestionStarted, Payload: mv},
	)
	s.notify(ctx, NotifySessionStarted, domain.ViewOf(sess))
	return mv, nil
}

// Advance moves an active session past fromIndex; fromIndex < 0 means the current question.
// A call that arrives after the session already moved past fromIndex changes nothing.
func (s *SessionService) Advance(ctx context.Context, sessionID string, who domain.Identity, fromIndex int) (AdvanceResult, error) {
	var res AdvanceResult
	var pv domain.ParticipantQuestionView
	sess, err := s.mutate(ctx, sessionID, func(sess *domain.Session) (bool, error) {
		res = AdvanceResult{}
		if err := s.authorize(ctx, who, sess); err != nil {
			return false, err
		}
		if err := requireStatus(sess, domain.StatusActive); err != nil {
			return false, err
		}
		if fromIndex >= 0 {
			if sess.CurrentQuestionIndex > fromIndex {
				return false, nil
			}
			if sess.CurrentQuestionIndex < fromIndex {
				return false, domain.ErrNotCurrentQuestion
			}
		}
		res.Advanced = true
		if sess.CurrentQuestionIndex+1 >= sess.QuestionCount() {
			s.finish(sess)
			res.Ended = true
			return true, nil
		}
		sess.CurrentQuestionIndex++
		s.shuffleCurrentOptions(sess)
		var mv domain.ModeratorQuestionView
		pv, mv, _ = domain.QuestionViews(sess)
		res.Question = &mv
		return true, nil
	})
	if err != nil {
		return AdvanceResult{}, err
	}
	res.CurrentIndex = sess.CurrentQuestionIndex

	switch {
	case !res.Advanced:
		if _, mv, ok := domain.QuestionViews(sess); ok {
			res.Question = &mv
		}
		s.logger.Debug("advance ignored, session already moved on",
			slog.String("session", sess.ID), slog.Int("from", fromIndex), slog.Int("current", sess.CurrentQuestionIndex))
	case res.Ended:
		lb := s.afterEnd(ctx, sess)
		res.Leaderboard = &lb
	default:
		metrics.Transitions.WithLabelValues("advanced").Inc()
		s.publish(ctx,
			domain.Event{SessionID: sess.ID, Channel: domain.ChannelParticipants, Type: domain.EventQuestionAdvanced, Payload: pv},
			domain.Event{SessionID: sess.ID, Channel: domain.ChannelModerators, Type: domain.EventQuestionAdvanced, Payload: res},
		)
	}
	return res, nil
}

// End finishes a session from any non-ended status.
func (s *SessionService) End(ctx context.Context, sessionID string, who domain.Identity) (domain.Leaderboard, error) {
	sess, err := s.mutate(ctx, sessionID, func(sess *domain.Session) (bool, error) {
		if err := s.authorize(ctx, who, sess); err != nil {
			return false, err
		}
		if sess.Status == domain.StatusEnded {
			return false, domain.ErrSessionEnded
		}
		s.finish(sess)
		return true, nil
	})
	if err != nil {
		return domain.Leaderboard{}, err
	}
	return s.afterEnd(ctx, sess), nil
}

// Pause freezes an active session; answers are rejected until Resume.
func (s *SessionService) Pause(ctx context.Context, sessionID string, who domain.Identity) (*domain.Session, error) {
	sess, err := s.mutate(ctx, sessionID, func(sess *domain.Session) (bool, error) {
		if err := s.authorize(ctx, who, sess); err != nil {
			return false, err
		}
		if err := requireStatus(sess, domain.StatusActive); err != nil {
			return false, err
		}
		sess.Status = domain.StatusPaused
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(domain.StatusPaused)).Inc()
	s.publish(ctx, domain.Event{
		SessionID: sess.ID,
		Channel:   domain.ChannelParticipants,
		Type:      domain.EventQuizPaused,
		Payload:   domain.PausePayload{SessionID: sess.ID, QuestionIndex: sess.CurrentQuestionIndex},
	})
	return sess, nil
}

// Resume reactivates a paused session on the same question.
func (s *SessionService) Resume(ctx context.Context, sessionID string, who domain.Identity) (*domain.Session, error) {
	sess, err := s.mutate(ctx, sessionID, func(sess *domain.Session) (bool, error) {
		if err := s.authorize(ctx, who, sess); err != nil {
			return false, err
		}
		if err := requireStatus(sess, domain.StatusPaused); err != nil {
			return false, err
		}
		sess.Status = domain.StatusActive
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	metrics.Transitions.WithLabelValues(string(domain.StatusActive)).Inc()
	payload := domain.PausePayload{SessionID: sess.ID, QuestionIndex: sess.CurrentQuestionIndex}
	if pv, _, ok := domain.QuestionViews(sess); ok {
		payload.Question = &pv
	}
	s.publish(ctx, domain.Event{
		SessionID: sess.ID,
		Channel:   domain.ChannelParticipants,
		Type:      domain.EventQuizResumed,
		Payload:   payload,
	})
	return sess, nil
}

// Join adds the caller to the session behind code, or returns their existing seat.
func (s *SessionService) Join(ctx context.Context, code string, who domain.Identity, displayName string) (JoinResult, error) {
	if who.UserID == "" {
		return JoinResult{}, domain.Validationf("identity is required")
	}
	name := strings.TrimSpace(displayName)
	if name == "" {
		return JoinResult{}, domain.Validationf("displayName is required")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLen {
		return JoinResult{}, domain.Validationf("displayName must be at most %d characters", maxDisplayNameLen)
	}

	found, err := s.GetSessionByCode(ctx, code)
	if err != nil {
		return JoinResult{}, err
	}

	rejoined := false
	sess, err := s.mutate(ctx, found.ID, func(sess *domain.Session) (bool, error) {
		rejoined = false
		if sess.Status == domain.StatusEnded {
			return false, domain.ErrSessionEnded
		}
		if _, ok := sess.Participant(who.UserID); ok {
			rejoined = true
			return false, nil
		}
		sess.Participants = append(sess.Participants, domain.Participant{
			UserID:      who.UserID,
			DisplayName: name,
			JoinedAt:    s.now().UTC(),
			Answers:     []domain.Answer{},
		})
		return true, nil
	})
	if err != nil {
		return JoinResult{}, err
	}

	p, _ := sess.Participant(who.UserID)
	res := JoinResult{
		Session: domain.ViewOf(sess),
		Participant: domain.ParticipantSummary{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			AnswerCount: len(p.Answers),
		},
		Rejoined: rejoined,
	}
	if sess.Status == domain.StatusActive || sess.Status == domain.StatusPaused {
		if pv, _, ok := domain.QuestionViews(sess); ok {
			res.Question = &pv
		}
		if a, ok := p.AnswerFor(sess.CurrentQuestionIndex); ok {
			res.Answer = &a
		}
	}

	if !rejoined {
		s.logger.Debug("participant joined", slog.String("session", sess.ID), slog.String("user", who.UserID))
		s.publish(ctx, domain.Event{
			SessionID: sess.ID,
			Channel:   domain.ChannelModerators,
			Type:      domain.EventParticipantJoined,
			Payload:   res.Participant,
		})
	}
	return res, nil
}

// ModeratorJoin returns the privileged snapshot for the session behind code.
func (s *SessionService) ModeratorJoin(ctx context.Context, code string, who domain.Identity) (ModeratorSnapshot, error) {
	sess, err := s.GetSessionByCode(ctx, code)
	if err != nil {
		return ModeratorSnapshot{}, err
	}
	if err := s.authorize(ctx, who, sess); err != nil {
		return ModeratorSnapshot{}, err
	}
	snap := ModeratorSnapshot{
		Session:     domain.ViewOf(sess),
		Leaderboard: domain.BuildLeaderboard(sess, s.now().UTC()),
	}
	if sess.IsLive() {
		if _, mv, ok := domain.QuestionViews(sess); ok {
			snap.Question = &mv
		}
	}
	return snap, nil
}

// Leaderboard ranks the session's participants; privileged.
func (s *SessionService) Leaderboard(ctx context.Context, sessionID string, who domain.Identity) (domain.Leaderboard, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if err := s.authorize(ctx, who, sess); err != nil {
		return domain.Leaderboard{}, err
	}
	return domain.BuildLeaderboard(sess, s.now().UTC()), nil
}

func (s *SessionService) finish(sess *domain.Session) {
	now := s.now().UTC()
	sess.Status = domain.StatusEnded
	sess.EndedAt = &now
}

// afterEnd runs the side effects of a committed end transition.
func (s *SessionService) afterEnd(ctx context.Context, sess *domain.Session) domain.Leaderboard {
	lb := domain.BuildLeaderboard(sess, s.now().UTC())
	metrics.Transitions.WithLabelValues(string(domain.StatusEnded)).Inc()
	s.logger.Info("session ended",
		slog.String("session", sess.ID),
		slog.Int("participants", len(sess.Participants)),
		slog.Int("lastQuestion", sess.CurrentQuestionIndex))
	s.publish(ctx,
		domain.Event{SessionID: sess.ID, Channel: domain.ChannelParticipants, Type: domain.EventQuizEnded, Payload: lb},
		domain.Event{SessionID: sess.ID, Channel: domain.ChannelModerators, Type: domain.EventQuizEnded, Payload: lb},
	)
	s.cache.Release(ctx, sess.Code)
	s.notify(ctx, NotifySessionEnded, domain.ViewOf(sess))
	return lb
}

func (s *SessionService) shuffleCurrentOptions(sess *domain.Session) {
	if !sess.Quiz.Settings.ShuffleAnswers {
		return
	}
	idx := sess.CurrentQuestionIndex
	if idx < 0 || idx >= sess.QuestionCount() {
		return
	}
	opts := sess.Quiz.Questions[idx].Options
	s.shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
}

func requireStatus(sess *domain.Session, want domain.SessionStatus) error {
	if sess.Status == want {
		return nil
	}
	if sess.Status == domain.StatusEnded {
		return domain.ErrSessionEnded
	}
	return fmt.Errorf("session is %s, want %s: %w", sess.Status, want, domain.ErrInvalidTransition)
}
