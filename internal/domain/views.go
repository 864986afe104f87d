package domain

// ParticipantQuestionView is what participants see: option text only.
type ParticipantQuestionView struct {
	SessionID      string       `json:"sessionId"`
	QuestionIndex  int          `json:"questionIndex"`
	TotalQuestions int          `json:"totalQuestions"`
	Prompt         string       `json:"prompt"`
	Type           QuestionType `json:"type"`
	Options        []string     `json:"options"`
	TimeLimitMs    int64        `json:"timeLimitMs"`
	Points         int          `json:"points"`
}

// ModeratorQuestionView adds correctness flags for the session creator.
type ModeratorQuestionView struct {
	SessionID      string       `json:"sessionId"`
	QuestionIndex  int          `json:"questionIndex"`
	TotalQuestions int          `json:"totalQuestions"`
	Prompt         string       `json:"prompt"`
	Type           QuestionType `json:"type"`
	Options        []Option     `json:"options"`
	TimeLimitMs    int64        `json:"timeLimitMs"`
	Points         int          `json:"points"`
}

// QuestionViews builds both views of the current question from the session snapshot.
func QuestionViews(s *Session) (ParticipantQuestionView, ModeratorQuestionView, bool) {
	q, ok := s.CurrentQuestion()
	if !ok {
		return ParticipantQuestionView{}, ModeratorQuestionView{}, false
	}
	texts := make([]string, len(q.Options))
	for i, opt := range q.Options {
		texts[i] = opt.Text
	}
	pv := ParticipantQuestionView{
		SessionID:      s.ID,
		QuestionIndex:  s.CurrentQuestionIndex,
		TotalQuestions: s.QuestionCount(),
		Prompt:         q.Prompt,
		Type:           q.Type,
		Options:        texts,
		TimeLimitMs:    q.TimeLimitMs,
		Points:         q.PointValue(),
	}
	mv := ModeratorQuestionView{
		SessionID:      pv.SessionID,
		QuestionIndex:  pv.QuestionIndex,
		TotalQuestions: pv.TotalQuestions,
		Prompt:         pv.Prompt,
		Type:           pv.Type,
		Options:        append([]Option(nil), q.Options...),
		TimeLimitMs:    pv.TimeLimitMs,
		Points:         pv.Points,
	}
	return pv, mv, true
}

// ParticipantSummary is a participant without answer details.
type ParticipantSummary struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	AnswerCount int    `json:"answerCount"`
}

// SessionView is the public session record handed to REST callers and joiners.
type SessionView struct {
	ID                   string               `json:"id"`
	QuizID               string               `json:"quizId"`
	Title                string               `json:"title,omitempty"`
	CreatorID            string               `json:"creatorId"`
	Code                 string               `json:"code"`
	Status               SessionStatus        `json:"status"`
	CurrentQuestionIndex int                  `json:"currentQuestionIndex"`
	TotalQuestions       int                  `json:"totalQuestions"`
	Participants         []ParticipantSummary `json:"participants"`
	CreatedAt            string               `json:"createdAt"`
	StartedAt            string               `json:"startedAt,omitempty"`
	EndedAt              string               `json:"endedAt,omitempty"`
}

const viewTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// ViewOf renders a session for outward callers.
func ViewOf(s *Session) SessionView {
	v := SessionView{
		ID:                   s.ID,
		QuizID:               s.QuizID,
		Title:                s.Quiz.Title,
		CreatorID:            s.CreatorID,
		Code:                 s.Code,
		Status:               s.Status,
		CurrentQuestionIndex: s.CurrentQuestionIndex,
		TotalQuestions:       s.QuestionCount(),
		Participants:         make([]ParticipantSummary, 0, len(s.Participants)),
		CreatedAt:            s.CreatedAt.Format(viewTimeLayout),
	}
	if s.StartedAt != nil {
		v.StartedAt = s.StartedAt.Format(viewTimeLayout)
	}
	if s.EndedAt != nil {
		v.EndedAt = s.EndedAt.Format(viewTimeLayout)
	}
	for _, p := range s.Participants {
		v.Participants = append(v.Participants, ParticipantSummary{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			AnswerCount: len(p.Answers),
		})
	}
	return v
}
