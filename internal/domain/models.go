package domain

import "time"

// QuestionType enumerates supported question shapes.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
)

// Option represents a possible answer for a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question is one timed question of a quiz.
type Question struct {
	ID          string       `json:"id"`
	Prompt      string       `json:"prompt"`
	Type        QuestionType `json:"type"`
	Options     []Option     `json:"options"`
	TimeLimitMs int64        `json:"timeLimitMs"`
	Points      int          `json:"points"` // defaults to 1 if zero
}

// PointValue returns the question's points with the zero default applied.
func (q Question) PointValue() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// CorrectIndices lists the indices of options flagged correct.
func (q Question) CorrectIndices() []int {
	out := make([]int, 0, 1)
	for i, opt := range q.Options {
		if opt.Correct {
			out = append(out, i)
		}
	}
	return out
}

// QuizSettings controls presentation of a quiz.
type QuizSettings struct {
	ShuffleQuestions bool `json:"shuffleQuestions"`
	ShuffleAnswers   bool `json:"shuffleAnswers"`
}

// Quiz is an ordered collection of questions supplied by the quiz definition store.
type Quiz struct {
	ID        string       `json:"id"`
	Title     string       `json:"title,omitempty"`
	Questions []Question   `json:"questions"`
	Settings  QuizSettings `json:"settings"`
}

// Clone deep-copies the quiz so a session can own its snapshot.
func (q Quiz) Clone() Quiz {
	out := q
	out.Questions = make([]Question, len(q.Questions))
	for i, question := range q.Questions {
		question.Options = append([]Option(nil), question.Options...)
		out.Questions[i] = question
	}
	return out
}

// SessionStatus is the lifecycle state of a live session.
type SessionStatus string

const (
	StatusWaiting SessionStatus = "waiting"
	StatusActive  SessionStatus = "active"
	StatusPaused  SessionStatus = "paused"
	StatusEnded   SessionStatus = "ended"
)

// Answer is a participant's recorded answer to one question.
type Answer struct {
	QuestionIndex int       `json:"questionIndex"`
	Selected      []int     `json:"selected"`
	Correct       bool      `json:"correct"`
	Points        int       `json:"points"`
	ElapsedMs     int64     `json:"elapsedMs"`
	AnsweredAt    time.Time `json:"answeredAt"`
}

// Participant represents a joined identity and their accumulated score.
type Participant struct {
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	JoinedAt    time.Time `json:"joinedAt"`
	Score       int       `json:"score"`
	Answers     []Answer  `json:"answers"`
}

// AnswerFor returns the participant's answer for a question index, if any.
func (p *Participant) AnswerFor(questionIndex int) (Answer, bool) {
	for _, a := range p.Answers {
		if a.QuestionIndex == questionIndex {
			return a, true
		}
	}
	return Answer{}, false
}

// Session is one live run of a quiz.
type Session struct {
	ID                   string        `json:"id"`
	QuizID               string        `json:"quizId"`
	CreatorID            string        `json:"creatorId"`
	Code                 string        `json:"code"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	Quiz                 Quiz          `json:"-"`
	Participants         []Participant `json:"participants"`
	CreatedAt            time.Time     `json:"createdAt"`
	StartedAt            *time.Time    `json:"startedAt,omitempty"`
	EndedAt              *time.Time    `json:"endedAt,omitempty"`
	Revision             int64         `json:"revision"`
	// WriteID identifies the mutation that produced this revision.
	WriteID              string        `json:"-"`
}

// Clone deep-copies the session; stores hand out clones so callers never share state.
func (s *Session) Clone() *Session {
	out := *s
	out.Quiz = s.Quiz.Clone()
	out.Participants = make([]Participant, len(s.Participants))
	for i, p := range s.Participants {
		answers := make([]Answer, len(p.Answers))
		for j, a := range p.Answers {
			a.Selected = append([]int(nil), a.Selected...)
			answers[j] = a
		}
		p.Answers = answers
		out.Participants[i] = p
	}
	if s.StartedAt != nil {
		t := *s.StartedAt
		out.StartedAt = &t
	}
	if s.EndedAt != nil {
		t := *s.EndedAt
		out.EndedAt = &t
	}
	return &out
}

// Participant looks up a joined participant by user id.
func (s *Session) Participant(userID string) (*Participant, bool) {
	for i := range s.Participants {
		if s.Participants[i].UserID == userID {
			return &s.Participants[i], true
		}
	}
	return nil, false
}

// QuestionCount is the number of questions in the session's snapshot.
func (s *Session) QuestionCount() int {
	return len(s.Quiz.Questions)
}

// CurrentQuestion returns the question being played, if any.
func (s *Session) CurrentQuestion() (Question, bool) {
	if s.CurrentQuestionIndex < 0 || s.CurrentQuestionIndex >= len(s.Quiz.Questions) {
		return Question{}, false
	}
	return s.Quiz.Questions[s.CurrentQuestionIndex], true
}

// IsLive reports whether the session has not ended.
func (s *Session) IsLive() bool {
	return s.Status != StatusEnded
}

// SessionSummary is the small record kept by per-process and shared caches, keyed by code.
type SessionSummary struct {
	ID     string        `json:"id"`
	Code   string        `json:"code"`
	QuizID string        `json:"quizId"`
	Status SessionStatus `json:"status"`
}

// Summary derives the cache record for a session.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{ID: s.ID, Code: s.Code, QuizID: s.QuizID, Status: s.Status}
}

// AnswerEvent is the durable analytics record of one accepted answer.
type AnswerEvent struct {
	ID            string    `json:"id"`
	SessionID     string    `json:"sessionId"`
	QuizID        string    `json:"quizId"`
	UserID        string    `json:"userId"`
	QuestionIndex int       `json:"questionIndex"`
	Selected      []int     `json:"selected"`
	Correct       bool      `json:"correct"`
	Points        int       `json:"points"`
	ElapsedMs     int64     `json:"elapsedMs"`
	AnsweredAt    time.Time `json:"answeredAt"`
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Admin  bool
}

// AnswerSubmission models an answer sent by a participant.
type AnswerSubmission struct {
	SessionID     string
	QuestionIndex int
	Selected      []int
	ElapsedMs     int64
}

// AnswerAck is the private acknowledgment returned to the submitter.
type AnswerAck struct {
	QuestionIndex  int   `json:"questionIndex"`
	Correct        bool  `json:"correct"`
	Points         int   `json:"points"`
	TotalScore     int   `json:"totalScore"`
	CorrectIndices []int `json:"correctIndices"`
}

// AnswerNotice tells moderators that someone answered, without revealing correctness.
type AnswerNotice struct {
	SessionID     string `json:"sessionId"`
	UserID        string `json:"userId"`
	DisplayName   string `json:"displayName"`
	QuestionIndex int    `json:"questionIndex"`
	ElapsedMs     int64  `json:"elapsedMs"`
}

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	AnswerCount int    `json:"answerCount"`
}

// Leaderboard captures the ordered scoreboard for a quiz session.
type Leaderboard struct {
	SessionID string             `json:"sessionId"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
