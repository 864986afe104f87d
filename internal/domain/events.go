package domain

// Channel selects the audience of a session broadcast.
type Channel string

const (
	ChannelParticipants Channel = "participants"
	ChannelModerators   Channel = "moderators"
)

// EventType names realtime messages pushed to clients.
type EventType string

const (
	EventQuestionStarted   EventType = "question-started"
	EventQuestionAdvanced  EventType = "question-advanced"
	EventQuizPaused        EventType = "quiz-paused"
	EventQuizResumed       EventType = "quiz-resumed"
	EventQuizEnded         EventType = "quiz-ended"
	EventAnswerSubmitted   EventType = "answer-submitted"
	EventParticipantJoined EventType = "participant-joined"
)

// Event is one broadcast message for a session channel. Payload is JSON-encodable.
type Event struct {
	SessionID string    `json:"sessionId"`
	Channel   Channel   `json:"channel"`
	Type      EventType `json:"type"`
	Payload   any       `json:"payload"`
}

// PausePayload accompanies quiz-paused / quiz-resumed.
type PausePayload struct {
	SessionID     string                   `json:"sessionId"`
	QuestionIndex int                      `json:"questionIndex"`
	Question      *ParticipantQuestionView `json:"question,omitempty"`
}
