package cli

import "live-quiz-service/internal/domain"

// sampleQuizzes backs the in-memory quiz loader and the seed command.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:     "q1",
					Prompt: "What is 2 + 2?",
					Type:   domain.QuestionMultipleChoice,
					Options: []domain.Option{
						{ID: "o1", Text: "3"},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5"},
					},
					TimeLimitMs: 20000,
					Points:      1000,
				},
				{
					ID:     "q2",
					Prompt: "Go has generics.",
					Type:   domain.QuestionTrueFalse,
					Options: []domain.Option{
						{ID: "t", Text: "True", Correct: true},
						{ID: "f", Text: "False"},
					},
					TimeLimitMs: 10000,
					Points:      500,
				},
				{
					ID:     "q3",
					Prompt: "Which are prime?",
					Type:   domain.QuestionMultipleChoice,
					Options: []domain.Option{
						{ID: "a", Text: "2", Correct: true},
						{ID: "b", Text: "4"},
						{ID: "c", Text: "7", Correct: true},
						{ID: "d", Text: "9"},
					},
					TimeLimitMs: 30000,
					Points:      1000,
				},
			},
			Settings: domain.QuizSettings{ShuffleAnswers: true},
		},
	}
}
