package domain

import (
	"errors"
	"testing"
)

func TestScoreAnswerSpeedBonus(t *testing.T) {
	q := Question{
		Options:     []Option{{Text: "a", Correct: true}, {Text: "b"}},
		TimeLimitMs: 10000,
		Points:      10,
	}

	cases := []struct {
		name    string
		correct bool
		elapsed int64
		want    int
	}{
		{"instant", true, 0, 10},
		{"at limit", true, 10000, 5},
		{"over limit clamps", true, 20000, 5},
		{"negative clamps", true, -50, 10},
		{"two seconds", true, 2000, 9},
		{"incorrect", false, 0, 0},
	}
	for _, tc := range cases {
		if got := ScoreAnswer(q, tc.correct, tc.elapsed); got != tc.want {
			t.Fatalf("%s: expected %d points, got %d", tc.name, tc.want, got)
		}
	}
}

func TestScoreAnswerWithoutTimeLimitAwardsFullPoints(t *testing.T) {
	q := Question{Points: 7}
	if got := ScoreAnswer(q, true, 123456); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := ScoreAnswer(Question{}, true, 0); got != 1 {
		t.Fatalf("expected default point value 1, got %d", got)
	}
}

func TestCorrectnessIsSetEquality(t *testing.T) {
	q := Question{Options: []Option{
		{Text: "a", Correct: true},
		{Text: "b"},
		{Text: "c", Correct: true},
	}}

	sel, err := NormalizeSelection([]int{2, 0, 2}, len(q.Options))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !IsCorrectSelection(q, sel) {
		t.Fatalf("expected exact set %v to be correct", sel)
	}

	subset, _ := NormalizeSelection([]int{0}, len(q.Options))
	if IsCorrectSelection(q, subset) {
		t.Fatalf("subset must not be correct")
	}
	superset, _ := NormalizeSelection([]int{0, 1, 2}, len(q.Options))
	if IsCorrectSelection(q, superset) {
		t.Fatalf("superset must not be correct")
	}
}

func TestNormalizeSelectionRejectsOutOfRange(t *testing.T) {
	_, err := NormalizeSelection([]int{3}, 3)
	if KindOf(err) != KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTransientWrapping(t *testing.T) {
	cause := errors.New("i/o timeout")
	err := Transient(cause)
	if !IsTransient(err) {
		t.Fatalf("expected transient")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved")
	}
	if IsTransient(ErrCodeSpaceExhausted) {
		t.Fatalf("code space exhaustion is final, not transient")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Fatalf("unknown errors should be internal")
	}
}
