package domain

import "sort"

// NormalizeSelection validates option indices against the option count and returns them as a
// sorted set.
func NormalizeSelection(selected []int, optionCount int) ([]int, error) {
	seen := make(map[int]struct{}, len(selected))
	out := make([]int, 0, len(selected))
	for _, idx := range selected {
		if idx < 0 || idx >= optionCount {
			return nil, Validationf("option index %d out of range [0,%d)", idx, optionCount)
		}
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		out = append(out, idx)
	}
	sort.Ints(out)
	return out, nil
}

// IsCorrectSelection reports whether the selected set equals the set of correct options exactly.
// selected must already be normalized.
func IsCorrectSelection(q Question, selected []int) bool {
	correct := q.CorrectIndices()
	if len(correct) != len(selected) {
		return false
	}
	for i := range correct {
		if correct[i] != selected[i] {
			return false
		}
	}
	return true
}

// ClampElapsed bounds a client-reported elapsed time to [0, timeLimitMs].
func ClampElapsed(elapsedMs, timeLimitMs int64) int64 {
	if elapsedMs < 0 || timeLimitMs <= 0 {
		return 0
	}
	if elapsedMs > timeLimitMs {
		return timeLimitMs
	}
	return elapsedMs
}

// ScoreAnswer awards floor(points * (0.5 + 0.5*(T-e)/T)) for a correct answer and 0 otherwise.
// A correct answer always earns at least half the question's points.
func ScoreAnswer(q Question, correct bool, elapsedMs int64) int {
	if !correct {
		return 0
	}
	points := int64(q.PointValue())
	limit := q.TimeLimitMs
	if limit <= 0 {
		return int(points)
	}
	e := ClampElapsed(elapsedMs, limit)
	return int(points * (2*limit - e) / (2 * limit))
}
