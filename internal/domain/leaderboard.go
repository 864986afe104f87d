package domain

import (
	"sort"
	"time"
)

// BuildLeaderboard ranks participants by cumulative score, highest first. Equal scores keep
// join order: the stable sort over the join-ordered participant list is the tie-break.
func BuildLeaderboard(s *Session, now time.Time) Leaderboard {
	entries := make([]LeaderboardEntry, 0, len(s.Participants))
	for _, p := range s.Participants {
		entries = append(entries, LeaderboardEntry{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			AnswerCount: len(p.Answers),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return Leaderboard{
		SessionID: s.ID,
		Entries:   entries,
		UpdatedAt: now,
	}
}
