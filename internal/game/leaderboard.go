package game

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/scribblestars/scribble-engine/internal/models"
	"github.com/scribblestars/scribble-engine/internal/storage"
)

// DefaultLeaderboardSize is the number of entries shown to viewers
const DefaultLeaderboardSize = 5

// Leaderboard derives a ranked top-N view from completion records. The record
// count per student is the authoritative metric: it is independent of the
// progress document, so a partially failed progress write never skews the
// ranking.
type Leaderboard struct {
	store storage.Store
}

// NewLeaderboard creates a leaderboard aggregator over the given store
func NewLeaderboard(store storage.Store) *Leaderboard {
	return &Leaderboard{store: store}
}

// ComputeTop returns up to n entries sorted by total stars descending. Ties
// are broken by earliest first completion, then by student id, so the order
// is fully deterministic. Students whose document no longer exists are
// skipped.
func (l *Leaderboard) ComputeTop(ctx context.Context, n int) ([]models.LeaderboardEntry, error) {
	if n <= 0 {
		n = DefaultLeaderboardSize
	}

	docs, err := l.store.Query(ctx, storage.CollectionCompletedTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to scan completed tasks: %w", err)
	}

	type tally struct {
		stars   int
		firstAt time.Time
	}
	scores := make(map[string]*tally)
	var order []string

	for _, doc := range docs {
		var rec models.CompletedTask
		if err := storage.Decode(doc, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode completion record: %w", err)
		}
		if rec.StudentID == "" {
			continue
		}

		t, ok := scores[rec.StudentID]
		if !ok {
			t = &tally{firstAt: rec.CompletedAt}
			scores[rec.StudentID] = t
			order = append(order, rec.StudentID)
		}
		t.stars++
		if rec.CompletedAt.Before(t.firstAt) {
			t.firstAt = rec.CompletedAt
		}
	}

	entries := make([]models.LeaderboardEntry, 0, len(order))
	for _, studentID := range order {
		doc, err := l.store.Get(ctx, storage.CollectionStudents, studentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Orphaned records are a valid outcome, not a failure
				continue
			}
			return nil, fmt.Errorf("failed to load student %s: %w", studentID, err)
		}

		var student models.Student
		if err := storage.Decode(doc, &student); err != nil {
			return nil, fmt.Errorf("failed to decode student %s: %w", studentID, err)
		}

		entries = append(entries, models.LeaderboardEntry{
			UserID:     studentID,
			Nickname:   student.Nickname,
			TotalStars: scores[studentID].stars,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalStars != entries[j].TotalStars {
			return entries[i].TotalStars > entries[j].TotalStars
		}
		fi, fj := scores[entries[i].UserID].firstAt, scores[entries[j].UserID].firstAt
		if !fi.Equal(fj) {
			return fi.Before(fj)
		}
		return entries[i].UserID < entries[j].UserID
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}
