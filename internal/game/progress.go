package game

import (
	"time"

	"github.com/scribblestars/scribble-engine/internal/models"
)

// Outcome describes how a task completion changed a student's progress
type Outcome struct {
	Updated           bool `json:"updated"`
	StarsEarned       int  `json:"stars_earned"`
	LevelCompleted    bool `json:"level_completed"`
	NextLevelUnlocked bool `json:"next_level_unlocked"`
}

// Apply computes the progress resulting from completing (levelID, taskID).
// It is pure: the input progress is never mutated, the returned progress is a
// fresh copy. Completing a task the student already completed returns the
// unchanged progress with Updated=false, which is what makes retried
// submissions safe.
//
// threshold is the number of stars in a level that completes it and unlocks
// the next one. It is deliberately independent of the level's task count.
func Apply(p *models.Progress, levelID, taskID, taskCount, threshold int, now time.Time) (*models.Progress, Outcome, error) {
	lp, ok := p.Levels[levelID]
	if !ok {
		return p, Outcome{}, ErrLevelLocked
	}
	if taskID < 0 || taskID >= taskCount {
		return p, Outcome{}, ErrInvalidTask
	}

	if lp.HasCompleted(taskID) {
		return p, Outcome{Updated: false, StarsEarned: lp.StarsEarned}, nil
	}

	next := p.Clone()
	nlp := next.Levels[levelID]
	nlp.TasksCompleted = append(nlp.TasksCompleted, taskID)
	nlp.StarsEarned = len(nlp.TasksCompleted)

	outcome := Outcome{
		Updated:        true,
		StarsEarned:    nlp.StarsEarned,
		LevelCompleted: nlp.StarsEarned >= threshold,
	}

	// First crossing of the threshold: stamp completion and open the next
	// level. Re-triggering submissions past the threshold change neither.
	if nlp.StarsEarned >= threshold && nlp.CompletedAt == nil {
		t := now
		nlp.CompletedAt = &t

		nextID := levelID + 1
		if _, exists := next.Levels[nextID]; !exists {
			next.Levels[nextID] = &models.LevelProgress{
				LevelID:        nextID,
				StarsEarned:    0,
				TasksCompleted: []int{},
				IsUnlocked:     true,
			}
			next.CurrentLevel = nextID
			outcome.NextLevelUnlocked = true
		}
	}

	// Always recomputed from the level map, never incremented, so a partially
	// written progress document heals on the next successful apply.
	next.TotalStars = next.SumStars()

	return next, outcome, nil
}
