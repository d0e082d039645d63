package models

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// Student represents a registered player
type Student struct {
	ID        string    `json:"id"`
	SID       string    `json:"sid"`
	Nickname  string    `json:"nickname"`
	CreatedAt time.Time `json:"created_at"`
	Progress  *Progress `json:"progress,omitempty"`
}

// Progress tracks a student's position in the game.
// Invariants: Levels always contains level 1; TotalStars equals the sum of
// StarsEarned across Levels; level N+1 exists only after level N reached the
// unlock threshold.
type Progress struct {
	CurrentLevel int                    `json:"current_level"`
	TotalStars   int                    `json:"total_stars"`
	Levels       map[int]*LevelProgress `json:"levels"`
}

// LevelProgress tracks completion of a single level
type LevelProgress struct {
	LevelID        int        `json:"level_id"`
	StarsEarned    int        `json:"stars_earned"`
	TasksCompleted []int      `json:"tasks_completed"`
	IsUnlocked     bool       `json:"is_unlocked"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// NewProgress returns the initial progress for a new student: level 1
// unlocked, nothing completed
func NewProgress() *Progress {
	return &Progress{
		CurrentLevel: 1,
		TotalStars:   0,
		Levels: map[int]*LevelProgress{
			1: {LevelID: 1, IsUnlocked: true, TasksCompleted: []int{}},
		},
	}
}

// Clone returns a deep copy of the progress
func (p *Progress) Clone() *Progress {
	cp := &Progress{
		CurrentLevel: p.CurrentLevel,
		TotalStars:   p.TotalStars,
		Levels:       make(map[int]*LevelProgress, len(p.Levels)),
	}
	for id, lp := range p.Levels {
		tasks := make([]int, len(lp.TasksCompleted))
		copy(tasks, lp.TasksCompleted)
		lpCopy := &LevelProgress{
			LevelID:        lp.LevelID,
			StarsEarned:    lp.StarsEarned,
			TasksCompleted: tasks,
			IsUnlocked:     lp.IsUnlocked,
		}
		if lp.CompletedAt != nil {
			t := *lp.CompletedAt
			lpCopy.CompletedAt = &t
		}
		cp.Levels[id] = lpCopy
	}
	return cp
}

// SumStars returns the sum of StarsEarned across all levels
func (p *Progress) SumStars() int {
	total := 0
	for _, lp := range p.Levels {
		total += lp.StarsEarned
	}
	return total
}

// HasCompleted reports whether the given task index is already recorded for
// the level
func (lp *LevelProgress) HasCompleted(taskID int) bool {
	for _, id := range lp.TasksCompleted {
		if id == taskID {
			return true
		}
	}
	return false
}

// GenerateSID creates a short uppercase hex student id shown to teachers
func GenerateSID() (string, error) {
	bytes := make([]byte, 4)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(bytes)), nil
}
