package models

import (
	"fmt"
	"time"
)

// Level is a static, ordered set of target words. Content is seeded once and
// read-only afterwards.
type Level struct {
	ID    int      `json:"level_id" yaml:"level_id"`
	Tasks []string `json:"tasks" yaml:"tasks"`
}

// TaskCount returns the number of tasks in the level
func (l *Level) TaskCount() int {
	return len(l.Tasks)
}

// ValidTask reports whether taskID is a valid index into the level's tasks
func (l *Level) ValidTask(taskID int) bool {
	return taskID >= 0 && taskID < len(l.Tasks)
}

// CompletedTask is the durable marker that a (student, level, task) triple has
// been credited. Records are append-only; only their existence is checked.
type CompletedTask struct {
	StudentID   string    `json:"student_id"`
	LevelID     int       `json:"level_id"`
	TaskID      int       `json:"task_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// CompletionKey builds the deterministic document key for a completion record
func CompletionKey(studentID string, levelID, taskID int) string {
	return fmt.Sprintf("%s_%d_%d", studentID, levelID, taskID)
}
