package models

// LeaderboardEntry is a derived ranking row, recomputed on demand and never
// persisted
type LeaderboardEntry struct {
	UserID     string `json:"user_id"`
	Nickname   string `json:"nickname"`
	TotalStars int    `json:"total_stars"`
}

// LeaderboardSnapshot is the wire envelope for leaderboard broadcasts and the
// top-5 endpoint
type LeaderboardSnapshot struct {
	Top5 []LeaderboardEntry `json:"top5"`
}

// ScoreUpdate is broadcast to score subscribers after a task is credited
type ScoreUpdate struct {
	UserID     string `json:"user_id"`
	Nickname   string `json:"nickname"`
	LevelID    int    `json:"level_id"`
	TaskID     int    `json:"task_id"`
	TotalStars int    `json:"total_stars"`
}

// SubmissionResult is returned to the caller of a task submission
type SubmissionResult struct {
	Message           string `json:"message"`
	Correct           bool   `json:"correct"`
	Updated           bool   `json:"updated"`
	TargetWord        string `json:"target_word"`
	PredictedWord     string `json:"predicted_word"`
	StarsEarned       int    `json:"stars_earned,omitempty"`
	TotalStars        int    `json:"total_stars,omitempty"`
	LevelCompleted    bool   `json:"level_completed,omitempty"`
	NextLevelUnlocked bool   `json:"next_level_unlocked,omitempty"`
}

// PredictionResult is returned by the classification-only endpoint
type PredictionResult struct {
	StudentID     string `json:"student_id"`
	LevelID       int    `json:"level_id"`
	TaskID        int    `json:"task_id"`
	TargetWord    string `json:"target_word"`
	PredictedWord string `json:"predicted_word"`
	Correct       bool   `json:"correct"`
}

// ProgressReport is the response shape for the progress endpoint: the
// student's progress document plus the completion records backing it
type ProgressReport struct {
	Nickname       string          `json:"nickname"`
	TotalStars     int             `json:"total_stars"`
	Progress       *Progress       `json:"progress"`
	CompletedTasks []CompletedTask `json:"completed_tasks"`
}

// SignupRequest represents a student registration request
type SignupRequest struct {
	Nickname string `json:"nickname"`
}

// SignupResponse is returned after creating a student
type SignupResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
	SID     string `json:"sid"`
}
