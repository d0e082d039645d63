package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scribblestars/scribble-engine/internal/models"
	"github.com/scribblestars/scribble-engine/internal/storage"
)

// Classifier turns a sequence of letter images into a predicted word
type Classifier interface {
	Classify(ctx context.Context, images [][]byte) (string, error)
}

// Broadcaster pushes realtime updates to subscribed viewers
type Broadcaster interface {
	BroadcastScore(update models.ScoreUpdate)
	BroadcastLeaderboard(entries []models.LeaderboardEntry)
}

// Content provides read-only level content
type Content interface {
	Get(levelID int) (*models.Level, bool)
}

// Config holds game tuning parameters
type Config struct {
	// UnlockThreshold is the stars required in a level to open the next one.
	// It is intentionally lower than the task count per level.
	UnlockThreshold int

	// LeaderboardSize is the number of entries broadcast to viewers
	LeaderboardSize int

	// MinImages and MaxImages bound the letter images per submission
	MinImages int
	MaxImages int
}

func (c Config) withDefaults() Config {
	if c.UnlockThreshold <= 0 {
		c.UnlockThreshold = 2
	}
	if c.LeaderboardSize <= 0 {
		c.LeaderboardSize = DefaultLeaderboardSize
	}
	if c.MinImages <= 0 {
		c.MinImages = 3
	}
	if c.MaxImages <= 0 {
		c.MaxImages = 6
	}
	return c
}

// SubmitRequest carries one task submission
type SubmitRequest struct {
	StudentID string
	LevelID   int
	TaskID    int
	Images    [][]byte
}

// Service orchestrates task submissions: validation, classification, the
// progress state machine, persistence, leaderboard aggregation and broadcast
type Service struct {
	store       storage.Store
	content     Content
	classifier  Classifier
	broadcaster Broadcaster
	leaderboard *Leaderboard
	cfg         Config
	locks       *studentLocks
	now         func() time.Time
}

// NewService creates the game service
func NewService(store storage.Store, content Content, classifier Classifier, broadcaster Broadcaster, cfg Config) *Service {
	return &Service{
		store:       store,
		content:     content,
		classifier:  classifier,
		broadcaster: broadcaster,
		leaderboard: NewLeaderboard(store),
		cfg:         cfg.withDefaults(),
		locks:       newStudentLocks(),
		now:         time.Now,
	}
}

// Signup registers a new student with a unique nickname and level 1 unlocked
func (s *Service) Signup(ctx context.Context, nickname string) (*models.Student, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return nil, fmt.Errorf("%w: nickname is required", ErrInvalidNickname)
	}

	existing, err := s.store.Query(ctx, storage.CollectionStudents, storage.Filter{Field: "nickname", Value: nickname})
	if err != nil {
		return nil, fmt.Errorf("failed to check nickname: %w", err)
	}
	if len(existing) > 0 {
		return nil, ErrNicknameTaken
	}

	sid, err := models.GenerateSID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate sid: %w", err)
	}

	student := &models.Student{
		ID:        uuid.NewString(),
		SID:       sid,
		Nickname:  nickname,
		CreatedAt: s.now().UTC(),
		Progress:  models.NewProgress(),
	}

	doc, err := storage.Encode(student)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, storage.CollectionStudents, student.ID, doc, false); err != nil {
		return nil, fmt.Errorf("failed to create student: %w", err)
	}

	slog.Info("student registered", "student_id", student.ID, "nickname", nickname)
	return student, nil
}

// GetStudent loads a student document
func (s *Service) GetStudent(ctx context.Context, studentID string) (*models.Student, error) {
	doc, err := s.store.Get(ctx, storage.CollectionStudents, studentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, fmt.Errorf("failed to load student: %w", err)
	}

	var student models.Student
	if err := storage.Decode(doc, &student); err != nil {
		return nil, fmt.Errorf("failed to decode student: %w", err)
	}
	return &student, nil
}

// GetProgress returns the student's progress together with the completion
// records backing it
func (s *Service) GetProgress(ctx context.Context, studentID string) (*models.ProgressReport, error) {
	student, err := s.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	docs, err := s.store.Query(ctx, storage.CollectionCompletedTasks,
		storage.Filter{Field: "student_id", Value: studentID})
	if err != nil {
		return nil, fmt.Errorf("failed to load completed tasks: %w", err)
	}

	completed := make([]models.CompletedTask, 0, len(docs))
	for _, doc := range docs {
		var rec models.CompletedTask
		if err := storage.Decode(doc, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode completion record: %w", err)
		}
		completed = append(completed, rec)
	}

	progress := student.Progress
	if progress == nil {
		progress = models.NewProgress()
	}

	return &models.ProgressReport{
		Nickname:       student.Nickname,
		TotalStars:     progress.TotalStars,
		Progress:       progress,
		CompletedTasks: completed,
	}, nil
}

// Top returns the current leaderboard, at most n entries
func (s *Service) Top(ctx context.Context, n int) ([]models.LeaderboardEntry, error) {
	if n <= 0 || n > s.cfg.LeaderboardSize {
		n = s.cfg.LeaderboardSize
	}
	return s.leaderboard.ComputeTop(ctx, n)
}

// Predict runs the classifier against a submission without crediting anything
func (s *Service) Predict(ctx context.Context, req SubmitRequest) (*models.PredictionResult, error) {
	target, err := s.targetWord(req)
	if err != nil {
		return nil, err
	}

	predicted, err := s.classifier.Classify(ctx, req.Images)
	if err != nil {
		return nil, fmt.Errorf("classifier failed: %w", err)
	}

	return &models.PredictionResult{
		StudentID:     req.StudentID,
		LevelID:       req.LevelID,
		TaskID:        req.TaskID,
		TargetWord:    target,
		PredictedWord: predicted,
		Correct:       strings.EqualFold(predicted, target),
	}, nil
}

// SubmitTask validates a submission, classifies the handwriting and, when the
// prediction matches the target word, credits the task exactly once: progress
// is advanced, the completion record written, and score plus leaderboard
// updates broadcast. An incorrect prediction and a duplicate submission are
// both normal non-error outcomes with Updated=false.
func (s *Service) SubmitTask(ctx context.Context, req SubmitRequest) (*models.SubmissionResult, error) {
	target, err := s.targetWord(req)
	if err != nil {
		return nil, err
	}

	if _, err := s.GetStudent(ctx, req.StudentID); err != nil {
		return nil, err
	}

	predicted, err := s.classifier.Classify(ctx, req.Images)
	if err != nil {
		return nil, fmt.Errorf("classifier failed: %w", err)
	}

	result := &models.SubmissionResult{
		TargetWord:    target,
		PredictedWord: predicted,
		Correct:       strings.EqualFold(predicted, target),
	}

	if !result.Correct {
		result.Message = "Prediction did not match, try again"
		return result, nil
	}

	unlock := s.locks.acquire(req.StudentID)
	defer unlock()

	// The pre-classify read only established existence. The progress used for
	// the read-modify-write is loaded here, under the lock, so a concurrent
	// submission for the same student cannot serve us a stale document.
	student, err := s.GetStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}

	// Idempotency guard: the completion record's existence is the single
	// source of truth for "already credited"
	key := models.CompletionKey(req.StudentID, req.LevelID, req.TaskID)
	if _, err := s.store.Get(ctx, storage.CollectionCompletedTasks, key); err == nil {
		result.Message = "Task already completed"
		if student.Progress != nil {
			result.TotalStars = student.Progress.TotalStars
		}
		return result, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("failed to check completion record: %w", err)
	}

	progress := student.Progress
	if progress == nil {
		progress = models.NewProgress()
	}

	level, _ := s.content.Get(req.LevelID)
	newProgress, outcome, err := Apply(progress, req.LevelID, req.TaskID, level.TaskCount(), s.cfg.UnlockThreshold, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if !outcome.Updated {
		// Progress already reflects this task even though no record exists:
		// recover from the crash window by writing the missing record
		result.Message = "Task already completed"
		result.TotalStars = newProgress.TotalStars
		if err := s.writeCompletionRecord(ctx, req, key); err != nil {
			return nil, err
		}
		return result, nil
	}

	progressDoc, err := storage.Encode(newProgress)
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, storage.CollectionStudents, req.StudentID,
		storage.Document{"progress": map[string]any(progressDoc)}); err != nil {
		return nil, fmt.Errorf("failed to persist progress: %w", err)
	}

	// Record is written after the progress it depends on; a crash between the
	// two writes is healed by the membership check above on retry
	if err := s.writeCompletionRecord(ctx, req, key); err != nil {
		return nil, err
	}

	result.Updated = true
	result.Message = "Task completed"
	result.StarsEarned = outcome.StarsEarned
	result.TotalStars = newProgress.TotalStars
	result.LevelCompleted = outcome.LevelCompleted
	result.NextLevelUnlocked = outcome.NextLevelUnlocked

	s.publish(ctx, student, req, newProgress)

	return result, nil
}

// publish pushes the score delta and a fresh leaderboard snapshot. Broadcasts
// run only after the state change is durable; a failed leaderboard recompute
// is logged, never surfaced, since the submission itself already succeeded.
func (s *Service) publish(ctx context.Context, student *models.Student, req SubmitRequest, progress *models.Progress) {
	if s.broadcaster == nil {
		return
	}

	s.broadcaster.BroadcastScore(models.ScoreUpdate{
		UserID:     student.ID,
		Nickname:   student.Nickname,
		LevelID:    req.LevelID,
		TaskID:     req.TaskID,
		TotalStars: progress.TotalStars,
	})

	entries, err := s.leaderboard.ComputeTop(ctx, s.cfg.LeaderboardSize)
	if err != nil {
		slog.Error("failed to recompute leaderboard after submission", "error", err, "student_id", student.ID)
		return
	}
	s.broadcaster.BroadcastLeaderboard(entries)
}

func (s *Service) writeCompletionRecord(ctx context.Context, req SubmitRequest, key string) error {
	record := models.CompletedTask{
		StudentID:   req.StudentID,
		LevelID:     req.LevelID,
		TaskID:      req.TaskID,
		CompletedAt: s.now().UTC(),
	}
	doc, err := storage.Encode(record)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, storage.CollectionCompletedTasks, key, doc, false); err != nil {
		return fmt.Errorf("failed to write completion record: %w", err)
	}
	return nil
}

// targetWord validates level, task index and image count, returning the word
// the student was asked to write
func (s *Service) targetWord(req SubmitRequest) (string, error) {
	level, ok := s.content.Get(req.LevelID)
	if !ok {
		return "", ErrLevelNotFound
	}
	if !level.ValidTask(req.TaskID) {
		return "", ErrInvalidTask
	}

	target := level.Tasks[req.TaskID]

	if len(req.Images) < s.cfg.MinImages || len(req.Images) > s.cfg.MaxImages {
		return "", fmt.Errorf("%w: provide %d to %d images", ErrInvalidImages, s.cfg.MinImages, s.cfg.MaxImages)
	}
	if len(req.Images) != len(target) {
		return "", fmt.Errorf("%w: expected %d images for word %q", ErrInvalidImages, len(target), target)
	}

	return target, nil
}
