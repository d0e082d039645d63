package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/scribblestars/scribble-engine/internal/models"
	"github.com/scribblestars/scribble-engine/internal/storage"
)

type fakeContent map[int]*models.Level

func (f fakeContent) Get(levelID int) (*models.Level, bool) {
	level, ok := f[levelID]
	return level, ok
}

type fakeClassifier struct {
	word string
	err  error
	// calls counts classification attempts
	calls int
}

func (f *fakeClassifier) Classify(ctx context.Context, images [][]byte) (string, error) {
	f.calls++
	return f.word, f.err
}

type fakeBroadcaster struct {
	scores       []models.ScoreUpdate
	leaderboards [][]models.LeaderboardEntry
	// sequence records broadcast order across both streams
	sequence []string
}

func (f *fakeBroadcaster) BroadcastScore(update models.ScoreUpdate) {
	f.scores = append(f.scores, update)
	f.sequence = append(f.sequence, "score")
}

func (f *fakeBroadcaster) BroadcastLeaderboard(entries []models.LeaderboardEntry) {
	f.leaderboards = append(f.leaderboards, entries)
	f.sequence = append(f.sequence, "leaderboard")
}

func testContent() fakeContent {
	return fakeContent{
		1: {ID: 1, Tasks: []string{"DOG", "CAT", "BUS"}},
		2: {ID: 2, Tasks: []string{"PLANE", "BIRD", "FROG"}},
	}
}

func newTestService(t *testing.T, classifier *fakeClassifier) (*Service, storage.Store, *fakeBroadcaster) {
	t.Helper()

	store := storage.NewMemoryStore()
	broadcaster := &fakeBroadcaster{}
	svc := NewService(store, testContent(), classifier, broadcaster, Config{})
	svc.now = func() time.Time {
		return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	}
	return svc, store, broadcaster
}

func images(n int) [][]byte {
	imgs := make([][]byte, n)
	for i := range imgs {
		imgs[i] = []byte{0x89, 0x50, byte(i)}
	}
	return imgs
}

func TestSignup(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeClassifier{})
	ctx := context.Background()

	student, err := svc.Signup(ctx, "Ada")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	if student.ID == "" || student.SID == "" {
		t.Error("Expected non-empty id and sid")
	}
	if len(student.SID) != 8 {
		t.Errorf("Expected 8-character sid, got %q", student.SID)
	}
	if student.Progress == nil || !student.Progress.Levels[1].IsUnlocked {
		t.Error("New student should start with level 1 unlocked")
	}

	loaded, err := svc.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetStudent failed: %v", err)
	}
	if loaded.Nickname != "Ada" {
		t.Errorf("Expected nickname Ada, got %q", loaded.Nickname)
	}
}

func TestSignupDuplicateNickname(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeClassifier{})
	ctx := context.Background()

	if _, err := svc.Signup(ctx, "Ada"); err != nil {
		t.Fatalf("First signup failed: %v", err)
	}

	_, err := svc.Signup(ctx, "Ada")
	if !errors.Is(err, ErrNicknameTaken) {
		t.Errorf("Expected ErrNicknameTaken, got %v", err)
	}
}

func TestSignupEmptyNickname(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeClassifier{})

	for _, nickname := range []string{"", "   "} {
		_, err := svc.Signup(context.Background(), nickname)
		if !errors.Is(err, ErrInvalidNickname) {
			t.Errorf("Nickname %q: expected ErrInvalidNickname, got %v", nickname, err)
		}
	}
}

func TestSubmitTaskCorrect(t *testing.T) {
	classifier := &fakeClassifier{word: "dog"}
	svc, _, broadcaster := newTestService(t, classifier)
	ctx := context.Background()

	student, err := svc.Signup(ctx, "Ada")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	result, err := svc.SubmitTask(ctx, SubmitRequest{
		StudentID: student.ID,
		LevelID:   1,
		TaskID:    0,
		Images:    images(3),
	})
	if err != nil {
		t.Fatalf("SubmitTask failed: %v", err)
	}

	if !result.Correct {
		t.Error("Case-insensitive match should count as correct")
	}
	if !result.Updated {
		t.Error("First correct submission should update progress")
	}
	if result.StarsEarned != 1 || result.TotalStars != 1 {
		t.Errorf("Expected 1 star, got earned=%d total=%d", result.StarsEarned, result.TotalStars)
	}
	if result.TargetWord != "DOG" || result.PredictedWord != "dog" {
		t.Errorf("Unexpected words: target=%q predicted=%q", result.TargetWord, result.PredictedWord)
	}

	if len(broadcaster.scores) != 1 {
		t.Fatalf("Expected 1 score broadcast, got %d", len(broadcaster.scores))
	}
	score := broadcaster.scores[0]
	if score.UserID != student.ID || score.TotalStars != 1 || score.LevelID != 1 || score.TaskID != 0 {
		t.Errorf("Unexpected score update: %+v", score)
	}

	if len(broadcaster.leaderboards) != 1 {
		t.Fatalf("Expected 1 leaderboard broadcast, got %d", len(broadcaster.leaderboards))
	}
	if len(broadcaster.sequence) != 2 || broadcaster.sequence[0] != "score" || broadcaster.sequence[1] != "leaderboard" {
		t.Errorf("Expected score before leaderboard, got %v", broadcaster.sequence)
	}
}

func TestSubmitTaskIncorrect(t *testing.T) {
	classifier := &fakeClassifier{word: "CAT"}
	svc, _, broadcaster := newTestService(t, classifier)
	ctx := context.Background()

	student, err := svc.Signup(ctx, "Ada")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	result, err := svc.SubmitTask(ctx, SubmitRequest{
		StudentID: student.ID,
		LevelID:   1,
		TaskID:    0,
		Images:    images(3),
	})
	if err != nil {
		t.Fatalf("SubmitTask failed: %v", err)
	}

	if result.Correct || result.Updated {
		t.Error("Mismatched prediction should not credit anything")
	}

	loaded, err := svc.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetStudent failed: %v", err)
	}
	if loaded.Progress.TotalStars != 0 {
		t.Errorf("Progress should be untouched, got %d stars", loaded.Progress.TotalStars)
	}
	if len(broadcaster.sequence) != 0 {
		t.Errorf("No broadcasts expected, got %v", broadcaster.sequence)
	}
}

func TestSubmitTaskDuplicate(t *testing.T) {
	classifier := &fakeClassifier{word: "DOG"}
	svc, _, broadcaster := newTestService(t, classifier)
	ctx := context.Background()

	student, err := svc.Signup(ctx, "Ada")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	req := SubmitRequest{StudentID: student.ID, LevelID: 1, TaskID: 0, Images: images(3)}

	if _, err := svc.SubmitTask(ctx, req); err != nil {
		t.Fatalf("First submission failed: %v", err)
	}

	result, err := svc.SubmitTask(ctx, req)
	if err != nil {
		t.Fatalf("Duplicate submission failed: %v", err)
	}

	if result.Updated {
		t.Error("Duplicate submission should not update progress")
	}
	if result.Message != "Task already completed" {
		t.Errorf("Unexpected message %q", result.Message)
	}
	if result.TotalStars != 1 {
		t.Errorf("Expected total stars 1, got %d", result.TotalStars)
	}

	loaded, err := svc.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetStudent failed: %v", err)
	}
	if loaded.Progress.TotalStars != 1 {
		t.Errorf("Expected 1 star after duplicate, got %d", loaded.Progress.TotalStars)
	}

	// Only the first submission broadcasts
	if len(broadcaster.scores) != 1 {
		t.Errorf("Expected 1 score broadcast, got %d", len(broadcaster.scores))
	}
}

func TestSubmitTaskUnlocksNextLevel(t *testing.T) {
	classifier := &fakeClassifier{word: "DOG"}
	svc, _, _ := newTestService(t, classifier)
	ctx := context.Background()

	student, err := svc.Signup(ctx, "Ada")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	if _, err := svc.SubmitTask(ctx, SubmitRequest{StudentID: student.ID, LevelID: 1, TaskID: 0, Images: images(3)}); err != nil {
		t.Fatalf("First submission failed: %v", err)
	}

	classifier.word = "CAT"
	result, err := svc.SubmitTask(ctx, SubmitRequest{StudentID: student.ID, LevelID: 1, TaskID: 1, Images: images(3)})
	if err != nil {
		t.Fatalf("Second submission failed: %v", err)
	}

	if !result.LevelCompleted {
		t.Error("Second star should complete the level")
	}
	if !result.NextLevelUnlocked {
		t.Error("Second star should unlock level 2")
	}

	// Level 2 accepts submissions now
	classifier.word = "PLANE"
	result, err = svc.SubmitTask(ctx, SubmitRequest{StudentID: student.ID, LevelID: 2, TaskID: 0, Images: images(5)})
	if err != nil {
		t.Fatalf("Level 2 submission failed: %v", err)
	}
	if !result.Updated || result.TotalStars != 3 {
		t.Errorf("Expected 3 total stars on level 2, got updated=%v total=%d", result.Updated, result.TotalStars)
	}
}

func TestSubmitTaskLockedLevel(t *testing.T) {
	classifier := &fakeClassifier{word: "PLANE"}
	svc, _, broadcaster := newTestService(t, classifier)
	ctx := context.Background()

	student, err := svc.Signup(ctx, "Ada")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	_, err = svc.SubmitTask(ctx, SubmitRequest{StudentID: student.ID, LevelID: 2, TaskID: 0, Images: images(5)})
	if !errors.Is(err, ErrLevelLocked) {
		t.Errorf("Expected ErrLevelLocked, got %v", err)
	}
	if len(broadcaster.sequence) != 0 {
		t.Errorf("No broadcasts expected, got %v", broadcaster.sequence)
	}
}

func TestSubmitTaskUnknownLevel(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeClassifier{word: "DOG"})

	_, err := svc.SubmitTask(context.Background(), SubmitRequest{StudentID: "whoever", LevelID: 42, TaskID: 0, Images: images(3)})
	if !errors.Is(err, ErrLevelNotFound) {
		t.Errorf("Expected ErrLevelNotFound, got %v", err)
	}
}

func TestSubmitTaskUnknownStudent(t *testing.T) {
	svc, _, _ := newTestService(t, &fakeClassifier{word: "DOG"})

	_, err := svc.SubmitTask(context.Background(), SubmitRequest{StudentID: "missing", LevelID: 1, TaskID: 0, Images: images(3)})
	if !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("Expected ErrStudentNotFound, got %v", err)
	}
}

func TestSubmitTaskImageCountValidation(t *testing.T) {
	classifier := &fakeClassifier{word: "DOG"}
	svc, _, _ := newTestService(t, classifier)
	ctx := context.Background()

	student, err := svc.Signup(ctx, "Ada")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	cases := []struct {
		name  string
		count int
	}{
		{"too few", 2},
		{"too many", 7},
		{"word length mismatch", 4},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SubmitTask(ctx, SubmitRequest{
				StudentID: student.ID,
				LevelID:   1,
				TaskID:    0,
				Images:    images(tc.count),
			})
			if !errors.Is(err, ErrInvalidImages) {
				t.Errorf("Expected ErrInvalidImages, got %v", err)
			}
		})
	}

	if classifier.calls != 0 {
		t.Errorf("Classifier should not run on invalid input, got %d calls", classifier.calls)
	}
}

func TestSubmitTaskClassifierError(t *testing.T) {
	classifier := &fakeClassifier{err: errors.New("inference service unavailable")}
	svc, _, broadcaster := newTestService(t, classifier)
	ctx := context.Background()

	student, err := svc.Signup(ctx, "Ada")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	_, err = svc.SubmitTask(ctx, SubmitRequest{StudentID: student.ID, LevelID: 1, TaskID: 0, Images: images(3)})
	if err == nil {
		t.Fatal("Expected an error from a failing classifier")
	}

	loaded, err := svc.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetStudent failed: %v", err)
	}
	if loaded.Progress.TotalStars != 0 {
		t.Errorf("Progress should be untouched, got %d stars", loaded.Progress.TotalStars)
	}
	if len(broadcaster.sequence) != 0 {
		t.Errorf("No broadcasts expected, got %v", broadcaster.sequence)
	}
}

// gatedClassifier blocks every Classify call until released, so the test can
// hold several submissions in flight at once. The predicted word is keyed on
// the first byte of the first image.
type gatedClassifier struct {
	arrivals chan struct{}
	release  chan struct{}
	words    map[byte]string
}

func (c *gatedClassifier) Classify(ctx context.Context, images [][]byte) (string, error) {
	c.arrivals <- struct{}{}
	<-c.release
	return c.words[images[0][0]], nil
}

func taggedImages(tag byte, n int) [][]byte {
	imgs := make([][]byte, n)
	for i := range imgs {
		imgs[i] = []byte{tag, byte(i)}
	}
	return imgs
}

func TestSubmitTaskConcurrentSameStudent(t *testing.T) {
	classifier := &gatedClassifier{
		arrivals: make(chan struct{}, 2),
		release:  make(chan struct{}),
		words:    map[byte]string{0: "DOG", 1: "CAT"},
	}
	store := storage.NewMemoryStore()
	svc := NewService(store, testContent(), classifier, &fakeBroadcaster{}, Config{})

	ctx := context.Background()
	student, err := svc.Signup(ctx, "Ada")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	results := make([]*models.SubmissionResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(taskID int) {
			defer wg.Done()
			results[taskID], errs[taskID] = svc.SubmitTask(ctx, SubmitRequest{
				StudentID: student.ID,
				LevelID:   1,
				TaskID:    taskID,
				Images:    taggedImages(byte(taskID), 3),
			})
		}(i)
	}

	// Hold both submissions until each has passed classification, then let
	// them race into the progress read-modify-write
	<-classifier.arrivals
	<-classifier.arrivals
	close(classifier.release)
	wg.Wait()

	for i := 0; i < 2; i++ {
		if errs[i] != nil {
			t.Fatalf("Submission %d failed: %v", i, errs[i])
		}
		if !results[i].Updated {
			t.Errorf("Submission %d reported Updated=false", i)
		}
	}

	loaded, err := svc.GetStudent(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetStudent failed: %v", err)
	}
	lp := loaded.Progress.Levels[1]
	if len(lp.TasksCompleted) != 2 {
		t.Errorf("Expected 2 tasks in progress, got %v", lp.TasksCompleted)
	}
	if loaded.Progress.TotalStars != 2 {
		t.Errorf("Expected 2 total stars, got %d", loaded.Progress.TotalStars)
	}

	records, err := store.Query(ctx, storage.CollectionCompletedTasks)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("Expected 2 completion records, got %d", len(records))
	}

	lp2, ok := loaded.Progress.Levels[2]
	if !ok || !lp2.IsUnlocked {
		t.Error("Two stars should have unlocked level 2")
	}
	if loaded.Progress.CurrentLevel != 2 {
		t.Errorf("Expected current level 2, got %d", loaded.Progress.CurrentLevel)
	}
}

func TestPredict(t *testing.T) {
	classifier := &fakeClassifier{word: "Dog"}
	svc, _, broadcaster := newTestService(t, classifier)

	result, err := svc.Predict(context.Background(), SubmitRequest{
		StudentID: "anyone",
		LevelID:   1,
		TaskID:    0,
		Images:    images(3),
	})
	if err != nil {
		t.Fatalf("Predict failed: %v", err)
	}

	if !result.Correct {
		t.Error("Case-insensitive match should count as correct")
	}
	if result.TargetWord != "DOG" || result.PredictedWord != "Dog" {
		t.Errorf("Unexpected words: target=%q predicted=%q", result.TargetWord, result.PredictedWord)
	}
	if len(broadcaster.sequence) != 0 {
		t.Errorf("Predict must not broadcast, got %v", broadcaster.sequence)
	}
}

func TestGetProgressIncludesRecords(t *testing.T) {
	classifier := &fakeClassifier{word: "DOG"}
	svc, _, _ := newTestService(t, classifier)
	ctx := context.Background()

	student, err := svc.Signup(ctx, "Ada")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	if _, err := svc.SubmitTask(ctx, SubmitRequest{StudentID: student.ID, LevelID: 1, TaskID: 0, Images: images(3)}); err != nil {
		t.Fatalf("SubmitTask failed: %v", err)
	}

	report, err := svc.GetProgress(ctx, student.ID)
	if err != nil {
		t.Fatalf("GetProgress failed: %v", err)
	}

	if report.Nickname != "Ada" {
		t.Errorf("Expected nickname Ada, got %q", report.Nickname)
	}
	if report.TotalStars != 1 {
		t.Errorf("Expected 1 total star, got %d", report.TotalStars)
	}
	if len(report.CompletedTasks) != 1 {
		t.Fatalf("Expected 1 completion record, got %d", len(report.CompletedTasks))
	}
	rec := report.CompletedTasks[0]
	if rec.StudentID != student.ID || rec.LevelID != 1 || rec.TaskID != 0 {
		t.Errorf("Unexpected completion record: %+v", rec)
	}
}

func TestTopReflectsSubmissions(t *testing.T) {
	classifier := &fakeClassifier{word: "DOG"}
	svc, _, _ := newTestService(t, classifier)
	ctx := context.Background()

	ada, err := svc.Signup(ctx, "Ada")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	bo, err := svc.Signup(ctx, "Bo")
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}

	if _, err := svc.SubmitTask(ctx, SubmitRequest{StudentID: ada.ID, LevelID: 1, TaskID: 0, Images: images(3)}); err != nil {
		t.Fatalf("SubmitTask failed: %v", err)
	}
	classifier.word = "CAT"
	if _, err := svc.SubmitTask(ctx, SubmitRequest{StudentID: ada.ID, LevelID: 1, TaskID: 1, Images: images(3)}); err != nil {
		t.Fatalf("SubmitTask failed: %v", err)
	}
	if _, err := svc.SubmitTask(ctx, SubmitRequest{StudentID: bo.ID, LevelID: 1, TaskID: 1, Images: images(3)}); err != nil {
		t.Fatalf("SubmitTask failed: %v", err)
	}

	entries, err := svc.Top(ctx, 5)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].UserID != ada.ID || entries[0].TotalStars != 2 {
		t.Errorf("Expected Ada first with 2 stars, got %s with %d", entries[0].Nickname, entries[0].TotalStars)
	}
	if entries[1].UserID != bo.ID || entries[1].TotalStars != 1 {
		t.Errorf("Expected Bo second with 1 star, got %s with %d", entries[1].Nickname, entries[1].TotalStars)
	}
}
