package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/scribblestars/scribble-engine/internal/models"
)

// fakeConn records frames and can be told to fail
type fakeConn struct {
	mu     sync.Mutex
	frames [][]byte
	fail   bool
	closed bool
}

func (c *fakeConn) WriteText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	c.frames = append(c.frames, cp)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) frameCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func TestBroadcastScoreDeliversToAllScoreSubscribers(t *testing.T) {
	hub := NewHub()
	a, b := &fakeConn{}, &fakeConn{}
	viewer := &fakeConn{}

	hub.SubscribeScore(a)
	hub.SubscribeScore(b)
	hub.SubscribeLeaderboard(viewer)

	hub.BroadcastScore(models.ScoreUpdate{UserID: "s1", Nickname: "ada", LevelID: 1, TaskID: 0, TotalStars: 1})

	if a.frameCount() != 1 || b.frameCount() != 1 {
		t.Fatalf("expected 1 frame per score subscriber, got %d and %d", a.frameCount(), b.frameCount())
	}
	if viewer.frameCount() != 0 {
		t.Error("leaderboard subscriber received a score frame")
	}

	var update models.ScoreUpdate
	if err := json.Unmarshal(a.frames[0], &update); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if update.Nickname != "ada" || update.TotalStars != 1 {
		t.Errorf("unexpected payload: %+v", update)
	}
}

func TestBroadcastLeaderboardEnvelope(t *testing.T) {
	hub := NewHub()
	viewer := &fakeConn{}
	hub.SubscribeLeaderboard(viewer)

	hub.BroadcastLeaderboard([]models.LeaderboardEntry{
		{UserID: "a", Nickname: "ada", TotalStars: 3},
		{UserID: "b", Nickname: "bob", TotalStars: 1},
	})

	if viewer.frameCount() != 1 {
		t.Fatalf("expected 1 frame, got %d", viewer.frameCount())
	}

	var snapshot models.LeaderboardSnapshot
	if err := json.Unmarshal(viewer.frames[0], &snapshot); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	if len(snapshot.Top5) != 2 || snapshot.Top5[0].Nickname != "ada" {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
}

func TestBroadcastWithZeroSubscribersIsNoop(t *testing.T) {
	hub := NewHub()

	// Must complete without error or panic
	hub.BroadcastScore(models.ScoreUpdate{UserID: "s1"})
	hub.BroadcastLeaderboard(nil)
}

func TestFailedSendRemovesSubscriberAndContinues(t *testing.T) {
	hub := NewHub()
	broken := &fakeConn{fail: true}
	healthy := &fakeConn{}

	hub.SubscribeScore(broken)
	hub.SubscribeScore(healthy)

	hub.BroadcastScore(models.ScoreUpdate{UserID: "s1", TotalStars: 1})

	if healthy.frameCount() != 1 {
		t.Error("healthy subscriber did not receive the frame")
	}
	if !broken.closed {
		t.Error("broken subscriber was not closed")
	}
	if hub.ScoreSubscribers() != 1 {
		t.Errorf("expected 1 remaining subscriber, got %d", hub.ScoreSubscribers())
	}

	// Next broadcast only reaches the healthy connection
	hub.BroadcastScore(models.ScoreUpdate{UserID: "s1", TotalStars: 2})
	if healthy.frameCount() != 2 {
		t.Errorf("expected 2 frames, got %d", healthy.frameCount())
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{}

	// Never subscribed: removal is a no-op
	hub.UnsubscribeScore(c)
	hub.UnsubscribeLeaderboard(c)

	hub.SubscribeScore(c)
	hub.UnsubscribeScore(c)
	hub.UnsubscribeScore(c)

	if hub.ScoreSubscribers() != 0 {
		t.Errorf("expected 0 subscribers, got %d", hub.ScoreSubscribers())
	}
}

func TestStreamsAreIndependent(t *testing.T) {
	hub := NewHub()
	c := &fakeConn{}

	hub.SubscribeScore(c)
	hub.SubscribeLeaderboard(c)
	hub.UnsubscribeScore(c)

	if hub.LeaderboardSubscribers() != 1 {
		t.Error("removing from score stream touched the leaderboard stream")
	}

	hub.BroadcastLeaderboard([]models.LeaderboardEntry{})
	if c.frameCount() != 1 {
		t.Errorf("expected leaderboard frame after score unsubscribe, got %d", c.frameCount())
	}
}

func TestConcurrentSubscribeAndBroadcast(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := &fakeConn{}
			hub.SubscribeScore(c)
			hub.BroadcastScore(models.ScoreUpdate{UserID: "s1"})
			hub.UnsubscribeScore(c)
		}()
	}
	wg.Wait()

	if hub.ScoreSubscribers() != 0 {
		t.Errorf("expected 0 subscribers after churn, got %d", hub.ScoreSubscribers())
	}
}
