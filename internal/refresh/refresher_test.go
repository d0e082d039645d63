package refresh

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/scribblestars/scribble-engine/internal/game"
	"github.com/scribblestars/scribble-engine/internal/models"
	"github.com/scribblestars/scribble-engine/internal/storage"
)

type recordingBroadcaster struct {
	mu        sync.Mutex
	snapshots [][]models.LeaderboardEntry
}

func (b *recordingBroadcaster) BroadcastScore(update models.ScoreUpdate) {}

func (b *recordingBroadcaster) BroadcastLeaderboard(entries []models.LeaderboardEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = append(b.snapshots, entries)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.snapshots)
}

func TestRefresherBroadcastsPeriodically(t *testing.T) {
	store := storage.NewMemoryStore()
	svc := game.NewService(store, nil, nil, nil, game.Config{})
	broadcaster := &recordingBroadcaster{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRefresher(svc, broadcaster, 5*time.Millisecond)
	r.Start(ctx)

	deadline := time.After(2 * time.Second)
	for broadcaster.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 broadcasts, got %d", broadcaster.count())
		case <-time.After(5 * time.Millisecond):
		}
	}

	// An empty store still broadcasts an empty, non-nil snapshot
	broadcaster.mu.Lock()
	first := broadcaster.snapshots[0]
	broadcaster.mu.Unlock()
	if first == nil {
		t.Error("expected an empty snapshot, got nil")
	}

	cancel()
	stopped := broadcaster.count()
	time.Sleep(25 * time.Millisecond)
	if broadcaster.count() > stopped+1 {
		t.Errorf("refresher kept broadcasting after cancel: %d then %d", stopped, broadcaster.count())
	}
}
