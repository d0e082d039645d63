package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/scribblestars/scribble-engine/internal/game"
	"github.com/scribblestars/scribble-engine/internal/models"
)

// Refresher periodically rebroadcasts the leaderboard so that viewers who
// connected between submissions still see a current ranking. Wire it to the
// instance-local hub, not the cross-instance bus: every instance runs its own
// refresher, and publishing the ticks would deliver one snapshot per instance
// to every viewer.
type Refresher struct {
	game        *game.Service
	broadcaster game.Broadcaster
	interval    time.Duration
}

// NewRefresher creates a new leaderboard refresh worker
func NewRefresher(svc *game.Service, broadcaster game.Broadcaster, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Refresher{
		game:        svc,
		broadcaster: broadcaster,
		interval:    interval,
	}
}

// Start begins the refresh worker in a goroutine
func (r *Refresher) Start(ctx context.Context) {
	go r.run(ctx)
}

// run is the main loop for the refresh worker
func (r *Refresher) run(ctx context.Context) {
	slog.Info("leaderboard refresh worker started", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("leaderboard refresh worker stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// refresh recomputes the leaderboard and pushes a snapshot
func (r *Refresher) refresh(ctx context.Context) {
	entries, err := r.game.Top(ctx, 0)
	if err != nil {
		slog.Error("failed to refresh leaderboard", "error", err)
		return
	}

	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}
	r.broadcaster.BroadcastLeaderboard(entries)
	slog.Debug("leaderboard refreshed", "entries", len(entries))
}
