package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/scribblestars/scribble-engine/internal/models"
)

// Conn is a transport-level realtime connection. Implementations must be
// safe for concurrent writes.
type Conn interface {
	// WriteText sends one text frame; an error means the connection is dead
	WriteText(data []byte) error

	// Close tears the connection down
	Close() error
}

// Hub owns the two broadcast streams: score updates and leaderboard
// snapshots. Subscriber sets are independent, membership is self-healing: a
// failed send removes the connection, and removing an absent connection is a
// no-op.
type Hub struct {
	mu        sync.Mutex
	scoreSubs map[Conn]struct{}
	boardSubs map[Conn]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		scoreSubs: make(map[Conn]struct{}),
		boardSubs: make(map[Conn]struct{}),
	}
}

// SubscribeScore registers a connection for score updates
func (h *Hub) SubscribeScore(c Conn) {
	h.mu.Lock()
	h.scoreSubs[c] = struct{}{}
	count := len(h.scoreSubs)
	h.mu.Unlock()
	slog.Info("score subscriber connected", "total", count)
}

// UnsubscribeScore removes a connection from the score stream
func (h *Hub) UnsubscribeScore(c Conn) {
	h.mu.Lock()
	_, present := h.scoreSubs[c]
	delete(h.scoreSubs, c)
	count := len(h.scoreSubs)
	h.mu.Unlock()
	if present {
		slog.Info("score subscriber removed", "total", count)
	}
}

// SubscribeLeaderboard registers a connection for leaderboard snapshots
func (h *Hub) SubscribeLeaderboard(c Conn) {
	h.mu.Lock()
	h.boardSubs[c] = struct{}{}
	count := len(h.boardSubs)
	h.mu.Unlock()
	slog.Info("leaderboard subscriber connected", "total", count)
}

// UnsubscribeLeaderboard removes a connection from the leaderboard stream
func (h *Hub) UnsubscribeLeaderboard(c Conn) {
	h.mu.Lock()
	_, present := h.boardSubs[c]
	delete(h.boardSubs, c)
	count := len(h.boardSubs)
	h.mu.Unlock()
	if present {
		slog.Info("leaderboard subscriber removed", "total", count)
	}
}

// ScoreSubscribers returns the current score subscriber count
func (h *Hub) ScoreSubscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.scoreSubs)
}

// LeaderboardSubscribers returns the current leaderboard subscriber count
func (h *Hub) LeaderboardSubscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.boardSubs)
}

// BroadcastScore fans a score update out to every score subscriber
func (h *Hub) BroadcastScore(update models.ScoreUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		slog.Error("failed to marshal score update", "error", err)
		return
	}
	h.broadcast(h.scoreSubs, payload, h.UnsubscribeScore)
}

// BroadcastLeaderboard fans a leaderboard snapshot out to every leaderboard
// subscriber
func (h *Hub) BroadcastLeaderboard(entries []models.LeaderboardEntry) {
	payload, err := json.Marshal(models.LeaderboardSnapshot{Top5: entries})
	if err != nil {
		slog.Error("failed to marshal leaderboard snapshot", "error", err)
		return
	}
	h.broadcast(h.boardSubs, payload, h.UnsubscribeLeaderboard)
}

// broadcast serializes once and delivers to a snapshot of the set. A failed
// send is an implicit disconnect: the connection is removed and closed, and
// delivery continues to the rest.
func (h *Hub) broadcast(set map[Conn]struct{}, payload []byte, unsubscribe func(Conn)) {
	h.mu.Lock()
	if len(set) == 0 {
		h.mu.Unlock()
		return
	}
	conns := make([]Conn, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteText(payload); err != nil {
			slog.Debug("dropping broken subscriber", "error", err)
			unsubscribe(c)
			c.Close()
		}
	}
}
