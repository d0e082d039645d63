package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/scribblestars/scribble-engine/internal/models"
)

// Redis channels carrying the two broadcast streams between instances
const (
	scoreChannel       = "scribble:score_updates"
	leaderboardChannel = "scribble:leaderboard"
)

const publishTimeout = 5 * time.Second

// Bus relays broadcast events through Redis pub/sub so that every running
// instance fans them out to its own websocket subscribers. Publishing
// delivers back to the local instance too; the hub is only ever fed from the
// forwarder.
type Bus struct {
	rdb *redis.Client
	hub *Hub
}

// NewBus connects to Redis and wires the bus to the local hub
func NewBus(address, password string, db int, hub *Hub) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        address,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Bus{rdb: rdb, hub: hub}, nil
}

// Start subscribes to both channels and forwards incoming events into the
// local hub until ctx is cancelled
func (b *Bus) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, scoreChannel, leaderboardChannel)

	// Confirm the subscription is live before anything is published
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go func() {
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				sub.Close()
				return
			case msg, ok := <-ch:
				if !ok || msg == nil {
					sub.Close()
					return
				}
				b.forward(msg.Channel, []byte(msg.Payload))
			}
		}
	}()

	slog.Info("realtime bus started", "channels", []string{scoreChannel, leaderboardChannel})
	return nil
}

func (b *Bus) forward(channel string, payload []byte) {
	switch channel {
	case scoreChannel:
		var update models.ScoreUpdate
		if err := json.Unmarshal(payload, &update); err != nil {
			slog.Warn("bad score payload on bus", "error", err)
			return
		}
		b.hub.BroadcastScore(update)
	case leaderboardChannel:
		var snapshot models.LeaderboardSnapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			slog.Warn("bad leaderboard payload on bus", "error", err)
			return
		}
		b.hub.BroadcastLeaderboard(snapshot.Top5)
	}
}

// BroadcastScore publishes a score update to every instance. If the publish
// fails the local hub still delivers, so viewers on this instance stay
// current.
func (b *Bus) BroadcastScore(update models.ScoreUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		slog.Error("failed to marshal score update", "error", err)
		return
	}
	if err := b.publish(scoreChannel, payload); err != nil {
		slog.Warn("score publish failed, delivering locally", "error", err)
		b.hub.BroadcastScore(update)
	}
}

// BroadcastLeaderboard publishes a leaderboard snapshot to every instance
func (b *Bus) BroadcastLeaderboard(entries []models.LeaderboardEntry) {
	payload, err := json.Marshal(models.LeaderboardSnapshot{Top5: entries})
	if err != nil {
		slog.Error("failed to marshal leaderboard snapshot", "error", err)
		return
	}
	if err := b.publish(leaderboardChannel, payload); err != nil {
		slog.Warn("leaderboard publish failed, delivering locally", "error", err)
		b.hub.BroadcastLeaderboard(entries)
	}
}

func (b *Bus) publish(channel string, payload []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return b.rdb.Publish(ctx, channel, payload).Err()
}

// Close closes the Redis connection
func (b *Bus) Close() error {
	return b.rdb.Close()
}
