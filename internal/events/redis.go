// internal/events/redis.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list the bot process pops lobby events from.
const DefaultQueueName = "smashbot_lobby_events"

// Type identifies a lobby event.
type Type string

const (
	MatchFound    Type = "match_found"
	MatchStarted  Type = "match_started"
	MatchTimedOut Type = "match_timed_out"
	MatchDeclined Type = "match_declined"
	RejectsPurged Type = "rejects_purged"
)

// LobbyEvent is what the presentation layer needs to post, edit or retract announcements.
type LobbyEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      Type      `json:"type"`
	GuildID   string    `json:"guild_id,omitempty"`
	LobbyID   int64     `json:"lobby_id,omitempty"`
	TierID    *int64    `json:"tier_id,omitempty"`
	Players   []string  `json:"players,omitempty"`
	Accepted  []string  `json:"accepted,omitempty"`
	Count     int       `json:"count,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// New stamps an event with a fresh id and the current time.
func New(typ Type) LobbyEvent {
	return LobbyEvent{
		ID:        uuid.New(),
		Type:      typ,
		Timestamp: time.Now().UnixMilli(),
	}
}

// RedisPublisher pushes lobby events onto a Redis list.
type RedisPublisher struct {
	rdb   *redis.Client
	queue string
}

// NewRedisPublisher wraps an existing client. An empty queue uses DefaultQueueName.
func NewRedisPublisher(rdb *redis.Client, queue string) *RedisPublisher {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &RedisPublisher{rdb: rdb, queue: queue}
}

// Connect creates a client for addr/db and checks it answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Publish serializes the event to JSON and pushes it to the queue.
func (p *RedisPublisher) Publish(ctx context.Context, ev LobbyEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal LobbyEvent: %w", err)
	}
	if err := p.rdb.RPush(ctx, p.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", p.queue, err)
	}
	return nil
}

// Pop blocks up to timeout for the next event. It returns (nil, nil) when the queue stayed empty.
func (p *RedisPublisher) Pop(ctx context.Context, timeout time.Duration) (*LobbyEvent, error) {
	res, err := p.rdb.BLPop(ctx, timeout, p.queue).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// res[0] is the queue name and res[1] the payload.
	var ev LobbyEvent
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return nil, fmt.Errorf("invalid lobby event: %w", err)
	}
	return &ev, nil
}
