package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "parchis:games:"

// Publisher fans game events out beyond this process.
type Publisher interface {
	Publish(ctx context.Context, msg GameEventsMessage) error
	Close() error
}

func GameChannel(gameID string) string {
	return channelPrefix + gameID
}

// RedisPublisher publishes every batch of game events as JSON on the
// game's channel.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(ctx context.Context, redisURL string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisPublisher{client: client}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, msg GameEventsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal events for %s: %w", msg.GameID, err)
	}
	if err := p.client.Publish(ctx, GameChannel(msg.GameID), data).Err(); err != nil {
		return fmt.Errorf("publish events for %s: %w", msg.GameID, err)
	}
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, GameEventsMessage) error { return nil }
func (nopPublisher) Close() error                                     { return nil }

// OpenPublisher returns a Redis publisher when redisURL is set and a no-op
// one otherwise.
func OpenPublisher(ctx context.Context, redisURL string) (Publisher, error) {
	if redisURL == "" {
		return nopPublisher{}, nil
	}
	p, err := NewRedisPublisher(ctx, redisURL)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func newEventsMessage(gameID string, events []parchis.Event, snapshot *parchis.Snapshot) GameEventsMessage {
	return GameEventsMessage{GameID: gameID, Events: events, Game: snapshot}
}
