package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ClaudioCeppi83/albion-parchis/internal/parchis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

func TestOpenPublisherWithoutURL(t *testing.T) {
	p, err := OpenPublisher(context.Background(), "")
	require.NoError(t, err)
	assert.NoError(t, p.Publish(context.Background(), GameEventsMessage{GameID: "LUDO"}))
	assert.NoError(t, p.Close())
}

func TestNewRedisPublisherBadURL(t *testing.T) {
	_, err := NewRedisPublisher(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestRedisPublisher(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	url, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	pub, err := NewRedisPublisher(ctx, url)
	require.NoError(t, err)
	defer pub.Close()

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	defer client.Close()

	sub := client.Subscribe(ctx, GameChannel("LUDO"))
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	events := []parchis.Event{{ID: "ev-1", Type: parchis.EventDiceRolled, PlayerID: "p1"}}
	require.NoError(t, pub.Publish(ctx, newEventsMessage("LUDO", events, nil)))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "parchis:games:LUDO", msg.Channel)

	var got GameEventsMessage
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.Equal(t, "LUDO", got.GameID)
	require.Len(t, got.Events, 1)
	assert.Equal(t, parchis.EventDiceRolled, got.Events[0].Type)
}
