package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPublisherSendsToRedisChannel(t *testing.T) {
	mini, err := miniredis.Run()
	require.NoError(t, err)
	defer mini.Close()

	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub := client.Subscribe(ctx, "gema:test:events")
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	publisher := NewPublisher(client, nil, "gema:test", zerolog.Nop())
	require.NoError(t, publisher.Publish(ctx, Event{Type: TypeAssignmentAutoSubmitted, AssignmentID: 4, StudentID: 9}))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	require.Equal(t, TypeAssignmentAutoSubmitted, event.Type)
	require.Equal(t, uint(4), event.AssignmentID)
	require.NotEmpty(t, event.ID)
	require.False(t, event.OccurredAt.IsZero())
}

func TestPublisherWithoutTransportsIsNoop(t *testing.T) {
	publisher := NewPublisher(nil, nil, "", zerolog.Nop())
	require.NoError(t, publisher.Publish(context.Background(), Event{Type: TypeAssignmentGraded}))
	require.NoError(t, Nop{}.Publish(context.Background(), Event{}))
}
