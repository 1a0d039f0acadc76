// Package events broadcasts assessment lifecycle events to other services.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Lifecycle event types.
const (
	TypeAssignmentStarted       = "assignment.started"
	TypeAssignmentSubmitted     = "assignment.submitted"
	TypeAssignmentAutoSubmitted = "assignment.auto_submitted"
	TypeAssignmentGraded        = "assignment.graded"
)

// Event is the JSON envelope published for every lifecycle change.
type Event struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	AssignmentID  uint                   `json:"assignment_id"`
	AssessmentID  uint                   `json:"assessment_id"`
	StudentID     uint                   `json:"student_id"`
	Data          map[string]interface{} `json:"data,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// Publisher emits lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type brokerPublisher struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
}

// NewPublisher fans events out to redis pub/sub and NATS; either transport may be nil.
func NewPublisher(redisClient *redis.Client, natsConn *nats.Conn, channelBase string, logger zerolog.Logger) Publisher {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":events"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".events"
	}

	return &brokerPublisher{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *brokerPublisher) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	if p.redis != nil && p.redisChannel != "" {
		if err := p.redis.Publish(ctx, p.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if p.nats != nil && p.natsSubject != "" {
		if err := p.nats.Publish(p.natsSubject+"."+event.Type, payload); err != nil {
			return err
		}
	}

	p.logger.Debug().Str("event_type", event.Type).Uint("assignment_id", event.AssignmentID).Msg("event published")
	return nil
}

// Nop discards every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
