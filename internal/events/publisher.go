// Package events emits draft lifecycle notifications onto a JetStream
// stream. Publishing is best effort: the engine's state transitions are
// authoritative in the store, and a lost event never blocks or rolls back
// a transition.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Event types published on the draft stream, one per externally
// observable transition.
const (
	TypePhaseLocked         = "phase.locked"
	TypeCoinFlipResolved    = "coinflip.resolved"
	TypeAssignmentFinalized = "assignment.finalized"
	TypeDraftCompleted      = "draft.completed"
	TypeDraftVerified       = "draft.verified"
	TypePayoutCompleted     = "payout.completed"
	TypeRefundIssued        = "refund.issued"
)

// Publisher is the emit surface the sweep engine depends on.
type Publisher interface {
	Publish(ctx context.Context, eventType, draftID string, payload any) error
	Close() error
}

type JetStreamConfig struct {
	URL             string
	StreamName      string
	SubjectPrefix   string
	MaxReconnects   int
	ReconnectWait   time.Duration
	MaxAge          time.Duration
	MaxMsgs         int64
	Replicas        int
	DuplicateWindow time.Duration
}

func DefaultJetStreamConfig() JetStreamConfig {
	return JetStreamConfig{
		URL:             nats.DefaultURL,
		StreamName:      "DRAFT_EVENTS",
		SubjectPrefix:   "draft.events",
		MaxReconnects:   -1,
		ReconnectWait:   2 * time.Second,
		MaxAge:          7 * 24 * time.Hour,
		MaxMsgs:         -1,
		Replicas:        1,
		DuplicateWindow: 2 * time.Hour,
	}
}

type JetStreamPublisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	config JetStreamConfig
}

func NewJetStreamPublisher(cfg JetStreamConfig) (*JetStreamPublisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	p := &JetStreamPublisher{nc: nc, js: js, config: cfg}
	if err := p.ensureStream(context.Background()); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}
	return p, nil
}

func (p *JetStreamPublisher) ensureStream(ctx context.Context) error {
	sc := jetstream.StreamConfig{
		Name:        p.config.StreamName,
		Description: "Draft lifecycle event stream",
		Subjects:    []string{fmt.Sprintf("%s.>", p.config.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      p.config.MaxAge,
		MaxMsgs:     p.config.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    p.config.Replicas,
		Duplicates:  p.config.DuplicateWindow,
	}

	if _, err := p.js.Stream(ctx, p.config.StreamName); err != nil {
		if _, err = p.js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		log.Info().Str("stream", p.config.StreamName).Msg("created JetStream stream")
	}
	return nil
}

func (p *JetStreamPublisher) Publish(ctx context.Context, eventType, draftID string, payload any) error {
	subject := fmt.Sprintf("%s.%s", p.config.SubjectPrefix, eventType)
	eventID := uuid.NewString()

	env := map[string]any{
		"eventId":   eventID,
		"eventType": eventType,
		"draftId":   draftID,
		"timestamp": time.Now().UTC(),
		"payload":   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{eventType},
			"Draft-ID":   []string{draftID},
			"Event-ID":   []string{eventID},
		},
	},
		jetstream.WithMsgID(eventID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("draft_id", draftID).
		Uint64("sequence", ack.Sequence).
		Msg("published draft event")
	return nil
}

func (p *JetStreamPublisher) Close() error {
	if p.nc != nil {
		p.nc.Close()
	}
	return nil
}

// Noop satisfies Publisher when no broker is configured.
type Noop struct{}

func (Noop) Publish(ctx context.Context, eventType, draftID string, payload any) error { return nil }
func (Noop) Close() error                                                              { return nil }

// Emit publishes and logs on failure instead of propagating it. State
// transitions never fail because the broker is down.
func Emit(ctx context.Context, p Publisher, eventType, draftID string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, eventType, draftID, payload); err != nil {
		log.Warn().Err(err).
			Str("event_type", eventType).
			Str("draft_id", draftID).
			Msg("failed to publish draft event")
	}
}
