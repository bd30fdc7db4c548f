package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/isdb-fas/fasdesk/internal/model"
	"github.com/isdb-fas/fasdesk/pkg/logger"
	"github.com/isdb-fas/fasdesk/pkg/metrics"
)

const (
	// StreamName is the name of the dashboard events stream.
	StreamName = "FAS_EVENTS"

	// SubjectPrefix is the prefix for all event subjects.
	SubjectPrefix = "fas"
)

// StreamConfig bounds the events stream.
type StreamConfig struct {
	MaxAge   time.Duration
	MaxBytes int64
	Replicas int
}

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
	cfg    StreamConfig
	logger *logger.Logger
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client, cfg StreamConfig, log *logger.Logger) *StreamManager {
	if cfg.Replicas <= 0 {
		cfg.Replicas = 1
	}
	return &StreamManager{client: client, cfg: cfg, logger: log}
}

// EnsureStream creates the events stream if it does not exist yet.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{SubjectPrefix + ".>"},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      m.cfg.MaxAge,
		MaxBytes:    m.cfg.MaxBytes,
		Storage:     jetstream.FileStorage,
		Replicas:    m.cfg.Replicas,
		Compression: jetstream.S2Compression,
		Description: "FAS dashboard conversation events",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	m.logger.Info("created NATS stream", zap.String("stream", StreamName))
	return nil
}

// token makes s safe to use as one subject token.
func token(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}

// EventSubject returns the subject an event is published on:
// fas.<session>.<category>.<event type>.
func EventSubject(ev model.Event) string {
	category := "none"
	if ev.Category != "" {
		category = ev.Category.Slug()
	}
	return fmt.Sprintf("%s.%s.%s.%s", SubjectPrefix, token(ev.SessionID), category, token(string(ev.Type)))
}

// SessionFilter matches every event of one session.
func SessionFilter(sessionID string) string {
	return fmt.Sprintf("%s.%s.>", SubjectPrefix, token(sessionID))
}

// PublishEvent publishes a store event without waiting for the acknowledgement.
func (m *StreamManager) PublishEvent(ctx context.Context, ev model.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := m.client.JetStream().PublishAsync(EventSubject(ev), data); err != nil {
		metrics.EventsPublished.WithLabelValues(string(ev.Type), "error").Inc()
		return fmt.Errorf("failed to publish event: %w", err)
	}
	metrics.EventsPublished.WithLabelValues(string(ev.Type), "success").Inc()
	return nil
}

// History returns up to limit events of a session, oldest first, starting after the
// given stream sequence.
func (m *StreamManager) History(ctx context.Context, sessionID string, afterSequence uint64, limit int) ([]model.Event, uint64, error) {
	js := m.client.JetStream()

	consumerConfig := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{SessionFilter(sessionID)},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	}
	if afterSequence > 0 {
		consumerConfig.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		consumerConfig.OptStartSeq = afterSequence + 1
	}

	consumer, err := js.OrderedConsumer(ctx, StreamName, consumerConfig)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create consumer: %w", err)
	}

	batch, err := consumer.Fetch(limit, jetstream.FetchMaxWait(2*time.Second))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch events: %w", err)
	}

	var events []model.Event
	lastSequence := afterSequence
	for msg := range batch.Messages() {
		var ev model.Event
		if err := json.Unmarshal(msg.Data(), &ev); err != nil {
			m.logger.Warn("skipping malformed event", zap.String("subject", msg.Subject()), zap.Error(err))
			continue
		}
		if meta, err := msg.Metadata(); err == nil {
			lastSequence = meta.Sequence.Stream
		}
		events = append(events, ev)
	}

	if err := batch.Error(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, 0, fmt.Errorf("batch error: %w", err)
	}
	return events, lastSequence, nil
}

// RecordStreamInfo updates the stream size gauge.
func (m *StreamManager) RecordStreamInfo(ctx context.Context) error {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("failed to look up stream: %w", err)
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stream info: %w", err)
	}
	metrics.NATSStreamMessages.WithLabelValues(StreamName).Set(float64(info.State.Msgs))
	return nil
}
