// Package ingestion pulls event batches from NATS JetStream and hands them
// to the per-stream batch coordinators. Each stream has one durable pull
// consumer; messages are acked only after the coordinator commits, so an
// unacked batch is redelivered and filtered by the stream cursor.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"

	"MgvIndexer/internal/observability"
)

// StreamConfig names one upstream JetStream source.
type StreamConfig struct {
	// Stream is the logical stream id used for cursors and metrics.
	Stream string
	// JetStreamName and Subject locate the upstream messages.
	JetStreamName string
	Subject       string
	// Durable names the pull consumer.
	Durable string
}

// BatchHandler processes one delivered batch atomically. A non-nil error
// halts the stream; the batch stays unacked.
type BatchHandler func(ctx context.Context, msgs [][]byte) error

type Subscriber struct {
	js        jetstream.JetStream
	log       zerolog.Logger
	metrics   *observability.Metrics
	batchSize int
	maxWait   time.Duration
}

func NewSubscriber(js jetstream.JetStream, log zerolog.Logger, metrics *observability.Metrics, batchSize int, maxWait time.Duration) *Subscriber {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxWait <= 0 {
		maxWait = 5 * time.Second
	}
	return &Subscriber{js: js, log: log, metrics: metrics, batchSize: batchSize, maxWait: maxWait}
}

// Run consumes cfg's stream until ctx is done or the handler fails. Events
// are processed strictly in stream order; MaxAckPending 1 batch keeps the
// server from racing redeliveries past the cursor.
func (s *Subscriber) Run(ctx context.Context, cfg StreamConfig, handle BatchHandler) error {
	consumer, err := s.js.CreateOrUpdateConsumer(ctx, cfg.JetStreamName, jetstream.ConsumerConfig{
		Durable:       cfg.Durable,
		FilterSubject: cfg.Subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       time.Minute,
		MaxAckPending: s.batchSize,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", cfg.Durable, err)
	}
	s.log.Info().
		Str("stream", cfg.Stream).
		Str("subject", cfg.Subject).
		Str("durable", cfg.Durable).
		Msg("consuming")

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := consumer.Fetch(s.batchSize, jetstream.FetchMaxWait(s.maxWait))
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			s.metrics.FetchErrors.WithLabelValues(cfg.Stream).Inc()
			s.log.Warn().Err(err).Str("stream", cfg.Stream).Msg("fetch failed, retrying")
			continue
		}

		var msgs []jetstream.Msg
		for msg := range batch.Messages() {
			msgs = append(msgs, msg)
		}
		if err := batch.Error(); err != nil && !errors.Is(err, nats.ErrTimeout) {
			s.metrics.FetchErrors.WithLabelValues(cfg.Stream).Inc()
			s.log.Warn().Err(err).Str("stream", cfg.Stream).Msg("fetch error, retrying")
		}
		if len(msgs) == 0 {
			continue
		}

		data := make([][]byte, len(msgs))
		for i, msg := range msgs {
			data[i] = msg.Data()
		}

		if err := handle(ctx, data); err != nil {
			// The batch stays unacked; on restart it is redelivered and
			// the stream cursor filters what already committed.
			return fmt.Errorf("stream %s: %w", cfg.Stream, err)
		}
		for _, msg := range msgs {
			if err := msg.Ack(); err != nil {
				s.log.Warn().Err(err).Str("stream", cfg.Stream).Msg("ack failed")
			}
		}
	}
}

// Connect establishes a NATS connection and returns a JetStream context.
func Connect(url string, log zerolog.Logger) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}
	return nc, js, nil
}
