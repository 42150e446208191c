package consumer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"MgvIndexer/internal/event"
	"MgvIndexer/internal/model"
	"MgvIndexer/internal/observability"
	"MgvIndexer/internal/state"
	"MgvIndexer/internal/store"
)

// Dispatcher decodes and applies one stream's events.
type Dispatcher interface {
	Stream() string
	Decode(data []byte) (event.Delivery, error)
	Apply(ctx context.Context, db *state.DB, d event.Delivery) error
	// EventType names the payload for logs and metrics.
	EventType(d event.Delivery) string
}

// Coordinator turns delivered batches into storage transactions. One batch
// is exactly one transaction: every event's effects plus the stream cursor
// advance commit together, so a crash either keeps or discards the whole
// batch and redelivery is filtered by the cursor.
type Coordinator struct {
	store   store.Store
	disp    Dispatcher
	log     zerolog.Logger
	metrics *observability.Metrics
	timeout time.Duration

	// barrier is set on streams that trail the core protocol stream.
	barrier *Barrier
	// watermark is advanced after commit on streams others trail.
	watermark *Watermark
}

type CoordinatorOption func(*Coordinator)

// WithBarrier makes the coordinator wait for the chain head before each
// batch.
func WithBarrier(b *Barrier) CoordinatorOption {
	return func(c *Coordinator) { c.barrier = b }
}

// WithWatermark advances w to the newest event timestamp after each commit.
func WithWatermark(w *Watermark) CoordinatorOption {
	return func(c *Coordinator) { c.watermark = w }
}

func NewCoordinator(s store.Store, disp Dispatcher, log zerolog.Logger, metrics *observability.Metrics, timeout time.Duration, opts ...CoordinatorOption) *Coordinator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Coordinator{
		store:   s,
		disp:    disp,
		log:     log.With().Str("stream", disp.Stream()).Logger(),
		metrics: metrics,
		timeout: timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleBatch processes one delivered batch. Any error is fatal for the
// stream: the transaction is rolled back and the caller must stop
// consuming instead of acking.
func (c *Coordinator) HandleBatch(ctx context.Context, msgs [][]byte) error {
	if len(msgs) == 0 {
		return nil
	}
	batchID := uuid.NewString()
	stream := c.disp.Stream()

	deliveries := make([]event.Delivery, 0, len(msgs))
	var newest time.Time
	for i, data := range msgs {
		d, err := c.disp.Decode(data)
		if err != nil {
			return fmt.Errorf("batch %s message %d: %w", batchID, i, err)
		}
		if d.DeliveryTime().After(newest) {
			newest = d.DeliveryTime()
		}
		deliveries = append(deliveries, d)
	}

	if c.barrier != nil {
		c.metrics.BarrierWaits.WithLabelValues(stream).Inc()
		waitStart := time.Now()
		if err := c.barrier.Wait(ctx, newest); err != nil {
			return fmt.Errorf("batch %s barrier: %w", batchID, err)
		}
		c.metrics.BarrierWaitTime.WithLabelValues(stream).Observe(time.Since(waitStart).Seconds())
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	var applied, skipped int
	var lastOffset uint64

	err := c.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		cursor := model.StreamState{ID: stream}
		haveCursor := true
		if err := tx.Get(ctx, model.TableStreamState, stream, &cursor); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			haveCursor = false
		}

		db := state.NewDB(tx, stream)
		for _, d := range deliveries {
			if haveCursor && d.DeliveryOffset() <= cursor.Offset {
				skipped++
				continue
			}
			if err := c.disp.Apply(ctx, db, d); err != nil {
				return fmt.Errorf("apply %s at offset %d: %w", c.disp.EventType(d), d.DeliveryOffset(), err)
			}
			applied++
			if d.IsUndo() {
				c.metrics.EventsUndone.WithLabelValues(stream, c.disp.EventType(d)).Inc()
			} else {
				c.metrics.EventsApplied.WithLabelValues(stream, c.disp.EventType(d)).Inc()
			}
			cursor.Offset = d.DeliveryOffset()
			haveCursor = true
		}

		cursor.ID = stream
		cursor.UpdatedAt = time.Now().UTC()
		lastOffset = cursor.Offset
		return tx.Upsert(ctx, model.TableStreamState, &cursor)
	})
	if err != nil {
		c.metrics.TxRollbacks.WithLabelValues(stream).Inc()
		c.metrics.StreamHalted.WithLabelValues(stream).Set(1)
		c.log.Error().Err(err).
			Str("batch_id", batchID).
			Int("events", len(deliveries)).
			Msg("batch failed, stream halting")
		return err
	}

	c.metrics.TxCommits.WithLabelValues(stream).Inc()
	c.metrics.BatchesHandled.WithLabelValues(stream).Inc()
	c.metrics.BatchSize.WithLabelValues(stream).Observe(float64(len(deliveries)))
	c.metrics.BatchDuration.WithLabelValues(stream).Observe(time.Since(start).Seconds())
	c.metrics.StreamOffset.WithLabelValues(stream).Set(float64(lastOffset))
	if skipped > 0 {
		c.metrics.EventsSkipped.WithLabelValues(stream).Add(float64(skipped))
	}

	if c.watermark != nil && !newest.IsZero() {
		c.watermark.Advance(newest)
	}

	c.log.Debug().
		Str("batch_id", batchID).
		Int("applied", applied).
		Int("skipped", skipped).
		Uint64("offset", lastOffset).
		Msg("batch committed")
	return nil
}

// typeName strips the package qualifier from a payload's %T name.
func typeName(v any) string {
	s := fmt.Sprintf("%T", v)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}
