package consumer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"MgvIndexer/internal/model"
	"MgvIndexer/internal/store"
)

// Watermark is an in-process high-water timestamp with change notification.
// The core stream coordinator advances it after each commit; trailing
// streams wait on it to avoid polling the store in the common case.
type Watermark struct {
	mu sync.Mutex
	t  time.Time
	ch chan struct{}
}

func NewWatermark() *Watermark {
	return &Watermark{ch: make(chan struct{})}
}

// Advance raises the watermark and wakes all waiters. Regressions are
// ignored; the watermark only moves forward.
func (w *Watermark) Advance(t time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !t.After(w.t) {
		return
	}
	w.t = t
	close(w.ch)
	w.ch = make(chan struct{})
}

// Current returns the watermark and a channel closed on its next advance.
func (w *Watermark) Current() (time.Time, <-chan struct{}) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.t, w.ch
}

// Barrier blocks a trailing stream until the chain's committed transaction
// head reaches a target timestamp. The in-process watermark gives prompt
// wakeup; the durable chain head read is authoritative, so the barrier also
// works when the leading stream is consumed by another process.
type Barrier struct {
	store    store.Store
	chain    model.ChainID
	upstream *Watermark
	poll     time.Duration
	log      zerolog.Logger
}

func NewBarrier(s store.Store, chain model.ChainID, upstream *Watermark, poll time.Duration, log zerolog.Logger) *Barrier {
	if poll <= 0 {
		poll = time.Second
	}
	return &Barrier{store: s, chain: chain, upstream: upstream, poll: poll, log: log}
}

// Wait returns once a committed transaction with timestamp at or after t is
// visible, or when ctx is done.
func (b *Barrier) Wait(ctx context.Context, t time.Time) error {
	waited := false
	for {
		reached, err := b.headReached(ctx, t)
		if err != nil {
			return err
		}
		if reached {
			if waited {
				b.log.Debug().Time("target", t).Msg("chain head caught up")
			}
			return nil
		}
		if !waited {
			b.log.Debug().Time("target", t).Msg("waiting for chain head")
			waited = true
		}

		_, changed := b.upstream.Current()
		select {
		case <-changed:
		case <-time.After(b.poll):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Barrier) headReached(ctx context.Context, t time.Time) (bool, error) {
	var reached bool
	err := b.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var head model.ChainHead
		err := tx.Get(ctx, model.TableChainHeads, model.ChainHeadID(b.chain), &head)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		reached = !head.Time.Before(t)
		return nil
	})
	return reached, err
}
