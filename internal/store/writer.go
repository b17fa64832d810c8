package store

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/dkeye/roomrelay/internal/domain"
	"github.com/rs/zerolog/log"
)

const writeTimeout = 3 * time.Second

type op struct {
	name string
	room domain.RoomCode
	fn   func(ctx context.Context) error
}

// Writer applies store writes on its own goroutine. Enqueueing never blocks:
// with a full queue the write is dropped, so a slow database cannot hold up
// the relay.
type Writer struct {
	store   Store
	ops     chan op
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func NewWriter(s Store, queueSize int) *Writer {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Writer{store: s, ops: make(chan op, queueSize)}
}

func (w *Writer) enqueue(o op) {
	select {
	case w.ops <- o:
	default:
		w.dropped.Add(1)
		log.Warn().Str("module", "store").Str("op", o.name).Str("room", string(o.room)).Msg("write queue full, dropped")
	}
}

func (w *Writer) SaveRoom(meta domain.RoomMeta) {
	w.enqueue(op{"save_room", meta.Code, func(ctx context.Context) error {
		return w.store.SaveRoom(ctx, meta)
	}})
}

func (w *Writer) AddMember(room domain.RoomCode, identity domain.Identity) {
	w.enqueue(op{"add_member", room, func(ctx context.Context) error {
		return w.store.AddMember(ctx, room, identity)
	}})
}

func (w *Writer) RemoveMember(room domain.RoomCode, identity domain.Identity) {
	w.enqueue(op{"remove_member", room, func(ctx context.Context) error {
		return w.store.RemoveMember(ctx, room, identity)
	}})
}

func (w *Writer) AppendMessage(room domain.RoomCode, raw json.RawMessage) {
	w.enqueue(op{"append_message", room, func(ctx context.Context) error {
		return w.store.AppendMessage(ctx, room, raw)
	}})
}

// Dropped counts writes lost to a full queue.
func (w *Writer) Dropped() uint64 { return w.dropped.Load() }

// Failed counts writes the store rejected.
func (w *Writer) Failed() uint64 { return w.failed.Load() }

// Run applies queued writes until ctx is done, then drains what is queued.
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			log.Info().Str("module", "store").Msg("writer stopped")
			return nil
		case o := <-w.ops:
			w.apply(context.Background(), o)
		}
	}
}

func (w *Writer) drain() {
	for {
		select {
		case o := <-w.ops:
			w.apply(context.Background(), o)
		default:
			return
		}
	}
}

func (w *Writer) apply(parent context.Context, o op) {
	ctx, cancel := context.WithTimeout(parent, writeTimeout)
	defer cancel()
	if err := o.fn(ctx); err != nil {
		w.failed.Add(1)
		log.Error().Err(err).Str("module", "store").Str("op", o.name).Str("room", string(o.room)).Msg("write failed")
	}
}
