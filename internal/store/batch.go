package store

import (
	"context"

	"github.com/rs/zerolog/log"

	"flatcodec/internal/event"
	"flatcodec/internal/model"
)

// DefaultBatchSize is the number of lines buffered before a flush.
const DefaultBatchSize = 500

// Inserter is the write side of Store.
type Inserter interface {
	Insert(ctx context.Context, source string, lines []*model.Line) (int64, error)
}

// BatchListener stores parsed lines in batches. Error events are passed on
// to Next. Listener callbacks cannot fail, so the first insert error is kept
// and later lines are dropped; check Err after the parse.
type BatchListener struct {
	ctx    context.Context
	dst    Inserter
	source string
	size   int
	Next   event.Listener

	pending []*model.Line
	stored  int64
	err     error
}

// NewBatchListener buffers lines of source for dst. A size below one
// selects DefaultBatchSize.
func NewBatchListener(ctx context.Context, dst Inserter, source string, size int) *BatchListener {
	if size < 1 {
		size = DefaultBatchSize
	}
	return &BatchListener{ctx: ctx, dst: dst, source: source, size: size, Next: event.Discard}
}

func (b *BatchListener) LineParsed(e event.LineParsedEvent) {
	if b.err != nil {
		return
	}
	b.pending = append(b.pending, e.Line)
	if len(b.pending) >= b.size {
		b.err = b.Flush()
	}
}

func (b *BatchListener) ErrorOccurred(e event.ErrorEvent) { b.Next.ErrorOccurred(e) }

// Flush writes the buffered lines.
func (b *BatchListener) Flush() error {
	if b.err != nil || len(b.pending) == 0 {
		return b.err
	}
	n, err := b.dst.Insert(b.ctx, b.source, b.pending)
	b.stored += n
	b.pending = nil
	if err != nil {
		log.Error().Err(err).Str("source", b.source).Msg("Batch insert failed")
		b.err = err
	}
	return err
}

// Stored returns the number of lines written so far.
func (b *BatchListener) Stored() int64 { return b.stored }

// Err returns the first insert error.
func (b *BatchListener) Err() error { return b.err }
