package returns

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/aurelia-jewels/aurelia-backend/pkg/errors"
)

const returnNumberSequence = "return_number"

// Sequencer hands out a per-day monotonically increasing counter.
type Sequencer interface {
	DailySequence(ctx context.Context, name string, at time.Time) (int64, error)
}

// NumberAllocator builds RET-YYYYMMDD-NNNNNN identifiers. Numbers are never
// reused, so a sequencer failure is returned instead of falling back to
// random digits.
type NumberAllocator struct {
	seq Sequencer
	now func() time.Time
}

func NewNumberAllocator(seq Sequencer) (*NumberAllocator, error) {
	if seq == nil {
		return nil, fmt.Errorf("sequencer required")
	}
	return &NumberAllocator{seq: seq, now: time.Now}, nil
}

func (a *NumberAllocator) Next(ctx context.Context) (string, error) {
	at := a.now().UTC()
	n, err := a.seq.DailySequence(ctx, returnNumberSequence, at)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate return number")
	}
	return FormatReturnNumber(at, n), nil
}

// FormatReturnNumber renders a return number for the given day and sequence.
func FormatReturnNumber(at time.Time, seq int64) string {
	return fmt.Sprintf("RET-%s-%06d", at.UTC().Format("20060102"), seq)
}
