package retrieval

import (
	"capture/internal"
	"capture/internal/receipt"
)

// Event is one delivery on a retrieval stream. Exactly one of Receipt and Err
// is set; errors are non-terminal, the stream keeps producing after them.
type Event struct {
	Receipt *receipt.Receipt
	Err     *internal.Error
}

// Stream is the result surface of every retrieval operation. The event
// channel closes exactly once when the operation completes, regardless of how
// many items or errors were delivered, so completion can always be awaited.
type Stream struct {
	events chan Event
}

func newStream() *Stream {
	return &Stream{events: make(chan Event)}
}

func (s *Stream) Events() <-chan Event { return s.events }

func (s *Stream) receipt(r *receipt.Receipt) { s.events <- Event{Receipt: r} }

func (s *Stream) error(err *internal.Error) { s.events <- Event{Err: err} }

func (s *Stream) close() { close(s.events) }

// Callbacks is the adapter shape for glue code that prefers handlers over
// channel reads. Any handler may be nil.
type Callbacks struct {
	OnReceipt  func(*receipt.Receipt)
	OnError    func(*internal.Error)
	OnComplete func()
}

// Drain consumes the stream to completion, dispatching each event. OnComplete
// fires exactly once, after the last event.
func (s *Stream) Drain(cb Callbacks) {
	for ev := range s.events {
		switch {
		case ev.Receipt != nil && cb.OnReceipt != nil:
			cb.OnReceipt(ev.Receipt)
		case ev.Err != nil && cb.OnError != nil:
			cb.OnError(ev.Err)
		}
	}
	if cb.OnComplete != nil {
		cb.OnComplete()
	}
}

// Collect drains the stream into slices, for tests and one-shot CLI use.
func (s *Stream) Collect() ([]*receipt.Receipt, []*internal.Error) {
	receipts := []*receipt.Receipt{}
	errs := []*internal.Error{}
	for ev := range s.events {
		if ev.Receipt != nil {
			receipts = append(receipts, ev.Receipt)
		}
		if ev.Err != nil {
			errs = append(errs, ev.Err)
		}
	}
	return receipts, errs
}
