package messagebroker

import (
	"context"
)

// Message is one payload bound for a subject. ID, when set, is used by the broker for
// duplicate detection.
type Message struct {
	Subject string
	Data    []byte
	ID      string
}

// PendingPublish is the handle of a publish call that has been issued but not yet confirmed.
type PendingPublish interface {
	// Wait blocks until the broker confirms or rejects the message, or ctx is done.
	Wait(ctx context.Context) error
}

// Publisher issues publishes without waiting for their confirmation.
// Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, msg Message) PendingPublish
	Close()
}

// Result tallies a drained batch.
type Result struct {
	Published int
	Failed    int
}

// SubmitAll issues every message in order and returns the handles in the same order.
// Nothing is awaited.
func SubmitAll(ctx context.Context, p Publisher, msgs []Message) []PendingPublish {
	pending := make([]PendingPublish, 0, len(msgs))
	for _, msg := range msgs {
		pending = append(pending, p.Publish(ctx, msg))
	}
	return pending
}

// AwaitAll resolves every handle. A handle that fails, or is still unresolved when ctx
// is done, counts as a failure. Every handle is visited exactly once.
func AwaitAll(ctx context.Context, pending []PendingPublish) Result {
	var res Result
	for _, h := range pending {
		if err := h.Wait(ctx); err != nil {
			res.Failed++
			continue
		}
		res.Published++
	}
	return res
}

// failedPublish is a handle for a publish rejected before it reached the broker.
type failedPublish struct {
	err error
}

func (f failedPublish) Wait(context.Context) error { return f.err }

// Failed returns a handle that resolves immediately with err.
func Failed(err error) PendingPublish {
	return failedPublish{err: err}
}
