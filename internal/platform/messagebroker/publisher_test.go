package messagebroker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tmdbsync/golang_services/internal/core_domain"
)

// MockPublisher records publish calls; each call returns the handle configured with On.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, msg Message) PendingPublish {
	args := m.Called(ctx, msg)
	return args.Get(0).(PendingPublish)
}

func (m *MockPublisher) Close() {
	m.Called()
}

type resolvedPublish struct{ err error }

func (r resolvedPublish) Wait(context.Context) error { return r.err }

// blockingPublish never resolves on its own.
type blockingPublish struct{}

func (blockingPublish) Wait(ctx context.Context) error { <-ctx.Done(); return ctx.Err() }

func TestSubmitAll_IssuesInOrderWithoutWaiting(t *testing.T) {
	pub := new(MockPublisher)
	msgs := []Message{
		{Subject: "detail", Data: []byte("a"), ID: "1"},
		{Subject: "detail", Data: []byte("b"), ID: "2"},
		{Subject: "detail", Data: []byte("c"), ID: "3"},
	}
	for _, m := range msgs {
		pub.On("Publish", mock.Anything, m).Return(blockingPublish{}).Once()
	}

	pending := SubmitAll(context.Background(), pub, msgs)

	require.Len(t, pending, 3)
	pub.AssertExpectations(t)
	var order []string
	for _, c := range pub.Calls {
		order = append(order, c.Arguments.Get(1).(Message).ID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, order)
}

func TestAwaitAll_CountsFailures(t *testing.T) {
	pending := []PendingPublish{
		resolvedPublish{},
		resolvedPublish{err: errors.New("nack")},
		resolvedPublish{},
		Failed(core_domain.Wrap(core_domain.ErrPublish, "window", nil)),
	}
	res := AwaitAll(context.Background(), pending)
	assert.Equal(t, Result{Published: 2, Failed: 2}, res)
}

func TestAwaitAll_UnresolvedAtDeadlineIsFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := AwaitAll(ctx, []PendingPublish{resolvedPublish{}, blockingPublish{}, blockingPublish{}})
	assert.Equal(t, Result{Published: 1, Failed: 2}, res)
}

func TestAwaitAll_Empty(t *testing.T) {
	assert.Equal(t, Result{}, AwaitAll(context.Background(), nil))
}

type fakeFuture struct {
	ok  chan *jetstream.PubAck
	err chan error
}

func newFakeFuture() *fakeFuture {
	return &fakeFuture{ok: make(chan *jetstream.PubAck, 1), err: make(chan error, 1)}
}

func (f *fakeFuture) Ok() <-chan *jetstream.PubAck { return f.ok }
func (f *fakeFuture) Err() <-chan error            { return f.err }
func (f *fakeFuture) Msg() *nats.Msg               { return nil }

func TestPubAckPending_Wait(t *testing.T) {
	t.Run("Ack", func(t *testing.T) {
		fut := newFakeFuture()
		fut.ok <- &jetstream.PubAck{Stream: "TMDB", Sequence: 7}
		assert.NoError(t, pubAckPending{fut: fut}.Wait(context.Background()))
	})

	t.Run("Nack", func(t *testing.T) {
		fut := newFakeFuture()
		fut.err <- errors.New("no responders")
		err := pubAckPending{fut: fut}.Wait(context.Background())
		require.Error(t, err)
		assert.True(t, errors.Is(err, core_domain.ErrPublish))
	})

	t.Run("ContextDone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := pubAckPending{fut: newFakeFuture()}.Wait(ctx)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core_domain.ErrPublish))
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("AckBeforeExpiredContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		for i := 0; i < 100; i++ {
			fut := newFakeFuture()
			fut.ok <- &jetstream.PubAck{Stream: "TMDB", Sequence: uint64(i)}
			assert.NoError(t, pubAckPending{fut: fut}.Wait(ctx), "iteration %d", i)
		}
	})

	t.Run("NackBeforeExpiredContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		fut := newFakeFuture()
		fut.err <- errors.New("wrong last sequence")
		err := pubAckPending{fut: fut}.Wait(ctx)
		require.Error(t, err)
		assert.False(t, errors.Is(err, context.Canceled))
	})
}
