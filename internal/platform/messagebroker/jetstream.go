package messagebroker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/tmdbsync/golang_services/internal/core_domain"
)

// JetStreamPublisher publishes asynchronously to a JetStream stream. Message order is
// preserved per subject by the stream; confirmations may complete in any order.
type JetStreamPublisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	stream string
	logger *slog.Logger
}

// JetStreamOptions configures NewJetStreamPublisher.
type JetStreamOptions struct {
	URL        string
	ClientName string
	// Stream, when set, is sent as the expected stream so a subject bound to no stream
	// (or the wrong one) fails the publish instead of silently going nowhere.
	Stream     string
	MaxPending int
}

// NewJetStreamPublisher connects to NATS and sets up a JetStream context.
func NewJetStreamPublisher(opts JetStreamOptions, logger *slog.Logger) (*JetStreamPublisher, error) {
	logger = logger.With("component", "jetstream_publisher")

	nc, err := nats.Connect(opts.URL,
		nats.Name(opts.ClientName),
		nats.Timeout(5*time.Second),
		nats.PingInterval(20*time.Second),
		nats.MaxPingsOutstanding(3),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	maxPending := opts.MaxPending
	if maxPending <= 0 {
		maxPending = 4096
	}
	js, err := jetstream.New(nc, jetstream.WithPublishAsyncMaxPending(maxPending))
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &JetStreamPublisher{conn: nc, js: js, stream: opts.Stream, logger: logger}, nil
}

// Publish issues msg asynchronously. When the async window is full it waits for the
// outstanding publishes to complete and issues msg once more.
func (p *JetStreamPublisher) Publish(ctx context.Context, msg Message) PendingPublish {
	var opts []jetstream.PublishOpt
	if msg.ID != "" {
		opts = append(opts, jetstream.WithMsgID(msg.ID))
	}
	if p.stream != "" {
		opts = append(opts, jetstream.WithExpectStream(p.stream))
	}

	fut, err := p.js.PublishAsync(msg.Subject, msg.Data, opts...)
	if errors.Is(err, jetstream.ErrTooManyStalledMsgs) {
		select {
		case <-p.js.PublishAsyncComplete():
		case <-ctx.Done():
			return Failed(core_domain.Wrap(core_domain.ErrPublish, "waiting for publish window", ctx.Err()))
		}
		fut, err = p.js.PublishAsync(msg.Subject, msg.Data, opts...)
	}
	if err != nil {
		return Failed(core_domain.Wrap(core_domain.ErrPublish, "publishing to "+msg.Subject, err))
	}
	return pubAckPending{fut: fut}
}

// Close flushes buffered publishes and closes the connection.
func (p *JetStreamPublisher) Close() {
	if p.conn == nil || p.conn.IsClosed() {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("NATS drain failed", "error", err)
		p.conn.Close()
	}
}

type pubAckPending struct {
	fut jetstream.PubAckFuture
}

// Wait prefers a resolved future over an expired ctx, so an ack that arrived before the
// deadline is never counted as a failure.
func (h pubAckPending) Wait(ctx context.Context) error {
	select {
	case <-h.fut.Ok():
		return nil
	case err := <-h.fut.Err():
		return core_domain.Wrap(core_domain.ErrPublish, "broker rejected message", err)
	default:
	}

	select {
	case <-h.fut.Ok():
		return nil
	case err := <-h.fut.Err():
		return core_domain.Wrap(core_domain.ErrPublish, "broker rejected message", err)
	case <-ctx.Done():
		return core_domain.Wrap(core_domain.ErrPublish, "awaiting publish ack", ctx.Err())
	}
}
