package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tmdbsync/golang_services/internal/core_domain"
	"github.com/tmdbsync/golang_services/internal/detail_fanout_service/domain"
	"github.com/tmdbsync/golang_services/internal/platform/messagebroker"
	"github.com/tmdbsync/golang_services/internal/platform/recordcodec"
)

// Fetcher returns the body of an authenticated GET.
type Fetcher interface {
	FetchString(ctx context.Context, url string) (string, error)
}

// EncoderSource yields the detail topic encoder. *recordcodec.SchemaSource implements it.
type EncoderSource interface {
	Encoder() (*recordcodec.Encoder, error)
}

// Summary is the per-request tally returned to the caller. FailureCount only counts
// publishes the broker did not confirm.
type Summary struct {
	RequestCount int
	MessageCount int
	FailureCount int
}

func (s Summary) String() string {
	return fmt.Sprintf("API Requests: %d, Messages Sent: %d, Failed Messages: %d", s.RequestCount, s.MessageCount, s.FailureCount)
}

type ServiceConfig struct {
	Subject string
	RunID   uuid.UUID
	// AckTimeout bounds the drain of one request's publishes, within the request deadline.
	AckTimeout time.Duration
}

// Service fans one DetailRequest out to every configured endpoint of its type and
// publishes one DetailRecord per endpoint.
type Service struct {
	cfg       ServiceConfig
	catalog   *domain.EndpointCatalog
	fetcher   Fetcher
	schema    EncoderSource
	publisher messagebroker.Publisher
	recorder  core_domain.OutcomeRecorder
	logger    *slog.Logger
}

func NewService(cfg ServiceConfig, catalog *domain.EndpointCatalog, fetcher Fetcher, schema EncoderSource, publisher messagebroker.Publisher, recorder core_domain.OutcomeRecorder, logger *slog.Logger) *Service {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = time.Minute
	}
	if cfg.RunID == uuid.Nil {
		cfg.RunID = uuid.New()
	}
	logger = logger.With("component", "detail_fanout")
	if recorder == nil {
		recorder = core_domain.LogOutcomeRecorder{Logger: logger}
	}
	return &Service{
		cfg:       cfg,
		catalog:   catalog,
		fetcher:   fetcher,
		schema:    schema,
		publisher: publisher,
		recorder:  recorder,
		logger:    logger,
	}
}

// Export runs one request through fetch, encode and publish. A failure before the
// publish stage returns an error and publishes nothing. Unknown types are ErrValidation.
func (s *Service) Export(ctx context.Context, req domain.DetailRequest) (Summary, error) {
	logger := s.logger.With("entity_id", req.ID, "entity_type", req.Type, "export_date", req.ExportDate)

	endpoints, ok := s.catalog.Lookup(req.Type)
	if !ok {
		exportRequestsTotal.WithLabelValues("unknown", "rejected").Inc()
		return Summary{}, core_domain.Wrap(core_domain.ErrValidation, fmt.Sprintf("no detail endpoints configured for type %q", req.Type), nil)
	}

	encoder, err := s.schema.Encoder()
	if err != nil {
		exportRequestsTotal.WithLabelValues(req.Type, "encode_failed").Inc()
		return Summary{}, err
	}

	bodies, err := s.fetchAll(ctx, req, endpoints)
	if err != nil {
		exportRequestsTotal.WithLabelValues(req.Type, "fetch_failed").Inc()
		logger.WarnContext(ctx, "Detail fetch failed, request aborted", "error", err)
		return Summary{}, err
	}

	msgs := make([]messagebroker.Message, 0, len(endpoints))
	for i, ep := range endpoints {
		rec := domain.NewDetailRecord(req, ep.ResponseType, bodies[i])
		payload, err := encoder.EncodeRecord(rec)
		if err != nil {
			exportRequestsTotal.WithLabelValues(req.Type, "encode_failed").Inc()
			return Summary{}, fmt.Errorf("encoding %s response: %w", ep.ResponseType, err)
		}
		msgs = append(msgs, messagebroker.Message{
			Subject: s.cfg.Subject,
			Data:    payload,
			ID:      rec.MessageID(),
		})
	}

	pending := messagebroker.SubmitAll(ctx, s.publisher, msgs)
	drainCtx, cancel := context.WithTimeout(ctx, s.cfg.AckTimeout)
	defer cancel()
	res := messagebroker.AwaitAll(drainCtx, pending)

	summary := Summary{
		RequestCount: len(bodies),
		MessageCount: len(pending),
		FailureCount: res.Failed,
	}
	exportRequestsTotal.WithLabelValues(req.Type, "success").Inc()
	detailMessagesPublished.WithLabelValues(req.Type).Add(float64(res.Published))
	detailMessagesFailed.WithLabelValues(req.Type).Add(float64(res.Failed))
	logger.InfoContext(ctx, "Detail export completed",
		"api_requests", summary.RequestCount,
		"messages_sent", summary.MessageCount,
		"messages_failed", summary.FailureCount,
	)

	s.recordOutcome(ctx, logger, req, summary, res)
	return summary, nil
}

// fetchAll fetches every endpoint concurrently. bodies[i] belongs to endpoints[i]. The
// first failure cancels the remaining fetches.
func (s *Service) fetchAll(ctx context.Context, req domain.DetailRequest, endpoints []domain.Endpoint) ([]string, error) {
	bodies := make([]string, len(endpoints))
	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range endpoints {
		i, ep := i, ep
		g.Go(func() error {
			start := time.Now()
			body, err := s.fetcher.FetchString(gctx, ep.URL(req.ID))
			endpointFetchDuration.WithLabelValues(req.Type, ep.ResponseType).Observe(time.Since(start).Seconds())
			if err != nil {
				return fmt.Errorf("fetching %s for %s %d: %w", ep.ResponseType, req.Type, req.ID, err)
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bodies, nil
}

func (s *Service) recordOutcome(ctx context.Context, logger *slog.Logger, req domain.DetailRequest, summary Summary, res messagebroker.Result) {
	exportDate, _ := req.Date()
	outcome := core_domain.PublishOutcome{
		RunID:         s.cfg.RunID,
		Process:       core_domain.ProcessDetailFanout,
		Unit:          req.Type,
		EntityID:      req.ID,
		ExportDate:    exportDate,
		Attempted:     summary.MessageCount,
		Published:     res.Published,
		PublishFailed: res.Failed,
	}
	if err := s.recorder.Record(ctx, outcome); err != nil {
		logger.WarnContext(ctx, "Recording request outcome failed", "error", err)
	}
}
