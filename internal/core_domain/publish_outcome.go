package core_domain

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Process names recorded with each outcome.
const (
	ProcessBulkExporter = "bulk_exporter"
	ProcessDetailFanout = "detail_fanout"
)

// PublishOutcome is the per-unit (bulk file) or per-request (detail fan-out) tally.
// ParseFailed and PublishFailed are kept apart; they are never summed.
type PublishOutcome struct {
	RunID         uuid.UUID
	Process       string
	Unit          string // export unit or entity type
	EntityID      int64  // zero for bulk units
	ExportDate    time.Time
	Attempted     int
	Published     int
	PublishFailed int
	ParseFailed   int
	RecordedAt    time.Time
}

// OutcomeRecorder persists publish outcomes.
type OutcomeRecorder interface {
	Record(ctx context.Context, outcome PublishOutcome) error
}

// LogOutcomeRecorder only logs outcomes. Used when no ledger database is configured.
type LogOutcomeRecorder struct {
	Logger *slog.Logger
}

func (r LogOutcomeRecorder) Record(ctx context.Context, o PublishOutcome) error {
	if r.Logger == nil {
		return nil
	}
	r.Logger.DebugContext(ctx, "Publish outcome",
		"run_id", o.RunID.String(),
		"process", o.Process,
		"unit", o.Unit,
		"entity_id", o.EntityID,
		"attempted", o.Attempted,
		"published", o.Published,
		"publish_failed", o.PublishFailed,
		"parse_failed", o.ParseFailed,
	)
	return nil
}
