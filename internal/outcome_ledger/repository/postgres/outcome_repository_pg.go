package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tmdbsync/golang_services/internal/core_domain"
)

// DBTX is the subset of *pgxpool.Pool the repository uses.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type PgOutcomeRepository struct {
	db     DBTX
	logger *slog.Logger
}

func NewPgOutcomeRepository(db DBTX, logger *slog.Logger) core_domain.OutcomeRecorder {
	return &PgOutcomeRepository{db: db, logger: logger.With("component", "outcome_repository_pg")}
}

const insertOutcomeQuery = `
	INSERT INTO publish_outcomes (
		id, run_id, process, unit, entity_id, export_date,
		attempted, published, publish_failed, parse_failed, recorded_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (r *PgOutcomeRepository) Record(ctx context.Context, o core_domain.PublishOutcome) error {
	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(ctx, insertOutcomeQuery,
		uuid.New(), o.RunID, o.Process, o.Unit, o.EntityID, o.ExportDate,
		o.Attempted, o.Published, o.PublishFailed, o.ParseFailed, o.RecordedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error inserting publish outcome", "run_id", o.RunID, "unit", o.Unit, "error", err)
		return fmt.Errorf("inserting publish outcome: %w", err)
	}
	return nil
}
