package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/tmdbsync/golang_services/internal/bulk_exporter_service/app"
	"github.com/tmdbsync/golang_services/internal/bulk_exporter_service/domain"
	"github.com/tmdbsync/golang_services/internal/core_domain"
	"github.com/tmdbsync/golang_services/internal/outcome_ledger/repository/postgres"
	"github.com/tmdbsync/golang_services/internal/platform/apiclient"
	"github.com/tmdbsync/golang_services/internal/platform/config"
	"github.com/tmdbsync/golang_services/internal/platform/database"
	"github.com/tmdbsync/golang_services/internal/platform/exportdate"
	"github.com/tmdbsync/golang_services/internal/platform/logger"
	"github.com/tmdbsync/golang_services/internal/platform/messagebroker"
	"github.com/tmdbsync/golang_services/internal/platform/recordcodec"
)

const (
	serviceName    = "bulk_exporter"
	startupTimeout = 30 * time.Second
	pushTimeout    = 10 * time.Second
)

func main() {
	os.Exit(run())
}

// run returns the process exit code. Deferred cleanups run before the process exits.
func run() int {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat).With("service", serviceName)
	if err := cfg.ValidateExporter(); err != nil {
		log.Error("Invalid configuration", "error", err)
		return 1
	}

	ctx := context.Background()
	runID := uuid.New()
	exportDate := exportdate.Resolve(cfg.ExportDate, time.Now())
	log = log.With("task_index", cfg.TaskIndex, "task_attempt", cfg.TaskAttempt)
	log.Info("Starting bulk export job",
		"run_id", runID.String(),
		"export_date", exportdate.Format(exportDate),
		"export_date_override", cfg.ExportDate,
	)

	encoder, err := recordcodec.New(domain.TriggerTopicSchema)
	if err != nil {
		log.Error("Failed to parse trigger topic schema", "error", err)
		return 1
	}

	publisher, err := messagebroker.NewJetStreamPublisher(messagebroker.JetStreamOptions{
		URL:        cfg.NATSUrl,
		ClientName: clientName(cfg.PubSubProjectID),
		Stream:     cfg.NATSStream,
		MaxPending: cfg.PublishMaxPending,
	}, log)
	if err != nil {
		log.Error("Failed to connect to message broker", "error", err)
		return 1
	}
	defer publisher.Close()

	var recorder core_domain.OutcomeRecorder
	if cfg.PostgresDSN != "" {
		startupCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		pool, err := database.NewDBPool(startupCtx, cfg.PostgresDSN, log)
		cancel()
		if err != nil {
			log.Error("Failed to initialize outcome ledger", "error", err)
			return 1
		}
		defer pool.Close()
		recorder = postgres.NewPgOutcomeRepository(pool, log)
	}

	client := apiclient.New(cfg.APIBaseURL, cfg.APIKey, &http.Client{Transport: http.DefaultTransport}, log)
	exporter := app.NewExporter(app.ExporterConfig{
		MountPath:  cfg.BucketMountPath,
		Subject:    cfg.PubSubTopicID,
		ExportDate: exportDate,
		RunID:      runID,
		AckTimeout: cfg.AckTimeout(),
	}, client, publisher, encoder, recorder, log)

	results, runErr := exporter.Run(ctx)

	var published, failed, unparsable int
	for _, res := range results {
		published += res.Published
		failed += res.PublishFailed
		unparsable += res.ParseFailed
	}
	pushMetrics(cfg, log)

	if runErr != nil {
		log.Error("Bulk export job failed",
			"error", runErr,
			"units_completed", len(results),
			"messages_published", published,
			"messages_failed", failed,
		)
		return 1
	}
	log.Info("Bulk export job completed",
		"units_completed", len(results),
		"messages_published", published,
		"messages_failed", failed,
		"lines_unparsable", unparsable,
	)
	return 0
}

// pushMetrics sends the job's registry to the Pushgateway when one is configured.
// Failures are logged only.
func pushMetrics(cfg *config.Config, log *slog.Logger) {
	if cfg.PushgatewayURL == "" {
		return
	}
	err := push.New(cfg.PushgatewayURL, serviceName).
		Client(&http.Client{Timeout: pushTimeout}).
		Gatherer(prometheus.DefaultGatherer).
		Grouping("task_index", cfg.TaskIndex).
		Push()
	if err != nil {
		log.Warn("Failed to push metrics", "error", err, "url", cfg.PushgatewayURL)
	}
}

func clientName(projectID string) string {
	if projectID == "" {
		return serviceName
	}
	return projectID + "-" + serviceName
}
