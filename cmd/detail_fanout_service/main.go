package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/tmdbsync/golang_services/internal/core_domain"
	"github.com/tmdbsync/golang_services/internal/detail_fanout_service/app"
	"github.com/tmdbsync/golang_services/internal/detail_fanout_service/domain"
	transporthttp "github.com/tmdbsync/golang_services/internal/detail_fanout_service/transport/http"
	"github.com/tmdbsync/golang_services/internal/outcome_ledger/repository/postgres"
	"github.com/tmdbsync/golang_services/internal/platform/apiclient"
	"github.com/tmdbsync/golang_services/internal/platform/config"
	"github.com/tmdbsync/golang_services/internal/platform/database"
	"github.com/tmdbsync/golang_services/internal/platform/logger"
	"github.com/tmdbsync/golang_services/internal/platform/messagebroker"
	"github.com/tmdbsync/golang_services/internal/platform/recordcodec"
)

const (
	serviceName     = "detail_fanout_service"
	startupTimeout  = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return 1
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat).With("service", serviceName)
	log.Info("Starting detail fan-out service...")

	if err := cfg.ValidateFanout(); err != nil {
		log.Error("Invalid configuration", "error", err)
		return 1
	}

	catalog, err := domain.DecodeEndpointCatalog(cfg.APIEndpointList)
	if err != nil {
		log.Error("Failed to load API_ENDPOINT_LIST", "error", err)
		return 1
	}
	log.Info("Endpoint catalog loaded", "entity_types", catalog.Types())

	// The schema is parsed on first use; a malformed one fails requests, not startup.
	schema := recordcodec.NewSchemaSource(cfg.PubSubTopicSchema)
	if _, err := schema.Encoder(); err != nil {
		log.Warn("Detail topic schema is not usable; export requests will fail", "error", err)
	}

	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	publisher, err := messagebroker.NewJetStreamPublisher(messagebroker.JetStreamOptions{
		URL:        cfg.NATSUrl,
		ClientName: serviceName,
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
		startupCtx, cancel := context.WithTimeout(mainCtx, startupTimeout)
		pool, err := database.NewDBPool(startupCtx, cfg.PostgresDSN, log)
		cancel()
		if err != nil {
			log.Error("Failed to initialize outcome ledger", "error", err)
			return 1
		}
		defer pool.Close()
		recorder = postgres.NewPgOutcomeRepository(pool, log)
	}

	timeout := cfg.RequestTimeout()
	client := apiclient.New(cfg.APIBaseURL, cfg.APIKey, &http.Client{Timeout: timeout}, log)
	svc := app.NewService(app.ServiceConfig{
		Subject:    cfg.PubSubTopicID,
		RunID:      uuid.New(),
		AckTimeout: timeout,
	}, catalog, client, schema, publisher, recorder, log)

	handler := transporthttp.NewExportHandler(svc, log, validator.New())
	httpServer := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.ServerPort()),
		Handler:        transporthttp.NewRouter(handler, timeout),
		ReadTimeout:    timeout,
		WriteTimeout:   timeout + time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	var grpcServer *grpc.Server
	var healthSrv *health.Server
	var grpcLis net.Listener
	if cfg.GRPCHealthPort > 0 {
		grpcLis, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCHealthPort))
		if err != nil {
			log.Error("Failed to listen for gRPC health", "error", err, "port", cfg.GRPCHealthPort)
			return 1
		}
		grpcServer = grpc.NewServer()
		healthSrv = health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthSrv)
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	}

	g, groupCtx := errgroup.WithContext(mainCtx)
	g.Go(func() error {
		log.Info("HTTP server listening", "addr", httpServer.Addr, "request_timeout", timeout)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if grpcServer != nil {
		g.Go(func() error {
			log.Info("gRPC health server listening", "addr", grpcLis.Addr().String())
			if err := grpcServer.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc health server: %w", err)
			}
			return nil
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	exitCode := 0
	select {
	case sig := <-sigCh:
		log.Info("Received termination signal", "signal", sig.String())
	case <-groupCtx.Done():
		log.Error("A server stopped unexpectedly, initiating shutdown")
		exitCode = 1
	}

	log.Info("Attempting graceful shutdown...")
	if healthSrv != nil {
		healthSrv.Shutdown()
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
		exitCode = 1
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	mainCancel()

	if err := g.Wait(); err != nil {
		log.Error("Server error", "error", err)
		exitCode = 1
	}
	log.Info("Service shutdown complete.")
	return exitCode
}
