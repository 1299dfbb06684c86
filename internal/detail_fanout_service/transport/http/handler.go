package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/tmdbsync/golang_services/internal/core_domain"
	"github.com/tmdbsync/golang_services/internal/detail_fanout_service/app"
	"github.com/tmdbsync/golang_services/internal/detail_fanout_service/domain"
)

// maxEnvelopeBytes bounds the inbound push envelope.
const maxEnvelopeBytes = 1 << 20

// Exporter runs one detail request.
type Exporter interface {
	Export(ctx context.Context, req domain.DetailRequest) (app.Summary, error)
}

// ErrorResponse is the body of every non-200 response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ExportHandler struct {
	exporter Exporter
	logger   *slog.Logger
	validate *validator.Validate
}

func NewExportHandler(exporter Exporter, logger *slog.Logger, validate *validator.Validate) *ExportHandler {
	return &ExportHandler{
		exporter: exporter,
		logger:   logger.With("component", "export_handler"),
		validate: validate,
	}
}

// Export handles POST /api/v1/export.
func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chimiddleware.GetReqID(ctx))

	var env domain.PushEnvelope
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes)).Decode(&env); err != nil {
		logger.DebugContext(ctx, "Failed to decode push envelope", "error", err)
		writeError(w, http.StatusBadRequest, "Unable to decode push envelope: "+err.Error())
		return
	}
	defer r.Body.Close()

	logger = logger.With(
		"message_id", env.Message.MessageID,
		"publish_time", env.Message.PublishTime,
		"subscription", env.Subscription,
	)

	req, err := env.DetailRequest()
	if err != nil {
		logger.DebugContext(ctx, "Failed to decode detail request", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.validate.StructCtx(ctx, req); err != nil {
		logger.DebugContext(ctx, "Validation failed for detail request", "error", err)
		writeError(w, http.StatusBadRequest, "Validation failed: "+err.Error())
		return
	}

	summary, err := h.exporter.Export(ctx, req)
	if err != nil {
		status := statusFor(ctx, err)
		if status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "Detail export failed", "error", err, "status", status)
		} else {
			logger.DebugContext(ctx, "Detail export rejected", "error", err)
		}
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(summary.String())); err != nil {
		logger.ErrorContext(ctx, "Failed to write export response", "error", err)
	}
}

func statusFor(ctx context.Context, err error) int {
	switch {
	case errors.Is(err, core_domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Code: status, Message: message})
}
