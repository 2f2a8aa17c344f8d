package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/IgorGrieder/linkstats/internal/constants"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/collector"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/logger"
	"github.com/IgorGrieder/linkstats/internal/infrastructure/metrics"
	appvalidation "github.com/IgorGrieder/linkstats/internal/infrastructure/validation"
	"github.com/IgorGrieder/linkstats/pkg/httputils"
	"go.uber.org/zap"
)

// LogSender forwards a single entry to the external collector.
type LogSender interface {
	Send(ctx context.Context, entry collector.Entry) (string, error)
}

type LogHandler struct {
	sender LogSender
}

func NewLogHandler(sender LogSender) *LogHandler {
	return &LogHandler{sender: sender}
}

type logRequest struct {
	Stack       string `json:"stack" validate:"required,oneof=backend frontend"`
	Level       string `json:"level" validate:"required,oneof=debug info warn error fatal"`
	PackageName string `json:"packageName" validate:"required,notblank"`
	Message     string `json:"message" validate:"required,notblank"`
}

type logResponse struct {
	LogID string `json:"logID"`
}

func (h *LogHandler) Forward(w http.ResponseWriter, r *http.Request) {
	var req logRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody)
		return
	}
	if err := appvalidation.Validate(req); err != nil {
		field, tag := appvalidation.FirstFailure(err)
		httputils.WriteAPIError(w, r, constants.ErrInvalidRequestBody.WithMessage(field+" failed "+tag+" validation"))
		return
	}

	logID, err := h.sender.Send(r.Context(), collector.Entry{
		Stack:   req.Stack,
		Level:   req.Level,
		Package: req.PackageName,
		Message: req.Message,
	})
	if err != nil {
		metrics.CollectorSends.WithLabelValues(metrics.OutcomeError).Inc()
		logger.Error("failed to forward log entry", zap.Error(err))
		httputils.WriteAPIError(w, r, constants.ErrLogForwardFailure)
		return
	}
	metrics.CollectorSends.WithLabelValues(metrics.OutcomeOK).Inc()

	httputils.WriteJSON(w, r, http.StatusOK, logResponse{LogID: logID})
}
