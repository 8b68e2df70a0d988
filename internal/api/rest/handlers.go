package rest

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/errors"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/domain/returns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/archive"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/config"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/infrastructure/telemetry"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/service/bulkreturns"
	"github.com/openwaterlabs/abstraction-returns-backend/internal/service/wizard"
)

// Handler exposes the wizard steps and the bulk template endpoints as thin
// JSON handlers. Rendering is a client concern; these endpoints speak the
// step render models and redirect paths directly.
type Handler struct {
	wizard *wizard.Service
	bulk   *bulkreturns.Service
	loader bulkreturns.ReturnLoader
	cfg    config.BulkConfig
	logger *zap.Logger
	tracer trace.Tracer
}

// NewHandler creates the API handler set
func NewHandler(wizardSvc *wizard.Service, bulkSvc *bulkreturns.Service, loader bulkreturns.ReturnLoader, cfg config.BulkConfig, logger *zap.Logger) *Handler {
	return &Handler{
		wizard: wizardSvc,
		bulk:   bulkSvc,
		loader: loader,
		cfg:    cfg,
		logger: logger,
		tracer: telemetry.Tracer("api.rest"),
	}
}

// Routes registers every endpoint on the mux
func (h *Handler) Routes(mux *http.ServeMux) {
	for _, step := range wizard.AllSteps() {
		path := step.Path()
		mux.HandleFunc("GET "+path, h.getStep(step))
		if step != wizard.StepSubmitted {
			mux.HandleFunc("POST "+path, h.postStep(step))
		}
	}

	mux.HandleFunc("GET /bulk/templates", h.downloadTemplates)
	mux.HandleFunc("POST /bulk/upload", h.uploadTemplate)
	mux.HandleFunc("GET /health", h.health)
}

func (h *Handler) getStep(step wizard.Step) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "wizard.get_step",
			trace.WithAttributes(attribute.String("wizard.step", step.String())))
		defer span.End()

		returnID := r.URL.Query().Get("returnId")
		if returnID == "" {
			h.writeError(w, errors.NewValidationError("MISSING_RETURN_ID",
				"returnId query parameter is required"))
			return
		}

		view, err := h.wizard.GetStep(ctx, returnID, step)
		if err != nil {
			telemetry.RecordError(span, err)
			h.writeError(w, err)
			return
		}
		h.writeJSON(w, http.StatusOK, view)
	}
}

func (h *Handler) postStep(step wizard.Step) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "wizard.post_step",
			trace.WithAttributes(attribute.String("wizard.step", step.String())))
		defer span.End()

		returnID := r.URL.Query().Get("returnId")
		if returnID == "" {
			h.writeError(w, errors.NewValidationError("MISSING_RETURN_ID",
				"returnId query parameter is required"))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			h.writeError(w, errors.NewValidationError("BODY_TOO_LARGE",
				"request body exceeds the limit"))
			return
		}

		result, err := h.wizard.PostStep(ctx, returnID, step, body)
		if err != nil {
			telemetry.RecordError(span, err)
			h.writeError(w, err)
			return
		}
		if !result.OK() {
			h.writeJSON(w, http.StatusUnprocessableEntity, result)
			return
		}
		h.writeJSON(w, http.StatusOK, result)
	}
}

// downloadTemplates streams the bulk return template ZIP for the cycle
// containing the reference date (today when absent).
func (h *Handler) downloadTemplates(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "bulk.download_templates")
	defer span.End()

	ref := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			h.writeError(w, errors.NewValidationError("INVALID_DATE",
				"date must be in YYYY-MM-DD format"))
			return
		}
		ref = parsed
	}
	isSummer, _ := strconv.ParseBool(r.URL.Query().Get("summer"))
	cycle := bulkreturns.CycleFromDate(ref, isSummer)

	dueReturns, err := h.dueReturns(ctx, cycle)
	if err != nil {
		telemetry.RecordError(span, err)
		h.writeError(w, err)
		return
	}

	var buf bytes.Buffer
	builder := archive.NewZipBuilder(&buf, h.logger)
	err = h.bulk.GenerateTemplates(ctx, cycle, dueReturns, bulkreturns.Options{
		CompanyName:  h.cfg.CompanyName,
		HelpFilePath: h.cfg.HelpFilePath,
	}, builder)
	if err != nil {
		telemetry.RecordError(span, err)
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		`attachment; filename="bulk return templates.zip"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("template download interrupted", zap.Error(err))
	}
}

// uploadTemplate accepts a completed CSV and applies it to the returns the
// columns reference
func (h *Handler) uploadTemplate(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "bulk.upload_template")
	defer span.End()

	saver, ok := h.loader.(UpdatedReturnSaver)
	if !ok {
		err := errors.NewInternalError("return persistence is not configured for uploads")
		telemetry.RecordError(span, err)
		h.writeError(w, err)
		return
	}

	body := http.MaxBytesReader(w, r.Body, 8<<20)
	updated, err := h.bulk.ApplyUpload(ctx, body, h.loader)
	if err != nil {
		telemetry.RecordError(span, err)
		h.writeError(w, err)
		return
	}

	type uploadedReturn struct {
		ReturnID string `json:"returnId"`
		Status   string `json:"status"`
	}
	summary := make([]uploadedReturn, 0, len(updated))
	for _, wr := range updated {
		if err := saver.SaveUpdated(ctx, wr); err != nil {
			telemetry.RecordError(span, err)
			h.writeError(w, err)
			return
		}
		summary = append(summary, uploadedReturn{
			ReturnID: wr.ReturnID,
			Status:   bulkreturns.StatusString(wr.Status),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"updated":   summary,
		"processed": len(summary),
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// dueReturns lists the due returns for a cycle. The loader interface only
// resolves single returns; batch listing comes from the same collaborator
// when it supports it.
func (h *Handler) dueReturns(ctx context.Context, cycle bulkreturns.ReturnCycle) ([]*returns.WaterReturn, error) {
	if lister, ok := h.loader.(DueReturnLister); ok {
		return lister.ListDue(ctx, cycle.StartDate, cycle.EndDate)
	}
	return nil, nil
}

// DueReturnLister lists returns due within a reporting window
type DueReturnLister interface {
	ListDue(ctx context.Context, startDate, endDate time.Time) ([]*returns.WaterReturn, error)
}

// UpdatedReturnSaver persists returns a bulk upload has written quantities
// onto. Uploaded data lands in the working copy; submission still goes
// through the wizard's confirm step.
type UpdatedReturnSaver interface {
	SaveUpdated(ctx context.Context, wr *returns.WaterReturn) error
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("response encoding failed", zap.Error(err))
	}
}

// writeError maps domain errors onto HTTP status codes
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		h.writeJSON(w, appErr.StatusCode, map[string]interface{}{
			"error": appErr,
		})
		return
	}
	h.logger.Error("unhandled error", zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]string{
			"code":    "INTERNAL_ERROR",
			"message": "an unexpected error occurred",
		},
	})
}
