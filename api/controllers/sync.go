package controllers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/logistar/turnover-backend/api/responses"
	"github.com/logistar/turnover-backend/api/validators"
	"github.com/logistar/turnover-backend/internal/ingest"
	pkgerrors "github.com/logistar/turnover-backend/pkg/errors"
	"github.com/logistar/turnover-backend/pkg/logger"
)

// maxWorkbookBytes bounds uploaded spreadsheets; exports past this size
// should go through the API sync instead.
const maxWorkbookBytes = 32 << 20

type ingestService interface {
	StartIngestion(ctx context.Context, window ingest.IngestionWindow) (uint, error)
	StartProductSync(ctx context.Context) (uint, error)
	ListRuns(ctx context.Context, limit int) ([]ingest.RunSummary, error)
}

type rollupService interface {
	Rebuild(ctx context.Context) error
}

type importService interface {
	ImportWorkbook(ctx context.Context, r io.Reader, replace bool) (int, error)
}

type startIngestionRequest struct {
	From         string `json:"from" validate:"required"`
	To           string `json:"to" validate:"required"`
	WarehouseID  string `json:"warehouse_id"`
	CustomerCode string `json:"customer_code"`
}

// StartInventorySync kicks off a background ingestion for the requested
// window and returns the audit run id for polling.
func StartInventorySync(svc ingestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body startIngestionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		from, err := parseTimeParam(body.From)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		to, err := parseTimeParam(body.To)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		// "required" lets whitespace-only values through; parseTimeParam
		// maps those to nil
		if from == nil || to == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "from and to are required"))
			return
		}

		runID, err := svc.StartIngestion(ctx, ingest.IngestionWindow{
			From:         *from,
			To:           *to,
			WarehouseID:  body.WarehouseID,
			CustomerCode: body.CustomerCode,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"run_id": runID})
	}
}

// StartProductSync kicks off a background catalog refresh.
func StartProductSync(svc ingestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		runID, err := svc.StartProductSync(ctx)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]any{"run_id": runID})
	}
}

// RebuildRollup rebuilds the daily summary table synchronously.
func RebuildRollup(svc rollupService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := svc.Rebuild(ctx); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "rebuilt"})
	}
}

// UploadWorkbook ingests an exported inventory-log xlsx. The optional
// replace=true form field wipes existing events first.
func UploadWorkbook(svc importService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if err := r.ParseMultipartForm(maxWorkbookBytes); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid multipart form"))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file field is required"))
			return
		}
		defer file.Close()

		if !strings.HasSuffix(strings.ToLower(header.Filename), ".xlsx") {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "only .xlsx workbooks are supported"))
			return
		}
		replace := strings.EqualFold(r.FormValue("replace"), "true")

		imported, err := svc.ImportWorkbook(ctx, file, replace)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"imported": imported, "replaced": replace})
	}
}

// ListSyncRuns returns the most recent audit rows.
func ListSyncRuns(svc ingestService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		limit, err := validators.ParseQueryInt(r, "limit", 0, 0, 100)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		runs, err := svc.ListRuns(ctx, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, runs)
	}
}

// parseTimeParam accepts RFC3339 timestamps or bare dates.
func parseTimeParam(value string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return &parsed, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid timestamp %q", trimmed))
}
