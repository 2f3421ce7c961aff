package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"swipeshop/internal/catalog"
	"swipeshop/internal/domain"
	"swipeshop/internal/generation"
	"swipeshop/internal/middleware"
	"swipeshop/internal/session"
	"swipeshop/internal/storage"
)

const maxJSONBody = 1 << 20

// VariantGenerator serves the stateless deck generation route.
type VariantGenerator interface {
	Variants(ctx context.Context, req generation.VariantRequest) (*generation.VariantResult, error)
}

// LedgerStats is implemented by ledgers that can summarize themselves.
type LedgerStats interface {
	CountByKind(ctx context.Context) (map[domain.AssetKind]int64, error)
}

type App struct {
	Catalog  *catalog.Catalog
	Sessions *session.Manager
	Variants VariantGenerator
	Uploads  *storage.Uploads
	Store    *storage.FileStore
	Ledger   domain.AssetLedger
	Logger   zerolog.Logger
	// Ping reports backing store health; nil means nothing to check.
	Ping func(ctx context.Context) error
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}

// fail maps domain errors onto HTTP responses.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	message := err.Error()
	switch status {
	case http.StatusTooManyRequests:
		message = "The AI service is busy. Please wait a moment and try again."
	case http.StatusInternalServerError:
		a.logger(r).Error().Err(err).Str("path", r.URL.Path).Msg("http: unhandled error")
		message = "internal error"
	}
	a.error(w, status, code, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrTransientReference):
		return http.StatusBadRequest, "transient_reference"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrStageIncomplete):
		return http.StatusConflict, "stage_incomplete"
	case errors.Is(err, domain.ErrNotPermutation):
		return http.StatusConflict, "not_permutation"
	case errors.Is(err, domain.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, domain.ErrAssetDecodeFailed):
		return http.StatusUnprocessableEntity, "asset_decode_failed"
	case errors.Is(err, domain.ErrNothingToExport):
		return http.StatusUnprocessableEntity, "nothing_to_export"
	case errors.Is(err, domain.ErrExportTooLarge):
		return http.StatusUnprocessableEntity, "export_too_large"
	case errors.Is(err, domain.ErrUnknownVariant), errors.Is(err, domain.ErrUnknownKind):
		return http.StatusUnprocessableEntity, "invalid_card"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrGenerationFailed):
		return http.StatusBadGateway, "generation_failed"
	case errors.Is(err, domain.ErrUploadFailed):
		return http.StatusBadGateway, "upload_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (a *App) logger(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &a.Logger
}

// decode reads a JSON body. An empty body leaves v untouched unless
// required is set.
func decode(r *http.Request, v any, required bool) error {
	body := http.MaxBytesReader(nil, r.Body, maxJSONBody)
	err := json.NewDecoder(body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && !required:
		return nil
	default:
		return fmt.Errorf("%w: invalid JSON body: %v", domain.ErrInvalidInput, err)
	}
}

func meta(r *http.Request) session.Meta {
	return session.Meta{
		Locale:    middleware.LocaleFromContext(r.Context()),
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}
}

func (a *App) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := a.Sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return nil, false
	}
	return s, true
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mt, "multipart/")
}

// readFiles pulls every file part named field (or "files") out of a
// multipart request.
func (a *App) readFiles(r *http.Request, field string) ([]session.File, error) {
	limit := int64(10 << 20)
	if a.Uploads != nil {
		limit = a.Uploads.MaxBytes()
	}
	if err := r.ParseMultipartForm(limit); err != nil {
		return nil, fmt.Errorf("%w: invalid multipart body: %v", domain.ErrInvalidInput, err)
	}
	headers := append(r.MultipartForm.File[field], r.MultipartForm.File["files"]...)
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: %s is required", domain.ErrInvalidInput, field)
	}
	files := make([]session.File, 0, len(headers))
	for _, fh := range headers {
		if fh.Size > limit {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrUploadFailed, fh.Filename, limit)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", domain.ErrUploadFailed, fh.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, limit+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrUploadFailed, fh.Filename, err)
		}
		files = append(files, session.File{Filename: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data})
	}
	return files, nil
}
