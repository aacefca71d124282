package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/kirillkom/filing-classifier/internal/config"
	"github.com/kirillkom/filing-classifier/internal/core/domain"
	"github.com/kirillkom/filing-classifier/internal/core/ports"
	"github.com/kirillkom/filing-classifier/internal/observability/metrics"
)

const (
	serviceName        = "filing-api"
	multipartMemory    = 32 << 20
	multipartOverhead  = 1 << 20
	defaultMaxFiles    = 20
	defaultUploadBytes = 20 << 20
)

type Router struct {
	cfg       config.Config
	submitter ports.FilingSubmitter
	filings   ports.FilingReader
	metrics   *metrics.HTTPServerMetrics
}

// NewRouter builds the HTTP surface. httpMetrics may be nil.
func NewRouter(
	cfg config.Config,
	submitter ports.FilingSubmitter,
	filings ports.FilingReader,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultUploadBytes
	}
	if cfg.APIMaxFilesPerFiling <= 0 {
		cfg.APIMaxFilesPerFiling = defaultMaxFiles
	}
	return &Router{
		cfg:       cfg,
		submitter: submitter,
		filings:   filings,
		metrics:   httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("POST /v1/filings", rt.submitFiling)
	api.HandleFunc("GET /v1/filings/{id}", rt.getFilingByID)

	throttled := rateLimitMiddleware(
		backpressureMiddleware(api, rt.cfg.APIMaxInFlight, rt.cfg.APIBackpressureWait),
		rt.cfg.APIRateLimitRPS,
		rt.cfg.APIRateLimitBurst,
	)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("/v1/", throttled)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(serviceName, mux)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// submitFiling accepts application_id, application_type and one or more
// files under "files" or "file". With ?mode=sync the filing is processed
// inline and the outcome returned; otherwise it is queued.
func (rt *Router) submitFiling(w http.ResponseWriter, r *http.Request) {
	maxRequest := rt.cfg.MaxUploadBytes*int64(rt.cfg.APIMaxFilesPerFiling) + multipartOverhead
	r.Body = http.MaxBytesReader(w, r.Body, maxRequest)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("request exceeds %d bytes", maxErr.Limit))
			return
		}
		writeError(w, r, http.StatusBadRequest, "multipart form is required")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	headers := make([]*multipart.FileHeader, 0, len(r.MultipartForm.File["files"])+len(r.MultipartForm.File["file"]))
	headers = append(headers, r.MultipartForm.File["files"]...)
	headers = append(headers, r.MultipartForm.File["file"]...)
	if len(headers) == 0 {
		writeError(w, r, http.StatusBadRequest, "multipart field 'files' is required")
		return
	}
	if len(headers) > rt.cfg.APIMaxFilesPerFiling {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("at most %d files per filing", rt.cfg.APIMaxFilesPerFiling))
		return
	}

	files, closeAll, err := rt.openUploads(headers)
	defer closeAll()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	in := ports.UploadedFiling{
		ApplicationID:   strings.TrimSpace(r.FormValue("application_id")),
		ApplicationType: strings.TrimSpace(r.FormValue("application_type")),
		Files:           files,
	}

	if r.URL.Query().Get("mode") == "sync" {
		result, err := rt.submitter.ProcessNow(r.Context(), in)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	filing, err := rt.submitter.Submit(r.Context(), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, filing)
}

func (rt *Router) openUploads(headers []*multipart.FileHeader) ([]domain.UploadedFile, func(), error) {
	files := make([]domain.UploadedFile, 0, len(headers))
	closers := make([]io.Closer, 0, len(headers))
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}

	for _, header := range headers {
		if header.Size > rt.cfg.MaxUploadBytes {
			return nil, closeAll, domain.WrapError(
				domain.ErrPayloadTooLarge,
				"upload",
				fmt.Errorf("file %q is %d bytes, limit %d", header.Filename, header.Size, rt.cfg.MaxUploadBytes),
			)
		}
		f, err := header.Open()
		if err != nil {
			return nil, closeAll, fmt.Errorf("open upload %q: %w", header.Filename, err)
		}
		closers = append(closers, f)
		if rt.metrics != nil {
			rt.metrics.RecordUpload(serviceName, header.Size)
		}
		files = append(files, domain.UploadedFile{Filename: header.Filename, Body: f})
	}
	return files, closeAll, nil
}

func (rt *Router) getFilingByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeError(w, r, http.StatusBadRequest, "filing id is required")
		return
	}

	filing, err := rt.filings.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, filing)
}

func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("http_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeError(w, r, status, err.Error())
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string) {
	payload := map[string]string{"error": message}
	if requestID := requestIDFromContext(r.Context()); requestID != "" {
		payload["request_id"] = requestID
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
