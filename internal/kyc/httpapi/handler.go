// Package httpapi exposes the verification pipeline over HTTP. Callers are
// identified by the X-User-Id header; authentication sits in front of this
// service.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"kyc-gateway/internal/domain"
	"kyc-gateway/internal/kyc/document"
	"kyc-gateway/internal/kyc/orchestrator"
	"kyc-gateway/internal/kyc/ports"
	"kyc-gateway/internal/kyc/request"
	"kyc-gateway/internal/kyc/response"
	id "kyc-gateway/pkg/domain"
	pkgerrors "kyc-gateway/pkg/errors"
)

// maxUploadBytes caps multipart submissions at 10 MiB.
const maxUploadBytes = 10 << 20

// Handler serves the KYC API.
type Handler struct {
	orch     *orchestrator.Orchestrator
	views    *response.Builder
	requests *request.Service
	logger   *slog.Logger
}

func NewHandler(orch *orchestrator.Orchestrator, views *response.Builder, requests *request.Service, logger *slog.Logger) *Handler {
	return &Handler{orch: orch, views: views, requests: requests, logger: logger}
}

// Routes mounts the API under /api/kyc.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/kyc", func(r chi.Router) {
		r.Post("/submit", h.submit)
		r.Get("/status", h.status)
		r.Get("/history", h.history)
		r.Get("/requests/{requestID}", h.get)
		r.Get("/requests/{requestID}/extracted", h.extracted)
		r.Route("/admin", func(r chi.Router) {
			r.Get("/requests", h.search)
			r.Get("/requests/{requestID}", h.adminGet)
			r.Patch("/requests/{requestID}/status", h.updateStatus)
		})
	})
	return r
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		h.writeError(w, r, pkgerrors.Wrap(err, pkgerrors.CodeInvalidInput, "parse multipart form"))
		return
	}
	documentType := domain.DocumentType(r.FormValue("documentType"))
	documentNumber := r.FormValue("documentNumber")

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(w, r, pkgerrors.Wrap(err, pkgerrors.CodeInvalidInput, "missing file"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		h.writeError(w, r, pkgerrors.Wrap(err, pkgerrors.CodeInvalidInput, "read file"))
		return
	}

	upload := document.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}
	req, err := h.orch.Submit(r.Context(), userID, documentType, upload, documentNumber)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, response.Project(req))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	documentType := domain.DocumentType(r.URL.Query().Get("documentType"))
	if !documentType.Valid() {
		h.writeError(w, r, pkgerrors.Newf(pkgerrors.CodeInvalidInput, "unknown document type %q", documentType))
		return
	}
	view, err := h.views.Status(r.Context(), userID, documentType, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}
	views, err := h.views.History(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	h.viewRequest(w, r, false)
}

func (h *Handler) adminGet(w http.ResponseWriter, r *http.Request) {
	h.viewRequest(w, r, true)
}

func (h *Handler) viewRequest(w http.ResponseWriter, r *http.Request, privileged bool) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.views.View(r.Context(), requestID, privileged)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) extracted(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.views.Extracted(r.Context(), requestID, false)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	actorID := r.Header.Get("X-User-Id")
	filter, err := parseFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	reqs, err := h.requests.Search(r.Context(), filter, actorID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]*response.RequestView, 0, len(reqs))
	for _, req := range reqs {
		views = append(views, response.Project(req))
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	requestID, err := id.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var body struct {
		Status        string `json:"status"`
		FailureReason string `json:"failureReason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, r, pkgerrors.Wrap(err, pkgerrors.CodeInvalidInput, "decode body"))
		return
	}
	if err := h.requests.UpdateStatus(r.Context(), requestID, domain.Status(body.Status), body.FailureReason); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func parseFilter(r *http.Request) (ports.RequestFilter, error) {
	q := r.URL.Query()
	var filter ports.RequestFilter
	if raw := q.Get("userId"); raw != "" {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			return filter, err
		}
		filter.UserID = userID
	}
	if raw := q.Get("status"); raw != "" {
		status := domain.Status(raw)
		if !status.Valid() {
			return filter, pkgerrors.Newf(pkgerrors.CodeInvalidInput, "unknown status %q", raw)
		}
		filter.Status = status
	}
	if raw := q.Get("documentType"); raw != "" {
		documentType := domain.DocumentType(raw)
		if !documentType.Valid() {
			return filter, pkgerrors.Newf(pkgerrors.CodeInvalidInput, "unknown document type %q", raw)
		}
		filter.DocumentType = documentType
	}
	for key, dst := range map[string]**time.Time{"from": &filter.SubmittedAfter, "to": &filter.SubmittedBefore} {
		if raw := q.Get(key); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return filter, pkgerrors.Newf(pkgerrors.CodeInvalidInput, "invalid %s timestamp", key)
			}
			*dst = &t
		}
	}
	var err error
	if filter.Limit, err = parseIntParam(q.Get("limit")); err != nil {
		return filter, err
	}
	if filter.Offset, err = parseIntParam(q.Get("offset")); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseIntParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, pkgerrors.Newf(pkgerrors.CodeInvalidInput, "invalid integer %q", raw)
	}
	return n, nil
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := id.ParseUserID(r.Header.Get("X-User-Id"))
	if err != nil {
		h.writeError(w, r, pkgerrors.Wrap(err, pkgerrors.CodeInvalidInput, "missing or invalid X-User-Id header"))
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && h.logger != nil {
		h.logger.Error("write response failed", "error", err.Error())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.ErrorContext(r.Context(), "request failed",
			"path", r.URL.Path,
			"error", err.Error(),
		)
	}
	h.writeJSON(w, status, map[string]string{"error": publicMessage(err, status)})
}

func statusFor(err error) int {
	var mismatch *domain.DocumentTypeMismatchError
	if errors.As(err, &mismatch) {
		return http.StatusUnprocessableEntity
	}
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeInvalidInput:
		return http.StatusBadRequest
	case pkgerrors.CodeNotFound:
		return http.StatusNotFound
	case pkgerrors.CodeConflict:
		return http.StatusConflict
	case pkgerrors.CodeRateLimited:
		return http.StatusTooManyRequests
	case pkgerrors.CodeUnprocessable:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func publicMessage(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}
