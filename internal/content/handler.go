package content

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/sautihub/core-api/internal/auth"
	"github.com/sautihub/core-api/internal/metrics"
)

// Handler exposes HTTP endpoints for the content catalogue.
type Handler struct {
	svc       *ContentService
	maxUpload int64
	metrics   *metrics.Metrics
	logger    *zap.SugaredLogger
}

func NewHandler(svc *ContentService, cfg Config, m *metrics.Metrics, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, maxUpload: cfg.MaxUploadBytes, metrics: m, logger: logger}
}

// List handles GET /api/content?skip=&limit=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.svc.List(r.Context(), skip, limit)
	if err != nil {
		h.logger.Warnw("content list failed", "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, items)
}

// Get handles GET /api/content/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired):
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "content not found"})
		default:
			h.logger.Warnw("content lookup failed", "id", r.PathValue("id"), "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		}
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// Create handles POST /api/content (multipart upload, creators only).
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	// headroom for the multipart framing around the file part
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+(1<<20))
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file too large"})
			return
		}
		h.logger.Debugw("invalid multipart payload", "err", err)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart payload"})
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file field is required"})
		return
	}
	defer file.Close()

	c, err := h.svc.Upload(r.Context(), id.UserID, id.IsCreator,
		r.FormValue("title"), r.FormValue("description"),
		header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotCreator):
			h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "creator account required"})
		case errors.Is(err, ErrValidation), errors.Is(err, ErrUnsupportedType):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			h.logger.Warnw("upload failed", "creator_id", id.UserID, "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "upload failed"})
		}
		return
	}
	h.metrics.RecordContentUpload()
	h.writeJSON(w, http.StatusCreated, c)
}

// Play handles GET /api/content/{id}/play.
func (h *Handler) Play(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	url, err := h.svc.PlayURL(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrExpired):
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": "content not found"})
		case errors.Is(err, ErrNoAccess):
			h.writeJSON(w, http.StatusPaymentRequired, map[string]string{"error": "content not unlocked"})
		default:
			h.logger.Warnw("play url failed", "content_id", r.PathValue("id"), "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "play failed"})
		}
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
