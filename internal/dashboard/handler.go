package dashboard

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/sautihub/core-api/internal/auth"
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Creator handles GET /api/dashboard/creator.
func (h *Handler) Creator(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if !id.IsCreator {
		h.writeJSON(w, http.StatusForbidden, map[string]string{"error": "access denied"})
		return
	}

	view, err := h.svc.Creator(r.Context(), id.UserID)
	if err != nil {
		h.logger.Errorw("creator dashboard failed", "user_id", id.UserID, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "dashboard unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

// User handles GET /api/dashboard/user.
func (h *Handler) User(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	view, err := h.svc.User(r.Context(), id.UserID)
	if err != nil {
		h.logger.Errorw("user dashboard failed", "user_id", id.UserID, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "dashboard unavailable"})
		return
	}
	h.writeJSON(w, http.StatusOK, view)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
