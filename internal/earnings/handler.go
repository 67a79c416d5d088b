package earnings

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handler serves the weekly payout endpoints. Authentication is applied by
// the router; these are operator-facing surfaces.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Weekly handles GET /api/admin/earnings/weekly?week_start=YYYY-MM-DD.
func (h *Handler) Weekly(w http.ResponseWriter, r *http.Request) {
	weekStart, ok := h.weekStartParam(w, r)
	if !ok {
		return
	}

	totals, err := h.svc.Weekly(r.Context(), weekStart)
	if err != nil {
		h.logger.Errorw("weekly earnings query failed", "week_start", weekStart, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"week_start": weekStart.Format("2006-01-02"),
		"week_end":   weekStart.AddDate(0, 0, 6).Format("2006-01-02"),
		"creators":   totals,
	})
}

// Export handles GET /api/admin/earnings/export?week_start=YYYY-MM-DD and
// streams the payout workbook.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	weekStart, ok := h.weekStartParam(w, r)
	if !ok {
		return
	}

	wb, err := h.svc.Export(r.Context(), weekStart)
	if err != nil {
		h.logger.Errorw("earnings export failed", "week_start", weekStart, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "export failed"})
		return
	}
	defer wb.Close()

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+wb.Filename+`"`)
	if _, err := wb.WriteTo(w); err != nil {
		h.logger.Errorw("earnings export write failed", "week_start", weekStart, "err", err)
	}
}

// Settle handles POST /api/admin/earnings/settle?week_start=YYYY-MM-DD,
// marking the week's accruals as paid out after the payout run.
func (h *Handler) Settle(w http.ResponseWriter, r *http.Request) {
	weekStart, ok := h.weekStartParam(w, r)
	if !ok {
		return
	}

	n, err := h.svc.SettleWeek(r.Context(), weekStart)
	if err != nil {
		h.logger.Errorw("earnings settle failed", "week_start", weekStart, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "settle failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":      "week settled",
		"week_start":   weekStart.Format("2006-01-02"),
		"rows_settled": n,
	})
}

func (h *Handler) weekStartParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("week_start")
	if raw == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week_start is required (YYYY-MM-DD)"})
		return time.Time{}, false
	}
	weekStart, err := time.Parse("2006-01-02", raw)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "week_start must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return weekStart, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
