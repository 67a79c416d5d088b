package payment

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sautihub/core-api/internal/auth"
	"github.com/sautihub/core-api/internal/metrics"
	"github.com/sautihub/core-api/internal/payment/entity"
)

// SignatureHeader carries the provider's HMAC over the callback body.
const SignatureHeader = "X-Payway-Signature"

const maxCallbackBytes = 1 << 20

// Handler exposes the payment-initiation endpoint and the provider callback.
type Handler struct {
	svc           *Service
	webhookSecret string
	metrics       *metrics.Metrics
	logger        *zap.SugaredLogger
}

func NewHandler(svc *Service, cfg Config, m *metrics.Metrics, logger *zap.SugaredLogger) *Handler {
	if cfg.WebhookSecret == "" {
		logger.Warn("PAYWAY_WEBHOOK_SECRET not set; callback signatures will not be verified")
	}
	return &Handler{svc: svc, webhookSecret: cfg.WebhookSecret, metrics: m, logger: logger}
}

// InitiateRequest is the body of POST /api/payments/initiate.
type InitiateRequest struct {
	ContentID   string `json:"content_id"`
	PhoneNumber string `json:"phone_number"`
}

func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	id, ok := auth.FromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	var req InitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	p, err := h.svc.Initiate(r.Context(), id.UserID, req.ContentID, req.PhoneNumber)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidMSISDN), errors.Is(err, ErrContentExpired):
			h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrAlreadyOwned):
			h.writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrContentNotFound):
			h.writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, ErrProviderUnavailable), errors.Is(err, ErrProviderRejected):
			h.writeJSON(w, http.StatusBadGateway, map[string]string{"error": "payment provider unavailable, try again shortly"})
		default:
			h.logger.Errorw("payment initiation failed", "user_id", id.UserID, "content_id", req.ContentID, "err", err)
			h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "payment initiation failed"})
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"message":         "payment initiated",
		"transaction_ref": p.TransactionRef,
		"amount_cents":    p.AmountCents,
	})
}

// CallbackPayload is the provider's confirmation body.
type CallbackPayload struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
}

// Callback handles POST /api/payments/callback. Everything the processor can
// absorb is acknowledged with 200 so the provider stops redelivering; only
// storage failures return 500, making redelivery the retry mechanism.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		h.metrics.RecordCallback("invalid")
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	if h.webhookSecret != "" {
		sig := r.Header.Get(SignatureHeader)
		if sig == "" || !VerifyCallback(h.webhookSecret, body, sig) {
			h.logger.Warnw("callback signature rejected", "remote", r.RemoteAddr, "signed", sig != "")
			h.metrics.RecordCallback("invalid")
			h.writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid signature"})
			return
		}
	}

	var payload CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil || payload.TransactionID == "" || payload.Status == "" {
		h.logger.Warnw("malformed callback payload", "remote", r.RemoteAddr, "err", err)
		h.metrics.RecordCallback("invalid")
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	outcome, ok := mapProviderStatus(payload.Status)
	if !ok {
		// Interim statuses must not poison the provider's retry loop.
		h.logger.Infow("ignoring non-terminal provider status",
			"transaction_ref", payload.TransactionID, "status", payload.Status)
		h.metrics.RecordCallback("ignored")
		h.writeJSON(w, http.StatusOK, map[string]string{"message": "acknowledged"})
		return
	}

	if _, err := h.svc.Confirm(r.Context(), payload.TransactionID, outcome); err != nil {
		h.logger.Errorw("callback processing failed",
			"transaction_ref", payload.TransactionID, "outcome", outcome, "err", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "processing failed"})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "acknowledged"})
}

// mapProviderStatus folds the provider's status vocabulary onto the two
// terminal outcomes. Anything else is treated as interim.
func mapProviderStatus(status string) (entity.Outcome, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "success":
		return entity.OutcomeSuccess, true
	case "failed", "cancelled":
		return entity.OutcomeFailure, true
	default:
		return "", false
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
