package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds the payment provider settings.
type Config struct {
	BaseURL string
	APIKey  string
	// WebhookSecret signs callback bodies. Empty disables verification
	// (development only).
	WebhookSecret string
	// CallbackURL is the public URL the provider posts confirmations to.
	CallbackURL string
	Timeout     time.Duration
	// StaleAfter is how long an initiated payment may sit before the
	// retention sweep fails it.
	StaleAfter time.Duration
	// FeePercent is the platform's cut of each unlock, in whole percent.
	FeePercent int
}

// ConfigFromEnv reads provider config from env vars.
func ConfigFromEnv() Config {
	cfg := Config{
		BaseURL:       "https://api.payway.co.ke",
		Timeout:       30 * time.Second,
		StaleAfter:    24 * time.Hour,
		FeePercent:    50,
		APIKey:        os.Getenv("PAYWAY_API_KEY"),
		WebhookSecret: os.Getenv("PAYWAY_WEBHOOK_SECRET"),
	}
	if v := os.Getenv("PAYWAY_API_URL"); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("PAYMENT_CALLBACK_URL"); v != "" {
		cfg.CallbackURL = v
	} else if base := os.Getenv("BASE_URL"); base != "" {
		cfg.CallbackURL = strings.TrimRight(base, "/") + "/api/payments/callback"
	}
	if v := os.Getenv("PAYWAY_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Timeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("PAYMENT_STALE_AFTER_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StaleAfter = time.Duration(n) * time.Hour
		}
	}
	if v := os.Getenv("PLATFORM_FEE_PERCENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 100 {
			cfg.FeePercent = n
		}
	}
	return cfg
}

var (
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrProviderRejected    = errors.New("payment provider rejected request")
)

// GatewayRequest is one outbound charge request.
type GatewayRequest struct {
	AmountCents int64
	Msisdn      string
	Description string
	MerchantRef string
}

// Gateway is the payment provider port. InitiatePayment pushes a charge to
// the subscriber's phone and returns the provider's transaction reference.
type Gateway interface {
	InitiatePayment(ctx context.Context, req GatewayRequest) (string, error)
}

// PaywayGateway calls the Payway mobile-money API over HTTPS.
type PaywayGateway struct {
	baseURL     string
	apiKey      string
	callbackURL string
	client      *http.Client
	logger      *zap.SugaredLogger
}

func NewPaywayGateway(cfg Config, logger *zap.SugaredLogger) *PaywayGateway {
	return &PaywayGateway{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		callbackURL: cfg.CallbackURL,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
	}
}

func (g *PaywayGateway) InitiatePayment(ctx context.Context, req GatewayRequest) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"amount":       req.AmountCents,
		"currency":     "KES",
		"msisdn":       req.Msisdn,
		"description":  req.Description,
		"merchant_ref": req.MerchantRef,
		"callback_url": g.callbackURL,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/payments", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", ErrProviderUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 300 {
		g.logger.Warnw("provider rejected charge", "status", resp.StatusCode, "merchant_ref", req.MerchantRef)
		return "", fmt.Errorf("%w: status %d", ErrProviderRejected, resp.StatusCode)
	}

	var out struct {
		TransactionID string `json:"transaction_id"`
	}
	if err := json.Unmarshal(body, &out); err != nil || out.TransactionID == "" {
		return "", fmt.Errorf("%w: malformed response", ErrProviderRejected)
	}
	return out.TransactionID, nil
}

// SignCallback computes the hex HMAC-SHA256 the provider attaches to callback
// bodies in the X-Payway-Signature header.
func SignCallback(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallback checks a callback signature in constant time.
func VerifyCallback(secret string, body []byte, signature string) bool {
	expected := SignCallback(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
