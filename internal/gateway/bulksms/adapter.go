// Package bulksms implements the gateway capability for the international
// provider reached with a single JSON POST and HTTP basic authentication.
package bulksms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/lusosms/dispatch-engine/internal/config"
	"github.com/lusosms/dispatch-engine/internal/gateway"
	"github.com/lusosms/dispatch-engine/internal/models"
)

const defaultMaxBodyBytes = 16 * 1024

// HTTPClient abstracts the http.Client Do method for easier testing.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option customises the adapter during construction.
type Option func(*Adapter)

// WithHTTPClient overrides the HTTP client used to talk to the provider.
func WithHTTPClient(client HTTPClient) Option {
	return func(a *Adapter) {
		if client != nil {
			a.httpClient = client
		}
	}
}

// WithBaseURL overrides the API base URL. Useful for tests.
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) {
		a.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout bounds each outbound call when the default client is used.
func WithTimeout(d time.Duration) Option {
	return func(a *Adapter) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// Adapter sends messages through the bulksms HTTP API.
type Adapter struct {
	logger       zerolog.Logger
	tokenID      string
	tokenSecret  string
	baseURL      string
	timeout      time.Duration
	httpClient   HTTPClient
	maxBodyBytes int64
}

// New constructs a bulksms adapter from the supplied credentials.
func New(cfg config.BulkSMSConfig, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	if strings.TrimSpace(cfg.TokenID) == "" {
		return nil, errors.New("bulksms adapter: token id is required")
	}
	if strings.TrimSpace(cfg.TokenSecret) == "" {
		return nil, errors.New("bulksms adapter: token secret is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &Adapter{
		logger:       logger,
		tokenID:      strings.TrimSpace(cfg.TokenID),
		tokenSecret:  strings.TrimSpace(cfg.TokenSecret),
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		timeout:      15 * time.Second,
		maxBodyBytes: defaultMaxBodyBytes,
	}
	if a.baseURL == "" {
		a.baseURL = "https://api.bulksms.com"
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	if a.httpClient == nil {
		a.httpClient = &http.Client{Timeout: a.timeout}
	}
	return a, nil
}

// ID implements gateway.Gateway.
func (a *Adapter) ID() models.GatewayID { return models.GatewayBulkSMS }

type sendPayload struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

// Send performs one POST to the provider and maps its response onto a
// SendResult. Success is a 2xx status with a non-empty response array; the
// first element's id becomes the provider message id.
func (a *Adapter) Send(ctx context.Context, req *gateway.SendRequest) (*models.SendResult, error) {
	result := &models.SendResult{Gateway: models.GatewayBulkSMS}

	to, err := gateway.NormalizeDestination(req.To, req.Country)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	payload, err := json.Marshal(sendPayload{To: to, From: req.SenderID, Body: req.Text})
	if err != nil {
		wrapped := fmt.Errorf("bulksms adapter: marshal payload: %w", err)
		result.Error = wrapped.Error()
		return result, wrapped
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		wrapped := gateway.WrapNetwork(fmt.Errorf("bulksms adapter: new request: %w", err))
		result.Error = wrapped.Error()
		return result, wrapped
	}
	httpReq.SetBasicAuth(a.tokenID, a.tokenSecret)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		wrapped := gateway.WrapNetwork(fmt.Errorf("bulksms adapter: http do: %w", err))
		result.Error = wrapped.Error()
		a.logger.Warn().Str("to", to).Err(err).Msg("bulksms send failed before a response arrived")
		return result, wrapped
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBodyBytes))
	if err != nil {
		wrapped := gateway.WrapNetwork(fmt.Errorf("bulksms adapter: read body: %w", err))
		result.Error = wrapped.Error()
		return result, wrapped
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		wrapped := gateway.WrapAuth(fmt.Errorf("bulksms adapter: http %d: %s", resp.StatusCode, errorDetail(body)))
		result.Error = wrapped.Error()
		return result, wrapped
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		wrapped := gateway.WrapRejected(fmt.Errorf("bulksms adapter: http %d: %s", resp.StatusCode, errorDetail(body)))
		result.Error = wrapped.Error()
		return result, wrapped
	}

	var accepted []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &accepted); err != nil || len(accepted) == 0 {
		wrapped := gateway.WrapRejected(fmt.Errorf("bulksms adapter: unexpected response shape: %s", errorDetail(body)))
		result.Error = wrapped.Error()
		return result, wrapped
	}

	result.Success = true
	result.MessageID = accepted[0].ID
	a.logger.Debug().Str("to", to).Str("provider_id", result.MessageID).Msg("bulksms send accepted")
	return result, nil
}

type errorBody struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

// errorDetail extracts the provider's detail message from an error body,
// falling back to the trimmed raw body.
func errorDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}
	var parsed errorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			return parsed.Detail
		}
		if parsed.Title != "" {
			return parsed.Title
		}
	}
	return trimmed
}
