// Package mimo implements the gateway capability for the lusophone-market
// provider. The provider runs two incompatible protocol versions behind one
// logical service: the current bearer-token API and the legacy
// application_id/application_token API. A single logical attempt may try
// both, in that fixed order; this protocol fallback is internal to the
// adapter and distinct from the orchestrator's provider-level fallback.
package mimo

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

const (
	defaultMaxBodyBytes = 16 * 1024
	statusAccepted      = "accepted"
)

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

// WithV2BaseURL overrides the current-protocol base URL. Useful for tests.
func WithV2BaseURL(baseURL string) Option {
	return func(a *Adapter) {
		a.v2BaseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithV1BaseURL overrides the legacy-protocol base URL. Useful for tests.
func WithV1BaseURL(baseURL string) Option {
	return func(a *Adapter) {
		a.v1BaseURL = strings.TrimRight(baseURL, "/")
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

// Adapter sends messages through the mimo HTTP API, preferring the current
// protocol and falling back to the legacy one on credential-class errors.
type Adapter struct {
	logger       zerolog.Logger
	bearerToken  string
	appID        string
	appToken     string
	legacyOnly   bool
	v2BaseURL    string
	v1BaseURL    string
	timeout      time.Duration
	httpClient   HTTPClient
	maxBodyBytes int64
}

// New constructs a mimo adapter. A colon in the configured token marks a
// legacy application_id:application_token pair, in which case the current
// protocol is skipped entirely.
func New(cfg config.MimoConfig, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("mimo adapter: token is required")
	}
	if reflect.ValueOf(logger).IsZero() {
		logger = zerolog.Nop()
	}

	a := &Adapter{
		logger:       logger,
		v2BaseURL:    strings.TrimRight(cfg.V2BaseURL, "/"),
		v1BaseURL:    strings.TrimRight(cfg.V1BaseURL, "/"),
		timeout:      15 * time.Second,
		maxBodyBytes: defaultMaxBodyBytes,
	}

	if id, secret, ok := strings.Cut(token, ":"); ok {
		a.legacyOnly = true
		a.appID = strings.TrimSpace(id)
		a.appToken = strings.TrimSpace(secret)
	} else {
		a.bearerToken = token
		a.appID = strings.TrimSpace(cfg.ApplicationID)
		a.appToken = token
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
func (a *Adapter) ID() models.GatewayID { return models.GatewayMimo }

// Send performs one logical attempt against the provider. Bearer
// credentials go to the current protocol first; an HTTP 401/404 from it
// retries once via the legacy protocol. Legacy pair credentials go straight
// to the legacy protocol. Any other failure is terminal for the attempt.
func (a *Adapter) Send(ctx context.Context, req *gateway.SendRequest) (*models.SendResult, error) {
	result := &models.SendResult{Gateway: models.GatewayMimo}

	to, err := gateway.NormalizeDestination(req.To, req.Country)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	if a.legacyOnly {
		return a.sendLegacy(ctx, result, to, req)
	}

	smsID, err := a.sendCurrent(ctx, to, req)
	if err == nil {
		result.Success = true
		result.MessageID = smsID
		return result, nil
	}
	if !errors.Is(err, gateway.ErrAuth) {
		result.Error = err.Error()
		return result, err
	}

	a.logger.Warn().Str("to", to).Err(err).Msg("mimo current protocol refused credentials, retrying via legacy protocol")
	return a.sendLegacy(ctx, result, to, req)
}

type v2Recipient struct {
	Number  string `json:"number"`
	Country string `json:"country"`
}

type v2Payload struct {
	Recipients []v2Recipient `json:"recipients"`
	Text       string        `json:"text"`
	SenderID   string        `json:"sender_id"`
	SenderType string        `json:"sender_type"`
	Unicode    bool          `json:"unicode"`
}

type v1Payload struct {
	ApplicationID    string `json:"application_id"`
	ApplicationToken string `json:"application_token"`
	Number           string `json:"number"`
	Text             string `json:"text"`
	Country          string `json:"country"`
	SenderID         string `json:"sender_id"`
	SenderIDValue    string `json:"sender_id_value"`
	Unicode          bool   `json:"unicode"`
}

type apiResponse struct {
	Data []struct {
		Status string `json:"status"`
		SMSID  string `json:"sms_id"`
		Reason string `json:"reason"`
	} `json:"data"`
	Message string `json:"message"`
}

func (a *Adapter) sendCurrent(ctx context.Context, to string, req *gateway.SendRequest) (string, error) {
	payload := v2Payload{
		Recipients: []v2Recipient{{Number: to, Country: req.Country.String()}},
		Text:       req.Text,
		SenderID:   req.SenderID,
		SenderType: "text",
		Unicode:    req.Unicode,
	}

	body, status, err := a.post(ctx, a.v2BaseURL+"/sms/send", payload, func(httpReq *http.Request) {
		httpReq.Header.Set("Authorization", "Bearer "+a.bearerToken)
	})
	if err != nil {
		return "", err
	}
	if status == http.StatusUnauthorized || status == http.StatusNotFound {
		return "", gateway.WrapAuth(fmt.Errorf("mimo adapter: current protocol http %d: %s", status, responseMessage(body)))
	}
	return parseResult(body, status)
}

func (a *Adapter) sendLegacy(ctx context.Context, result *models.SendResult, to string, req *gateway.SendRequest) (*models.SendResult, error) {
	payload := v1Payload{
		ApplicationID:    a.appID,
		ApplicationToken: a.appToken,
		Number:           to,
		Text:             req.Text,
		Country:          req.Country.String(),
		SenderID:         "text",
		SenderIDValue:    req.SenderID,
		Unicode:          req.Unicode,
	}

	body, status, err := a.post(ctx, a.v1BaseURL+"/simple/transactional", payload, nil)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		wrapped := gateway.WrapAuth(fmt.Errorf("mimo adapter: legacy protocol http %d: %s", status, responseMessage(body)))
		result.Error = wrapped.Error()
		return result, wrapped
	}

	smsID, err := parseResult(body, status)
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	result.Success = true
	result.MessageID = smsID
	return result, nil
}

func (a *Adapter) post(ctx context.Context, endpoint string, payload any, decorate func(*http.Request)) ([]byte, int, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("mimo adapter: marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, 0, gateway.WrapNetwork(fmt.Errorf("mimo adapter: new request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if decorate != nil {
		decorate(httpReq)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, gateway.WrapNetwork(fmt.Errorf("mimo adapter: http do: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, gateway.WrapNetwork(fmt.Errorf("mimo adapter: read body: %w", err))
	}
	return body, resp.StatusCode, nil
}

// parseResult applies the success criterion shared by both protocol
// versions: a data array whose first element reports status "accepted".
func parseResult(body []byte, status int) (string, error) {
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Data) == 0 {
		return "", gateway.WrapRejected(fmt.Errorf("mimo adapter: http %d: unexpected response shape: %s", status, responseMessage(body)))
	}

	first := parsed.Data[0]
	if !strings.EqualFold(first.Status, statusAccepted) {
		reason := first.Reason
		if reason == "" {
			reason = first.Status
		}
		return "", gateway.WrapRejected(fmt.Errorf("mimo adapter: message not accepted: %s", reason))
	}
	return first.SMSID, nil
}

func responseMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}
	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		return parsed.Message
	}
	return trimmed
}
