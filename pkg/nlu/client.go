package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// HTTPClient is the default Requester, speaking the backend's
// session-scoped query protocol over HTTP.
type HTTPClient struct {
	baseURL     string
	accessToken string
	language    string
	http        *http.Client
	logger      zerolog.Logger
}

// ClientConfig configures the HTTP backend client.
type ClientConfig struct {
	BaseURL     string
	AccessToken string
	Language    string
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// NewHTTPClient creates a backend client.
func NewHTTPClient(cfg ClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &HTTPClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		language:    cfg.Language,
		http:        cfg.HTTPClient,
		logger:      cfg.Logger.With().Str("component", "nlu-client").Logger(),
	}, nil
}

type queryEvent struct {
	Name string `json:"name"`
}

type queryBody struct {
	SessionID string      `json:"sessionId"`
	Lang      string      `json:"lang"`
	Query     string      `json:"query,omitempty"`
	Event     *queryEvent `json:"event,omitempty"`
}

// Query issues one backend call and returns the raw JSON reply.
func (c *HTTPClient) Query(ctx context.Context, req Request) (json.RawMessage, error) {
	if req.SessionID == "" {
		return nil, &BackendError{Err: fmt.Errorf("session id is required")}
	}
	if (req.Text == "") == (req.EventName == "") {
		return nil, &BackendError{Err: fmt.Errorf("exactly one of text or event name is required")}
	}

	body := queryBody{
		SessionID: req.SessionID,
		Lang:      c.language,
		Query:     req.Text,
	}
	if req.EventName != "" {
		body.Event = &queryEvent{Name: req.EventName}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &BackendError{Err: fmt.Errorf("failed to marshal query: %w", err)}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, &BackendError{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, &BackendError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &BackendError{Status: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &BackendError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(raw))),
		}
	}

	c.logger.Debug().
		Str("sessionId", req.SessionID).
		Int("status", resp.StatusCode).
		Msg("Backend responded")

	return raw, nil
}
