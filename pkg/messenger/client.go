package messenger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// Client sends messages through a Graph-style send API.
type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
	logger      zerolog.Logger
}

// ClientConfig configures the send-API client.
type ClientConfig struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// NewClient creates a send-API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		accessToken: cfg.AccessToken,
		http:        cfg.HTTPClient,
		logger:      cfg.Logger.With().Str("component", "messenger").Logger(),
	}, nil
}

type sendBody struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message Message `json:"message"`
}

// Send delivers one message to the recipient.
func (c *Client) Send(ctx context.Context, recipientID string, msg Message) error {
	if recipientID == "" {
		return &SendError{Err: fmt.Errorf("recipient id is required")}
	}

	var body sendBody
	body.Recipient.ID = recipientID
	body.Message = msg

	payload, err := json.Marshal(body)
	if err != nil {
		return &SendError{RecipientID: recipientID, Err: fmt.Errorf("failed to marshal message: %w", err)}
	}

	endpoint := c.baseURL + "/me/messages?access_token=" + url.QueryEscape(c.accessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return &SendError{RecipientID: recipientID, Err: fmt.Errorf("failed to build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &SendError{RecipientID: recipientID, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return &SendError{
			RecipientID: recipientID,
			Status:      resp.StatusCode,
			Err:         fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(raw))),
		}
	}

	c.logger.Debug().Str("recipientId", recipientID).Msg("Message sent")
	return nil
}
