package clicksend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	DefaultEndpoint = "https://rest.clicksend.com/v3/sms/send"
	DefaultSender   = "DP WORLD"
	messageSource   = "roster-notify"
	requestTimeout  = 30 * time.Second
)

// Client sends SMS through the ClickSend REST API
type Client struct {
	username   string
	apiKey     string
	sender     string
	endpoint   string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithEndpoint overrides the send endpoint (tests point this at an httptest server)
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithSender sets the alphanumeric sender id shown on the handset
func WithSender(sender string) Option {
	return func(c *Client) {
		if sender != "" {
			c.sender = sender
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a ClickSend client authenticating with username and API key
func NewClient(username, apiKey string, opts ...Option) (*Client, error) {
	if username == "" || apiKey == "" {
		return nil, fmt.Errorf("clicksend username and api key are required")
	}

	c := &Client{
		username:   username,
		apiKey:     apiKey,
		sender:     DefaultSender,
		endpoint:   DefaultEndpoint,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type smsMessage struct {
	Source string `json:"source"`
	Body   string `json:"body"`
	To     string `json:"to"`
	From   string `json:"from"`
}

type sendRequest struct {
	Messages []smsMessage `json:"messages"`
}

type sendResponse struct {
	HTTPCode     int    `json:"http_code"`
	ResponseCode string `json:"response_code"`
	ResponseMsg  string `json:"response_msg"`
	Data         struct {
		Messages []struct {
			To     string `json:"to"`
			Status string `json:"status"`
		} `json:"messages"`
	} `json:"data"`
}

// SendSMS sends body to a single phone number
func (c *Client) SendSMS(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(sendRequest{
		Messages: []smsMessage{{Source: messageSource, Body: body, To: to, From: c.sender}},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create sms request: %w", err)
	}
	req.SetBasicAuth(c.username, c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send sms: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read sms response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clicksend returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return fmt.Errorf("failed to parse sms response: %w", err)
	}

	if parsed.ResponseCode != "" && parsed.ResponseCode != "SUCCESS" {
		return fmt.Errorf("clicksend rejected request: %s (%s)", parsed.ResponseCode, parsed.ResponseMsg)
	}

	// The envelope can succeed while the individual message is rejected
	for _, m := range parsed.Data.Messages {
		if m.Status != "" && m.Status != "SUCCESS" {
			return fmt.Errorf("clicksend rejected message to %s: %s", m.To, m.Status)
		}
	}

	return nil
}
