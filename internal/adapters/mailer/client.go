package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsroom/internal/domain"
	"newsroom/internal/infra/metrics"
)

// Client отправляет письма через HTTP-ретранслятор почты.
type Client struct {
	apiURL     string
	token      string
	from       string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

func New(apiURL, token, from string, opts ...Option) (*Client, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("apiURL is required")
	}
	client := &Client{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		token:      token,
		from:       from,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body"`
}

// Send реализует domain.Mailer: одно письмо на весь список получателей.
func (c *Client) Send(ctx context.Context, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return nil
	}

	raw, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      recipients,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/messages", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveNetworkRequest("mailer", "send", "mail_relay", start, err)
	if err != nil {
		return fmt.Errorf("mail api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail api error: status=%d message=%s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

var _ domain.Mailer = (*Client)(nil)
