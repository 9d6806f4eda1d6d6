package social

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

// Лимит длины публикации в X.
const maxPostRunes = 280

// XClient публикует анонсы через X API v2.
type XClient struct {
	apiURL     string
	token      string
	httpClient *http.Client
}

type XOption func(*XClient)

func WithXHTTPClient(client *http.Client) XOption {
	return func(c *XClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithXTimeout(timeout time.Duration) XOption {
	return func(c *XClient) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

func NewXClient(apiURL, token string, opts ...XOption) (*XClient, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("apiURL is required")
	}
	if token == "" {
		return nil, fmt.Errorf("token is required")
	}
	client := &XClient{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type tweetRequest struct {
	Text string `json:"text"`
}

// Post реализует domain.SocialPoster. Текст длиннее лимита обрезается по рунам.
func (c *XClient) Post(ctx context.Context, text string) error {
	raw, err := json.Marshal(tweetRequest{Text: Truncate(text, maxPostRunes)})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	metrics.ObserveNetworkRequest("social", "post", "x_api", start, err)
	if err != nil {
		return fmt.Errorf("x api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("x api error: status=%d message=%s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// Truncate обрезает текст до limit рун, не разрывая руну посередине.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

var _ domain.SocialPoster = (*XClient)(nil)
