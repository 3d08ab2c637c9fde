// Package whatsappclient wraps the WhatsApp gateway REST endpoints used to
// push outbound messages. It implements messaging.Gateway.
package whatsappclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/citaflow/citaflow/internal/messaging"
)

const defaultUserAgent = "citaflow-messaging/0.1"

// Config controls how the client behaves.
type Config struct {
	BaseURL    string
	APIKey     string
	SenderID   string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	UserAgent  string
}

// Client talks to the WhatsApp gateway.
type Client struct {
	apiKey     string
	baseURL    string
	senderID   string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *slog.Logger
	userAgent  string
}

// New creates a configured Client with sane defaults.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("whatsappclient: API key is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("whatsappclient: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		senderID:   cfg.SenderID,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		userAgent:  userAgent,
	}, nil
}

type sendPayload struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Kind     string `json:"kind"`
	Body     string `json:"body,omitempty"`
	MediaURL string `json:"media_url,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type sendResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// SendText delivers a plain text message.
func (c *Client) SendText(ctx context.Context, recipient, sender, body string) (string, error) {
	if strings.TrimSpace(recipient) == "" {
		return "", errors.New("whatsappclient: recipient required")
	}
	if strings.TrimSpace(body) == "" {
		return "", errors.New("whatsappclient: body required")
	}
	return c.send(ctx, sendPayload{
		From: c.senderOr(sender),
		To:   recipient,
		Kind: string(messaging.KindText),
		Body: body,
	})
}

// SendMedia delivers one media item.
func (c *Client) SendMedia(ctx context.Context, out messaging.Outbound) (string, error) {
	if strings.TrimSpace(out.Recipient) == "" {
		return "", errors.New("whatsappclient: recipient required")
	}
	if strings.TrimSpace(out.MediaURL) == "" {
		return "", errors.New("whatsappclient: media url required")
	}
	return c.send(ctx, sendPayload{
		From:     c.senderOr(out.Sender),
		To:       out.Recipient,
		Kind:     string(out.Kind),
		MediaURL: out.MediaURL,
		Caption:  out.Caption,
		Filename: out.Filename,
	})
}

func (c *Client) senderOr(sender string) string {
	if strings.TrimSpace(sender) != "" {
		return sender
	}
	return c.senderID
}

func (c *Client) send(ctx context.Context, payload sendPayload) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("whatsappclient: marshal send body: %w", err)
	}
	data, err := c.invoke(ctx, http.MethodPost, "/messages", body)
	if err != nil {
		return "", err
	}
	var resp sendResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("whatsappclient: decode response: %w", err)
	}
	if resp.Data.ID == "" {
		return "", errors.New("whatsappclient: response missing message id")
	}
	return resp.Data.ID, nil
}

func (c *Client) invoke(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	fullURL := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("whatsappclient: build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("User-Agent", c.userAgent)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if attempt == c.maxRetries {
				return nil, fmt.Errorf("whatsappclient: http error: %w", err)
			}
			lastErr = err
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}

		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("whatsappclient: read response: %w", readErr)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}

		apiErr := fmt.Errorf("whatsappclient: gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		if attempt < c.maxRetries && shouldRetry(resp.StatusCode) {
			lastErr = apiErr
			c.logger.Warn("retrying gateway call",
				"path", path,
				"attempt", attempt+1,
				"status", resp.StatusCode,
			)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, sleepErr
			}
			continue
		}
		return nil, apiErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.New("whatsappclient: request failed without response")
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func shouldRetry(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}
