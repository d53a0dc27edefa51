// Package telegram delivers alerts through the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotConfigured is returned by New when the token or chat id is missing.
var ErrNotConfigured = errors.New("telegram bot token and chat id are required")

// Config captures bot credentials.
type Config struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Timeout  time.Duration
}

// Client implements sentinel.Notifier.
type Client struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BotToken) == "" || strings.TrimSpace(cfg.ChatID) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.telegram.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		token:      cfg.BotToken,
		chatID:     cfg.ChatID,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Send posts text to the configured chat. There are no retries.
func (c *Client) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                c.chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal sendMessage: %w", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// The URL embeds the token; never surface it.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return fmt.Errorf("telegram sendMessage: %w", uerr.Err)
		}
		return errors.New("telegram sendMessage: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram API error: status %d: %s", resp.StatusCode, describe(raw))
	}
	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && !decoded.OK {
		return fmt.Errorf("telegram API error: %s", decoded.Description)
	}
	return nil
}

func describe(raw []byte) string {
	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err == nil && decoded.Description != "" {
		return decoded.Description
	}
	return string(bytes.TrimSpace(raw))
}
