package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"traderelay/internal/logger"
)

const telegramAPI = "https://api.telegram.org"

// TelegramConfig points at the operator chat.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// Telegram sends messages through the Bot API. Transient failures are
// retried three times with a short backoff.
type Telegram struct {
	cfg    TelegramConfig
	client *http.Client
}

// NewTelegram builds a Telegram notifier.
func NewTelegram(cfg TelegramConfig) *Telegram {
	return &Telegram{cfg: cfg, client: &http.Client{Timeout: 10 * time.Second}}
}

// Send delivers text to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if !t.cfg.Enabled {
		return nil
	}
	payload, err := json.Marshal(map[string]any{
		"chat_id": t.cfg.ChatID,
		"text":    text,
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", telegramAPI, t.cfg.BotToken)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if lastErr = t.post(ctx, url, payload); lastErr == nil {
			return nil
		}
		logger.Warnf("telegram send attempt %d failed: %v", attempt, lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	return fmt.Errorf("telegram send failed after 3 attempts: %w", lastErr)
}

func (t *Telegram) post(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("telegram api status %d: %s", resp.StatusCode, body)
	}
	return nil
}
