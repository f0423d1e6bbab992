package notifier

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
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	defaultTelegramAPI = "https://api.telegram.org"
	// MaxMessageLen is the Bot API limit for one message, in characters.
	MaxMessageLen = 4096
)

// Notifier delivers a formatted message somewhere.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Noop discards messages; used when Telegram is not configured.
type Noop struct{}

func (Noop) Notify(context.Context, string) error { return nil }

// TelegramNotifier sends scan summaries and command replies through the Bot API.
type TelegramNotifier struct {
	BaseURL    string
	BotToken   string
	ChatID     string
	MaxRetries int
	Client     *http.Client
}

// APIError is a failed Bot API call. RetryAfter is set when Telegram asks the
// caller to slow down.
type APIError struct {
	Status      int
	Description string
	RetryAfter  time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error: status %d: %s", e.Status, e.Description)
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string) *TelegramNotifier {
	transport := &http.Transport{}
	if u, err := url.Parse(proxyURL); proxyURL != "" && err == nil {
		transport.Proxy = http.ProxyURL(u)
	}
	return &TelegramNotifier{
		BaseURL:    defaultTelegramAPI,
		BotToken:   botToken,
		ChatID:     chatID,
		MaxRetries: 3,
		Client:     &http.Client{Timeout: 30 * time.Second, Transport: transport},
	}
}

func (t *TelegramNotifier) endpoint(method string) string {
	base := t.BaseURL
	if base == "" {
		base = defaultTelegramAPI
	}
	return fmt.Sprintf("%s/bot%s/%s", strings.TrimRight(base, "/"), t.BotToken, method)
}

// Notify sends text, split into API-sized chunks, retrying each chunk.
func (t *TelegramNotifier) Notify(ctx context.Context, text string) error {
	for _, chunk := range SplitMessage(text, MaxMessageLen) {
		if err := t.SendWithRetry(ctx, chunk, t.MaxRetries); err != nil {
			return err
		}
	}
	return nil
}

// Send posts one HTML message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{
		ChatID:                t.ChatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed apiResponse
	decodeErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode == http.StatusOK && decodeErr == nil && parsed.OK {
		return nil
	}
	apiErr := &APIError{Status: resp.StatusCode, Description: parsed.Description}
	if apiErr.Description == "" {
		apiErr.Description = strings.TrimSpace(string(raw))
	}
	if parsed.Parameters != nil && parsed.Parameters.RetryAfter > 0 {
		apiErr.RetryAfter = time.Duration(parsed.Parameters.RetryAfter) * time.Second
	}
	return apiErr
}

// SendWithRetry retries Send with exponential backoff, or with the delay
// Telegram requests on 429.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		lastErr = t.Send(ctx, text)
		if lastErr == nil {
			return nil
		}
		if attempt == maxRetries {
			break
		}
		wait := time.Duration(1<<uint(attempt)) * time.Second
		var apiErr *APIError
		if errors.As(lastErr, &apiErr) && apiErr.RetryAfter > 0 {
			wait = apiErr.RetryAfter
		}
		zap.L().Warn("telegram send failed",
			zap.Int("attempt", attempt+1), zap.Int("max_attempts", maxRetries+1),
			zap.Duration("retry_in", wait), zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}

// SplitMessage cuts text into pieces of at most limit runes, preferring line
// breaks. An open <pre> block is closed and reopened across a cut.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}
	const openPre, closePre = "<pre>", "</pre>"
	budget := limit - len(closePre)
	if budget <= len(openPre) {
		budget = len(openPre) + 1
	}
	var (
		chunks []string
		cur    []rune
		inPre  bool
	)
	flush := func() {
		if len(cur) == 0 {
			return
		}
		s := string(cur)
		if inPre {
			s += closePre
		}
		chunks = append(chunks, s)
		cur = cur[:0]
		if inPre {
			cur = append(cur, []rune(openPre)...)
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		r := []rune(line)
		if len(cur)+len(r) > budget {
			flush()
		}
		for len(cur)+len(r) > budget {
			n := budget - len(cur)
			cur = append(cur, r[:n]...)
			r = r[n:]
			flush()
		}
		cur = append(cur, r...)
		if strings.Contains(line, openPre) {
			inPre = true
		}
		if strings.Contains(line, closePre) {
			inPre = false
		}
	}
	if len(cur) > 0 {
		chunks = append(chunks, string(cur))
	}
	return chunks
}
