package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	pollTimeout = 30 // seconds, server side
	pollBackoff = 5 * time.Second
)

// CommandHandler answers one bot command. An empty reply sends nothing.
type CommandHandler func(ctx context.Context, command string) string

type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

type updatesResponse struct {
	apiResponse
	Result []telegramUpdate `json:"result"`
}

// StartPolling long-polls getUpdates and dispatches commands from the
// configured chat. Blocks until ctx is cancelled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	client := &http.Client{Timeout: (pollTimeout + 5) * time.Second, Transport: t.Client.Transport}
	offset := 0
	for ctx.Err() == nil {
		updates, err := t.getUpdates(ctx, client, offset)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			zap.L().Warn("telegram getUpdates failed", zap.Error(err))
			sleepCtx(ctx, pollBackoff)
			continue
		}
		offset = t.dispatch(ctx, updates, offset, handler)
	}
	zap.L().Info("telegram polling stopped")
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, client *http.Client, offset int) ([]telegramUpdate, error) {
	q := url.Values{}
	q.Set("offset", strconv.Itoa(offset))
	q.Set("timeout", strconv.Itoa(pollTimeout))
	q.Set("allowed_updates", `["message"]`)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint("getUpdates")+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode updates (status %d): %w", resp.StatusCode, err)
	}
	if !out.OK {
		return nil, &APIError{Status: resp.StatusCode, Description: out.Description}
	}
	return out.Result, nil
}

// dispatch handles updates and returns the next offset.
func (t *TelegramNotifier) dispatch(ctx context.Context, updates []telegramUpdate, offset int, handler CommandHandler) int {
	for _, update := range updates {
		offset = update.UpdateID + 1
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		if t.ChatID != "" && strconv.FormatInt(update.Message.Chat.ID, 10) != t.ChatID {
			zap.L().Debug("ignoring message from foreign chat", zap.Int64("chat_id", update.Message.Chat.ID))
			continue
		}
		command := normalizeCommand(update.Message.Text)
		zap.L().Info("received command", zap.String("command", command))
		if reply := handler(ctx, command); reply != "" {
			if err := t.Notify(ctx, reply); err != nil {
				zap.L().Error("send reply", zap.Error(err))
			}
		}
	}
	return offset
}

// normalizeCommand trims text and drops a "@botname" suffix from the command
// word, as group chats send "/scan@bot 1h".
func normalizeCommand(text string) string {
	text = strings.TrimSpace(text)
	word, rest, _ := strings.Cut(text, " ")
	if at := strings.IndexByte(word, '@'); at > 0 && strings.HasPrefix(word, "/") {
		word = word[:at]
	}
	if rest == "" {
		return word
	}
	return word + " " + strings.TrimSpace(rest)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
