package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Reply is what a command produces: text, an optional photo, or both.
type Reply struct {
	Text    string
	Photo   []byte
	Caption string
}

// Empty reports whether there is nothing to send.
func (r Reply) Empty() bool { return r.Text == "" && len(r.Photo) == 0 }

// CommandHandler is called when a user message is received. chatID also
// serves as the analysis session key.
type CommandHandler func(ctx context.Context, chatID, text string) Reply

// telegramUpdate represents a Telegram update from long polling.
type telegramUpdate struct {
	UpdateID int `json:"update_id"`
	Message  *struct {
		Text string `json:"text"`
		Chat struct {
			ID int64 `json:"id"`
		} `json:"chat"`
	} `json:"message"`
}

// StartPolling begins long-polling for Telegram commands. Blocks until ctx
// is cancelled. Each message is handled on its own goroutine so a slow
// analysis never blocks a newer command from the same chat.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler, pollTimeout time.Duration) {
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	offset := 0
	client := &http.Client{Timeout: pollTimeout + 5*time.Second, Transport: t.Client.Transport}

	for {
		select {
		case <-ctx.Done():
			t.log.Info().Msg("telegram polling stopped")
			return
		default:
		}

		updates, err := t.getUpdates(ctx, client, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				t.log.Info().Msg("telegram polling stopped")
				return
			}
			t.log.Warn().Err(err).Msg("polling request failed")
			select {
			case <-ctx.Done():
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			offset = update.UpdateID + 1
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
			if t.ChatID != "" && chatID != t.ChatID {
				t.log.Warn().Str("chat_id", chatID).Msg("ignoring message from unknown chat")
				continue
			}
			text := strings.TrimSpace(update.Message.Text)
			t.log.Info().Str("chat_id", chatID).Str("text", text).Msg("received command")
			go t.dispatch(ctx, handler, chatID, text)
		}
	}
}

func (t *TelegramNotifier) dispatch(ctx context.Context, handler CommandHandler, chatID, text string) {
	reply := handler(ctx, chatID, text)
	if reply.Empty() {
		return
	}
	if err := t.SendReply(ctx, chatID, reply); err != nil {
		t.log.Error().Err(err).Str("chat_id", chatID).Msg("send reply")
	}
}

func (t *TelegramNotifier) getUpdates(ctx context.Context, client *http.Client, offset int, timeout time.Duration) ([]telegramUpdate, error) {
	apiURL := fmt.Sprintf("%s?offset=%d&timeout=%d", t.endpoint("getUpdates"), offset, int(timeout.Seconds()))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create polling request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read polling response: %w", err)
	}

	var result struct {
		OK          bool             `json:"ok"`
		Description string           `json:"description"`
		Result      []telegramUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode polling response: %w", err)
	}
	if !result.OK {
		return nil, fmt.Errorf("getUpdates: %s", result.Description)
	}
	return result.Result, nil
}
