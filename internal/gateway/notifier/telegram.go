package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pricewatch/internal/logger"
)

// maxMessageLen is the Telegram sendMessage text cap.
const maxMessageLen = 4096

const defaultAPIBase = "https://api.telegram.org"

// bodyBuilder produces one request body plus its content type. It runs once
// per attempt: a multipart writer generates a fresh boundary each time, so
// the header must always come from the same build as the body it describes.
type bodyBuilder func() (io.Reader, string, error)

// Telegram pushes analysis text and rendered charts to a chat or channel.
type Telegram struct {
	BotToken string
	ChatID   string
	Client   *http.Client
	// APIBase overrides the Bot API origin, mainly for tests.
	APIBase string
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{BotToken: botToken, ChatID: chatID, Client: &http.Client{Timeout: 30 * time.Second}}
}

func (t *Telegram) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// SendText sends a Markdown message, splitting anything over the API cap
// into sequential chunks. Each chunk is retried up to 3 times.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	if !t.Enabled() {
		return fmt.Errorf("telegram bot token or chat id missing")
	}
	for _, chunk := range splitMessage(text, maxMessageLen) {
		payload := map[string]any{
			"chat_id":    t.ChatID,
			"text":       chunk,
			"parse_mode": "Markdown",
		}
		body, _ := json.Marshal(payload)
		err := t.post(ctx, "sendMessage", func() (io.Reader, string, error) {
			return bytes.NewReader(body), "application/json", nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// SendPhoto uploads a local image with an optional caption.
func (t *Telegram) SendPhoto(ctx context.Context, path, caption string) error {
	if !t.Enabled() {
		return fmt.Errorf("telegram bot token or chat id missing")
	}
	return t.post(ctx, "sendPhoto", func() (io.Reader, string, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", err
		}
		defer f.Close()

		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		if err := w.WriteField("chat_id", t.ChatID); err != nil {
			return nil, "", err
		}
		if caption != "" {
			if err := w.WriteField("caption", caption); err != nil {
				return nil, "", err
			}
		}
		part, err := w.CreateFormFile("photo", filepath.Base(path))
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, "", err
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return &buf, w.FormDataContentType(), nil
	})
}

func (t *Telegram) post(ctx context.Context, method string, build bodyBuilder) error {
	url := fmt.Sprintf("%s/bot%s/%s", t.base(), t.BotToken, method)
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}
		body, contentType, err := build()
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)
		resp, err := t.Client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("telegram %s status=%d: %s", method, resp.StatusCode, bytes.TrimSpace(respBody))
		logger.Warnf("[telegram] %v (attempt %d/3)", lastErr, i+1)
	}
	return lastErr
}

func (t *Telegram) base() string {
	if t.APIBase != "" {
		return strings.TrimRight(t.APIBase, "/")
	}
	return defaultAPIBase
}

// splitMessage cuts text into chunks of at most limit runes, preferring to
// break on a newline near the boundary.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var out []string
	for len(runes) > 0 {
		if len(runes) <= limit {
			out = append(out, string(runes))
			break
		}
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	return out
}
