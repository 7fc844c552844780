package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pricewatch/internal/logger"
)

// ChatClient talks to any OpenAI-compatible chat completions endpoint
// (OpenAI, DeepSeek, Qwen and friends all expose /v1/chat/completions).
type ChatClient struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// MaxRetries bounds retries on 429/5xx; 0 means the default of 2.
	MaxRetries   int
	Temperature  float64
	MaxTokens    int
	ExtraHeaders map[string]string
}

// Complete sends a system+user prompt pair and returns the first choice.
func (c *ChatClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	maxRetries := c.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	url := c.completionsURL()

	messages := []map[string]string{}
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	messages = append(messages, map[string]string{"role": "user", "content": userPrompt})

	temperature := c.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	payload := map[string]any{"model": c.Model, "messages": messages, "temperature": temperature}
	if c.MaxTokens > 0 {
		payload["max_tokens"] = c.MaxTokens
	}
	body, _ := json.Marshal(payload)

	httpc := &http.Client{Timeout: timeout}
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt == 0 {
			logger.Debugf("[ai] POST %s model=%s auth=%s body=%dB", url, c.Model, maskSecret(c.APIKey), len(body))
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}
		for k, v := range c.ExtraHeaders {
			req.Header.Set(k, v)
		}

		resp, err := httpc.Do(req)
		if err != nil {
			return "", err
		}
		if resp.StatusCode/100 == 2 {
			var r struct {
				Choices []struct {
					Message struct {
						Content string `json:"content"`
					} `json:"message"`
				} `json:"choices"`
			}
			derr := json.NewDecoder(resp.Body).Decode(&r)
			resp.Body.Close()
			if derr != nil {
				return "", derr
			}
			if len(r.Choices) == 0 {
				return "", fmt.Errorf("model returned no choices")
			}
			return r.Choices[0].Message.Content, nil
		}

		var eresp struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&eresp)
		retryAfter := resp.Header.Get("Retry-After")
		resp.Body.Close()

		msg := strings.TrimSpace(eresp.Error.Message)
		if msg == "" {
			msg = resp.Status
		}
		lastErr = fmt.Errorf("model call failed, status=%d: %s", resp.StatusCode, msg)
		if !retryableStatus(resp.StatusCode) || attempt == maxRetries {
			break
		}
		wait := time.Duration(0)
		if retryAfter != "" {
			if secs, perr := strconv.Atoi(retryAfter); perr == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		if wait == 0 {
			wait = (800 * time.Millisecond) << attempt
			if wait > 8*time.Second {
				wait = 8 * time.Second
			}
		}
		logger.Warnf("[ai] %v, retrying in %s (%d/%d)", lastErr, wait, attempt+1, maxRetries)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

// completionsURL normalizes BaseURL so a configured ".../chat/completions"
// suffix is not doubled.
func (c *ChatClient) completionsURL() string {
	url := c.BaseURL
	if url == "" {
		url = "https://api.openai.com/v1"
	}
	url = strings.TrimRight(url, "/")
	url = strings.TrimSuffix(url, "/chat/completions")
	return url + "/chat/completions"
}

func maskSecret(s string) string {
	if s == "" {
		return "none"
	}
	if len(s) <= 4 {
		return "****"
	}
	return "****" + s[len(s)-4:]
}

func retryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
