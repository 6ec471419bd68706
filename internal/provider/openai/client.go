// Package openai implements translation and summary generation against an
// OpenAI-compatible chat completions endpoint.
package openai

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

	"github.com/rbright/talkthru/internal/language"
	"github.com/rbright/talkthru/internal/logging"
	"github.com/rbright/talkthru/internal/provider"
)

const name = "openai"

// Options configures a Client.
type Options struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
	Logger     *slog.Logger
}

// Client is both a provider.Translator and a provider.Summarizer.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	retry   provider.RetryPolicy
	logger  *slog.Logger
}

// New builds a Client. A missing API key is reported per call so a session
// can still start and fail individual turns with a missing credential.
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  strings.TrimSpace(opts.APIKey),
		model:   opts.Model,
		http:    &http.Client{Timeout: timeout},
		retry:   provider.RetryPolicy{MaxRetries: opts.MaxRetries, Backoff: 400 * time.Millisecond},
		logger:  logging.Component(opts.Logger, "openai"),
	}
}

// Translate renders text in pair.Target. Same-language pairs echo the input.
func (c *Client) Translate(ctx context.Context, text string, pair language.Pair) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty source text", provider.ErrTranslationFailed)
	}
	if !language.Supported(pair.Source.Code) || !language.Supported(pair.Target.Code) {
		return "", fmt.Errorf("%w: %s", provider.ErrUnsupportedLanguage, pair)
	}
	if pair.Source.Code == pair.Target.Code {
		return text, nil
	}

	messages := []message{
		{Role: "system", Content: translatePrompt(pair)},
		{Role: "user", Content: text},
	}
	return c.complete(ctx, messages, provider.ErrTranslationFailed)
}

// Summarize runs prompt as a single user message.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	messages := []message{
		{Role: "system", Content: "You summarize short spoken conversations between a volunteer coach and a newcomer. Follow the requested output format exactly."},
		{Role: "user", Content: prompt},
	}
	return c.complete(ctx, messages, provider.ErrTranslationFailed)
}

func translatePrompt(pair language.Pair) string {
	return fmt.Sprintf(
		"You are a professional interpreter. Translate the user's message from %s to %s. Keep the register and meaning. Reply with the translation only, no notes or quotes.",
		pair.Source.Name, pair.Target.Name,
	)
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

func (c *Client) complete(ctx context.Context, messages []message, kind error) (string, error) {
	if c.apiKey == "" {
		return "", &provider.Error{Provider: name, Kind: provider.ErrMissingCredential, Err: errors.New("api key is not configured")}
	}

	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Temperature: 0.2})
	if err != nil {
		return "", err
	}

	var out string
	attempt := 0
	err = c.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		text, err := c.post(ctx, body, kind)
		if err != nil {
			c.logger.Warn("completion failed", "attempt", attempt, "retryable", provider.IsRetryable(err), "error", err.Error())
			return err
		}
		out = text
		return nil
	})
	return out, err
}

func (c *Client) post(ctx context.Context, body []byte, kind error) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &provider.Error{Provider: name, Kind: kind, Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", provider.FromStatus(name, resp.StatusCode, kind, errors.New(apiMessage(raw)))
	}

	var payload chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", &provider.Error{Provider: name, Kind: kind, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(payload.Choices) == 0 {
		return "", &provider.Error{Provider: name, Kind: kind, Status: resp.StatusCode, Err: errors.New("no choices")}
	}
	text := strings.TrimSpace(payload.Choices[0].Message.Content)
	if text == "" {
		return "", &provider.Error{Provider: name, Kind: kind, Status: resp.StatusCode, Err: errors.New("empty completion")}
	}
	return text, nil
}

func apiMessage(raw []byte) string {
	var payload errorResponse
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "empty error body"
	}
	return msg
}
