package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ctxpkg "github.com/stupiduntilnot/kontempo/internal/context"
	modelpkg "github.com/stupiduntilnot/kontempo/internal/model"
)

// EmptyResponse replaces a missing or blank completion.
const EmptyResponse = "(empty model response)"

// Client is a minimal OpenAI chat completions client.
type Client struct {
	apiKey      string
	url         string
	model       string
	temperature float64
	httpClient  *http.Client
}

// NewClient creates an OpenAI client.
func NewClient(apiKey, url, model string, temperature float64, timeout time.Duration) *Client {
	return &Client{
		apiKey:      apiKey,
		url:         url,
		model:       model,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
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
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatCompletion sends a chat completion request and returns a CompletionResponse.
func (c *Client) ChatCompletion(ctx context.Context, messages []ctxpkg.Message) (modelpkg.CompletionResponse, error) {
	wire := make([]message, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, message{Role: string(m.Role), Content: m.Content})
	}
	payload, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    wire,
		Temperature: c.temperature,
	})
	if err != nil {
		return modelpkg.CompletionResponse{}, fmt.Errorf("failed to marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return modelpkg.CompletionResponse{}, fmt.Errorf("failed to create openai request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return modelpkg.CompletionResponse{}, fmt.Errorf("openai request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return modelpkg.CompletionResponse{}, fmt.Errorf("failed reading openai response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return modelpkg.CompletionResponse{}, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       truncate(string(body), 400),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return modelpkg.CompletionResponse{}, fmt.Errorf("failed to parse openai response: %w (body=%s)", err, truncate(string(body), 400))
	}

	result := modelpkg.CompletionResponse{}
	if parsed.Usage != nil {
		result.InputTokens = parsed.Usage.PromptTokens
		result.OutputTokens = parsed.Usage.CompletionTokens
	}

	if len(parsed.Choices) == 0 {
		result.Content = EmptyResponse
		return result, nil
	}
	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		result.Content = EmptyResponse
		return result, nil
	}
	result.Content = content
	return result, nil
}

// StatusError is returned for a non-2xx chat completions response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openai non-success status=%d body=%s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
