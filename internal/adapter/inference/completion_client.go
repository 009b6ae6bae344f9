package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"policy-copilot/internal/domain"
	"policy-copilot/internal/infra/resilience"
)

// ChatMessage is one turn in a chat completion request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatCompletionRequest is the request payload for the chat completions
// endpoint.
type ChatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

// ChatCompletionResponse is the response from the chat completions endpoint.
type ChatCompletionResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Model string `json:"model"`
}

// CompletionClient implements domain.ChatClient against an OpenAI-compatible
// chat completions endpoint. A token-bucket limiter smooths request bursts so
// expansion and synthesis calls do not trip upstream rate limits.
type CompletionClient struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	Client      *http.Client
	limiter     *rate.Limiter
	logger      *slog.Logger
	exec        *resilience.Executor
}

// NewCompletionClient constructs a completion client. requestsPerSecond <= 0
// disables rate limiting. If client is nil, a default http.Client is created
// with the given timeout.
func NewCompletionClient(baseURL, model, apiKey string, temperature, requestsPerSecond float64, timeout time.Duration, logger *slog.Logger, exec *resilience.Executor, client ...*http.Client) *CompletionClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return &CompletionClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Model:       model,
		APIKey:      apiKey,
		Temperature: temperature,
		Client:      c,
		limiter:     limiter,
		logger:      logger,
		exec:        exec,
	}
}

var _ domain.ChatClient = (*CompletionClient)(nil)

// Complete sends a system and user message pair and returns the assistant
// reply text.
func (c *CompletionClient) Complete(ctx context.Context, system, user string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	var answer string
	call := func(ctx context.Context) error {
		a, err := c.completeOnce(ctx, system, user)
		if err != nil {
			return err
		}
		answer = a
		return nil
	}

	var err error
	if c.exec != nil {
		err = c.exec.Execute(ctx, "chat_completion", call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (c *CompletionClient) completeOnce(ctx context.Context, system, user string) (string, error) {
	startTime := time.Now()

	c.logger.Info("completion_started",
		slog.String("model", c.Model),
		slog.Int("system_len", len(system)),
		slog.Int("user_len", len(user)))

	jsonPayload, err := json.Marshal(ChatCompletionRequest{
		Model: c.Model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		c.logger.Warn("completion_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return "", fmt.Errorf("failed to call completions endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Warn("completion_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", truncateString(string(body), 500)),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return "", fmt.Errorf("completions endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 200))
	}

	var completionResp ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completionResp); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}
	if len(completionResp.Choices) == 0 {
		return "", fmt.Errorf("completions endpoint returned no choices")
	}

	answer := completionResp.Choices[0].Message.Content
	c.logger.Info("completion_completed",
		slog.Int("answer_len", len(answer)),
		slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
	return answer, nil
}

// Version returns the completion model identifier.
func (c *CompletionClient) Version() string {
	return c.Model
}
