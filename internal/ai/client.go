package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Classified call failures. The worker maps each kind to a distinct
// user-facing message, so they must stay distinguishable with errors.Is.
var (
	ErrScoringUnavailable   = errors.New("scoring service unavailable")
	ErrScoringAuth          = errors.New("scoring service rejected credentials")
	ErrScoringQuota         = errors.New("scoring service quota exhausted")
	ErrScoringNotConfigured = errors.New("scoring client not configured")
)

type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type GenerateRequest struct {
	Model           string
	Instructions    string
	Input           string
	Temperature     float64
	MaxOutputTokens int
}

type GenerateResult struct {
	Text    string
	ModelID string
	Usage   TokenUsage
}

// TextGenerator is the outbound boundary to the external scoring service.
type TextGenerator interface {
	Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error)
	Available() bool
}

type ScoringClientConfig struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Organization string
}

// ScoringClient talks to an OpenAI-compatible chat completions endpoint.
// One outbound call per Generate; retry policy is deliberately absent.
type ScoringClient struct {
	apiKey       string
	baseURL      string
	timeout      time.Duration
	httpClient   *http.Client
	organization string
}

func NewScoringClient(config ScoringClientConfig) *ScoringClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://api.openai.com/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &ScoringClient{
		apiKey:       strings.TrimSpace(config.APIKey),
		baseURL:      strings.TrimSuffix(config.BaseURL, "/"),
		timeout:      config.Timeout,
		httpClient:   config.HTTPClient,
		organization: strings.TrimSpace(config.Organization),
	}
}

func (c *ScoringClient) Available() bool {
	return c.apiKey != ""
}

func (c *ScoringClient) Generate(ctx context.Context, request GenerateRequest) (GenerateResult, error) {
	if !c.Available() {
		return GenerateResult{}, ErrScoringNotConfigured
	}
	if strings.TrimSpace(request.Model) == "" {
		return GenerateResult{}, errors.New("model is required")
	}
	if strings.TrimSpace(request.Input) == "" {
		return GenerateResult{}, errors.New("input is required")
	}

	payload := map[string]any{
		"model":       request.Model,
		"temperature": request.Temperature,
		"messages": []map[string]any{
			{"role": "system", "content": request.Instructions},
			{"role": "user", "content": request.Input},
		},
	}
	if request.MaxOutputTokens > 0 {
		payload["max_tokens"] = request.MaxOutputTokens
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("marshal scoring payload: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := http.NewRequestWithContext(
		timeoutCtx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(encoded))
	if err != nil {
		return GenerateResult{}, fmt.Errorf("create scoring request: %w", err)
	}
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")
	if c.organization != "" {
		httpRequest.Header.Set("OpenAI-Organization", c.organization)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return GenerateResult{}, fmt.Errorf("%w: timeout: %v", ErrScoringUnavailable, err)
		}
		return GenerateResult{}, fmt.Errorf("%w: transport: %v", ErrScoringUnavailable, err)
	}
	defer httpResponse.Body.Close()

	body, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("%w: read body: %v", ErrScoringUnavailable, err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return GenerateResult{}, classifyHTTPError(httpResponse.StatusCode, body)
	}

	var raw chatCompletionsResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return GenerateResult{}, fmt.Errorf("decode scoring response: %w", err)
	}

	text := extractChoiceText(raw)
	if strings.TrimSpace(text) == "" {
		return GenerateResult{}, errors.New("scoring response without text output")
	}

	return GenerateResult{
		Text:    text,
		ModelID: firstNonEmpty(raw.Model, request.Model),
		Usage: TokenUsage{
			InputTokens:  raw.Usage.PromptTokens,
			OutputTokens: raw.Usage.CompletionTokens,
			TotalTokens:  raw.Usage.TotalTokens,
		},
	}, nil
}

func classifyHTTPError(statusCode int, body []byte) error {
	message := strings.TrimSpace(string(body))
	if len(message) > 700 {
		message = message[:700]
	}

	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", ErrScoringAuth, statusCode, message)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", ErrScoringQuota, statusCode, message)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrScoringUnavailable, statusCode, message)
	}
}

type chatCompletionsResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string          `json:"role"`
			Content json.RawMessage `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// extractChoiceText tolerates both the plain-string content and the typed
// content-part array some providers return.
func extractChoiceText(response chatCompletionsResponse) string {
	fragments := make([]string, 0, 1)
	for _, choice := range response.Choices {
		var plain string
		if err := json.Unmarshal(choice.Message.Content, &plain); err == nil {
			if strings.TrimSpace(plain) != "" {
				fragments = append(fragments, strings.TrimSpace(plain))
			}
			continue
		}

		var parts []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		}
		if err := json.Unmarshal(choice.Message.Content, &parts); err != nil {
			continue
		}
		for _, part := range parts {
			if part.Type != "text" && part.Type != "output_text" {
				continue
			}
			if strings.TrimSpace(part.Text) == "" {
				continue
			}
			fragments = append(fragments, strings.TrimSpace(part.Text))
		}
	}
	return strings.TrimSpace(strings.Join(fragments, "\n"))
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
