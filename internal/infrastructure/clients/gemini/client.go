package gemini

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

	"github.com/swasthya/hms-backend/internal/domain/entities"
	"github.com/swasthya/hms-backend/internal/domain/providers"
	"github.com/swasthya/hms-backend/pkg/config"
)

const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultChatModel      = "gemini-2.0-flash"
	defaultEmbeddingModel = "text-embedding-004"
	maxErrorBody          = 1 << 10
)

// ErrUnauthorized is returned when the API rejects the configured key
var ErrUnauthorized = errors.New("gemini api key rejected")

// ErrEmptyResponse is returned when the model produced no candidate
var ErrEmptyResponse = errors.New("gemini response has no candidates")

// Client talks to the Gemini REST API for embeddings and chat completions.
type Client struct {
	apiKey         string
	chatModel      string
	embeddingModel string
	baseURL        string
	httpClient     *http.Client
	limiter        *tokenBucket
}

var (
	_ providers.EmbeddingProvider = (*Client)(nil)
	_ providers.ChatProvider      = (*Client)(nil)
)

// NewClient creates a new Gemini client
func NewClient(cfg *config.GeminiConfig) (*Client, error) {
	if cfg == nil || !cfg.HasCredentials() {
		return nil, errors.New("gemini api key is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = defaultChatModel
	}
	embeddingModel := cfg.EmbeddingModel
	if embeddingModel == "" {
		embeddingModel = defaultEmbeddingModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		apiKey:         cfg.APIKey,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		baseURL:        baseURL,
		httpClient:     &http.Client{Timeout: timeout},
		limiter:        newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst),
	}, nil
}

// Close stops the rate limiter refill goroutine
func (c *Client) Close() {
	if c.limiter != nil {
		c.limiter.Stop()
	}
}

// Model returns the embedding model name
func (c *Client) Model() string {
	return c.embeddingModel
}

type embedRequest struct {
	Model    string           `json:"model"`
	Content  entities.Content `json:"content"`
	TaskType string           `json:"taskType"`
}

type embedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding of text for the given task mode
func (c *Client) Embed(ctx context.Context, text string, mode entities.EmbeddingMode) ([]float64, error) {
	payload := embedRequest{
		Model:    "models/" + c.embeddingModel,
		Content:  entities.Content{Parts: []entities.Part{{Text: text}}},
		TaskType: string(mode),
	}

	var out embedResponse
	if err := c.post(ctx, "embedContent", c.embeddingModel, payload, &out); err != nil {
		return nil, err
	}
	return out.Embedding.Values, nil
}

type generateRequest struct {
	SystemInstruction *entities.Content  `json:"systemInstruction,omitempty"`
	Contents          []entities.Content `json:"contents"`
	Tools             []toolSet          `json:"tools,omitempty"`
}

type toolSet struct {
	FunctionDeclarations []entities.ToolDeclaration `json:"functionDeclarations"`
}

type generateResponse struct {
	Candidates []struct {
		Content      entities.Content `json:"content"`
		FinishReason string           `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// GenerateContent asks the chat model for the next turn of the conversation
func (c *Client) GenerateContent(ctx context.Context, req *providers.ChatRequest) (*entities.Content, error) {
	payload := generateRequest{Contents: req.Contents}
	if req.SystemInstruction != "" {
		payload.SystemInstruction = &entities.Content{Parts: []entities.Part{{Text: req.SystemInstruction}}}
	}
	if len(req.Tools) > 0 {
		payload.Tools = []toolSet{{FunctionDeclarations: req.Tools}}
	}

	var out generateResponse
	if err := c.post(ctx, "generateContent", c.chatModel, payload, &out); err != nil {
		return nil, err
	}
	if len(out.Candidates) == 0 {
		if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
			return nil, fmt.Errorf("%w: blocked (%s)", ErrEmptyResponse, out.PromptFeedback.BlockReason)
		}
		return nil, ErrEmptyResponse
	}

	content := out.Candidates[0].Content
	if content.Role == "" {
		content.Role = entities.ConversationRoleModel
	}
	return &content, nil
}

func (c *Client) post(ctx context.Context, method, model string, payload, out interface{}) error {
	if c.limiter != nil {
		waitStart := time.Now()
		if err := c.limiter.Wait(ctx); err != nil {
			recordGeminiMetric(ctx, method, model, 0, 0, err)
			return err
		}
		recordGeminiRateLimitWait(ctx, model, time.Since(waitStart))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal gemini request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:%s", c.baseURL, model, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		recordGeminiMetric(ctx, method, model, 0, time.Since(start), err)
		return fmt.Errorf("gemini %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := fmt.Errorf("gemini %s failed with status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(snippet)))
		recordGeminiMetric(ctx, method, model, resp.StatusCode, time.Since(start), statusErr)
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%w: %v", ErrUnauthorized, statusErr)
		}
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		recordGeminiMetric(ctx, method, model, resp.StatusCode, time.Since(start), err)
		return fmt.Errorf("failed to decode gemini %s response: %w", method, err)
	}

	recordGeminiMetric(ctx, method, model, resp.StatusCode, time.Since(start), nil)
	return nil
}
