package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// OllamaClient talks to a local Ollama server through /api/chat.
type OllamaClient struct {
	endpoint    string
	model       string
	temperature float64
	topP        float64
	client      *http.Client
	// pulls can take minutes; they are bounded by ctx only
	pullClient *http.Client
}

func NewOllamaClient(opts Options) *OllamaClient {
	endpoint := opts.Host
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	model := opts.Model
	if model == "" {
		model = "llama3.2"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	return &OllamaClient{
		endpoint:    endpoint,
		model:       model,
		temperature: opts.Temperature,
		topP:        opts.TopP,
		client: &http.Client{
			Timeout: timeout,
		},
		pullClient: &http.Client{},
	}
}

func (c *OllamaClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	req := ollamaChatRequest{
		Model:  c.model,
		Stream: false,
		Options: ollamaOptions{
			Temperature: c.temperature,
			TopP:        c.topP,
		},
	}
	if systemPrompt != "" {
		req.Messages = append(req.Messages, ollamaMessage{Role: "system", Content: systemPrompt})
	}
	req.Messages = append(req.Messages, ollamaMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama error: %s", result.Error)
	}

	return result.Message.Content, nil
}

// Models lists the models the server has locally.
func (c *OllamaClient) Models(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read model list: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var names []string
	for _, name := range gjson.GetBytes(body, "models.#.name").Array() {
		names = append(names, name.String())
	}
	return names, nil
}

// EnsureModel pulls the configured model unless the server already has it.
// It reports whether a pull happened.
func (c *OllamaClient) EnsureModel(ctx context.Context) (bool, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if sameModel(m, c.model) {
			return false, nil
		}
	}

	body, err := json.Marshal(ollamaPullRequest{Model: c.model, Stream: false})
	if err != nil {
		return false, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.pullClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("ollama pull of %s failed: %w", c.model, err)
	}
	defer resp.Body.Close()

	out, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("ollama pull of %s returned status %d: %s", c.model, resp.StatusCode, string(out))
	}
	if msg := gjson.GetBytes(out, "error").String(); msg != "" {
		return false, fmt.Errorf("ollama pull of %s failed: %s", c.model, msg)
	}
	return true, nil
}

// sameModel treats a name without a tag as the :latest tag.
func sameModel(a, b string) bool {
	withTag := func(s string) string {
		if !strings.Contains(s, ":") {
			return s + ":latest"
		}
		return s
	}
	return withTag(a) == withTag(b)
}

func (c *OllamaClient) Name() string {
	return fmt.Sprintf("ollama:%s", c.model)
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  ollamaOptions   `json:"options"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Error   string        `json:"error,omitempty"`
}

type ollamaPullRequest struct {
	Model  string `json:"model"`
	Stream bool   `json:"stream"`
}
