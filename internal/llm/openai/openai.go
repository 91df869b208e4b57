// Package openai implements the OpenAI chat completions and embeddings
// wire protocol. Groq, Together, Mistral and Z.AI expose the same protocol
// and differ only in base URL, so they all route through this client.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/synai-app/synai/internal/llm"
)

// Client talks to an OpenAI-compatible endpoint.
type Client struct {
	name       string
	apiKey     string
	model      string
	embedModel string
	baseURL    string
	httpClient *http.Client
}

// New creates an OpenAI-compatible client. The name is reported by Name()
// and shows up in logs and usage records.
func New(name string, cfg llm.ProviderConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: API key is required", name)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = llm.KnownProviders["openai"]
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		name:       name,
		apiKey:     cfg.APIKey,
		model:      model,
		embedModel: cfg.EmbedModel,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}, nil
}

func (c *Client) Name() string { return c.name }

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete sends a chat completion request.
func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	messages := make([]chatMessage, 0, len(prompt.Messages)+1)
	if prompt.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: prompt.SystemPrompt})
	}
	for i, m := range prompt.Messages {
		last := i == len(prompt.Messages)-1
		if last && m.Role == llm.RoleUser && len(prompt.Images) > 0 {
			parts := []contentPart{{Type: "text", Text: m.Content}}
			for _, img := range prompt.Images {
				enc := base64.StdEncoding.EncodeToString(img.Data)
				parts = append(parts, contentPart{
					Type:     "image_url",
					ImageURL: &imageURL{URL: fmt.Sprintf("data:%s;base64,%s", img.MIMEType, enc)},
				})
			}
			messages = append(messages, chatMessage{Role: string(m.Role), Content: parts})
			continue
		}
		messages = append(messages, chatMessage{Role: string(m.Role), Content: m.Content})
	}

	req := chatRequest{Model: c.model, Messages: messages}
	if opts != nil {
		req.MaxTokens = opts.MaxTokens
		req.Temperature = opts.Temperature
		req.TopP = opts.TopP
		req.Stop = opts.StopSeqs
	}

	var parsed chatResponse
	if err := c.post(ctx, "/chat/completions", req, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%s API error (%s): %s", c.name, parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%s: empty choices in response", c.name)
	}

	choice := parsed.Choices[0]
	return &llm.Response{
		Content:      llm.StripThinkingTags(choice.Message.Content),
		Model:        parsed.Model,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		StopReason:   choice.FinishReason,
	}, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Embed computes embedding vectors for the given texts.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := c.embedModel
	if model == "" {
		model = "text-embedding-3-small"
	}

	var parsed embedResponse
	if err := c.post(ctx, "/embeddings", embedRequest{Model: model, Input: texts}, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("%s API error (%s): %s", c.name, parsed.Error.Type, parsed.Error.Message)
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("%s: got %d embeddings for %d inputs", c.name, len(parsed.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("%s: embedding index %d out of range", c.name, d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s API returned %d: %s", c.name, resp.StatusCode, truncate(string(raw), 500))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing %s response: %w", c.name, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
