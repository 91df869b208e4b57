// Package anthropic implements the Anthropic Messages API.
package anthropic

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

const apiVersion = "2023-06-01"

// Client talks to the Anthropic Messages API.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// New creates an Anthropic client.
func New(cfg llm.ProviderConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = llm.KnownProviders["anthropic"]
	}
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}, nil
}

func (c *Client) Name() string { return "anthropic" }

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	Stop        []string  `json:"stop_sequences,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a messages request.
func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	messages := make([]message, 0, len(prompt.Messages))
	for i, m := range prompt.Messages {
		last := i == len(prompt.Messages)-1
		if last && m.Role == llm.RoleUser && len(prompt.Images) > 0 {
			blocks := make([]contentBlock, 0, len(prompt.Images)+1)
			for _, img := range prompt.Images {
				blocks = append(blocks, contentBlock{
					Type: "image",
					Source: &imageSource{
						Type:      "base64",
						MediaType: normalizeMediaType(img.MIMEType),
						Data:      base64.StdEncoding.EncodeToString(img.Data),
					},
				})
			}
			blocks = append(blocks, contentBlock{Type: "text", Text: m.Content})
			messages = append(messages, message{Role: string(m.Role), Content: blocks})
			continue
		}
		messages = append(messages, message{Role: string(m.Role), Content: m.Content})
	}

	req := messagesRequest{
		Model:     c.model,
		MaxTokens: 4096,
		System:    prompt.SystemPrompt,
		Messages:  messages,
	}
	if opts != nil {
		if opts.MaxTokens != nil {
			req.MaxTokens = *opts.MaxTokens
		}
		req.Temperature = opts.Temperature
		req.TopP = opts.TopP
		req.Stop = opts.StopSeqs
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anthropic API returned %d: %s", httpResp.StatusCode, truncate(string(raw), 500))
	}

	var parsed messagesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parsing anthropic response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("anthropic API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return &llm.Response{
		Content:      sb.String(),
		Model:        parsed.Model,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
		StopReason:   parsed.StopReason,
	}, nil
}

// Embed is not supported by the Anthropic API.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("anthropic does not provide an embeddings endpoint")
}

// normalizeMediaType fixes common MIME type typos. Browsers and upload
// clients sometimes send image/jpg, which the API rejects.
func normalizeMediaType(mt string) string {
	if mt == "image/jpg" {
		return "image/jpeg"
	}
	if mt == "" {
		return "image/jpeg"
	}
	return mt
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
