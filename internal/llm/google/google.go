// Package google implements the Gemini generateContent and embedContent
// REST API.
package google

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

// Client talks to the Gemini REST API.
type Client struct {
	apiKey     string
	model      string
	embedModel string
	baseURL    string
	httpClient *http.Client
}

// New creates a Gemini client.
func New(cfg llm.ProviderConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("google: API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = llm.KnownProviders["google"]
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	embedModel := cfg.EmbedModel
	if embedModel == "" {
		embedModel = "text-embedding-004"
	}
	return &Client{
		apiKey:     cfg.APIKey,
		model:      model,
		embedModel: embedModel,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}, nil
}

func (c *Client) Name() string { return "google" }

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *content          `json:"system_instruction,omitempty"`
	Contents          []content         `json:"contents"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// Complete sends a generateContent request.
func (c *Client) Complete(ctx context.Context, prompt *llm.Prompt, opts *llm.RequestOptions) (*llm.Response, error) {
	contents := make([]content, 0, len(prompt.Messages))
	for i, m := range prompt.Messages {
		role := "user"
		if m.Role == llm.RoleAssistant {
			role = "model"
		}
		parts := []part{{Text: m.Content}}
		last := i == len(prompt.Messages)-1
		if last && m.Role == llm.RoleUser {
			for _, img := range prompt.Images {
				parts = append(parts, part{
					InlineData: &inlineData{
						MIMEType: img.MIMEType,
						Data:     base64.StdEncoding.EncodeToString(img.Data),
					},
				})
			}
		}
		contents = append(contents, content{Role: role, Parts: parts})
	}

	req := generateRequest{Contents: contents}
	if prompt.SystemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: prompt.SystemPrompt}}}
	}
	if opts != nil {
		req.GenerationConfig = &generationConfig{
			MaxOutputTokens: opts.MaxTokens,
			Temperature:     opts.Temperature,
			TopP:            opts.TopP,
			StopSequences:   opts.StopSeqs,
		}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	var parsed generateResponse
	if err := c.post(ctx, url, req, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("gemini API error %d (%s): %s", parsed.Error.Code, parsed.Error.Status, parsed.Error.Message)
	}
	if len(parsed.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: no candidates in response")
	}

	var sb strings.Builder
	cand := parsed.Candidates[0]
	for _, p := range cand.Content.Parts {
		sb.WriteString(p.Text)
	}

	return &llm.Response{
		Content:      sb.String(),
		Model:        c.model,
		InputTokens:  parsed.UsageMetadata.PromptTokenCount,
		OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
		StopReason:   cand.FinishReason,
	}, nil
}

type embedBatchRequest struct {
	Requests []embedItemRequest `json:"requests"`
}

type embedItemRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedBatchResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
	Error *apiError `json:"error"`
}

// Embed computes embedding vectors via batchEmbedContents.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	req := embedBatchRequest{Requests: make([]embedItemRequest, len(texts))}
	for i, t := range texts {
		req.Requests[i] = embedItemRequest{
			Model:   "models/" + c.embedModel,
			Content: content{Parts: []part{{Text: t}}},
		}
	}

	url := fmt.Sprintf("%s/models/%s:batchEmbedContents", c.baseURL, c.embedModel)
	var parsed embedBatchResponse
	if err := c.post(ctx, url, req, &parsed); err != nil {
		return nil, err
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("gemini API error %d (%s): %s", parsed.Error.Code, parsed.Error.Status, parsed.Error.Message)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini: got %d embeddings for %d inputs", len(parsed.Embeddings), len(texts))
	}

	out := make([][]float32, len(texts))
	for i, e := range parsed.Embeddings {
		out[i] = e.Values
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, url string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gemini API returned %d: %s", resp.StatusCode, truncate(string(raw), 500))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parsing gemini response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
