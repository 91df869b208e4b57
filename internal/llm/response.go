package llm

// Response wraps an LLM completion result.
type Response struct {
	Content      string `json:"content"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	StopReason   string `json:"stop_reason,omitempty"`
}

// TotalTokens returns prompt plus completion token counts.
func (r *Response) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// EstimateTokens approximates the token count of a text when the provider
// did not report usage. Roughly four characters per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}
