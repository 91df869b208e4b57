package llm

// RequestOptions carries optional per-request generation parameters.
// Nil fields fall back to provider defaults.
type RequestOptions struct {
	MaxTokens   *int
	Temperature *float64
	TopP        *float64
	StopSeqs    []string
}
