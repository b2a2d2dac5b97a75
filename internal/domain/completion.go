package domain

// CompletionRequest carries a prompt and its decoding arguments.
type CompletionRequest struct {
	Prompt      string
	Model       string
	Temperature float64
	TopP        float64
	MaxTokens   int
	LogitBias   map[string]int
}
