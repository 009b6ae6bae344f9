// Package inference holds HTTP adapters for the model-serving endpoints the
// service depends on: dense and sparse embedding, cross-encoder reranking,
// and chat completion.
package inference

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
