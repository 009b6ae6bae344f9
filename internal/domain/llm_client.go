package domain

import "context"

// ChatClient sends a system instruction plus user content to the completion
// service and returns a single text completion. It serves both query
// expansion and final answer synthesis, with different instructions.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
	Version() string
}
