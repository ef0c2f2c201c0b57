// Package llm wraps chat-completion providers and the structured answer
// generation built on top of them.
package llm

import "context"

// ChatCompleter is a single chat-completion backend. Implementations send
// one system prompt and one user prompt and return the raw text reply.
type ChatCompleter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	Name() string
}
