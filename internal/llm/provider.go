// Package llm is the simplified LLM abstraction spec §4.8 requires:
// {complete(system, messages) -> string, stream(system, messages) -> lazy
// token sequence}. No tool-calling, image generation, or thought-signature
// plumbing: synthesis and chat are plain text in, plain text out.
package llm

import (
	"context"
	"iter"
)

// Message is one turn of conversation history.
type Message struct {
	Role    string // "user" | "assistant"
	Content string
}

// Provider is the LLM capability set every backend satisfies.
type Provider interface {
	// Complete blocks until the full response is available.
	Complete(ctx context.Context, system string, messages []Message) (string, error)
	// Stream returns a lazy, finite, single-shot sequence of chunks. Ranging
	// over the returned sequence and breaking early cancels the underlying
	// network call; a (chunk, err) pair with err != nil is the final pair
	// yielded.
	Stream(ctx context.Context, system string, messages []Message) iter.Seq2[string, error]
}
