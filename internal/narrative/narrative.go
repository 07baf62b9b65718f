// Package narrative wraps the LLM client with a hard timeout and a static
// fallback so chat handling never waits on, or fails because of, the model.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ledger-bot/internal/llm"
	"ledger-bot/internal/logger"
	"ledger-bot/internal/model"
)

var (
	ErrEmptyResponse = errors.New("narrative generator returned empty text")
	ErrNoClient      = errors.New("narrative generator is not configured")
)

// FallbackReply is sent when the generator fails or times out.
const FallbackReply = "📝 I couldn't come up with a reply just now. To log something, start with a prefix like \"win:\" or \"p:\", or send /checkin."

type Generator struct {
	client  llm.Client
	timeout time.Duration
}

// New returns a generator; a nil client makes every call fail fast.
func New(client llm.Client, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Generator{client: client, timeout: timeout}
}

// Generate runs one bounded completion.
func (g *Generator) Generate(ctx context.Context, system, prompt string) (string, error) {
	return g.GenerateWithin(ctx, g.timeout, system, prompt)
}

// GenerateWithin is Generate with an explicit bound, for batch jobs that
// allow longer answers.
func (g *Generator) GenerateWithin(ctx context.Context, timeout time.Duration, system, prompt string) (string, error) {
	if g == nil || g.client == nil {
		return "", ErrNoClient
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		resp llm.Response
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := g.client.Generate(ctx, llm.Prompt(system, prompt))
		ch <- result{resp, err}
	}()

	// Clients that ignore ctx must not hold the caller past the deadline.
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("generate: %w", ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return "", fmt.Errorf("generate: %w", r.err)
		}
		text := strings.TrimSpace(r.resp.Content)
		if text == "" {
			return "", ErrEmptyResponse
		}
		return text, nil
	}
}

// Respond answers an unstructured message. It never fails.
func (g *Generator) Respond(ctx context.Context, text string) string {
	reply, err := g.Generate(ctx, respondSystemPrompt, text)
	if err != nil {
		logger.Warnf("⚠️ Narrative reply failed, using fallback: %v", err)
		return FallbackReply
	}
	return reply
}

// Comment produces a one or two sentence reaction to a logged entry.
func (g *Generator) Comment(ctx context.Context, category model.Category, content string) (string, error) {
	return g.Generate(ctx, commentSystemPrompt, fmt.Sprintf("Type: %s\nEntry: %s", category, content))
}

// ExtractJSON returns the span from the first '{' to the last '}' in text.
// Models often wrap JSON in prose or code fences.
func ExtractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return "", false
	}
	return text[start : end+1], true
}
