// Package mock provides a scripted llm.Provider for tests.
//
//	p := mock.Reply(`{"improved_text":"We shall see."}`)
//	imp := llmtouchup.New(p)
package mock

import (
	"context"
	"slices"
	"sync"

	"github.com/MrWong99/voicewriter/pkg/provider/llm"
)

// Provider answers Complete from CompleteFunc when set and otherwise with
// CompleteResponse and CompleteErr. Every request is recorded.
type Provider struct {
	CompleteResponse *llm.CompletionResponse
	CompleteErr      error

	// CompleteFunc, when set, computes the answer per request.
	CompleteFunc func(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)

	ModelCapabilities llm.ModelCapabilities

	mu       sync.Mutex
	requests []llm.CompletionRequest
}

var _ llm.Provider = (*Provider)(nil)

// Reply returns a Provider that answers every request with content.
func Reply(content string) *Provider {
	return &Provider{CompleteResponse: &llm.CompletionResponse{Content: content}}
}

// Complete records req and answers it. A cancelled ctx is returned as an
// error unless CompleteFunc decides otherwise.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	fn := p.CompleteFunc
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.CompleteResponse, p.CompleteErr
}

func (p *Provider) Capabilities() llm.ModelCapabilities {
	return p.ModelCapabilities
}

// Calls returns the recorded requests in order.
func (p *Provider) Calls() []llm.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.requests)
}

// LastUserText returns the content of the final user message of the most
// recent request, or "".
func (p *Provider) LastUserText() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return ""
	}
	msgs := p.requests[len(p.requests)-1].Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == llm.RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
