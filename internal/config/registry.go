package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MrWong99/voicewriter/pkg/provider/bibliography"
	"github.com/MrWong99/voicewriter/pkg/provider/llm"
	"github.com/MrWong99/voicewriter/pkg/provider/stt"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructors for each provider kind.
// It is safe for concurrent use.
type Registry struct {
	mu           sync.RWMutex
	llm          map[string]func(ProviderEntry) (llm.Provider, error)
	stt          map[string]func(ProviderEntry) (stt.Provider, error)
	bibliography map[string]func(ProviderEntry) (bibliography.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		llm:          make(map[string]func(ProviderEntry) (llm.Provider, error)),
		stt:          make(map[string]func(ProviderEntry) (stt.Provider, error)),
		bibliography: make(map[string]func(ProviderEntry) (bibliography.Provider, error)),
	}
}

// RegisterLLM registers an LLM provider factory under name. A later call with
// the same name overwrites the earlier registration.
func (r *Registry) RegisterLLM(name string, factory func(ProviderEntry) (llm.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llm[name] = factory
}

// RegisterSTT registers a speech recognition factory under name.
func (r *Registry) RegisterSTT(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterBibliography registers a bibliographic search factory under name.
func (r *Registry) RegisterBibliography(name string, factory func(ProviderEntry) (bibliography.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bibliography[name] = factory
}

// CreateLLM instantiates the LLM provider registered under entry.Name.
// Returns [ErrProviderNotRegistered] for unknown names.
func (r *Registry) CreateLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llm[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSTT instantiates the speech recognition provider registered under
// entry.Name.
func (r *Registry) CreateSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateBibliography instantiates the bibliographic search provider
// registered under entry.Name.
func (r *Registry) CreateBibliography(entry ProviderEntry) (bibliography.Provider, error) {
	r.mu.RLock()
	factory, ok := r.bibliography[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: bibliography/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// Names returns the registered names per kind, sorted. Used for startup
// logging.
func (r *Registry) Names() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return map[string][]string{
		"llm":          sortedKeys(r.llm),
		"stt":          sortedKeys(r.stt),
		"bibliography": sortedKeys(r.bibliography),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
