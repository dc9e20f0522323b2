package kirana

import (
	"fmt"
	"strings"

	"github.com/harunnryd/kirana/pkg/llm"
	"github.com/harunnryd/kirana/pkg/store"
)

type LLMFactory func(cfg Config) (llm.LLMAdapter, error)
type StoreFactory func(cfg Config) (store.VectorStore, error)

type ProviderRegistry struct {
	llm    map[string]LLMFactory
	stores map[string]StoreFactory
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		llm:    make(map[string]LLMFactory),
		stores: make(map[string]StoreFactory),
	}
}

func (r *ProviderRegistry) RegisterLLM(name string, factory LLMFactory) {
	r.llm[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) RegisterStore(name string, factory StoreFactory) {
	r.stores[strings.ToLower(strings.TrimSpace(name))] = factory
}

func (r *ProviderRegistry) BuildLLM(provider string, cfg Config) (llm.LLMAdapter, error) {
	fn := r.llm[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("llm provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildStore(provider string, cfg Config) (store.VectorStore, error) {
	fn := r.stores[strings.ToLower(strings.TrimSpace(provider))]
	if fn == nil {
		return nil, fmt.Errorf("store provider not registered: %s", provider)
	}
	return fn(cfg)
}
