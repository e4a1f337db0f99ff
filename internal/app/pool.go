package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/jordanhubbard/cascadeflow/internal/providers"
	"github.com/jordanhubbard/cascadeflow/internal/providers/anthropic"
	"github.com/jordanhubbard/cascadeflow/internal/providers/local"
	"github.com/jordanhubbard/cascadeflow/internal/providers/openai"
	"github.com/jordanhubbard/cascadeflow/internal/router"
	"github.com/jordanhubbard/cascadeflow/internal/store"
)

// modelPool is the concrete cascade.ModelPool: a registry of live
// providers.Sender adapters keyed by model ID, alongside the routing-
// relevant capability each model advertises.
type modelPool struct {
	mu    sync.RWMutex
	caps  []router.ModelCapability
	byID  map[string]providers.Sender
}

func newModelPool() *modelPool {
	return &modelPool{byID: map[string]providers.Sender{}}
}

func (p *modelPool) Capabilities() []router.ModelCapability {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]router.ModelCapability, len(p.caps))
	copy(out, p.caps)
	return out
}

func (p *modelPool) Sender(modelID string) (providers.Sender, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.byID[modelID]
	return s, ok
}

// registerModel attaches a model record, routed through the sender
// belonging to its provider, to the pool.
func (p *modelPool) registerModel(m store.ModelRecord, sender providers.Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !m.Enabled {
		return
	}
	p.byID[m.ID] = sender
	p.caps = append(p.caps, router.ModelCapability{
		ID:            m.ID,
		SupportsTools: m.SupportsTools,
		CostPer1KIn:   m.CostPer1KIn,
		CostPer1KOut:  m.CostPer1KOut,
	})
}

// newProviderAdapter constructs a runtime providers.Sender for the given
// provider type, credentials, and base URL. Mirrors the teacher's
// newProviderAdapter switch, retargeted to CascadeFlow's three provider
// kinds (anthropic, openai, local).
func newProviderAdapter(provType, id, apiKey, baseURL string, timeout time.Duration) (providers.Sender, error) {
	switch provType {
	case "anthropic":
		return anthropic.New(id, apiKey, baseURL, anthropic.WithTimeout(timeout)), nil
	case "local":
		return local.New(id, baseURL), nil
	case "openai", "":
		return openai.New(id, apiKey, baseURL, openai.WithTimeout(timeout)), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", provType)
	}
}
