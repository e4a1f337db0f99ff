package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jordanhubbard/cascadeflow/internal/providers"
	"github.com/jordanhubbard/cascadeflow/internal/store"
)

type fakeSender struct{ id string }

func (f *fakeSender) ID() string             { return f.id }
func (f *fakeSender) SupportsLogprobs() bool { return false }
func (f *fakeSender) Complete(ctx context.Context, model string, messages []providers.Message, opts providers.CompletionOptions) (*providers.ModelResponse, error) {
	return &providers.ModelResponse{Content: "stub"}, nil
}
func (f *fakeSender) EstimateCost(promptTokens, completionTokens int, model string) float64 {
	return 0
}

func TestModelPoolRegisterAndLookup(t *testing.T) {
	pool := newModelPool()
	sender := &fakeSender{id: "anthropic-prod"}

	pool.registerModel(store.ModelRecord{
		ID: "haiku", ProviderID: "anthropic-prod", SupportsTools: true,
		CostPer1KIn: 0.001, CostPer1KOut: 0.002, Enabled: true,
	}, sender)

	got, ok := pool.Sender("haiku")
	require.True(t, ok)
	assert.Same(t, sender, got)

	caps := pool.Capabilities()
	require.Len(t, caps, 1)
	assert.Equal(t, "haiku", caps[0].ID)
	assert.True(t, caps[0].SupportsTools)
}

func TestModelPoolSkipsDisabledModels(t *testing.T) {
	pool := newModelPool()
	pool.registerModel(store.ModelRecord{ID: "retired", ProviderID: "p", Enabled: false}, &fakeSender{id: "p"})

	_, ok := pool.Sender("retired")
	assert.False(t, ok)
	assert.Empty(t, pool.Capabilities())
}

func TestModelPoolUnknownModel(t *testing.T) {
	pool := newModelPool()
	_, ok := pool.Sender("nonexistent")
	assert.False(t, ok)
}

func TestNewProviderAdapter(t *testing.T) {
	cases := []struct {
		provType string
		wantErr  bool
	}{
		{"anthropic", false},
		{"openai", false},
		{"", false}, // defaults to openai
		{"local", false},
		{"bogus", true},
	}
	for _, tc := range cases {
		sender, err := newProviderAdapter(tc.provType, "id-1", "key", "http://localhost:9000", 5*time.Second)
		if tc.wantErr {
			assert.Error(t, err)
			assert.Nil(t, sender)
			continue
		}
		require.NoError(t, err)
		require.NotNil(t, sender)
		assert.Equal(t, "id-1", sender.ID())
	}
}
