package llm

import (
	"context"
	"strings"
	"testing"
)

type namedProvider struct {
	name string
}

func (p *namedProvider) Chat(ctx context.Context, messages []Message) (string, error) {
	return p.name, nil
}

func factoryFor(name string) ProviderFactory {
	return func(ctx context.Context, model string) (Provider, error) {
		return &namedProvider{name: name}, nil
	}
}

func TestRegistry_EmptyNameResolvesToFirstRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register("alpha", factoryFor("alpha"))
	r.Register("beta", factoryFor("beta"))

	p, err := r.Get(context.Background(), "", "gpt-test")
	if err != nil {
		t.Fatalf("get default: %v", err)
	}
	got, _ := p.Chat(context.Background(), nil)
	if got != "alpha" {
		t.Fatalf("default should be the first registered provider, got %q", got)
	}

	p, err = r.Get(context.Background(), "BETA", "gpt-test")
	if err != nil {
		t.Fatalf("get beta: %v", err)
	}
	if got, _ := p.Chat(context.Background(), nil); got != "beta" {
		t.Fatalf("expected beta, got %q", got)
	}
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r := NewRegistry()
	r.Register("alpha", factoryFor("alpha"))

	if _, err := r.Get(context.Background(), "gamma", "gpt-test"); err == nil || !strings.Contains(err.Error(), "gamma") {
		t.Fatalf("expected unknown provider error naming gamma, got %v", err)
	}
}

func TestRegistry_EmptyRegistry(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Get(context.Background(), "", "gpt-test"); err == nil {
		t.Fatalf("expected error from empty registry")
	}
}
