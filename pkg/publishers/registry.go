package publishers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Builder creates a Publisher from a config entry.
type Builder func(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error)

// Registry maps publisher types to builders. Type names are case-insensitive.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry seeded with builders.
func NewRegistry(builders map[string]Builder) *Registry {
	r := &Registry{builders: make(map[string]Builder, len(builders))}
	for typ, b := range builders {
		r.Register(typ, b)
	}
	return r
}

// DefaultRegistry knows the http and queue publisher types.
func DefaultRegistry() *Registry {
	return NewRegistry(map[string]Builder{
		TypeHTTP:  newHTTPPublisher,
		TypeQueue: newQueuePublisher,
	})
}

func typeKey(typ string) string { return strings.ToLower(strings.TrimSpace(typ)) }

// Register adds or replaces the builder for typ. Blank types and nil builders are ignored.
func (r *Registry) Register(typ string, builder Builder) {
	key := typeKey(typ)
	if key == "" || builder == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[key] = builder
}

// Types lists the registered publisher types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.builders))
	for typ := range r.builders {
		out = append(out, typ)
	}
	sort.Strings(out)
	return out
}

// PublisherFor builds the publisher described by cfg.
func (r *Registry) PublisherFor(ctx context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	key := typeKey(cfg.Type)
	if key == "" {
		return nil, fmt.Errorf("publisher %q has no type configured", cfg.ID)
	}

	r.mu.RLock()
	builder, ok := r.builders[key]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("publisher %q: unknown type %q (known: %s)", cfg.ID, cfg.Type, strings.Join(r.Types(), ", "))
	}
	return builder(ctx, cfg, log)
}

// outcomeFilter drops events whose outcome the publisher did not subscribe to.
type outcomeFilter struct {
	Publisher
	cfg PublisherConfig
}

func (f outcomeFilter) Publish(ctx context.Context, evt Event) error {
	if !f.cfg.Wants(evt.Outcome) {
		return nil
	}
	return f.Publisher.Publish(ctx, evt)
}

// BuildAll instantiates every enabled publisher of cfg. The first failing entry aborts the build.
func BuildAll(ctx context.Context, reg *Registry, cfg *Config, log Logger) ([]Publisher, error) {
	enabled := cfg.Enabled()
	if reg == nil || len(enabled) == 0 {
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	log = ensureLogger(log)

	pubs := make([]Publisher, 0, len(enabled))
	for _, pc := range enabled {
		pub, err := reg.PublisherFor(ctx, pc, log)
		if err != nil {
			return nil, err
		}
		if len(pc.Outcomes) > 0 {
			pub = outcomeFilter{Publisher: pub, cfg: pc}
		}
		log.InfoObj("publisher ready", "publisher_ready", map[string]any{
			"publisher_id": pc.ID,
			"type":         pc.Type,
			"outcomes":     pc.Outcomes,
		})
		pubs = append(pubs, pub)
	}
	return pubs, nil
}
