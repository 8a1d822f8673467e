package views

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"fanliga/internal/aggregate"
	"fanliga/internal/cache"
)

// RulesSource returns the current markdown of the league rules.
type RulesSource func(ctx context.Context) ([]byte, error)

type RulesView struct {
	HTML        template.HTML
	Headings    []aggregate.Heading
	Unavailable bool
}

// Rules renders the rules document and its table of contents. Rendered
// output is cached by document content.
type Rules struct {
	source   RulesSource
	rendered *cache.LRUCache[RulesView]
}

const rulesCacheSize = 8

func NewRules(source RulesSource, ttl time.Duration) *Rules {
	return &Rules{source: source, rendered: cache.NewLRUCache[RulesView](rulesCacheSize, ttl)}
}

// Cache exposes the rendered-document cache for periodic cleanup.
func (r *Rules) Cache() cache.Cleaner { return r.rendered }

func (r *Rules) Load(ctx context.Context) (RulesView, error) {
	md, err := r.source(ctx)
	if ctx.Err() != nil {
		return RulesView{}, ErrDiscarded
	}
	if err != nil {
		slog.ErrorContext(ctx, "Rules source failed", "error", err)
		return RulesView{Unavailable: true}, nil
	}

	sum := sha256.Sum256(md)
	key := hex.EncodeToString(sum[:])
	if v, ok := r.rendered.Get(key); ok {
		return v, nil
	}

	html, headings, err := aggregate.RenderRules(md)
	if err != nil {
		slog.ErrorContext(ctx, "Rules rendering failed", "error", err)
		return RulesView{Unavailable: true}, nil
	}
	// Raw HTML in the source is omitted by the renderer.
	v := RulesView{HTML: template.HTML(html), Headings: headings}
	r.rendered.Set(key, v)
	return v, nil
}

// StaticRules serves a fixed document.
func StaticRules(md []byte) RulesSource {
	return func(context.Context) ([]byte, error) { return md, nil }
}

// FileRules reads the document from reader on every load, so edits show up
// without a restart.
func FileRules(path string, read func(string) ([]byte, error)) RulesSource {
	return func(context.Context) ([]byte, error) {
		b, err := read(path)
		if err != nil {
			return nil, fmt.Errorf("read rules %s: %w", path, err)
		}
		return b, nil
	}
}
