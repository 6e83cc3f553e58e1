// Package policy decides which tips the user no longer needs to see.
//
// A tip is suppressed when it was dismissed explicitly, when it is easy and
// basic tips are hidden, or when the catalog does not know it. Unknown tips
// count as suppressed so that a gap in the catalog never blocks the tips that
// depend on it.
package policy

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"tiplens/internal/catalog"
	"tiplens/internal/settings"
)

// Completion answers whether a tip is suppressed.
type Completion interface {
	IsSuppressed(id string) bool
}

// state is replaced wholesale and never mutated once published, except by
// Dismiss which copies it first.
type state struct {
	dismissed    map[string]struct{}
	hideBasic    bool
	hideBasicSet bool
}

// Policy owns the completion state. Reads are concurrent; writes go through
// Rebuild, Dismiss and AnswerBeginner.
type Policy struct {
	catalog *catalog.Catalog
	store   settings.Storage
	logger  *slog.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	st      state
}

// New returns a policy with empty state. Call Rebuild to load storage.
func New(cat *catalog.Catalog, store settings.Storage, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}
	return &Policy{
		catalog: cat,
		store:   store,
		logger:  logger,
		st:      state{dismissed: map[string]struct{}{}},
	}
}

// Catalog returns the catalog the policy was built with.
func (p *Policy) Catalog() *catalog.Catalog {
	return p.catalog
}

// IsSuppressed reports whether the tip should not be shown.
func (p *Policy) IsSuppressed(id string) bool {
	meta := p.catalog.MetaByID(id)
	if meta == nil {
		return true
	}
	p.mu.RLock()
	st := p.st
	p.mu.RUnlock()
	if meta.Difficulty == catalog.Easy && st.hideBasic {
		return true
	}
	_, dismissed := st.dismissed[id]
	return dismissed
}

// Rebuild reloads the state from storage. On failure the previous state is
// kept.
func (p *Policy) Rebuild() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	cfg, err := p.store.Load()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	next := state{dismissed: make(map[string]struct{}, len(cfg.HiddenTips))}
	for _, id := range cfg.HiddenTips {
		next.dismissed[id] = struct{}{}
	}
	if cfg.HideBasicTips != nil {
		next.hideBasic = *cfg.HideBasicTips
		next.hideBasicSet = true
	}
	p.mu.Lock()
	p.st = next
	p.mu.Unlock()
	p.logger.Debug("completion state rebuilt", "dismissed", len(next.dismissed), "hideBasic", next.hideBasic, "hideBasicSet", next.hideBasicSet)
	return nil
}

// Dismiss marks the tip as learned and persists the dismissed set. The
// in-memory dismissal sticks even if persisting fails.
func (p *Policy) Dismiss(id string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.mu.Lock()
	if _, ok := p.st.dismissed[id]; !ok {
		next := state{
			dismissed:    make(map[string]struct{}, len(p.st.dismissed)+1),
			hideBasic:    p.st.hideBasic,
			hideBasicSet: p.st.hideBasicSet,
		}
		for k := range p.st.dismissed {
			next.dismissed[k] = struct{}{}
		}
		next.dismissed[id] = struct{}{}
		p.st = next
	}
	hidden := sortedKeys(p.st.dismissed)
	p.mu.Unlock()

	return settings.Update(p.store, func(s *settings.Settings) {
		s.HiddenTips = hidden
	})
}

// NeedsBeginnerPrompt reports whether the hide-basic flag was never set.
func (p *Policy) NeedsBeginnerPrompt() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.st.hideBasicSet
}

// AnswerBeginner records the first-run answer: beginners keep basic tips.
func (p *Policy) AnswerBeginner(isBeginner bool) error {
	if err := settings.Update(p.store, func(s *settings.Settings) {
		s.HideBasicTips = settings.Bool(!isBeginner)
	}); err != nil {
		return err
	}
	return p.Rebuild()
}

// Dismissed returns the explicitly dismissed identifiers, sorted.
func (p *Policy) Dismissed() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return sortedKeys(p.st.dismissed)
}

// HidesBasicTips returns the flag and whether it was ever set.
func (p *Policy) HidesBasicTips() (value, set bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.st.hideBasic, p.st.hideBasicSet
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return slices.Clip(out)
}
