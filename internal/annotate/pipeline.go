// Package annotate turns document text into the tips currently visible in
// that document and keeps them per document for hover lookups.
package annotate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"tiplens/internal/policy"
)

// Eligibility decides whether a tip's prerequisites are out of the way.
type Eligibility interface {
	IsEligible(id string) bool
}

// Options configures a Pipeline.
type Options struct {
	Extractor  Extractor
	Resolver   Eligibility
	Completion policy.Completion
	Cache      *Cache
	// Publisher may be nil when nobody displays diagnostics.
	Publisher Publisher
	Logger    *slog.Logger
}

// Pipeline recomputes a document's annotations on demand.
//
// Every call to Annotate takes a sequence number. Only the most recent
// request for a document may store its result; an older pass finishing late
// is dropped so it cannot overwrite newer annotations.
type Pipeline struct {
	extractor  Extractor
	resolver   Eligibility
	completion policy.Completion
	cache      *Cache
	publisher  Publisher
	logger     *slog.Logger

	seq    atomic.Uint64
	mu     sync.Mutex
	latest map[string]uint64
	// commitMu orders cache writes with their publication.
	commitMu sync.Mutex
}

// NewPipeline builds a pipeline. A nil cache gets a fresh one.
func NewPipeline(opts Options) *Pipeline {
	cache := opts.Cache
	if cache == nil {
		cache = NewCache()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor:  opts.Extractor,
		resolver:   opts.Resolver,
		completion: opts.Completion,
		cache:      cache,
		publisher:  opts.Publisher,
		logger:     logger,
		latest:     make(map[string]uint64),
	}
}

// Cache returns the pipeline's cache.
func (p *Pipeline) Cache() *Cache {
	return p.cache
}

// Annotate extracts, filters and stores the visible tips of doc, then
// publishes them. It returns the stored annotations, or nil when the pass was
// superseded by a newer request for the same document.
func (p *Pipeline) Annotate(ctx context.Context, doc, text string) []Annotation {
	seq := p.begin(doc)

	occurrences, err := p.extractor.Extract(ctx, text)
	if ctx.Err() != nil {
		p.logger.Debug("annotation canceled", "doc", doc, "seq", seq)
		return nil
	}
	if err != nil {
		p.logger.Warn("extraction failed", "doc", doc, "err", err)
		occurrences = nil
	}

	visible := make([]Annotation, 0, len(occurrences))
	for _, occ := range occurrences {
		if !p.resolver.IsEligible(occ.Type) {
			continue
		}
		if p.completion.IsSuppressed(occ.Type) {
			continue
		}
		visible = append(visible, Annotation{
			Occurrence: occ,
			Region:     RegionFromLocation(occ.Loc),
		})
	}

	p.commitMu.Lock()
	defer p.commitMu.Unlock()
	if !p.isLatest(doc, seq) || !p.cache.put(doc, seq, visible) {
		p.logger.Debug("discard stale annotation", "doc", doc, "seq", seq)
		return nil
	}
	if p.publisher != nil {
		p.publisher.Publish(doc, Diagnostics(visible))
	}
	p.logger.Debug("annotated", "doc", doc, "seq", seq, "extracted", len(occurrences), "visible", len(visible))
	return visible
}

// Forget drops the document's record and clears its diagnostics. Passes
// still in flight for the document are discarded.
func (p *Pipeline) Forget(doc string) {
	p.mu.Lock()
	delete(p.latest, doc)
	p.mu.Unlock()

	p.commitMu.Lock()
	defer p.commitMu.Unlock()
	if p.cache.Evict(doc) && p.publisher != nil {
		p.publisher.Publish(doc, nil)
	}
}

func (p *Pipeline) begin(doc string) uint64 {
	seq := p.seq.Add(1)
	p.mu.Lock()
	p.latest[doc] = seq
	p.mu.Unlock()
	return seq
}

func (p *Pipeline) isLatest(doc string, seq uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	latest, ok := p.latest[doc]
	return ok && latest == seq
}
