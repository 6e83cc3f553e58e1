// Package engine wires the tip lifecycle together: catalog, completion
// policy, dependency resolver, annotation pipeline and hover renderer, driven
// by host events.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"tiplens/internal/annotate"
	"tiplens/internal/catalog"
	"tiplens/internal/events"
	"tiplens/internal/hover"
	"tiplens/internal/policy"
	"tiplens/internal/settings"
)

// BeginnerQuestion is the first-run question.
const BeginnerQuestion = "Would you call yourself a TypeScript beginner? If you are, we'll show you tips that are helpful when you're first learning TypeScript."

// Prompter asks the first-run question. answered is false when the user
// dismissed the question without picking an option.
type Prompter interface {
	AskBeginner(ctx context.Context) (beginner, answered bool, err error)
}

// Options configures an Engine.
type Options struct {
	Catalog   *catalog.Catalog
	Settings  settings.Storage
	Extractor annotate.Extractor
	Publisher annotate.Publisher
	// Messages may be nil; hovers then use the catalog's plain messages.
	Messages hover.Messages
	// Prompter may be nil; the first-run question is then skipped.
	Prompter Prompter
	Logger   *slog.Logger
}

// Engine reacts to host events and answers hover and command requests.
type Engine struct {
	catalog    *catalog.Catalog
	policy     *policy.Policy
	resolver   *policy.Resolver
	pipeline   *annotate.Pipeline
	renderer   *hover.Renderer
	dispatcher *events.Dispatcher
	prompter   Prompter
	logger     *slog.Logger

	mu         sync.Mutex
	activeDoc  string
	activeText string

	bg sync.WaitGroup
}

// New builds an engine and loads the completion state. A settings load
// failure is logged and the engine starts with nothing suppressed.
func New(opts Options) (*Engine, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("engine: missing catalog")
	}
	if opts.Settings == nil {
		return nil, fmt.Errorf("engine: missing settings storage")
	}
	if opts.Extractor == nil {
		return nil, fmt.Errorf("engine: missing extractor")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pol := policy.New(opts.Catalog, opts.Settings, logger.With("component", "policy"))
	if err := pol.Rebuild(); err != nil {
		logger.Warn("failed to load settings", "err", err)
	}
	resolver := policy.NewResolver(opts.Catalog, pol)
	pipeline := annotate.NewPipeline(annotate.Options{
		Extractor:  opts.Extractor,
		Resolver:   resolver,
		Completion: pol,
		Publisher:  opts.Publisher,
		Logger:     logger.With("component", "annotate"),
	})
	e := &Engine{
		catalog:    opts.Catalog,
		policy:     pol,
		resolver:   resolver,
		pipeline:   pipeline,
		renderer:   hover.NewRenderer(opts.Catalog, pipeline.Cache(), opts.Messages),
		dispatcher: events.NewDispatcher(),
		prompter:   opts.Prompter,
		logger:     logger,
	}
	e.subscribe()
	return e, nil
}

func (e *Engine) subscribe() {
	d := e.dispatcher
	events.Subscribe(d, e.onActivated)
	events.Subscribe(d, e.onTextChanged)
	events.Subscribe(d, e.onFocusChanged)
	events.Subscribe(d, e.onConfigChanged)
	events.Subscribe(d, e.onTipDismissed)
	events.Subscribe(d, e.onDocumentClosed)
}

// Dispatch delivers a host event.
func (e *Engine) Dispatch(ctx context.Context, ev events.Event) error {
	e.logger.Debug("event", "name", events.Name(ev))
	return e.dispatcher.Dispatch(ctx, ev)
}

// Wait blocks until background work such as the first-run prompt is done.
func (e *Engine) Wait() {
	e.bg.Wait()
}

// Catalog returns the tip catalog.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Policy returns the completion policy.
func (e *Engine) Policy() *policy.Policy { return e.policy }

// Resolver returns the dependency resolver.
func (e *Engine) Resolver() *policy.Resolver { return e.resolver }

// Cache returns the annotation cache.
func (e *Engine) Cache() *annotate.Cache { return e.pipeline.Cache() }

// Annotate runs one pass outside the event flow.
func (e *Engine) Annotate(ctx context.Context, doc, text string) []annotate.Annotation {
	return e.pipeline.Annotate(ctx, doc, text)
}

// Hover renders the tips under pt.
func (e *Engine) Hover(doc string, pt annotate.Point) *hover.Content {
	return e.renderer.Hover(doc, pt)
}

// Commands lists one dismissal command per catalog tip.
func (e *Engine) Commands() []string {
	ids := e.catalog.IDs()
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, hover.CommandID(id))
	}
	return out
}

// ExecuteCommand runs a dismissal command.
func (e *Engine) ExecuteCommand(ctx context.Context, name string) error {
	id, ok := hover.ParseCommand(name)
	if !ok {
		return fmt.Errorf("unknown command %q", name)
	}
	return e.Dispatch(ctx, events.TipDismissed{ID: id})
}

// Active returns the focused document, if any.
func (e *Engine) Active() (doc string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeDoc, e.activeDoc != ""
}

func (e *Engine) setActive(doc, text string) {
	e.mu.Lock()
	e.activeDoc = doc
	e.activeText = text
	e.mu.Unlock()
}

func (e *Engine) reannotateActive(ctx context.Context) {
	e.mu.Lock()
	doc, text := e.activeDoc, e.activeText
	e.mu.Unlock()
	if doc == "" {
		return
	}
	e.pipeline.Annotate(ctx, doc, text)
}

func (e *Engine) onActivated(ctx context.Context, ev events.Activated) error {
	if ev.Doc != "" {
		e.setActive(ev.Doc, ev.Text)
		e.pipeline.Annotate(ctx, ev.Doc, ev.Text)
	}
	if e.prompter != nil && e.policy.NeedsBeginnerPrompt() {
		e.bg.Add(1)
		go e.askBeginner(context.WithoutCancel(ctx))
	}
	return nil
}

// askBeginner runs off the dispatch path: the answer may take a long time.
func (e *Engine) askBeginner(ctx context.Context) {
	defer e.bg.Done()
	beginner, answered, err := e.prompter.AskBeginner(ctx)
	if err != nil {
		e.logger.Warn("first-run prompt failed", "err", err)
		return
	}
	if !answered {
		return
	}
	if err := e.policy.AnswerBeginner(beginner); err != nil {
		e.logger.Warn("failed to store first-run answer", "err", err)
		return
	}
	if err := e.Dispatch(ctx, events.ConfigChanged{}); err != nil {
		e.logger.Warn("reload after first-run answer failed", "err", err)
	}
}

func (e *Engine) onTextChanged(ctx context.Context, ev events.TextChanged) error {
	e.mu.Lock()
	if e.activeDoc == ev.Doc {
		e.activeText = ev.Text
	}
	e.mu.Unlock()
	e.pipeline.Annotate(ctx, ev.Doc, ev.Text)
	return nil
}

func (e *Engine) onFocusChanged(ctx context.Context, ev events.FocusChanged) error {
	if ev.Doc == "" {
		return nil
	}
	e.setActive(ev.Doc, ev.Text)
	e.pipeline.Annotate(ctx, ev.Doc, ev.Text)
	return nil
}

func (e *Engine) onConfigChanged(ctx context.Context, _ events.ConfigChanged) error {
	if err := e.policy.Rebuild(); err != nil {
		e.logger.Warn("failed to reload settings", "err", err)
		return err
	}
	e.reannotateActive(ctx)
	return nil
}

func (e *Engine) onTipDismissed(ctx context.Context, ev events.TipDismissed) error {
	if _, ok := e.catalog.Lookup(ev.ID); !ok {
		e.logger.Debug("ignoring dismissal of unknown tip", "tip", ev.ID)
		return nil
	}
	err := e.policy.Dismiss(ev.ID)
	e.reannotateActive(ctx)
	if err != nil {
		return fmt.Errorf("dismiss %q: %w", ev.ID, err)
	}
	return nil
}

func (e *Engine) onDocumentClosed(_ context.Context, ev events.DocumentClosed) error {
	e.pipeline.Forget(ev.Doc)
	e.mu.Lock()
	if e.activeDoc == ev.Doc {
		e.activeDoc = ""
		e.activeText = ""
	}
	e.mu.Unlock()
	return nil
}
