// Package hover renders the tip cards shown when the cursor rests on an
// annotated region.
package hover

import (
	"fmt"
	"strings"

	"tiplens/internal/annotate"
	"tiplens/internal/catalog"
	"tiplens/internal/message"
)

// CommandPrefix starts every dismissal command name.
const CommandPrefix = "tiplens.dont-show-again."

// CommandID returns the dismissal command for a tip.
func CommandID(id string) string {
	return CommandPrefix + id
}

// ParseCommand extracts the tip identifier from a dismissal command.
func ParseCommand(cmd string) (string, bool) {
	id, ok := strings.CutPrefix(cmd, CommandPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Messages renders message templates. *message.Store satisfies it.
type Messages interface {
	Render(code int, items []string) *message.Message
}

// Block is the card of one tip.
type Block struct {
	TipID   string
	Name    string
	Message string
	Link    string
	// Command dismisses the tip when invoked.
	Command  string
	Markdown string
}

// Content is the hover result. An empty Content means the document is
// annotated but nothing lies under the cursor.
type Content struct {
	Blocks []Block
}

// Empty reports whether there is nothing to show.
func (c *Content) Empty() bool {
	return c == nil || len(c.Blocks) == 0
}

// Markdown joins the blocks, separated by horizontal rules.
func (c *Content) Markdown() string {
	if c.Empty() {
		return ""
	}
	parts := make([]string, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		parts = append(parts, b.Markdown)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// Renderer answers hover queries from the annotation cache.
type Renderer struct {
	catalog  *catalog.Catalog
	cache    *annotate.Cache
	messages Messages
}

// NewRenderer builds a renderer. messages may be nil.
func NewRenderer(cat *catalog.Catalog, cache *annotate.Cache, messages Messages) *Renderer {
	return &Renderer{catalog: cat, cache: cache, messages: messages}
}

// Hover returns the cards of every annotation containing pt, or nil when
// doc has no cached record.
func (r *Renderer) Hover(doc string, pt annotate.Point) *Content {
	items, ok := r.cache.Get(doc)
	if !ok {
		return nil
	}
	content := &Content{Blocks: []Block{}}
	for _, item := range items {
		if !item.Region.Contains(pt) {
			continue
		}
		meta := r.catalog.MetaByID(item.Type)
		if meta == nil {
			continue
		}
		content.Blocks = append(content.Blocks, r.block(meta))
	}
	return content
}

func (r *Renderer) block(meta *catalog.Metadata) Block {
	b := Block{
		TipID:   meta.ID,
		Name:    meta.Name,
		Message: r.messageFor(meta),
		Link:    meta.Link,
		Command: CommandID(meta.ID),
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n\n", b.Name)
	if b.Message != "" {
		sb.WriteString(b.Message)
		sb.WriteString("\n\n")
	}
	if b.Link != "" {
		fmt.Fprintf(&sb, "[Learn More](%s) |", b.Link)
	}
	fmt.Fprintf(&sb, " [Mark as Learned](command:%s)", b.Command)
	b.Markdown = sb.String()
	return b
}

func (r *Renderer) messageFor(meta *catalog.Metadata) string {
	if meta.Template != nil && r.messages != nil {
		if m := r.messages.Render(meta.Template.Code, meta.Template.Items); m != nil {
			body := strings.TrimSpace(m.Body)
			if m.Excerpt == "" {
				return body
			}
			if body == "" {
				return m.Excerpt
			}
			return m.Excerpt + "\n\n" + body
		}
	}
	return meta.Message
}
