// Package message renders tip messages from markdown templates.
//
// A template store holds one document per numeric code, named "<code>.md".
// Each document starts with YAML front matter carrying an excerpt, followed
// by the body. Positional placeholders are substituted on render:
//
//	body:    {0}, {1}, ...       replaced by the raw item
//	excerpt: '{0}', '{1}', ...   replaced by the item in backticks
package message

import (
	"crypto/sha256"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*.md
var builtinTemplates embed.FS

var (
	// ErrNotFound reports a code without a template document.
	ErrNotFound = errors.New("message template not found")
	// ErrMalformed reports a template document that cannot be parsed.
	ErrMalformed = errors.New("malformed message template")
)

// Message is a rendered template.
type Message struct {
	Body    string
	Excerpt string
}

// Document is a parsed, unrendered template.
type Document struct {
	Excerpt string `msgpack:"excerpt"`
	Body    string `msgpack:"body"`
}

type frontMatter struct {
	Excerpt *string `yaml:"excerpt"`
}

// Fill substitutes items into body and excerpt.
func Fill(body, excerpt string, items []string) Message {
	for i, item := range items {
		placeholder := "{" + strconv.Itoa(i) + "}"
		body = strings.ReplaceAll(body, placeholder, item)
		excerpt = strings.ReplaceAll(excerpt, "'"+placeholder+"'", "`"+item+"`")
	}
	return Message{Body: body, Excerpt: excerpt}
}

// Parse splits a template document into front matter and body.
func Parse(data []byte) (Document, error) {
	meta, body, ok := splitFrontMatter(string(data))
	if !ok {
		return Document{}, fmt.Errorf("%w: missing front matter", ErrMalformed)
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(meta), &fm); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fm.Excerpt == nil {
		return Document{}, fmt.Errorf("%w: missing excerpt", ErrMalformed)
	}
	return Document{Excerpt: *fm.Excerpt, Body: body}, nil
}

// splitFrontMatter accepts a document opening with a "---" line and closing
// the front matter with a "---" or "..." line.
func splitFrontMatter(src string) (meta, body string, ok bool) {
	src = strings.TrimPrefix(src, "\ufeff")
	src = strings.ReplaceAll(src, "\r\n", "\n")
	if !strings.HasPrefix(src, "---\n") {
		return "", "", false
	}
	rest := src[len("---\n"):]
	off := 0
	for off <= len(rest) {
		end := strings.IndexByte(rest[off:], '\n')
		var line string
		next := len(rest) + 1
		if end < 0 {
			line = rest[off:]
		} else {
			line = rest[off : off+end]
			next = off + end + 1
		}
		if trimmed := strings.TrimRight(line, " \t"); trimmed == "---" || trimmed == "..." {
			meta = rest[:off]
			if next <= len(rest) {
				body = rest[next:]
			}
			return meta, body, true
		}
		off = next
	}
	return "", "", false
}

// Option configures a Store.
type Option func(*Store)

// WithDiskCache keeps parsed documents in c between runs.
func WithDiskCache(c *DiskCache) Option {
	return func(s *Store) { s.cache = c }
}

// WithLogger sets the logger used for render failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store loads template documents by code.
type Store struct {
	fsys   fs.FS
	cache  *DiskCache
	group  singleflight.Group
	logger *slog.Logger
}

// NewStore serves templates from fsys.
func NewStore(fsys fs.FS, opts ...Option) *Store {
	s := &Store{fsys: fsys, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenDir serves templates from a directory.
func OpenDir(dir string, opts ...Option) *Store {
	return NewStore(os.DirFS(dir), opts...)
}

// Builtin serves the templates compiled into the binary.
func Builtin(opts ...Option) *Store {
	sub, err := fs.Sub(builtinTemplates, "templates")
	if err != nil {
		panic(fmt.Sprintf("builtin templates: %v", err))
	}
	return NewStore(sub, opts...)
}

// Load returns the parsed document for code.
func (s *Store) Load(code int) (Document, error) {
	if s == nil || s.fsys == nil || code <= 0 {
		return Document{}, fmt.Errorf("%w: %d", ErrNotFound, code)
	}
	v, err, _ := s.group.Do(strconv.Itoa(code), func() (any, error) {
		return s.load(code)
	})
	if err != nil {
		return Document{}, err
	}
	return v.(Document), nil
}

func (s *Store) load(code int) (Document, error) {
	name := strconv.Itoa(code) + ".md"
	data, err := fs.ReadFile(s.fsys, name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return Document{}, fmt.Errorf("read %s: %w", name, err)
	}
	key := sha256.Sum256(data)
	if s.cache != nil {
		var doc Document
		ok, cacheErr := s.cache.Get(key, &doc)
		if cacheErr != nil {
			s.logger.Debug("template cache read failed", "code", code, "err", cacheErr)
		}
		if ok {
			return doc, nil
		}
	}
	doc, err := Parse(data)
	if err != nil {
		return Document{}, fmt.Errorf("%s: %w", name, err)
	}
	if s.cache != nil {
		if err := s.cache.Put(key, &doc); err != nil {
			s.logger.Debug("template cache write failed", "code", code, "err", err)
		}
	}
	return doc, nil
}

// Render loads the template for code and fills in items. It returns nil when
// the template cannot be loaded; callers fall back to a plain message.
func (s *Store) Render(code int, items []string) *Message {
	doc, err := s.Load(code)
	if err != nil {
		if s != nil {
			s.logger.Warn("message template unavailable", "code", code, "err", err)
		}
		return nil
	}
	m := Fill(doc.Body, doc.Excerpt, items)
	return &m
}
