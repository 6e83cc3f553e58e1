package annotate

import "context"

// Position is a source coordinate: 1-based line, 0-based column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SourceLocation spans an occurrence in source coordinates.
type SourceLocation struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Occurrence is one tip found by an extractor.
type Occurrence struct {
	Type string         `json:"type"`
	Loc  SourceLocation `json:"loc"`
}

// Point is a display coordinate: 0-based line and character.
type Point struct {
	Line      int
	Character int
}

// Before reports whether p sorts before q.
func (p Point) Before(q Point) bool {
	if p.Line != q.Line {
		return p.Line < q.Line
	}
	return p.Character < q.Character
}

// Region is a display range.
type Region struct {
	Start Point
	End   Point
}

// Contains reports whether pt lies within the region, both ends included.
func (r Region) Contains(pt Point) bool {
	return !pt.Before(r.Start) && !r.End.Before(pt)
}

// RegionFromLocation converts source coordinates to display coordinates.
// Lines shift down by one; columns are kept.
func RegionFromLocation(loc SourceLocation) Region {
	return Region{
		Start: Point{Line: maxZero(loc.Start.Line - 1), Character: maxZero(loc.Start.Column)},
		End:   Point{Line: maxZero(loc.End.Line - 1), Character: maxZero(loc.End.Column)},
	}
}

// Annotation is a visible occurrence with its display region.
type Annotation struct {
	Occurrence
	Region Region
}

// Severity follows the LSP numbering.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

// Source labels every diagnostic published by tiplens.
const Source = "tiplens"

// Diagnostic is what the host displays for one annotation.
type Diagnostic struct {
	Region   Region
	Message  string
	Severity Severity
	Source   string
}

// Diagnostics maps annotations to informational diagnostics carrying the
// tip identifier.
func Diagnostics(items []Annotation) []Diagnostic {
	out := make([]Diagnostic, 0, len(items))
	for _, item := range items {
		out = append(out, Diagnostic{
			Region:   item.Region,
			Message:  item.Type,
			Severity: SeverityInformation,
			Source:   Source,
		})
	}
	return out
}

// Extractor finds tip occurrences in document text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]Occurrence, error)
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(ctx context.Context, text string) ([]Occurrence, error)

func (f ExtractorFunc) Extract(ctx context.Context, text string) ([]Occurrence, error) {
	return f(ctx, text)
}

// Publisher receives the replacement diagnostics of a document.
type Publisher interface {
	Publish(doc string, diags []Diagnostic)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(doc string, diags []Diagnostic)

func (f PublisherFunc) Publish(doc string, diags []Diagnostic) {
	f(doc, diags)
}

func maxZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
