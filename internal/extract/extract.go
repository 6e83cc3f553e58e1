// Package extract adapts external tip detectors to annotate.Extractor.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"time"

	"tiplens/internal/annotate"
)

// ErrExtraction wraps every detector failure.
var ErrExtraction = errors.New("extraction failed")

// DefaultTimeout bounds one detector run.
const DefaultTimeout = 10 * time.Second

// Decode reads a JSON array of occurrences and validates positions.
func Decode(r io.Reader) ([]annotate.Occurrence, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var occs []annotate.Occurrence
	if err := dec.Decode(&occs); err != nil {
		return nil, fmt.Errorf("%w: decode occurrences: %v", ErrExtraction, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after occurrence list", ErrExtraction)
	}
	for i, occ := range occs {
		if err := validate(occ); err != nil {
			return nil, fmt.Errorf("%w: occurrence %d: %v", ErrExtraction, i, err)
		}
	}
	if occs == nil {
		occs = []annotate.Occurrence{}
	}
	return occs, nil
}

func validate(occ annotate.Occurrence) error {
	if occ.Type == "" {
		return errors.New("missing type")
	}
	start, end := occ.Loc.Start, occ.Loc.End
	if start.Line < 1 || end.Line < 1 {
		return fmt.Errorf("line must be >= 1")
	}
	if start.Column < 0 || end.Column < 0 {
		return fmt.Errorf("column must be >= 0")
	}
	if end.Line < start.Line || (end.Line == start.Line && end.Column < start.Column) {
		return fmt.Errorf("end %d:%d before start %d:%d", end.Line, end.Column, start.Line, start.Column)
	}
	return nil
}

// Fixed reports the same occurrences for any text.
type Fixed []annotate.Occurrence

func (f Fixed) Extract(ctx context.Context, _ string) ([]annotate.Occurrence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(f), nil
}

// ReadFile loads a Fixed extractor from a JSON occurrence file.
func ReadFile(path string) (Fixed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	occs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Fixed(occs), nil
}

// Command runs a detector program per pass. The document text goes to its
// stdin; it must print a JSON occurrence array on stdout.
type Command struct {
	Name    string
	Args    []string
	Timeout time.Duration
	// Dir is the working directory; empty means the current one.
	Dir string
}

// ParseCommand splits a command line on whitespace.
func ParseCommand(line string) (*Command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, errors.New("empty extractor command")
	}
	return &Command{Name: fields[0], Args: fields[1:], Timeout: DefaultTimeout}, nil
}

func (c *Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

func (c *Command) Extract(ctx context.Context, text string) ([]annotate.Occurrence, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdin = strings.NewReader(text)
	var stdout bytes.Buffer
	var stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrExtraction, c.Name, ctxErr)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return nil, fmt.Errorf("%w: %s: %v", ErrExtraction, c.Name, err)
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrExtraction, c.Name, msg)
	}
	return Decode(&stdout)
}
