package extract

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiplens/internal/annotate"
)

func TestDecodeValid(t *testing.T) {
	occs, err := Decode(strings.NewReader(`[{"type":"as-const","loc":{"start":{"line":2,"column":4},"end":{"line":2,"column":12}}}]`))
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, "as-const", occs[0].Type)
	assert.Equal(t, annotate.Position{Line: 2, Column: 12}, occs[0].Loc.End)
}

func TestDecodeEmptyList(t *testing.T) {
	occs, err := Decode(strings.NewReader("[]\n"))
	require.NoError(t, err)
	assert.NotNil(t, occs)
	assert.Empty(t, occs)
}

func TestDecodeRejectsInvalidInput(t *testing.T) {
	cases := map[string]string{
		"not json":      `nope`,
		"object":        `{"type":"x"}`,
		"unknown field": `[{"type":"x","kind":1,"loc":{"start":{"line":1,"column":0},"end":{"line":1,"column":1}}}]`,
		"zero line":     `[{"type":"x","loc":{"start":{"line":0,"column":0},"end":{"line":1,"column":1}}}]`,
		"neg column":    `[{"type":"x","loc":{"start":{"line":1,"column":-1},"end":{"line":1,"column":1}}}]`,
		"end first":     `[{"type":"x","loc":{"start":{"line":2,"column":0},"end":{"line":1,"column":1}}}]`,
		"same line":     `[{"type":"x","loc":{"start":{"line":1,"column":5},"end":{"line":1,"column":4}}}]`,
		"missing type":  `[{"loc":{"start":{"line":1,"column":0},"end":{"line":1,"column":1}}}]`,
		"trailing":      `[] []`,
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(input))
			assert.ErrorIs(t, err, ErrExtraction)
		})
	}
}

func TestFixedReturnsCopies(t *testing.T) {
	f := Fixed{{Type: "a"}}
	got, err := f.Extract(context.Background(), "ignored")
	require.NoError(t, err)
	got[0].Type = "changed"
	assert.Equal(t, "a", f[0].Type)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Extract(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReadFile(t *testing.T) {
	f, err := ReadFile("testdata/occurrences.json")
	require.NoError(t, err)
	require.Len(t, f, 2)
	assert.Equal(t, "optional-chaining", f[1].Type)

	_, err = ReadFile("testdata/missing.json")
	assert.Error(t, err)
}

func TestParseCommand(t *testing.T) {
	c, err := ParseCommand("  detector --lang ts ")
	require.NoError(t, err)
	assert.Equal(t, "detector", c.Name)
	assert.Equal(t, []string{"--lang", "ts"}, c.Args)
	assert.Equal(t, "detector --lang ts", c.String())

	_, err = ParseCommand("   ")
	assert.Error(t, err)
}

func requireTool(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not available", name)
	}
}

func TestCommandDecodesStdout(t *testing.T) {
	requireTool(t, "cat")
	c := &Command{Name: "cat"}
	text := `[{"type":"keyof-type","loc":{"start":{"line":1,"column":0},"end":{"line":1,"column":5}}}]`
	occs, err := c.Extract(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, occs, 1)
	assert.Equal(t, "keyof-type", occs[0].Type)
}

func TestCommandFailureCarriesStderr(t *testing.T) {
	requireTool(t, "sh")
	c := &Command{Name: "sh", Args: []string{"-c", "echo boom >&2; exit 3"}}
	_, err := c.Extract(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrExtraction))
	assert.Contains(t, err.Error(), "boom")
}

func TestCommandMalformedOutput(t *testing.T) {
	requireTool(t, "sh")
	c := &Command{Name: "sh", Args: []string{"-c", "echo not-json"}}
	_, err := c.Extract(context.Background(), "")
	assert.ErrorIs(t, err, ErrExtraction)
}

func TestCommandTimeout(t *testing.T) {
	requireTool(t, "sleep")
	c := &Command{Name: "sleep", Args: []string{"5"}, Timeout: 50 * time.Millisecond}
	start := time.Now()
	_, err := c.Extract(context.Background(), "")
	assert.ErrorIs(t, err, ErrExtraction)
	assert.Less(t, time.Since(start), 4*time.Second)
}
