package policy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiplens/internal/catalog"
	"tiplens/internal/settings"
)

const testCatalog = `
[[tip]]
id = "a"
difficulty = "easy"

[[tip]]
id = "b"
difficulty = "medium"
deps = ["a"]

[[tip]]
id = "c"
difficulty = "hard"
deps = ["a", "b"]

[[tip]]
id = "d"
difficulty = "medium"
deps = "ghost"

[[tip]]
id = "loop-1"
difficulty = "hard"
deps = "loop-2"

[[tip]]
id = "loop-2"
difficulty = "hard"
deps = "loop-1"
`

func newPolicy(t *testing.T, initial settings.Settings) (*Policy, *settings.MemoryStore) {
	t.Helper()
	cat, err := catalog.Parse([]byte(testCatalog), "test.toml")
	require.NoError(t, err)
	store := settings.NewMemoryStore(initial)
	p := New(cat, store, nil)
	require.NoError(t, p.Rebuild())
	return p, store
}

func TestUnknownTipsAreSuppressed(t *testing.T) {
	p, _ := newPolicy(t, settings.Settings{})
	assert.True(t, p.IsSuppressed("ghost"))
	assert.False(t, p.IsSuppressed("a"))
}

func TestHideBasicTipsSuppressesEasyTips(t *testing.T) {
	p, _ := newPolicy(t, settings.Settings{HideBasicTips: settings.Bool(true)})
	assert.True(t, p.IsSuppressed("a"))
	assert.False(t, p.IsSuppressed("b"))

	p, _ = newPolicy(t, settings.Settings{HideBasicTips: settings.Bool(true), HiddenTips: []string{"a"}})
	assert.True(t, p.IsSuppressed("a"))
}

func TestDismissPersistsAndIsIdempotent(t *testing.T) {
	p, store := newPolicy(t, settings.Settings{})
	require.NoError(t, p.Dismiss("b"))
	once := p.Dismissed()
	require.NoError(t, p.Dismiss("b"))
	assert.Equal(t, once, p.Dismissed())
	assert.Equal(t, []string{"b"}, p.Dismissed())
	assert.True(t, p.IsSuppressed("b"))

	saved, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, saved.HiddenTips)
}

func TestDismissKeepsStateWhenPersistFails(t *testing.T) {
	p, store := newPolicy(t, settings.Settings{})
	store.SaveErr = errors.New("disk full")

	err := p.Dismiss("a")
	assert.ErrorIs(t, err, settings.ErrPersist)
	assert.True(t, p.IsSuppressed("a"))
}

func TestRebuildReplacesState(t *testing.T) {
	p, store := newPolicy(t, settings.Settings{HiddenTips: []string{"a", "b"}})
	assert.True(t, p.IsSuppressed("b"))

	require.NoError(t, store.Save(settings.Settings{HiddenTips: []string{"c"}}))
	require.NoError(t, p.Rebuild())
	assert.False(t, p.IsSuppressed("a"))
	assert.False(t, p.IsSuppressed("b"))
	assert.True(t, p.IsSuppressed("c"))
}

func TestBeginnerPrompt(t *testing.T) {
	p, store := newPolicy(t, settings.Settings{})
	require.True(t, p.NeedsBeginnerPrompt())
	value, set := p.HidesBasicTips()
	assert.False(t, value)
	assert.False(t, set)
	assert.False(t, p.IsSuppressed("a"), "unset flag must not hide tips")

	require.NoError(t, p.AnswerBeginner(false))
	assert.False(t, p.NeedsBeginnerPrompt())
	assert.True(t, p.IsSuppressed("a"))
	saved, _ := store.Load()
	require.NotNil(t, saved.HideBasicTips)
	assert.True(t, *saved.HideBasicTips)

	require.NoError(t, p.AnswerBeginner(true))
	assert.False(t, p.IsSuppressed("a"))
}

func TestResolverEligibility(t *testing.T) {
	p, _ := newPolicy(t, settings.Settings{})
	r := NewResolver(p.Catalog(), p)

	assert.True(t, r.IsEligible("a"), "tips without deps are always eligible")
	assert.False(t, r.IsEligible("b"))
	assert.False(t, r.IsEligible("c"))
	assert.True(t, r.IsEligible("d"), "unknown deps count as suppressed")
	assert.False(t, r.IsEligible("ghost"), "unknown tips are never eligible")
	assert.False(t, r.IsEligible("loop-1"))
	assert.False(t, r.IsEligible("loop-2"))

	require.NoError(t, p.Dismiss("a"))
	assert.True(t, r.IsEligible("b"))
	assert.False(t, r.IsEligible("c"))

	require.NoError(t, p.Dismiss("b"))
	assert.True(t, r.IsEligible("c"))
}

func TestResolverUnlockedByHideBasicTips(t *testing.T) {
	p, _ := newPolicy(t, settings.Settings{HideBasicTips: settings.Bool(true)})
	r := NewResolver(p.Catalog(), p)
	assert.True(t, r.IsEligible("b"))
}

func TestEligibilityIsMonotoneInDismissals(t *testing.T) {
	p, _ := newPolicy(t, settings.Settings{})
	r := NewResolver(p.Catalog(), p)
	ids := p.Catalog().IDs()

	before := make(map[string]bool, len(ids))
	for _, id := range ids {
		before[id] = r.IsEligible(id)
	}
	for _, dismiss := range ids {
		require.NoError(t, p.Dismiss(dismiss))
		for _, id := range ids {
			now := r.IsEligible(id)
			if before[id] && !now {
				t.Fatalf("dismissing %q made %q ineligible", dismiss, id)
			}
			before[id] = now
		}
	}
}

func TestPrerequisiteUnlocksAfterDismissal(t *testing.T) {
	p, _ := newPolicy(t, settings.Settings{HideBasicTips: settings.Bool(false)})
	r := NewResolver(p.Catalog(), p)
	visible := func() []string {
		var out []string
		for _, id := range []string{"a", "b"} {
			if r.IsEligible(id) && !p.IsSuppressed(id) {
				out = append(out, id)
			}
		}
		return out
	}
	assert.Equal(t, []string{"a"}, visible())
	require.NoError(t, p.Dismiss("a"))
	assert.Equal(t, []string{"b"}, visible())
}
