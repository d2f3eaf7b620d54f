package synth

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chengjon/mem-claude/internal/store"
)

func strPtr(s string) *string { return &s }

// ─── Economics ──────────────────────────────────────────────────────────────

func TestReadTokens(t *testing.T) {
	t.Run("empty observation costs nothing", func(t *testing.T) {
		assert.Equal(t, 0, ReadTokens(store.Observation{}))
	})

	t.Run("four chars per token, rounded up", func(t *testing.T) {
		o := store.Observation{Narrative: strPtr(strings.Repeat("x", 400))}
		assert.Equal(t, 100, ReadTokens(o))

		o.Narrative = strPtr(strings.Repeat("x", 401))
		assert.Equal(t, 101, ReadTokens(o))
	})

	t.Run("facts count at JSON-encoded length", func(t *testing.T) {
		// ["abc"] encodes to 7 chars.
		o := store.Observation{Facts: []string{"abc"}}
		assert.Equal(t, 2, ReadTokens(o))
	})
}

func TestComputeEconomics(t *testing.T) {
	obs := []store.Observation{
		{Narrative: strPtr(strings.Repeat("x", 400)), DiscoveryTokens: 120},
	}
	eco := ComputeEconomics(obs)

	assert.Equal(t, 100, eco.ReadTokens)
	assert.Equal(t, 120, eco.WorkTokens)
	assert.Equal(t, 20, eco.Savings)
	assert.Equal(t, 17, eco.SavingsPercent)
}

func TestComputeEconomics_NegativeSavingsRounds(t *testing.T) {
	// Reading costs more than the recorded work: 100 read vs 60 work is
	// -66.67%, which rounds away from zero to -67.
	obs := []store.Observation{
		{Narrative: strPtr(strings.Repeat("x", 400)), DiscoveryTokens: 60},
	}
	eco := ComputeEconomics(obs)

	assert.Equal(t, -40, eco.Savings)
	assert.Equal(t, -67, eco.SavingsPercent)
}

func TestComputeEconomics_NoWork(t *testing.T) {
	eco := ComputeEconomics([]store.Observation{{Title: strPtr("abcd")}})
	assert.Equal(t, 1, eco.ReadTokens)
	assert.Equal(t, 0, eco.WorkTokens)
	assert.Equal(t, -1, eco.Savings)
	assert.Equal(t, 0, eco.SavingsPercent, "percentage undefined without work")
}

func TestFormatInt(t *testing.T) {
	assert.Equal(t, "0", formatInt(0))
	assert.Equal(t, "999", formatInt(999))
	assert.Equal(t, "1,000", formatInt(1000))
	assert.Equal(t, "1,234,567", formatInt(1234567))
	assert.Equal(t, "-12,345", formatInt(-12345))
}

// ─── Summary anchoring ──────────────────────────────────────────────────────

func TestAnchorSummaries(t *testing.T) {
	// Newest first, with one over-fetched row beyond the display window.
	summaries := []store.Summary{
		{ID: 3, CreatedAtEpoch: 3000},
		{ID: 2, CreatedAtEpoch: 2000},
		{ID: 1, CreatedAtEpoch: 1000},
	}

	display := anchorSummaries(summaries, 2)
	require.Len(t, display, 2)

	assert.Equal(t, int64(3000), display[0].displayEpoch, "newest keeps its own time")
	assert.Equal(t, int64(1000), display[1].displayEpoch, "older borrows its predecessor's time")
}

func TestAnchorSummaries_NoOverfetchRow(t *testing.T) {
	summaries := []store.Summary{
		{ID: 2, CreatedAtEpoch: 2000},
		{ID: 1, CreatedAtEpoch: 1000},
	}

	display := anchorSummaries(summaries, 2)
	require.Len(t, display, 2)
	assert.Equal(t, int64(1000), display[1].displayEpoch, "last entry keeps its own time")
}

// ─── Transcript helpers ─────────────────────────────────────────────────────

func TestProjectName(t *testing.T) {
	assert.Equal(t, "mem-claude", ProjectName("/home/dev/mem-claude"))
	assert.Equal(t, "unknown-project", ProjectName(""))
	assert.Equal(t, "unknown-project", ProjectName("/"))
}

func TestTranscriptPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got := TranscriptPath("/home/dev/proj", "sess-1")
	want := filepath.Join(home, ".claude", "projects", "-home-dev-proj", "sess-1.jsonl")
	assert.Equal(t, want, got)
}

func TestLastAssistantMessage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.jsonl")

	lines := []string{
		`{"type":"user","message":{"content":[{"type":"text","text":"question"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"first answer"}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"final <system-reminder>secret</system-reminder> answer"}]}}`,
	}
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644))

	got := LastAssistantMessage(path)
	assert.Equal(t, "final  answer", got)
}

func TestLastAssistantMessage_MissingFile(t *testing.T) {
	assert.Equal(t, "", LastAssistantMessage(filepath.Join(t.TempDir(), "missing.jsonl")))
}

func TestWorkdirLabel(t *testing.T) {
	assert.Equal(t, "General", workdirLabel(nil, "/proj"))
	assert.Equal(t, "internal/store/store.go", workdirLabel([]string{"internal/store/store.go"}, "/proj"))
	assert.Equal(t, "internal/a.go", workdirLabel([]string{"/proj/internal/a.go"}, "/proj"))
}

// ─── Rendering ──────────────────────────────────────────────────────────────

func testRenderer(colors bool) renderer {
	return renderer{
		opts:    DefaultOptions(),
		project: "projR",
		cwd:     "/home/dev/projR",
		colors:  colors,
	}
}

func TestRender_Empty(t *testing.T) {
	out := testRenderer(false).render(nil, nil, "")
	assert.Contains(t, out, "# [projR] recent context")
	assert.Contains(t, out, "No previous sessions found for this project yet.")
}

func TestRender_PlainTimeline(t *testing.T) {
	base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local).UnixMilli()
	observations := []store.Observation{
		{
			ID: 2, Type: "discovery", Title: strPtr("second finding"),
			CreatedAtEpoch: base + 60_000, DiscoveryTokens: 2000,
		},
		{
			ID: 1, Type: "bugfix", Title: strPtr("first fix"),
			CreatedAtEpoch: base,
		},
	}
	summaries := []store.Summary{
		{ID: 7, Request: strPtr("Build the thing"), CreatedAtEpoch: base + 120_000},
	}

	out := testRenderer(false).render(observations, summaries, "")

	assert.Contains(t, out, "# [projR] recent context")
	assert.Contains(t, out, "**Legend:**")
	assert.Contains(t, out, "| ID | Time | T | Title | Read | Work |")
	assert.Contains(t, out, "📊 **Context Economics**")
	assert.Contains(t, out, "**🎯 #S7** Build the thing")
	assert.Contains(t, out, "🔴")
	assert.Contains(t, out, "🔵")
	assert.Contains(t, out, "🔍 2,000")
}

func TestRender_RepeatedTimeCollapses(t *testing.T) {
	epoch := time.Date(2026, 3, 10, 9, 30, 0, 0, time.Local).UnixMilli()
	observations := []store.Observation{
		{ID: 1, Type: "change", Title: strPtr("one"), CreatedAtEpoch: epoch},
		{ID: 2, Type: "change", Title: strPtr("two"), CreatedAtEpoch: epoch},
	}

	r := testRenderer(false)
	r.opts.FullObservationCount = 0
	out := r.render(observations, nil, "")

	assert.Contains(t, out, "| ″ |", "repeated time renders as a ditto mark")
}

func TestRender_FooterSavings(t *testing.T) {
	observations := []store.Observation{
		{
			ID: 1, Type: "discovery", Title: strPtr("finding"),
			Narrative:       strPtr(strings.Repeat("x", 393)),
			CreatedAtEpoch:  time.Now().UnixMilli(),
			DiscoveryTokens: 25_000,
		},
	}

	r := testRenderer(false)
	r.opts.FullObservationCount = 0
	out := r.render(observations, nil, "")

	// Title (7 chars) plus narrative (393) is 400 chars, read cost 100.
	assert.Contains(t, out, "💰 Access 25k tokens of past research & decisions for just 100t.")
}

func TestRender_PreviouslyBlock(t *testing.T) {
	observations := []store.Observation{
		{ID: 1, Type: "change", Title: strPtr("t"), CreatedAtEpoch: time.Now().UnixMilli()},
	}

	out := testRenderer(false).render(observations, nil, "done last time")
	assert.Contains(t, out, "**📋 Previously**")
	assert.Contains(t, out, "A: done last time")
}

func TestRender_LastSummaryFields(t *testing.T) {
	now := time.Now().UnixMilli()
	observations := []store.Observation{
		{ID: 1, Type: "change", Title: strPtr("t"), CreatedAtEpoch: now - 10_000},
	}
	summaries := []store.Summary{
		{
			ID: 1, Request: strPtr("req"),
			Investigated:   strPtr("the cache layer"),
			Learned:        strPtr("it is write-through"),
			NextSteps:      strPtr("add eviction"),
			CreatedAtEpoch: now,
		},
	}

	out := testRenderer(false).render(observations, summaries, "")
	assert.Contains(t, out, "**Investigated**: the cache layer")
	assert.Contains(t, out, "**Learned**: it is write-through")
	assert.Contains(t, out, "**Next Steps**: add eviction")
}

func TestRender_LastSummarySuppressedWhenObservationsNewer(t *testing.T) {
	now := time.Now().UnixMilli()
	observations := []store.Observation{
		{ID: 1, Type: "change", Title: strPtr("t"), CreatedAtEpoch: now},
	}
	summaries := []store.Summary{
		{ID: 1, Investigated: strPtr("stale detail"), CreatedAtEpoch: now - 60_000},
	}

	out := testRenderer(false).render(observations, summaries, "")
	assert.NotContains(t, out, "stale detail")
}

func TestRender_ColorsUseAnsi(t *testing.T) {
	observations := []store.Observation{
		{ID: 1, Type: "discovery", Title: strPtr("finding"), CreatedAtEpoch: time.Now().UnixMilli()},
	}

	out := testRenderer(true).render(observations, nil, "")
	assert.Contains(t, out, "\x1b[", "ANSI escape codes expected in color mode")
	assert.NotContains(t, out, "| ID | Time |", "color mode must not emit markdown tables")
}
