package synth

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/chengjon/mem-claude/internal/store"
)

var typeGlyphs = map[string]string{
	"bugfix":          "🔴",
	"feature":         "🟣",
	"refactor":        "🔄",
	"change":          "✅",
	"discovery":       "🔵",
	"decision":        "⚖️",
	"session-request": "🎯",
}

var workGlyphs = map[string]string{
	"discovery": "🔍",
	"change":    "🛠️",
	"feature":   "🛠️",
	"bugfix":    "🛠️",
	"refactor":  "🛠️",
	"decision":  "⚖️",
}

const legendLine = "🎯 session-request | 🔴 bugfix | 🟣 feature | 🔄 refactor | ✅ change | 🔵 discovery | ⚖️  decision"

// ─── Palette ─────────────────────────────────────────────────────────────────

// palette wraps fatih/color with an on/off switch. Output goes over HTTP,
// not a TTY, so each color is force-enabled and the switch is explicit.
type palette struct {
	on bool

	bright     *color.Color
	dim        *color.Color
	gray       *color.Color
	green      *color.Color
	yellow     *color.Color
	blue       *color.Color
	magenta    *color.Color
	cyanBright *color.Color
	magBright  *color.Color
}

func newPalette(on bool) palette {
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		c.EnableColor()
		return c
	}
	return palette{
		on:         on,
		bright:     mk(color.Bold),
		dim:        mk(color.Faint),
		gray:       mk(color.FgHiBlack),
		green:      mk(color.FgGreen),
		yellow:     mk(color.FgYellow),
		blue:       mk(color.FgBlue),
		magenta:    mk(color.FgMagenta),
		cyanBright: mk(color.FgCyan, color.Bold),
		magBright:  mk(color.FgMagenta, color.Bold),
	}
}

func (p palette) paint(c *color.Color, s string) string {
	if !p.on {
		return s
	}
	return c.Sprint(s)
}

// ─── Formatting helpers ──────────────────────────────────────────────────────

func dateLabel(epoch int64) string {
	return time.UnixMilli(epoch).Local().Format("Jan 2, 2006")
}

func dateTimeLabel(epoch int64) string {
	return time.UnixMilli(epoch).Local().Format("Jan 2, 3:04 PM")
}

func timeLabel(epoch int64) string {
	return time.UnixMilli(epoch).Local().Format("3:04 PM")
}

// formatInt renders n with comma thousands separators.
func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	for i := len(s) - 3; i > 0; i -= 3 {
		s = s[:i] + "," + s[i:]
	}
	if neg {
		s = "-" + s
	}
	return s
}

// ─── Renderer ────────────────────────────────────────────────────────────────

type renderer struct {
	opts    Options
	project string
	cwd     string
	colors  bool
}

// displaySummary pairs a summary with the timestamp it renders under. The
// newest summary keeps its own time; every older one borrows the time of
// the summary chronologically before it, which anchors it where its
// session actually ran.
type displaySummary struct {
	store.Summary
	displayEpoch int64
}

// timelineEntry is one merged item: an observation or a summary.
type timelineEntry struct {
	obs     *store.Observation
	summary *displaySummary
}

func (t timelineEntry) epoch() int64 {
	if t.obs != nil {
		return t.obs.CreatedAtEpoch
	}
	return t.summary.displayEpoch
}

// anchorSummaries trims the over-fetched summary list to the display
// window and resolves each summary's display timestamp. The list arrives
// newest first; entry i>0 borrows the time of entry i+1, its predecessor
// in session order.
func anchorSummaries(summaries []store.Summary, sessionCount int) []displaySummary {
	n := sessionCount
	if n > len(summaries) {
		n = len(summaries)
	}
	out := make([]displaySummary, 0, n)
	for i := 0; i < n; i++ {
		d := displaySummary{Summary: summaries[i], displayEpoch: summaries[i].CreatedAtEpoch}
		if i > 0 && i+1 < len(summaries) {
			d.displayEpoch = summaries[i+1].CreatedAtEpoch
		}
		out = append(out, d)
	}
	return out
}

func (r renderer) render(observations []store.Observation, summaries []store.Summary, assistantMessage string) string {
	p := newPalette(r.colors)

	if len(observations) == 0 && len(summaries) == 0 {
		return r.renderEmpty(p)
	}

	display := anchorSummaries(summaries, r.opts.SessionCount)
	eco := ComputeEconomics(observations)
	anyTokens := r.opts.ShowReadTokens || r.opts.ShowWorkTokens || r.opts.ShowSavingsAmount || r.opts.ShowSavingsPercent

	fullIDs := make(map[int64]bool, r.opts.FullObservationCount)
	for i, o := range observations {
		if i >= r.opts.FullObservationCount {
			break
		}
		fullIDs[o.ID] = true
	}

	var lines []string
	push := func(ls ...string) { lines = append(lines, ls...) }

	// Header
	if r.colors {
		push("", p.paint(p.cyanBright, fmt.Sprintf("[%s] recent context", r.project)),
			p.paint(p.gray, strings.Repeat("─", 60)), "")
	} else {
		push(fmt.Sprintf("# [%s] recent context", r.project), "")
	}

	if len(observations) > 0 {
		r.renderPreamble(p, push)
	}

	if anyTokens {
		r.renderEconomics(p, push, len(observations), eco)
	}

	// Merge observations and summaries into one ascending timeline,
	// bucketed by calendar date.
	entries := make([]timelineEntry, 0, len(observations)+len(display))
	for i := range observations {
		entries = append(entries, timelineEntry{obs: &observations[i]})
	}
	for i := range display {
		entries = append(entries, timelineEntry{summary: &display[i]})
	}
	sortEntries(entries)

	for _, bucket := range bucketByDate(entries) {
		r.renderDay(p, push, bucket, fullIDs)
	}

	r.renderTrailer(p, push, observations, summaries, assistantMessage, eco, anyTokens)

	return strings.TrimRight(strings.Join(lines, "\n"), " \n")
}

func (r renderer) renderEmpty(p palette) string {
	if r.colors {
		return strings.Join([]string{
			"",
			p.paint(p.cyanBright, fmt.Sprintf("[%s] recent context", r.project)),
			p.paint(p.gray, strings.Repeat("─", 60)),
			"",
			p.paint(p.dim, "No previous sessions found for this project yet."),
		}, "\n")
	}
	return fmt.Sprintf("# [%s] recent context\n\nNo previous sessions found for this project yet.", r.project)
}

func (r renderer) renderPreamble(p palette, push func(...string)) {
	if r.colors {
		push(p.paint(p.dim, "Legend: "+legendLine))
	} else {
		push("**Legend:** " + legendLine)
	}
	push("")

	if r.colors {
		push(p.paint(p.bright, "💡 Column Key"))
		push(p.paint(p.dim, "  Read: Tokens to read this observation (cost to learn it now)"))
		push(p.paint(p.dim, "  Work: Tokens spent on work that produced this record (🔍 research, 🛠️ building, ⚖️  deciding)"))
	} else {
		push("💡 **Column Key**:")
		push("- **Read**: Tokens to read this observation (cost to learn it now)")
		push("- **Work**: Tokens spent on work that produced this record (🔍 research, 🛠️ building, ⚖️  deciding)")
	}
	push("")

	if r.colors {
		push(p.paint(p.dim, "💡 Context Index: This semantic index (titles, types, files, tokens) is usually sufficient to understand past work."))
		push("")
		push(p.paint(p.dim, "When you need implementation details, rationale, or debugging context:"))
		push(p.paint(p.dim, "  - Use the mem-search skill to fetch full observations on-demand"))
		push(p.paint(p.dim, "  - Critical types (🔴 bugfix, ⚖️ decision) often need detailed fetching"))
		push(p.paint(p.dim, "  - Trust this index over re-reading code for past decisions and learnings"))
	} else {
		push("💡 **Context Index:** This semantic index (titles, types, files, tokens) is usually sufficient to understand past work.")
		push("")
		push("When you need implementation details, rationale, or debugging context:")
		push("- Use the mem-search skill to fetch full observations on-demand")
		push("- Critical types (🔴 bugfix, ⚖️ decision) often need detailed fetching")
		push("- Trust this index over re-reading code for past decisions and learnings")
	}
	push("")
}

func (r renderer) renderEconomics(p palette, push func(...string), count int, eco Economics) {
	if r.colors {
		push(p.paint(p.cyanBright, "📊 Context Economics"))
		push(p.paint(p.dim, fmt.Sprintf("  Loading: %d observations (%s tokens to read)", count, formatInt(eco.ReadTokens))))
		push(p.paint(p.dim, fmt.Sprintf("  Work investment: %s tokens spent on research, building, and decisions", formatInt(eco.WorkTokens))))
		if eco.WorkTokens > 0 && (r.opts.ShowSavingsAmount || r.opts.ShowSavingsPercent) {
			push(p.paint(p.green, "  Your savings: "+r.savingsPhrase(eco)))
		}
	} else {
		push("📊 **Context Economics**:")
		push(fmt.Sprintf("- Loading: %d observations (%s tokens to read)", count, formatInt(eco.ReadTokens)))
		push(fmt.Sprintf("- Work investment: %s tokens spent on research, building, and decisions", formatInt(eco.WorkTokens)))
		if eco.WorkTokens > 0 && (r.opts.ShowSavingsAmount || r.opts.ShowSavingsPercent) {
			push("- Your savings: " + r.savingsPhrase(eco))
		}
	}
	push("")
}

func (r renderer) savingsPhrase(eco Economics) string {
	switch {
	case r.opts.ShowSavingsAmount && r.opts.ShowSavingsPercent:
		return fmt.Sprintf("%s tokens (%d%% reduction from reuse)", formatInt(eco.Savings), eco.SavingsPercent)
	case r.opts.ShowSavingsAmount:
		return formatInt(eco.Savings) + " tokens"
	default:
		return fmt.Sprintf("%d%% reduction from reuse", eco.SavingsPercent)
	}
}

type dayBucket struct {
	label   string
	entries []timelineEntry
}

func bucketByDate(entries []timelineEntry) []dayBucket {
	var buckets []dayBucket
	index := map[string]int{}
	for _, e := range entries {
		label := dateLabel(e.epoch())
		i, ok := index[label]
		if !ok {
			i = len(buckets)
			index[label] = i
			buckets = append(buckets, dayBucket{label: label})
		}
		buckets[i].entries = append(buckets[i].entries, e)
	}
	return buckets
}

func sortEntries(entries []timelineEntry) {
	// Insertion sort keeps equal-epoch entries in their original
	// observation-before-summary order.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].epoch() < entries[j-1].epoch(); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func (r renderer) renderDay(p palette, push func(...string), bucket dayBucket, fullIDs map[int64]bool) {
	if r.colors {
		push(p.paint(p.cyanBright, bucket.label), "")
	} else {
		push("### "+bucket.label, "")
	}

	var (
		cluster  string
		haveCl   bool
		prevTime string
		inTable  bool
	)

	for _, entry := range bucket.entries {
		if entry.summary != nil {
			if inTable {
				push("")
				inTable = false
				haveCl = false
				prevTime = ""
			}
			sm := entry.summary
			text := derefOr(sm.Request)
			if text == "" {
				text = "Session started"
			}
			text = fmt.Sprintf("%s (%s)", text, dateTimeLabel(sm.displayEpoch))
			if r.colors {
				push("🎯 " + p.paint(p.yellow, fmt.Sprintf("#S%d", sm.ID)) + " " + text)
			} else {
				push(fmt.Sprintf("**🎯 #S%d** %s", sm.ID, text))
			}
			push("")
			continue
		}

		o := entry.obs
		label := workdirLabel(o.FilesModified, r.cwd)
		if !haveCl || label != cluster {
			if inTable {
				push("")
			}
			if r.colors {
				push(p.paint(p.dim, label))
			} else {
				push("**" + label + "**")
				push("| ID | Time | T | Title | Read | Work |")
				push("|----|------|---|-------|------|------|")
			}
			cluster = label
			haveCl = true
			inTable = true
			prevTime = ""
		}

		timeStr := timeLabel(o.CreatedAtEpoch)
		title := derefOr(o.Title)
		if title == "" {
			title = "Untitled"
		}
		glyph := typeGlyphs[o.Type]
		if glyph == "" {
			glyph = "•"
		}
		readTok := ReadTokens(*o)
		work := int(o.DiscoveryTokens)
		wGlyph := workGlyphs[o.Type]
		if wGlyph == "" {
			wGlyph = "🔍"
		}
		workCell := "-"
		if work > 0 {
			workCell = wGlyph + " " + formatInt(work)
		}
		showTime := timeStr != prevTime
		prevTime = timeStr

		if fullIDs[o.ID] {
			detail := derefOr(o.Narrative)
			if r.opts.FullObservationField == "facts" {
				detail = strings.Join(o.Facts, "\n")
			}
			if r.colors {
				timePart := strings.Repeat(" ", len(timeStr))
				if showTime {
					timePart = p.paint(p.dim, timeStr)
				}
				readPart, workPart := "", ""
				if r.opts.ShowReadTokens && readTok > 0 {
					readPart = p.paint(p.dim, fmt.Sprintf("(~%dt)", readTok))
				}
				if r.opts.ShowWorkTokens && work > 0 {
					workPart = p.paint(p.dim, fmt.Sprintf("(%s %st)", wGlyph, formatInt(work)))
				}
				push(fmt.Sprintf("  %s  %s  %s  %s", p.paint(p.dim, fmt.Sprintf("#%d", o.ID)), timePart, glyph, p.paint(p.bright, title)))
				if detail != "" {
					push("    " + p.paint(p.dim, detail))
				}
				if readPart != "" || workPart != "" {
					push("    " + readPart + " " + workPart)
				}
				push("")
			} else {
				if inTable {
					push("")
					inTable = false
				}
				timeCell := "″"
				if showTime {
					timeCell = timeStr
				}
				push(fmt.Sprintf("**#%d** %s %s **%s**", o.ID, timeCell, glyph, title))
				if detail != "" {
					push("", detail, "")
				}
				var parts []string
				if r.opts.ShowReadTokens {
					parts = append(parts, fmt.Sprintf("Read: ~%d", readTok))
				}
				if r.opts.ShowWorkTokens {
					parts = append(parts, "Work: "+workCell)
				}
				if len(parts) > 0 {
					push(strings.Join(parts, ", "))
				}
				push("")
				haveCl = false
			}
			continue
		}

		if r.colors {
			timePart := strings.Repeat(" ", len(timeStr))
			if showTime {
				timePart = p.paint(p.dim, timeStr)
			}
			readPart, workPart := "", ""
			if r.opts.ShowReadTokens && readTok > 0 {
				readPart = p.paint(p.dim, fmt.Sprintf("(~%dt)", readTok))
			}
			if r.opts.ShowWorkTokens && work > 0 {
				workPart = p.paint(p.dim, fmt.Sprintf("(%s %st)", wGlyph, formatInt(work)))
			}
			push(fmt.Sprintf("  %s  %s  %s  %s %s %s", p.paint(p.dim, fmt.Sprintf("#%d", o.ID)), timePart, glyph, title, readPart, workPart))
		} else {
			timeCell := "″"
			if showTime {
				timeCell = timeStr
			}
			readCell := ""
			if r.opts.ShowReadTokens {
				readCell = fmt.Sprintf("~%d", readTok)
			}
			workCol := ""
			if r.opts.ShowWorkTokens {
				workCol = workCell
			}
			push(fmt.Sprintf("| #%d | %s | %s | %s | %s | %s |", o.ID, timeCell, glyph, title, readCell, workCol))
		}
	}

	if inTable {
		push("")
	}
}

// renderTrailer emits the latest summary's detail fields, the prior
// assistant message, and the closing savings line.
func (r renderer) renderTrailer(p palette, push func(...string), observations []store.Observation, summaries []store.Summary, assistantMessage string, eco Economics, anyTokens bool) {
	if r.opts.ShowLastSummary && len(summaries) > 0 {
		latest := summaries[0]
		hasFields := latest.Investigated != nil || latest.Learned != nil || latest.Completed != nil || latest.NextSteps != nil
		newerThanObs := len(observations) == 0 || latest.CreatedAtEpoch > observations[0].CreatedAtEpoch
		if hasFields && newerThanObs {
			push(r.fieldLines(p, "Investigated", derefOr(latest.Investigated), p.blue)...)
			push(r.fieldLines(p, "Learned", derefOr(latest.Learned), p.yellow)...)
			push(r.fieldLines(p, "Completed", derefOr(latest.Completed), p.green)...)
			push(r.fieldLines(p, "Next Steps", derefOr(latest.NextSteps), p.magenta)...)
		}
	}

	if assistantMessage != "" {
		push("", "---", "")
		if r.colors {
			push(p.paint(p.magBright, "📋 Previously"), "", p.paint(p.dim, "A: "+assistantMessage))
		} else {
			push("**📋 Previously**", "", "A: "+assistantMessage)
		}
		push("")
	}

	if anyTokens && eco.WorkTokens > 0 && eco.Savings > 0 {
		kTokens := (eco.WorkTokens + 500) / 1000
		line := fmt.Sprintf("💰 Access %dk tokens of past research & decisions for just %st. Use the mem-search skill to access memories by ID instead of re-reading files.",
			kTokens, formatInt(eco.ReadTokens))
		push("")
		if r.colors {
			push(p.paint(p.dim, line))
		} else {
			push(line)
		}
	}
}

func (r renderer) fieldLines(p palette, label, value string, c *color.Color) []string {
	if value == "" {
		return nil
	}
	if r.colors {
		return []string{p.paint(c, label+":") + " " + value, ""}
	}
	return []string{fmt.Sprintf("**%s**: %s", label, value), ""}
}
