package synth

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var systemReminderRe = regexp.MustCompile(`(?s)<system-reminder>.*?</system-reminder>`)

// ProjectName derives the project label from a working directory: its base
// name, with a fixed fallback for empty or root paths.
func ProjectName(cwd string) string {
	if strings.TrimSpace(cwd) == "" {
		return "unknown-project"
	}
	base := filepath.Base(cwd)
	if base == "" || base == "/" || base == "." {
		return "unknown-project"
	}
	return base
}

// TranscriptPath returns where the host stores the transcript for a
// session run in cwd. Directory names flatten the path by replacing
// separators with dashes.
func TranscriptPath(cwd, sessionID string) string {
	home, _ := os.UserHomeDir()
	flattened := strings.ReplaceAll(cwd, "/", "-")
	return filepath.Join(home, ".claude", "projects", flattened, sessionID+".jsonl")
}

// transcriptLine is the subset of a transcript event we care about.
type transcriptLine struct {
	Type    string `json:"type"`
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
}

// LastAssistantMessage scans a transcript backward for the final assistant
// text, with system-reminder spans stripped. Every failure mode returns ""
// — a missing or corrupt transcript never blocks context generation.
func LastAssistantMessage(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	for i := len(lines) - 1; i >= 0; i-- {
		line := lines[i]
		if !strings.Contains(line, `"type":"assistant"`) {
			continue
		}
		var ev transcriptLine
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			continue
		}
		if ev.Type != "assistant" {
			continue
		}
		var text strings.Builder
		for _, part := range ev.Message.Content {
			if part.Type == "text" {
				text.WriteString(part.Text)
			}
		}
		cleaned := strings.TrimSpace(systemReminderRe.ReplaceAllString(text.String(), ""))
		if cleaned != "" {
			return cleaned
		}
	}
	return ""
}

// workdirLabel clusters an observation under the directory it touched: the
// first modified file, made relative to cwd when absolute. Observations
// that touched nothing land under "General".
func workdirLabel(filesModified []string, cwd string) string {
	if len(filesModified) == 0 {
		return "General"
	}
	first := filesModified[0]
	if filepath.IsAbs(first) {
		if rel, err := filepath.Rel(cwd, first); err == nil {
			return rel
		}
	}
	return first
}
