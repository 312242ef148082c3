package session

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/oralab/exo/pkg/core/types"
)

// TranscriptEvent is one input to the transcript reducer: either a
// discrete line or a streamed delta.
type TranscriptEvent struct {
	Role  types.Role
	Text  string
	Delta bool
}

// Reduce applies one event to an ordered transcript and returns the new
// transcript. Deltas merge into the trailing line when it has the same
// role; a line of any other role in between breaks the merge. Blank
// non-delta text is dropped.
func Reduce(lines []types.TranscriptLine, ev TranscriptEvent) []types.TranscriptLine {
	if ev.Delta {
		if n := len(lines); n > 0 && lines[n-1].Role == ev.Role {
			out := make([]types.TranscriptLine, n)
			copy(out, lines)
			out[n-1].Text += ev.Text
			return out
		}
		if strings.TrimSpace(ev.Text) == "" {
			return lines
		}
		return append(lines[:len(lines):len(lines)], types.TranscriptLine{
			ID:   uuid.NewString(),
			Role: ev.Role,
			Text: ev.Text,
		})
	}
	if strings.TrimSpace(ev.Text) == "" {
		return lines
	}
	return append(lines[:len(lines):len(lines)], types.TranscriptLine{
		ID:   uuid.NewString(),
		Role: ev.Role,
		Text: ev.Text,
	})
}

// TranscriptLog is a concurrency-safe transcript built with Reduce.
type TranscriptLog struct {
	mu    sync.Mutex
	lines []types.TranscriptLine
}

// AppendLine adds a discrete line.
func (t *TranscriptLog) AppendLine(role types.Role, text string) {
	t.mu.Lock()
	t.lines = Reduce(t.lines, TranscriptEvent{Role: role, Text: text})
	t.mu.Unlock()
}

// AppendDelta merges streamed text into the trailing line of the same
// role, or opens a new line.
func (t *TranscriptLog) AppendDelta(role types.Role, text string) {
	t.mu.Lock()
	t.lines = Reduce(t.lines, TranscriptEvent{Role: role, Text: text, Delta: true})
	t.mu.Unlock()
}

// Snapshot returns a copy of the transcript.
func (t *TranscriptLog) Snapshot() []types.TranscriptLine {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.TranscriptLine, len(t.lines))
	copy(out, t.lines)
	return out
}

// EvaluationForm projects the transcript for scoring: system lines
// dropped, order preserved.
func (t *TranscriptLog) EvaluationForm() []types.EvaluationEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.EvaluationEntry, 0, len(t.lines))
	for _, line := range t.lines {
		if line.Role == types.RoleSystem {
			continue
		}
		out = append(out, types.EvaluationEntry{Role: line.Role, Text: line.Text})
	}
	return out
}

// HasSpeech reports whether any user or assistant content was captured.
func (t *TranscriptLog) HasSpeech() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, line := range t.lines {
		if line.Role != types.RoleSystem && strings.TrimSpace(line.Text) != "" {
			return true
		}
	}
	return false
}

// Reset clears the transcript for a fresh run.
func (t *TranscriptLog) Reset() {
	t.mu.Lock()
	t.lines = nil
	t.mu.Unlock()
}
