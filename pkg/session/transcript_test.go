package session

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oralab/exo/pkg/core/types"
)

func TestReduceCoalescesAssistantDeltas(t *testing.T) {
	log := &TranscriptLog{}
	log.AppendDelta(types.RoleAssistant, "Bonjour")
	log.AppendDelta(types.RoleAssistant, ", madame.")

	lines := log.Snapshot()
	require.Len(t, lines, 1)
	require.Equal(t, "Bonjour, madame.", lines[0].Text)
	require.Equal(t, types.RoleAssistant, lines[0].Role)
	require.NotEmpty(t, lines[0].ID)
}

func TestReduceMergeBrokenByOtherRole(t *testing.T) {
	log := &TranscriptLog{}
	log.AppendDelta(types.RoleAssistant, "Allô ?")
	log.AppendLine(types.RoleSystem, "Début de l'épreuve.")
	log.AppendDelta(types.RoleAssistant, "Qui est à l'appareil ?")

	lines := log.Snapshot()
	require.Len(t, lines, 3)
	require.Equal(t, "Allô ?", lines[0].Text)
	require.Equal(t, "Qui est à l'appareil ?", lines[2].Text)
}

func TestReduceDropsBlankLines(t *testing.T) {
	log := &TranscriptLog{}
	log.AppendLine(types.RoleUser, "   ")
	log.AppendLine(types.RoleUser, "")
	require.Empty(t, log.Snapshot())
	require.False(t, log.HasSpeech())
}

func TestEvaluationFormDropsSystemLines(t *testing.T) {
	log := &TranscriptLog{}
	log.AppendLine(types.RoleSystem, "Préparation.")
	log.AppendLine(types.RoleUser, "Bonjour, je voudrais des informations.")
	log.AppendDelta(types.RoleAssistant, "Bien sûr.")
	log.AppendLine(types.RoleSystem, "Fin.")

	entries := log.EvaluationForm()
	require.Len(t, entries, 2)
	require.Equal(t, types.RoleUser, entries[0].Role)
	require.Equal(t, types.RoleAssistant, entries[1].Role)
}

func TestReduceIsPure(t *testing.T) {
	base := []types.TranscriptLine{{ID: "1", Role: types.RoleAssistant, Text: "a"}}
	out := Reduce(base, TranscriptEvent{Role: types.RoleAssistant, Text: "b", Delta: true})
	require.Equal(t, "a", base[0].Text, "input slice must not be mutated")
	require.Equal(t, "ab", out[0].Text)
}

func TestHasSpeech(t *testing.T) {
	log := &TranscriptLog{}
	log.AppendLine(types.RoleSystem, "Début.")
	require.False(t, log.HasSpeech())
	log.AppendLine(types.RoleUser, "Bonjour.")
	require.True(t, log.HasSpeech())
}
