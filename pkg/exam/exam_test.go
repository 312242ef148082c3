package exam

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oralab/exo/pkg/core/types"
)

func TestCatalogueShape(t *testing.T) {
	for _, s := range Scenarios(types.SectionA) {
		require.Equal(t, types.SectionA, s.SectionKey)
		require.Equal(t, "EO1", s.Task)
		require.NotEmpty(t, s.Prompt)
		require.NotEmpty(t, s.SuggestedQuestions)
		require.Empty(t, s.CounterArguments, "section A items must not carry counter-arguments")
		require.Greater(t, s.TimeLimitSec, 0)
	}
	for _, s := range Scenarios(types.SectionB) {
		require.Equal(t, types.SectionB, s.SectionKey)
		require.Equal(t, "EO2", s.Task)
		require.NotEmpty(t, s.CounterArguments)
		require.Empty(t, s.SuggestedQuestions, "section B items must not carry suggested questions")
	}
}

func TestRandomScenarioStaysInSection(t *testing.T) {
	for i := 0; i < 20; i++ {
		require.Equal(t, types.SectionA, RandomScenario(types.SectionA).SectionKey)
		require.Equal(t, types.SectionB, RandomScenario(types.SectionB).SectionKey)
	}
}

func TestScenarioByID(t *testing.T) {
	s, ok := ScenarioByID(types.SectionB, 3)
	require.True(t, ok)
	require.Equal(t, 3, s.ID)
	_, ok = ScenarioByID(types.SectionA, 999)
	require.False(t, ok)
}

func TestImageURL(t *testing.T) {
	require.Equal(t, "/section_a_images/section_a_image_2.png", ImageURL(types.SectionA, 2))
	require.Equal(t, "/section_b_images/section_b_image_4.png", ImageURL(types.SectionB, 4))
}

func TestInstructionsSectionAUsesFacts(t *testing.T) {
	s, _ := ScenarioByID(types.SectionA, 1)
	ocr := &types.OCRResult{Facts: []types.OCRFact{{Key: "prix", Value: "45 € par mois"}}}
	got := Instructions(s, ocr)
	require.Contains(t, got, "appel téléphonique")
	require.Contains(t, got, "- prix: 45 € par mois")
	require.Contains(t, got, s.Prompt)
	require.NotContains(t, got, "contre-arguments")
}

func TestInstructionsSectionAWithoutFacts(t *testing.T) {
	s, _ := ScenarioByID(types.SectionA, 1)
	got := Instructions(s, nil)
	require.Contains(t, got, "(aucune information extraite)")
	require.Contains(t, got, "invente une information plausible")
}

func TestInstructionsSectionBListsCounterArguments(t *testing.T) {
	s, _ := ScenarioByID(types.SectionB, 1)
	got := Instructions(s, nil)
	require.Contains(t, got, "UNIQUEMENT les contre-arguments")
	require.Contains(t, got, strings.Join(s.CounterArguments, " | "))
	require.Contains(t, got, "le candidat parle en premier")
}

func TestBrevityTightensForWarnings(t *testing.T) {
	generic := Brevity(types.SectionB, BrevityGeneric)
	warning := Brevity(types.SectionB, BrevityWarning)
	require.Contains(t, generic, "2 phrases")
	require.Contains(t, warning, "1 phrase maximum")
}

func TestWarningInstruction(t *testing.T) {
	require.Contains(t, WarningInstruction(types.SectionA, 60), "Il reste une minute.")
	require.Contains(t, WarningInstruction(types.SectionA, 10), "Il reste dix secondes.")
}

func TestWrapUpInstruction(t *testing.T) {
	require.Contains(t, WrapUpInstruction(types.SectionB, types.StopTimeout), "Le temps de l'épreuve est écoulé.")
	require.Contains(t, WrapUpInstruction(types.SectionB, types.StopUser), "Le candidat a terminé l'épreuve.")
	require.Contains(t, WrapUpInstruction(types.SectionB, types.StopUser), "aucun commentaire")
}

func TestPrebriefPerSection(t *testing.T) {
	a := Prebrief(RandomScenario(types.SectionA))
	b := Prebrief(RandomScenario(types.SectionB))
	require.Contains(t, a, "section A (EO1)")
	require.Contains(t, a, "l'appel téléphonique")
	require.Contains(t, b, "section B (EO2)")
	require.Contains(t, b, "parler en premier")
}
