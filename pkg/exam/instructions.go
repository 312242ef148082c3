package exam

import (
	"fmt"
	"strings"

	"github.com/oralab/exo/pkg/core/types"
)

// BrevityReason selects how tight the length constraint is.
type BrevityReason string

const (
	BrevityGeneric BrevityReason = "generic"
	BrevityWarning BrevityReason = "warning"
	BrevityTimeout BrevityReason = "timeout"
)

func brevityFor(section types.Section, reason BrevityReason) (maxSentences, approxSeconds int) {
	maxSentences, approxSeconds = 2, 15
	if reason == BrevityWarning || reason == BrevityTimeout {
		maxSentences, approxSeconds = 1, 10
	}
	if section == types.SectionA {
		if maxSentences > 3 {
			maxSentences = 3
		}
		if approxSeconds > 15 {
			approxSeconds = 15
		}
	}
	return maxSentences, approxSeconds
}

// Brevity builds the mandatory length constraint.
func Brevity(section types.Section, reason BrevityReason) string {
	maxSentences, approxSeconds := brevityFor(section, reason)
	plural := ""
	if maxSentences > 1 {
		plural = "s"
	}
	return fmt.Sprintf(
		"Brièveté obligatoire: %d phrase%s maximum (≈%d secondes). Pas de listes, pas d'explications longues, pas de monologue.",
		maxSentences, plural, approxSeconds)
}

// Instructions builds the full examiner prompt for a scenario. For
// section A the OCR facts ground the interlocutor's answers; missing
// facts are invented plausibly and kept consistent.
func Instructions(scenario types.Scenario, ocr *types.OCRResult) string {
	base := []string{
		"Tu es un examinateur TEF Canada (Expression Orale).",
		"Tu dois simuler l'épreuve de manière réaliste et dynamique.",
		"Tu parles uniquement en français.",
		"Objectif: simuler une interaction réaliste selon la tâche; rester naturel.",
		"Style: naturel, professionnel, mais pas robotique.",
		"IMPORTANT: ne corrige pas le candidat pendant l'épreuve. Pas de conseils pédagogiques, pas d'explications de grammaire. Pas de coaching.",
		Brevity(scenario.SectionKey, BrevityGeneric),
	}

	if scenario.SectionKey == types.SectionA {
		var facts []string
		if ocr != nil {
			for _, f := range ocr.Facts {
				facts = append(facts, fmt.Sprintf("- %s: %s", f.Key, f.Value))
			}
		}
		factBlock := strings.Join(facts, "\n")
		if factBlock == "" {
			factBlock = "- (aucune information extraite)"
		}
		return strings.Join(append(base,
			"Épreuve EO1: interaction type appel téléphonique.",
			"Tu joues l'interlocuteur (standard, vendeur, organisateur, etc.).",
			"Le candidat pilote l'appel en posant des questions. Tu réponds uniquement à ce qui est demandé.",
			"Tu ne suggères PAS quelles questions poser. Tu ne listes pas d'informations spontanément.",
			"Tu peux poser une question de clarification uniquement si la demande est ambiguë ou incompréhensible.",
			"Réponses: professionnelles, concises (1–2 phrases), ton téléphone. Donne les détails progressivement, seulement quand on te les demande.",
			"Priorité d'information: utilise d'abord les informations de l'annonce (OCR) ci-dessous si elles existent.",
			"Si un détail n'apparaît pas dans l'annonce, invente une information plausible (ex: prix, horaires, modalités) et présente-la comme un fait.",
			"IMPORTANT: si tu inventes un détail, reste cohérent ensuite (même prix, mêmes horaires, même adresse) pendant tout l'appel.",
			"Consigne: "+scenario.Prompt,
			"Informations de l'annonce (OCR):",
			factBlock,
		), "\n")
	}

	return strings.Join(append(base,
		"Épreuve EO2: argumentation / persuasion.",
		"Le candidat doit convaincre un(e) ami(e). Tu joues l'ami(e) sceptique.",
		"Tu utilises des contre-arguments progressivement (pas tous à la fois) et tu demandes des justifications/exemples.",
		"CONTRAINTE ABSOLUE: tu dois utiliser UNIQUEMENT les contre-arguments ci-dessous (tu peux paraphraser), et tu ne dois PAS inventer de nouvelles objections.",
		"Choisis le prochain contre-argument en fonction de ce que le candidat vient de dire.",
		"Ne débute pas par des contre-arguments avant que le candidat ait commencé à parler (le candidat parle en premier).",
		"Consigne: "+scenario.Prompt,
		"Contre-arguments possibles (à utiliser graduellement): "+strings.Join(scenario.CounterArguments, " | "),
	), "\n")
}

// Prebrief is the spoken briefing before preparation starts.
func Prebrief(scenario types.Scenario) string {
	if scenario.SectionKey == types.SectionA {
		return strings.Join([]string{
			"Vous allez faire l'épreuve d'expression orale, section A (EO1).",
			"Vous allez voir une image et une consigne.",
			"Je vais vous laisser 60 secondes pour lire et vous préparer. Pendant ce temps, ne parlez pas.",
			"Ensuite, je commencerai l'appel téléphonique et vous poserez vos questions.",
		}, " ")
	}
	return strings.Join([]string{
		"Vous allez faire l'épreuve d'expression orale, section B (EO2).",
		"Vous allez voir une image et une consigne.",
		"Je vais vous laisser 60 secondes pour lire et vous préparer. Pendant ce temps, ne parlez pas.",
		"Ensuite, vous commencerez à parler en premier pour essayer de me convaincre.",
	}, " ")
}

// OpeningInstruction asks the examiner to open a section A call.
func OpeningInstruction(scenario types.Scenario) string {
	return strings.Join([]string{
		"L'épreuve commence maintenant. Tu réponds au téléphone en tant qu'interlocuteur de l'annonce.",
		"Réponds par une formule d'accueil courte et naturelle (par exemple « Allô, bonjour »), puis attends les questions du candidat.",
		Brevity(scenario.SectionKey, BrevityGeneric),
	}, " ")
}

// UserTurnInstruction asks for a reply to the candidate's last turn.
func UserTurnInstruction(scenario types.Scenario) string {
	return strings.Join([]string{
		"Réponds au dernier tour de parole du candidat en restant dans ton rôle.",
		Brevity(scenario.SectionKey, BrevityGeneric),
	}, " ")
}

// WarningInstruction announces remaining time. secondsLeft is 60 or 10.
func WarningInstruction(section types.Section, secondsLeft int) string {
	announce := "Dis exactement: « Il reste une minute. »"
	if secondsLeft == 10 {
		announce = "Dis exactement: « Il reste dix secondes. »"
	}
	return strings.Join([]string{
		"Interromps-toi brièvement pour annoncer le temps restant.",
		announce,
		"Ensuite, laisse le candidat continuer.",
		Brevity(section, BrevityWarning),
	}, " ")
}

// WrapUpInstruction closes the exam for the given stop reason.
func WrapUpInstruction(section types.Section, reason types.StopReason) string {
	opening := "Le candidat a terminé l'épreuve."
	if reason == types.StopTimeout {
		opening = "Le temps de l'épreuve est écoulé."
	}
	return strings.Join([]string{
		opening,
		"Remercie le candidat et conclus poliment la conversation.",
		"Ne donne aucun commentaire sur sa performance.",
		Brevity(section, BrevityTimeout),
	}, " ")
}
