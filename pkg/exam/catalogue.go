// Package exam holds the task catalogue and the French examiner
// instruction builders for both oral sections.
package exam

import (
	"fmt"
	"math/rand"

	"github.com/oralab/exo/pkg/core/types"
)

var sectionAItems = []types.Scenario{
	{
		SectionKey: types.SectionA, Task: "EO1", ID: 1,
		Title:  "Cours de natation",
		Prompt: "Vous avez vu cette annonce pour des cours de natation. Vous téléphonez pour obtenir des renseignements.",
		SuggestedQuestions: []string{
			"Quels sont les horaires des cours ?",
			"Quel est le prix pour un trimestre ?",
			"Faut-il apporter son propre matériel ?",
			"Y a-t-il des cours pour débutants ?",
		},
		TimeLimitSec: 300, Difficulty: "medium",
		Image: "section_a_image_1.png",
	},
	{
		SectionKey: types.SectionA, Task: "EO1", ID: 2,
		Title:  "Appartement à louer",
		Prompt: "Vous avez vu cette annonce pour un appartement à louer. Vous appelez le propriétaire pour en savoir plus.",
		SuggestedQuestions: []string{
			"Quel est le montant du loyer et des charges ?",
			"L'appartement est-il meublé ?",
			"À quel étage se trouve-t-il ?",
			"Quand est-il disponible ?",
		},
		TimeLimitSec: 300, Difficulty: "easy",
		Image: "section_a_image_2.png",
	},
	{
		SectionKey: types.SectionA, Task: "EO1", ID: 3,
		Title:  "Atelier de cuisine",
		Prompt: "Une association propose des ateliers de cuisine du monde. Vous téléphonez à l'organisateur pour vous renseigner.",
		SuggestedQuestions: []string{
			"Quels types de cuisine sont proposés ?",
			"Combien coûte une séance ?",
			"Les ingrédients sont-ils fournis ?",
			"Peut-on venir avec un enfant ?",
		},
		TimeLimitSec: 300, Difficulty: "medium",
		Image: "section_a_image_3.png",
	},
	{
		SectionKey: types.SectionA, Task: "EO1", ID: 4,
		Title:  "Vélo d'occasion",
		Prompt: "Un particulier vend un vélo d'occasion. Vous l'appelez pour poser des questions avant de vous déplacer.",
		SuggestedQuestions: []string{
			"Quel est l'état général du vélo ?",
			"Le prix est-il négociable ?",
			"Où peut-on venir l'essayer ?",
			"Depuis quand l'avez-vous ?",
		},
		TimeLimitSec: 300, Difficulty: "easy",
		Image: "section_a_image_4.png",
	},
}

var sectionBItems = []types.Scenario{
	{
		SectionKey: types.SectionB, Task: "EO2", ID: 1,
		Title:  "Week-end à la campagne",
		Prompt: "Vous voulez convaincre votre ami(e) de passer un week-end de randonnée à la campagne plutôt que de rester en ville.",
		CounterArguments: []string{
			"La météo annonce de la pluie ce week-end.",
			"Les hébergements à la campagne sont chers en cette saison.",
			"Je n'ai pas de chaussures de marche.",
			"Je préfère me reposer après une semaine fatigante.",
		},
		TimeLimitSec: 360, Difficulty: "medium",
		Image: "section_b_image_1.png",
	},
	{
		SectionKey: types.SectionB, Task: "EO2", ID: 2,
		Title:  "Cours du soir",
		Prompt: "Vous voulez convaincre votre ami(e) de s'inscrire avec vous à un cours du soir de photographie.",
		CounterArguments: []string{
			"Je finis le travail trop tard pour y aller.",
			"Le matériel de photographie coûte très cher.",
			"On peut apprendre tout ça gratuitement sur Internet.",
			"Je ne suis pas sûr(e) d'être assez créatif(ve).",
		},
		TimeLimitSec: 360, Difficulty: "medium",
		Image: "section_b_image_2.png",
	},
	{
		SectionKey: types.SectionB, Task: "EO2", ID: 3,
		Title:  "Covoiturage",
		Prompt: "Vous voulez convaincre votre ami(e) de faire du covoiturage pour aller au travail au lieu de prendre sa voiture seul(e).",
		CounterArguments: []string{
			"Je perds ma liberté d'horaires avec le covoiturage.",
			"Je n'aime pas discuter le matin avec des inconnus.",
			"Ma voiture me revient moins cher que tu ne le penses.",
			"Et si le conducteur annule au dernier moment ?",
		},
		TimeLimitSec: 360, Difficulty: "hard",
		Image: "section_b_image_3.png",
	},
	{
		SectionKey: types.SectionB, Task: "EO2", ID: 4,
		Title:  "Marché de quartier",
		Prompt: "Vous voulez convaincre votre ami(e) de faire ses courses au marché de quartier plutôt qu'au supermarché.",
		CounterArguments: []string{
			"Le marché n'est ouvert que le matin, c'est peu pratique.",
			"Les produits du marché sont plus chers.",
			"Au supermarché je trouve tout au même endroit.",
			"Je ne sais pas choisir les bons produits frais.",
		},
		TimeLimitSec: 360, Difficulty: "easy",
		Image: "section_b_image_4.png",
	},
}

// Scenarios returns the catalogue for a section.
func Scenarios(section types.Section) []types.Scenario {
	if section == types.SectionA {
		return sectionAItems
	}
	return sectionBItems
}

// RandomScenario picks one task from the section's catalogue.
func RandomScenario(section types.Section) types.Scenario {
	items := Scenarios(section)
	return items[rand.Intn(len(items))]
}

// ScenarioByID finds a task by section and id.
func ScenarioByID(section types.Section, id int) (types.Scenario, bool) {
	for _, s := range Scenarios(section) {
		if s.ID == id {
			return s, true
		}
	}
	return types.Scenario{}, false
}

// ImageURL returns the serving path of a scenario image.
func ImageURL(section types.Section, id int) string {
	if section == types.SectionA {
		return fmt.Sprintf("/section_a_images/section_a_image_%d.png", id)
	}
	return fmt.Sprintf("/section_b_images/section_b_image_%d.png", id)
}
