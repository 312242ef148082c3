package types

// Section identifies one of the two oral tasks.
type Section string

const (
	// SectionA is the information-gathering phone call (EO1).
	SectionA Section = "A"
	// SectionB is the persuasion dialogue (EO2).
	SectionB Section = "B"
)

// Scenario is one exam task pulled from the catalogue. Section A items
// carry suggested questions; section B items carry counter-arguments.
// The two lists are mutually exclusive.
type Scenario struct {
	SectionKey         Section  `json:"sectionKey"`
	Task               string   `json:"section"`
	ID                 int      `json:"id"`
	Title              string   `json:"title,omitempty"`
	Prompt             string   `json:"prompt"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
	CounterArguments   []string `json:"counter_arguments,omitempty"`
	TimeLimitSec       int      `json:"time_limit_sec"`
	Image              string   `json:"image,omitempty"`
	Difficulty         string   `json:"difficulty,omitempty"`
}
