package types

// Role identifies the speaker of a transcript line.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// TranscriptLine is one ordered line of the session transcript.
type TranscriptLine struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// EvaluationEntry is a transcript line projected for the evaluation
// request: system lines dropped, order preserved.
type EvaluationEntry struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}
