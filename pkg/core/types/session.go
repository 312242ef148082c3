package types

import "encoding/json"

// ConnectionState is the transport-facing lifecycle of a session run.
type ConnectionState string

const (
	StateIdle          ConnectionState = "idle"
	StateRequestingMic ConnectionState = "requesting_mic"
	StatePrepping      ConnectionState = "prepping"
	StateFetchingToken ConnectionState = "fetching_token"
	StateConnecting    ConnectionState = "connecting"
	StateConnected     ConnectionState = "connected"
	StateStopping      ConnectionState = "stopping"
	StateStopped       ConnectionState = "stopped"
	StateError         ConnectionState = "error"
)

// SessionPhase is the exam-facing phase within a connected run.
type SessionPhase string

const (
	PhaseNone     SessionPhase = "none"
	PhasePrebrief SessionPhase = "prebrief"
	PhasePrep     SessionPhase = "prep"
	PhaseExam     SessionPhase = "exam"
)

// StopReason records what ended the exam.
type StopReason string

const (
	StopUser    StopReason = "user_stop"
	StopTimeout StopReason = "timeout"
)

// EvaluationStatus tracks the post-session scoring call.
type EvaluationStatus string

const (
	EvaluationIdle    EvaluationStatus = "idle"
	EvaluationLoading EvaluationStatus = "loading"
	EvaluationDone    EvaluationStatus = "done"
	EvaluationError   EvaluationStatus = "error"
)

// SessionSummary is the immutable end-of-run record: final transcript,
// stop reason and the evaluation outcome.
type SessionSummary struct {
	EndedAtMS       int64             `json:"ended_at_ms"`
	Reason          StopReason        `json:"reason"`
	Transcript      []TranscriptLine  `json:"transcript"`
	Entries         []EvaluationEntry `json:"entries"`
	Evaluation      json.RawMessage   `json:"evaluation,omitempty"`
	EvalStatus      EvaluationStatus  `json:"evaluation_status"`
	EvaluationError string            `json:"evaluation_error,omitempty"`
}

// SessionRecord is the persisted form of a finished session.
type SessionRecord struct {
	SessionID string         `json:"session_id"`
	Scenario  Scenario       `json:"scenario"`
	Summary   SessionSummary `json:"summary"`
	CreatedAt string         `json:"created_at,omitempty"`
}
