package session

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/oralab/exo/pkg/core/types"
)

// Evaluator scores a finished session transcript.
type Evaluator interface {
	Evaluate(ctx context.Context, scenario types.Scenario, entries []types.EvaluationEntry) (json.RawMessage, error)
}

// Transcriber turns a recorded blob into text. Used as a fallback when
// the live transcript captured nothing.
type Transcriber interface {
	Transcribe(ctx context.Context, blob *types.AudioBlob) (string, error)
}

// FactExtractor pulls key/value facts from a scenario image.
type FactExtractor interface {
	ExtractFacts(ctx context.Context, section types.Section, id int) (*types.OCRResult, error)
}

// ResultStore persists finished sessions.
type ResultStore interface {
	Save(ctx context.Context, record types.SessionRecord) (string, error)
}

// PackageResult wraps the summary in a record keyed by a fresh id and
// persists it. The generated id is returned even when persistence
// fails, so the caller can still hand the session off locally.
func PackageResult(ctx context.Context, store ResultStore, scenario types.Scenario, summary types.SessionSummary) (string, error) {
	record := types.SessionRecord{
		SessionID: uuid.NewString(),
		Scenario:  scenario,
		Summary:   summary,
	}
	id, err := store.Save(ctx, record)
	if err != nil {
		return record.SessionID, err
	}
	if id == "" {
		id = record.SessionID
	}
	return id, nil
}
