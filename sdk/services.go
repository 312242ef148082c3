package exo

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/oralab/exo/pkg/core/types"
	"github.com/oralab/exo/pkg/voice/agentws"
	"github.com/oralab/exo/pkg/voice/realtime"
)

// RealtimeCredentials mints a short-lived token for the event-channel
// transport.
func (c *Client) RealtimeCredentials(ctx context.Context) (realtime.Credentials, error) {
	var creds realtime.Credentials
	err := c.doJSON(ctx, http.MethodPost, "/v1/realtime-token", nil, &creds)
	return creds, err
}

// AgentConfig fetches connection material for the voice-agent socket.
func (c *Client) AgentConfig(ctx context.Context) (agentws.AgentConfig, error) {
	var cfg agentws.AgentConfig
	err := c.doJSON(ctx, http.MethodGet, "/v1/agent-config", nil, &cfg)
	return cfg, err
}

type ocrRequest struct {
	SectionKey types.Section `json:"sectionKey"`
	ID         int           `json:"id"`
}

// ExtractFacts runs OCR on a scenario image. Results are cached
// server-side per section/id.
func (c *Client) ExtractFacts(ctx context.Context, section types.Section, id int) (*types.OCRResult, error) {
	var out types.OCRResult
	if err := c.doJSON(ctx, http.MethodPost, "/v1/ocr", ocrRequest{SectionKey: section, ID: id}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

type evaluateRequest struct {
	Scenario types.Scenario          `json:"scenario"`
	Entries  []types.EvaluationEntry `json:"entries"`
}

type evaluateResponse struct {
	Evaluation json.RawMessage `json:"evaluation"`
}

// Evaluate scores a finished transcript against the scenario's task.
func (c *Client) Evaluate(ctx context.Context, scenario types.Scenario, entries []types.EvaluationEntry) (json.RawMessage, error) {
	var out evaluateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/evaluate", evaluateRequest{Scenario: scenario, Entries: entries}, &out); err != nil {
		return nil, err
	}
	return out.Evaluation, nil
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe sends a recorded blob for batch transcription.
func (c *Client) Transcribe(ctx context.Context, blob *types.AudioBlob) (string, error) {
	if blob == nil || len(blob.Data) == 0 {
		return "", nil
	}
	name := "capture.wav"
	if blob.MIME == "audio/L16" {
		name = "capture.raw"
	}
	var out transcribeResponse
	if err := c.doMultipart(ctx, "/v1/transcribe", "audio", name, blob.Data, &out); err != nil {
		return "", err
	}
	return out.Text, nil
}
