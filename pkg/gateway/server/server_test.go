package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oralab/exo/pkg/core/types"
	"github.com/oralab/exo/pkg/gateway/config"
	"github.com/oralab/exo/pkg/gateway/store"
)

func newTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	s, err := New(context.Background(), cfg, nil, store.NewMemory())
	require.NoError(t, err)
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAgentConfigRequiresKey(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	resp, err := http.Get(srv.URL + "/v1/agent-config")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestAgentConfigServesMaterial(t *testing.T) {
	srv := newTestServer(t, config.Config{
		AgentAPIKey:    "dg_key",
		AgentModel:     "nova-2",
		AgentVoice:     "aura-2",
		AgentLanguage:  "fr",
		AgentAudioMode: "telephony",
	})
	resp, err := http.Get(srv.URL + "/v1/agent-config")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "dg_key", out["api_key"])
	require.Equal(t, "telephony", out["audio_mode"])
}

func TestRealtimeTokenMint(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer sk_live", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"client_secret": map[string]string{"value": "ek_short_lived"},
		})
	}))
	defer upstream.Close()

	srv := newTestServer(t, config.Config{
		RealtimeAPIKey:     "sk_live",
		RealtimeModel:      "gpt-realtime",
		RealtimeVoice:      "alloy",
		RealtimeSessionURL: upstream.URL,
	})
	resp, err := http.Post(srv.URL+"/v1/realtime-token", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "ek_short_lived", out["token"])
	require.Equal(t, "alloy", out["voice"])
}

func TestResultsRoundTrip(t *testing.T) {
	srv := newTestServer(t, config.Config{})

	record := types.SessionRecord{
		SessionID: "11111111-2222-3333-4444-555555555555",
		Scenario:  types.Scenario{SectionKey: types.SectionB, Task: "EO2", ID: 1},
		Summary: types.SessionSummary{
			Reason:     types.StopUser,
			EvalStatus: types.EvaluationDone,
		},
	}
	body, _ := json.Marshal(record)
	resp, err := http.Post(srv.URL+"/v1/results", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var saved map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&saved))
	require.Equal(t, record.SessionID, saved["session_id"])

	getResp, err := http.Get(srv.URL + "/v1/results/" + record.SessionID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var got types.SessionRecord
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&got))
	require.Equal(t, types.SectionB, got.Scenario.SectionKey)

	histResp, err := http.Get(srv.URL + "/v1/results/history")
	require.NoError(t, err)
	defer histResp.Body.Close()
	var hist struct {
		Results []types.SessionRecord `json:"results"`
	}
	require.NoError(t, json.NewDecoder(histResp.Body).Decode(&hist))
	require.Len(t, hist.Results, 1)
}

func TestGetResultNotFound(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	resp, err := http.Get(srv.URL + "/v1/results/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOCRServedFromCache(t *testing.T) {
	cacheDir := t.TempDir()
	cached := types.OCRResult{
		RawText: "Cours de natation, 45€/mois",
		Facts:   []types.OCRFact{{Key: "prix", Value: "45€ par mois"}},
	}
	data, _ := json.Marshal(cached)
	require.NoError(t, os.WriteFile(filepath.Join(cacheDir, "section_a_1.json"), data, 0o644))

	// No genai key configured: a cache miss would answer 503, so a 200
	// proves the cache path.
	srv := newTestServer(t, config.Config{OCRCacheDir: cacheDir})
	body, _ := json.Marshal(map[string]any{"sectionKey": "A", "id": 1})
	resp, err := http.Post(srv.URL+"/v1/ocr", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out types.OCRResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "prix", out.Facts[0].Key)
}

func TestOCRValidatesRequest(t *testing.T) {
	srv := newTestServer(t, config.Config{OCRCacheDir: t.TempDir()})
	body, _ := json.Marshal(map[string]any{"sectionKey": "Z", "id": 1})
	resp, err := http.Post(srv.URL+"/v1/ocr", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEvaluateWithoutModelConfigured(t *testing.T) {
	srv := newTestServer(t, config.Config{})
	body, _ := json.Marshal(map[string]any{
		"scenario": types.Scenario{SectionKey: types.SectionA},
		"entries":  []types.EvaluationEntry{{Role: types.RoleUser, Text: "Bonjour."}},
	})
	resp, err := http.Post(srv.URL+"/v1/evaluate", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTranscribeForwardsUpstream(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, header, err := r.FormFile("file")
		require.NoError(t, err)
		require.Equal(t, "capture.wav", header.Filename)
		require.Equal(t, "whisper-1", r.FormValue("model"))
		json.NewEncoder(w).Encode(map[string]string{"text": "Bonjour."})
	}))
	defer upstream.Close()

	srv := newTestServer(t, config.Config{
		TranscribeAPIKey: "sk_live",
		TranscribeModel:  "whisper-1",
		TranscribeURL:    upstream.URL,
	})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", "capture.wav")
	require.NoError(t, err)
	part.Write([]byte("RIFFxxxxWAVE"))
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/transcribe", &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, "Bonjour.", out["text"])
}

func TestStripCodeFence(t *testing.T) {
	require.Equal(t, `{"a":1}`, stripCodeFence("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, stripCodeFence(`{"a":1}`))
}
