package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/oralab/exo/pkg/core"
	"github.com/oralab/exo/pkg/core/types"
)

// handleRealtimeToken mints a short-lived client token by creating a
// realtime session upstream. The long-lived API key never leaves the
// gateway.
func (s *Server) handleRealtimeToken(w http.ResponseWriter, r *http.Request) {
	if s.cfg.RealtimeAPIKey == "" {
		writeError(w, http.StatusServiceUnavailable, core.NewAPIError("realtime credentials not configured"))
		return
	}
	body, _ := json.Marshal(map[string]string{
		"model": s.cfg.RealtimeModel,
		"voice": s.cfg.RealtimeVoice,
	})
	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.RealtimeSessionURL, bytes.NewReader(body))
	if err != nil {
		writeError(w, http.StatusInternalServerError, core.NewAPIError(err.Error()))
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.RealtimeAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, core.NewAPIError("upstream session create failed: "+err.Error()))
		return
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		s.logger.Error("token mint rejected", "status", resp.StatusCode)
		writeError(w, http.StatusBadGateway, core.NewAPIError(fmt.Sprintf("upstream status %d", resp.StatusCode)))
		return
	}
	var session struct {
		ClientSecret struct {
			Value string `json:"value"`
		} `json:"client_secret"`
	}
	if err := json.Unmarshal(data, &session); err != nil || session.ClientSecret.Value == "" {
		writeError(w, http.StatusBadGateway, core.NewAPIError("upstream session response unusable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"token": session.ClientSecret.Value,
		"model": s.cfg.RealtimeModel,
		"voice": s.cfg.RealtimeVoice,
	})
}

func (s *Server) handleAgentConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfg.AgentAPIKey == "" {
		writeError(w, http.StatusServiceUnavailable, core.NewAPIError("agent credentials not configured"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"api_key":     s.cfg.AgentAPIKey,
		"model":       s.cfg.AgentModel,
		"voice":       s.cfg.AgentVoice,
		"language":    s.cfg.AgentLanguage,
		"audio_mode":  s.cfg.AgentAudioMode,
		"think_model": s.cfg.AgentThinkModel,
	})
}

const ocrPrompt = `Lis l'image d'annonce ci-jointe et extrais les informations factuelles.
Réponds UNIQUEMENT avec un objet JSON de la forme:
{"raw_text": "...", "facts": [{"key": "...", "value": "..."}]}
Les clés sont courtes (prix, horaires, adresse, contact, ...). N'invente rien.`

// handleOCR extracts facts from a scenario image, caching the result
// per section/id on disk.
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SectionKey types.Section `json:"sectionKey"`
		ID         int           `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, core.NewInvalidRequestError("invalid body"))
		return
	}
	if (req.SectionKey != types.SectionA && req.SectionKey != types.SectionB) || req.ID <= 0 {
		writeError(w, http.StatusBadRequest, core.NewInvalidRequestError("sectionKey and id are required"))
		return
	}

	cachePath := filepath.Join(s.cfg.OCRCacheDir,
		fmt.Sprintf("section_%s_%d.json", strings.ToLower(string(req.SectionKey)), req.ID))
	if data, err := os.ReadFile(cachePath); err == nil {
		var cached types.OCRResult
		if json.Unmarshal(data, &cached) == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	if s.genai == nil {
		writeError(w, http.StatusServiceUnavailable, core.NewAPIError("vision model not configured"))
		return
	}

	sub := "section_a_images"
	if req.SectionKey == types.SectionB {
		sub = "section_b_images"
	}
	imagePath := filepath.Join(s.cfg.ImagesDir, sub,
		fmt.Sprintf("section_%s_image_%d.png", strings.ToLower(string(req.SectionKey)), req.ID))
	image, err := os.ReadFile(imagePath)
	if err != nil {
		writeError(w, http.StatusNotFound, core.NewNotFoundError("scenario image not found"))
		return
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(ocrPrompt),
		genai.NewPartFromBytes(image, "image/png"),
	}, genai.RoleUser)}
	resp, err := s.genai.Models.GenerateContent(r.Context(), s.cfg.OCRModel, contents, nil)
	if err != nil {
		writeError(w, http.StatusBadGateway, core.NewAPIError("vision call failed: "+err.Error()))
		return
	}

	var result types.OCRResult
	if err := json.Unmarshal([]byte(stripCodeFence(resp.Text())), &result); err != nil {
		// Keep the raw text usable even when the model ignores the shape.
		result = types.OCRResult{RawText: resp.Text()}
	}

	if err := os.MkdirAll(s.cfg.OCRCacheDir, 0o755); err == nil {
		if data, err := json.Marshal(result); err == nil {
			os.WriteFile(cachePath, data, 0o644)
		}
	}
	writeJSON(w, http.StatusOK, result)
}

const evalPromptHeader = `Tu es un correcteur du TEF Canada (Expression Orale).
Évalue la performance du candidat dans le dialogue ci-dessous.
Réponds UNIQUEMENT avec un objet JSON:
{"niveau": "A1|A2|B1|B2|C1|C2", "score": 0-20, "points_forts": [...], "points_faibles": [...], "conseils": [...]}`

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if s.genai == nil {
		writeError(w, http.StatusServiceUnavailable, core.NewAPIError("evaluation model not configured"))
		return
	}
	var req struct {
		Scenario types.Scenario          `json:"scenario"`
		Entries  []types.EvaluationEntry `json:"entries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, core.NewInvalidRequestError("invalid body"))
		return
	}
	if len(req.Entries) == 0 {
		writeError(w, http.StatusBadRequest, core.NewInvalidRequestError("entries are required"))
		return
	}

	var b strings.Builder
	b.WriteString(evalPromptHeader)
	b.WriteString("\n\nTâche (" + req.Scenario.Task + "): " + req.Scenario.Prompt + "\n\nDialogue:\n")
	for _, e := range req.Entries {
		speaker := "Candidat"
		if e.Role == types.RoleAssistant {
			speaker = "Examinateur"
		}
		b.WriteString(speaker + ": " + e.Text + "\n")
	}

	contents := []*genai.Content{genai.NewContentFromText(b.String(), genai.RoleUser)}
	resp, err := s.genai.Models.GenerateContent(r.Context(), s.cfg.EvalModel, contents, nil)
	if err != nil {
		writeError(w, http.StatusBadGateway, core.NewAPIError("evaluation call failed: "+err.Error()))
		return
	}

	text := stripCodeFence(resp.Text())
	var evaluation json.RawMessage
	if json.Valid([]byte(text)) {
		evaluation = json.RawMessage(text)
	} else {
		wrapped, _ := json.Marshal(map[string]string{"raw": resp.Text()})
		evaluation = wrapped
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluation": evaluation})
}

// handleTranscribe forwards the recorded blob to the upstream batch
// transcription API.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if s.cfg.TranscribeAPIKey == "" {
		writeError(w, http.StatusServiceUnavailable, core.NewAPIError("transcription not configured"))
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, core.NewInvalidRequestError("audio file is required"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, core.NewInvalidRequestError("unreadable audio file"))
		return
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", header.Filename)
	if err == nil {
		_, err = part.Write(data)
	}
	if err == nil {
		err = mw.WriteField("model", s.cfg.TranscribeModel)
	}
	if err == nil {
		err = mw.WriteField("language", "fr")
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, core.NewAPIError(err.Error()))
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, s.cfg.TranscribeURL, &buf)
	if err != nil {
		writeError(w, http.StatusInternalServerError, core.NewAPIError(err.Error()))
		return
	}
	req.Header.Set("Authorization", "Bearer "+s.cfg.TranscribeAPIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, core.NewAPIError("transcription upstream failed: "+err.Error()))
		return
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		writeError(w, http.StatusBadGateway, core.NewAPIError(fmt.Sprintf("transcription status %d", resp.StatusCode)))
		return
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		writeError(w, http.StatusBadGateway, core.NewAPIError("transcription response unusable"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": out.Text})
}

func (s *Server) handleSaveResult(w http.ResponseWriter, r *http.Request) {
	var record types.SessionRecord
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		writeError(w, http.StatusBadRequest, core.NewInvalidRequestError("invalid body"))
		return
	}
	id, err := s.store.Save(r.Context(), record)
	if err != nil {
		s.logger.Error("save result", "err", err)
		writeError(w, http.StatusInternalServerError, core.NewAPIError("could not persist session"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	record, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if ce, ok := err.(*core.Error); ok && ce.Type == core.ErrNotFound {
			writeError(w, http.StatusNotFound, ce)
			return
		}
		s.logger.Error("get result", "err", err)
		writeError(w, http.StatusInternalServerError, core.NewAPIError("could not load session"))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	records, err := s.store.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("history", "err", err)
		writeError(w, http.StatusInternalServerError, core.NewAPIError("could not list sessions"))
		return
	}
	if records == nil {
		records = []types.SessionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": records})
}

// stripCodeFence removes a markdown code fence wrapper if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
