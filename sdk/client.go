// Package exo provides the client for the exam gateway: session
// credentials, fact extraction, transcription, evaluation and result
// persistence with a local fallback.
package exo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/oralab/exo/pkg/core"
)

// Client talks to the exam gateway.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger

	local *localResults
}

// NewClient creates a gateway client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
		local:      newLocalResults(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured gateway base URL.
func (c *Client) BaseURL() string { return c.baseURL }

type apiErrorEnvelope struct {
	Error *core.Error `json:"error"`
}

// doJSON posts a JSON body and decodes the JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return core.NewInvalidRequestError("encode request: " + err.Error())
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return core.NewInvalidRequestError("build request: " + err.Error())
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &core.TransportError{Op: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &core.TransportError{Op: "read", URL: req.URL.String(), Err: err}
	}
	if resp.StatusCode >= 400 {
		var envelope apiErrorEnvelope
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != nil {
			return envelope.Error
		}
		return core.NewAPIError(fmt.Sprintf("%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return core.NewAPIError("decode response: " + err.Error())
	}
	return nil
}

// doMultipart posts one file field and decodes the JSON response.
func (c *Client) doMultipart(ctx context.Context, path, field, filename string, data []byte, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return core.NewInvalidRequestError("build multipart: " + err.Error())
	}
	if _, err := part.Write(data); err != nil {
		return core.NewInvalidRequestError("write multipart: " + err.Error())
	}
	if err := w.Close(); err != nil {
		return core.NewInvalidRequestError("close multipart: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return core.NewInvalidRequestError("build request: " + err.Error())
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.send(req, out)
}
