package exo

import (
	"context"
	"net/http"
	"sync"

	"github.com/oralab/exo/pkg/core"
	"github.com/oralab/exo/pkg/core/types"
)

// localResults keeps finished sessions in process memory when the
// gateway cannot be reached, so a result is never lost.
type localResults struct {
	mu      sync.Mutex
	records map[string]types.SessionRecord
}

func newLocalResults() *localResults {
	return &localResults{records: make(map[string]types.SessionRecord)}
}

func (l *localResults) put(record types.SessionRecord) {
	l.mu.Lock()
	l.records[record.SessionID] = record
	l.mu.Unlock()
}

func (l *localResults) get(id string) (types.SessionRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.records[id]
	return r, ok
}

type saveResponse struct {
	SessionID string `json:"session_id"`
}

// Save persists a finished session. On gateway failure the record is
// kept locally under its own id and no error is returned; the session
// remains retrievable through Result.
func (c *Client) Save(ctx context.Context, record types.SessionRecord) (string, error) {
	var out saveResponse
	err := c.doJSON(ctx, http.MethodPost, "/v1/results", record, &out)
	if err != nil {
		c.logger.Warn("result persistence failed, keeping local copy", "session_id", record.SessionID, "err", err)
		c.local.put(record)
		return record.SessionID, nil
	}
	if out.SessionID != "" {
		return out.SessionID, nil
	}
	return record.SessionID, nil
}

// Result fetches one session by id, checking the gateway first and the
// local fallback store second.
func (c *Client) Result(ctx context.Context, id string) (*types.SessionRecord, error) {
	var record types.SessionRecord
	err := c.doJSON(ctx, http.MethodGet, "/v1/results/"+id, nil, &record)
	if err == nil {
		return &record, nil
	}
	if local, ok := c.local.get(id); ok {
		return &local, nil
	}
	if ce, ok := err.(*core.Error); ok && ce.Type == core.ErrNotFound {
		return nil, ce
	}
	return nil, err
}

// History lists persisted sessions, newest first.
func (c *Client) History(ctx context.Context) ([]types.SessionRecord, error) {
	var out struct {
		Results []types.SessionRecord `json:"results"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/results/history", nil, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}
