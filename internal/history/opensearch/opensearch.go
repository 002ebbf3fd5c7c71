package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loykin/devsup/internal/history"
)

// Sink indexes dev-server run events into OpenSearch over its REST API.
// Events carrying a run id are written with PUT to <index>/_doc/<run_id>-<type>,
// so a redelivered event overwrites its earlier copy. Others are POSTed to
// <index>/_doc and get a generated id.
type Sink struct {
	client  *http.Client
	baseURL string
	index   string
}

func New(baseURL, index string) *Sink {
	c := &http.Client{Timeout: 5 * time.Second}
	return &Sink{client: c, baseURL: strings.TrimRight(baseURL, "/"), index: index}
}

// DocumentID is the id an event is indexed under, or "" for a generated id.
func DocumentID(e history.Event) string {
	if e.Record.RunID == "" {
		return ""
	}
	return e.Record.RunID + "-" + string(e.Type)
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	method, u := http.MethodPost, fmt.Sprintf("%s/%s/_doc", s.baseURL, s.index)
	if id := DocumentID(e); id != "" {
		method, u = http.MethodPut, u+"/"+url.PathEscape(id)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("opensearch sink: index %s key %d: status %d", s.index, e.Record.Key, resp.StatusCode)
	}
	return nil
}
