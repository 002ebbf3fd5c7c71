package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/devsup/internal/history"
)

func TestOpenSearchSink_Send(t *testing.T) {
	var receivedBody []byte
	var receivedURL, receivedMethod, contentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedMethod = r.Method
		receivedURL = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		receivedBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"_id":"test","_index":"devserver-history","result":"created"}`))
	}))
	defer server.Close()

	sink := New(server.URL+"/", "devserver-history")
	code := 1
	stopped := time.Now().UTC()
	event := history.Event{
		Type:       history.EventExit,
		OccurredAt: stopped,
		Record: history.Record{
			Key: 4, RunID: "r-1", PID: 12, Command: "yarn start", Cwd: "/a",
			Port: 8080, ExitCode: &code, StartedAt: stopped.Add(-time.Minute), StoppedAt: &stopped,
		},
	}
	require.NoError(t, sink.Send(context.Background(), event))

	assert.Equal(t, http.MethodPut, receivedMethod)
	assert.Equal(t, "/devserver-history/_doc/r-1-exit", receivedURL)
	assert.Equal(t, "application/json", contentType)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(receivedBody, &doc))
	assert.Equal(t, "exit", doc["type"])
	rec, ok := doc["record"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "r-1", rec["run_id"])
	assert.Equal(t, float64(8080), rec["port"])
	assert.Equal(t, float64(1), rec["exit_code"])
}

func TestOpenSearchSink_GeneratedIDWithoutRunID(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	require.NoError(t, New(server.URL, "idx").Send(context.Background(), history.Event{Type: history.EventStart}))
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "/idx/_doc", path)
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "", DocumentID(history.Event{Type: history.EventPort}))
	assert.Equal(t, "abc-port", DocumentID(history.Event{Type: history.EventPort, Record: history.Record{RunID: "abc"}}))
}

func TestOpenSearchSink_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := New(server.URL, "idx").Send(context.Background(), history.Event{Type: history.EventStart})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestOpenSearchSink_Unreachable(t *testing.T) {
	err := New("http://127.0.0.1:1", "idx").Send(context.Background(), history.Event{Type: history.EventStart})
	assert.Error(t, err)
}
