package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		APIKey:         "test-key",
		BaseURL:        baseURL,
		Model:          "test-model",
		MaxTokens:      1024,
		RequestTimeout: 5 * time.Second,
	})
}

func TestCreateBatch(t *testing.T) {
	var captured struct {
		Requests []BatchItem `json:"requests"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/messages/batches", r.URL.Path)
		require.Equal(t, "test-key", r.Header.Get("x-api-key"))
		require.NotEmpty(t, r.Header.Get("anthropic-version"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]string{"id": "msgbatch_abc", "processing_status": "in_progress"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	items := []BatchItem{
		client.NewBatchItem("batch_1-q0", "prompt zero"),
		client.NewBatchItem("batch_1-q1", "prompt one"),
	}

	id, err := client.CreateBatch(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, "msgbatch_abc", id)

	require.Len(t, captured.Requests, 2)
	assert.Equal(t, "batch_1-q0", captured.Requests[0].CustomID)
	assert.Equal(t, "test-model", captured.Requests[0].Params.Model)
	assert.Equal(t, 1024, captured.Requests[0].Params.MaxTokens)
	assert.Equal(t, "prompt one", captured.Requests[1].Params.Messages[0].Content)
}

func TestCreateBatchMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"processing_status": "in_progress"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CreateBatch(context.Background(), []BatchItem{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id")
}

func TestCreateBatchServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"overloaded"}`, http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CreateBatch(context.Background(), []BatchItem{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestGetBatchStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages/batches/msgbatch_abc", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":                "msgbatch_abc",
			"processing_status": "ended",
			"request_counts":    map[string]int{"succeeded": 2, "errored": 1},
		})
	}))
	defer server.Close()

	status, err := newTestClient(server.URL).GetBatchStatus(context.Background(), "msgbatch_abc")
	require.NoError(t, err)
	assert.Equal(t, "ended", status.ProcessingStatus)
	assert.Equal(t, 2, status.RequestCounts.Succeeded)
	assert.Equal(t, 1, status.RequestCounts.Errored)
}

func TestGetBatchResults(t *testing.T) {
	ndjson := `{"custom_id":"b-q0","result":{"type":"succeeded","message":{"content":[{"type":"text","text":"hello"}]}}}
{"custom_id":"b-q1","result":{"type":"errored","error":{"message":"boom"}}}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages/batches/msgbatch_abc/results", r.URL.Path)
		w.Write([]byte(ndjson))
	}))
	defer server.Close()

	results, err := newTestClient(server.URL).GetBatchResults(context.Background(), "msgbatch_abc")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Succeeded)
	assert.Equal(t, "hello", results[0].Text)
	assert.False(t, results[1].Succeeded)
}

func TestGetBatchResultsTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	// A failed retrieval call is an error, distinct from zero parsed results.
	_, err := newTestClient(server.URL).GetBatchResults(context.Background(), "msgbatch_abc")
	require.Error(t, err)
}

func TestCreateMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"content": []map[string]string{
				{"type": "text", "text": "generated "},
				{"type": "text", "text": "question"},
			},
		})
	}))
	defer server.Close()

	text, err := newTestClient(server.URL).CreateMessage(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "generated question", text)
}

func TestCreateMessageNoText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"content": []map[string]string{}})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).CreateMessage(context.Background(), "prompt")
	require.Error(t, err)
}
