package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const anthropicVersion = "2023-06-01"

// Config carries the remote API settings. BaseURL is overridable so tests
// can point the client at a local server.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	MaxTokens      int
	RequestTimeout time.Duration
}

// Client talks to the remote LLM batch API. Every call is bounded by the
// configured request timeout; a stuck remote call must never wedge the
// poller.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type MessageParams struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
}

// BatchItem is one independent request inside a remote batch. CustomID
// embeds the local batch id so results can be traced back even though the
// remote API returns them unordered.
type BatchItem struct {
	CustomID string        `json:"custom_id"`
	Params   MessageParams `json:"params"`
}

// NewBatchItem builds one batch entry for a prompt using the configured
// model and token budget.
func (c *Client) NewBatchItem(customID, prompt string) BatchItem {
	return BatchItem{
		CustomID: customID,
		Params: MessageParams{
			Model:     c.cfg.Model,
			MaxTokens: c.cfg.MaxTokens,
			Messages:  []Message{{Role: "user", Content: prompt}},
		},
	}
}

// RequestCounts mirrors the remote per-item progress counters.
type RequestCounts struct {
	Processing int `json:"processing"`
	Succeeded  int `json:"succeeded"`
	Errored    int `json:"errored"`
	Canceled   int `json:"canceled"`
	Expired    int `json:"expired"`
}

// BatchStatus is the remote view of a batch job.
type BatchStatus struct {
	ID               string        `json:"id"`
	ProcessingStatus string        `json:"processing_status"`
	RequestCounts    RequestCounts `json:"request_counts"`
}

// CreateBatch submits all items as a single remote batch job and returns the
// remote batch id. A 2xx response without an id is treated as a failure.
func (c *Client) CreateBatch(ctx context.Context, items []BatchItem) (string, error) {
	body := map[string]interface{}{"requests": items}

	var status BatchStatus
	if err := c.do(ctx, http.MethodPost, "/v1/messages/batches", body, &status); err != nil {
		return "", errors.Wrap(err, "batch creation request failed")
	}
	if status.ID == "" {
		return "", errors.New("batch creation response missing id")
	}
	return status.ID, nil
}

// GetBatchStatus fetches the remote processing status for a batch.
func (c *Client) GetBatchStatus(ctx context.Context, remoteBatchID string) (BatchStatus, error) {
	var status BatchStatus
	if err := c.do(ctx, http.MethodGet, "/v1/messages/batches/"+remoteBatchID, nil, &status); err != nil {
		return status, errors.Wrapf(err, "failed to fetch status for remote batch %s", remoteBatchID)
	}
	return status, nil
}

// GetBatchResults streams and parses the NDJSON result set of an ended
// batch. A transport failure here is distinct from a batch with zero
// parsable results.
func (c *Client) GetBatchResults(ctx context.Context, remoteBatchID string) ([]BatchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, http.MethodGet, "/v1/messages/batches/"+remoteBatchID+"/results", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch results for remote batch %s", remoteBatchID)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("results fetch returned %d: %s", resp.StatusCode, string(payload))
	}

	return ParseResults(resp.Body)
}

type messageResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// CreateMessage performs a synchronous single generation call and returns
// the concatenated text content.
func (c *Client) CreateMessage(ctx context.Context, prompt string) (string, error) {
	body := MessageParams{
		Model:     c.cfg.Model,
		MaxTokens: c.cfg.MaxTokens,
		Messages:  []Message{{Role: "user", Content: prompt}},
	}

	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/v1/messages", body, &resp); err != nil {
		return "", errors.Wrap(err, "message request failed")
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", errors.New("message response contained no text content")
	}
	return text, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "failed to marshal request body")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, reader)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("remote API returned %d: %s", resp.StatusCode, string(payload))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, "failed to decode response body")
		}
	}
	return nil
}
