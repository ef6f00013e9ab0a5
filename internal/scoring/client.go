// internal/scoring/client.go
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Prediction is one ranked risk entry returned by the external scorer. The
// model behind it is a black box; the shape here is the whole contract.
type Prediction struct {
	Char  string  `json:"char"`
	Score float64 `json:"score"`
	Rank  int     `json:"rank"`
}

// Client calls the external ML scoring service: an opaque
// {rows[]} -> {predictions[]} HTTP POST, nothing more.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Predict submits recent stat batches and returns the ranked predictions.
func (c *Client) Predict(ctx context.Context, rows []StatBatch) ([]Prediction, error) {
	body, err := json.Marshal(map[string]any{"rows": rows})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scoring request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call scoring service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scoring service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		Predictions []Prediction `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode scoring response: %w", err)
	}
	return out.Predictions, nil
}
