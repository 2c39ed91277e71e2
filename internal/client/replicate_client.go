package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/toilettails/api/internal/config"
)

const (
	predictionPollInterval = 2 * time.Second
	predictionMaxWait      = 3 * time.Minute
)

// ReplicateClient drives the generic predictions protocol: submit a job,
// poll its status until it reaches a terminal state or the wait bound.
type ReplicateClient struct {
	httpClient     *http.Client
	baseURL        string
	apiToken       string
	img2imgVersion string
}

// PredictionRequest submits one prediction for a model version.
type PredictionRequest struct {
	Version string                 `json:"version"`
	Input   map[string]interface{} `json:"input"`
	Stream  bool                   `json:"stream"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  interface{}     `json:"error"`
}

// NewReplicateClient creates a new Replicate API client
func NewReplicateClient(cfg *config.ReplicateConfig) *ReplicateClient {
	return &ReplicateClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:        cfg.BaseURL,
		apiToken:       cfg.APIToken,
		img2imgVersion: cfg.Img2ImgVersion,
	}
}

// Img2ImgVersion returns the configured image-to-image model version hash.
func (c *ReplicateClient) Img2ImgVersion() string {
	return c.img2imgVersion
}

// RunPrediction submits a prediction and polls until it succeeds, fails, is
// canceled, or the 3-minute bound elapses. Returns the output image URL.
func (c *ReplicateClient) RunPrediction(ctx context.Context, req *PredictionRequest) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	created, err := c.create(ctx, req)
	if err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", fmt.Errorf("replicate did not return prediction id")
	}

	deadline := time.Now().Add(predictionMaxWait)
	attempt := 0

	for time.Now().Before(deadline) {
		attempt++
		pred, err := c.get(ctx, created.ID)
		if err != nil {
			return "", err
		}

		log.Printf("[Replicate] Poll #%d (prediction=%s) — status: %s", attempt, created.ID, pred.Status)

		switch pred.Status {
		case "succeeded":
			return extractPredictionOutput(pred.Output)
		case "failed", "canceled":
			return "", fmt.Errorf("replicate prediction %s: %v", pred.Status, pred.Error)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(predictionPollInterval):
		}
	}

	return "", fmt.Errorf("replicate prediction %s after %v: %w", created.ID, predictionMaxWait, ErrPredictionTimeout)
}

func (c *ReplicateClient) create(ctx context.Context, req *PredictionRequest) (*prediction, error) {
	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var result prediction
	if err := c.doRequest(httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *ReplicateClient) get(ctx context.Context, id string) (*prediction, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	var result prediction
	if err := c.doRequest(httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *ReplicateClient) doRequest(req *http.Request, result interface{}) error {
	req.Header.Set("Authorization", "Token "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("replicate API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *ReplicateClient) IsConfigured() bool {
	return c.apiToken != ""
}

// extractPredictionOutput normalizes the known prediction output encodings:
// a string, an array of strings, or an array of {"url": ...} objects.
// Unknown encodings fail closed.
func extractPredictionOutput(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", ErrMissingImageURL
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil && asString != "" {
		return asString, nil
	}

	var asStrings []string
	if err := json.Unmarshal(raw, &asStrings); err == nil && len(asStrings) > 0 && asStrings[0] != "" {
		return asStrings[0], nil
	}

	var asObjects []struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(raw, &asObjects); err == nil && len(asObjects) > 0 && asObjects[0].URL != "" {
		return asObjects[0].URL, nil
	}

	return "", fmt.Errorf("prediction succeeded but output format unknown: %w", ErrMissingImageURL)
}
