package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/toilettails/api/internal/config"
)

// RembgClient calls the hosted background-removal API. When unconfigured the
// pipeline's masking step degrades to an identity transform.
type RembgClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewRembgClient creates a new REMBG API client
func NewRembgClient(cfg *config.RembgConfig) *RembgClient {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RembgClient{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

// RemoveBackground downloads the source image, sends the bytes through the
// removal API, and returns the cut-out as a PNG data URL.
func (c *RembgClient) RemoveBackground(ctx context.Context, imageURL string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	imageBytes, err := c.download(ctx, imageURL)
	if err != nil {
		return "", err
	}

	log.Printf("[REMBG] → POST %s/remove (%d bytes)", c.baseURL, len(imageBytes))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/remove", bytes.NewReader(imageBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("REMBG API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	log.Printf("[REMBG] ← %d (%d bytes)", resp.StatusCode, len(respBody))

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(respBody), nil
}

func (c *RembgClient) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: %d %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// IsConfigured returns true if the client has valid configuration
func (c *RembgClient) IsConfigured() bool {
	return c.apiKey != ""
}
