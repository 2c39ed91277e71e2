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

// FalClient invokes FAL-hosted image models synchronously. It covers both
// gateway contracts: Kontext image-to-image and Flux fill inpainting.
type FalClient struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	kontextModel string
	fillModel    string
}

// KontextRequest is the image-to-image input contract.
type KontextRequest struct {
	Prompt            string  `json:"prompt"`
	ImageURL          string  `json:"image_url"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	ImageSize         string  `json:"image_size,omitempty"`
	SyncMode          bool    `json:"sync_mode"`
}

// FillRequest is the inpainting input contract: the model fills the white
// region of the mask on top of the provided background image.
type FillRequest struct {
	Prompt            string  `json:"prompt"`
	ImageURL          string  `json:"image_url"`
	MaskURL           string  `json:"mask_url"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	SyncMode          bool    `json:"sync_mode"`
}

// NewFalClient creates a new FAL API client
func NewFalClient(cfg *config.FalConfig) *FalClient {
	return &FalClient{
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		kontextModel: cfg.KontextModel,
		fillModel:    cfg.FillModel,
	}
}

// GenerateKontext runs image-to-image generation and returns the result
// image URL.
func (c *FalClient) GenerateKontext(ctx context.Context, req *KontextRequest) (string, error) {
	req.SyncMode = true
	return c.invoke(ctx, c.kontextModel, req)
}

// Inpaint fills the masked region of the background image and returns the
// result image URL.
func (c *FalClient) Inpaint(ctx context.Context, req *FillRequest) (string, error) {
	req.SyncMode = true
	return c.invoke(ctx, c.fillModel, req)
}

func (c *FalClient) invoke(ctx context.Context, model string, body interface{}) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/" + model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Key "+c.apiKey)

	log.Printf("[FAL] → POST %s", url)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Printf("[FAL] ✗ POST %s — request failed: %v", url, err)
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	log.Printf("[FAL] ← %d POST %s", resp.StatusCode, url)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("FAL API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	imageURL, ok := ExtractImageURL(respBody)
	if !ok {
		log.Printf("[FAL] ✗ no image URL in response: %s", truncate(string(respBody), 512))
		return "", fmt.Errorf("%s: %w", model, ErrMissingImageURL)
	}
	return imageURL, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *FalClient) IsConfigured() bool {
	return c.apiKey != ""
}

// ExtractImageURL walks the known FAL response layouts in order and returns
// the first URL-bearing element. Unknown shapes fail closed.
//
// Known layouts:
//  1. {"images": [{"url": "..."}]}
//  2. {"data": {"images": [{"url": "..."}]}}
//  3. {"image": {"url": "..."}}
//  4. [{"url": "..."}] or ["..."]
func ExtractImageURL(raw []byte) (string, bool) {
	type imageObj struct {
		URL string `json:"url"`
	}

	var withImages struct {
		Images []imageObj `json:"images"`
		Image  *imageObj  `json:"image"`
		Data   *struct {
			Images []imageObj `json:"images"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &withImages); err == nil {
		if len(withImages.Images) > 0 && withImages.Images[0].URL != "" {
			return withImages.Images[0].URL, true
		}
		if withImages.Data != nil && len(withImages.Data.Images) > 0 && withImages.Data.Images[0].URL != "" {
			return withImages.Data.Images[0].URL, true
		}
		if withImages.Image != nil && withImages.Image.URL != "" {
			return withImages.Image.URL, true
		}
	}

	var objArray []imageObj
	if err := json.Unmarshal(raw, &objArray); err == nil && len(objArray) > 0 && objArray[0].URL != "" {
		return objArray[0].URL, true
	}

	var strArray []string
	if err := json.Unmarshal(raw, &strArray); err == nil && len(strArray) > 0 && strArray[0] != "" {
		return strArray[0], true
	}

	return "", false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
