package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/toilettails/api/internal/client"
)

const resultSignedURLTTL = 24 * time.Hour

// ErrEmptyImage is returned when an image reference decodes to zero bytes.
var ErrEmptyImage = errors.New("empty image buffer")

// ResultService is the single chokepoint through which every pipeline step's
// output becomes durable. Model backends return short-lived or
// provider-authenticated URLs, so raw references are never forwarded.
type ResultService struct {
	storage    client.StorageClient
	httpClient *http.Client
}

// NewResultService creates a result service backed by object storage.
func NewResultService(storage client.StorageClient) *ResultService {
	return &ResultService{
		storage: storage,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Save normalizes an image reference (data URI or remote URL) into bytes,
// uploads it under a per-job, per-step key, and returns a 24-hour signed
// URL. Keys embed a timestamp, so repeated calls for the same step produce
// distinct, independently fetchable objects.
func (s *ResultService) Save(ctx context.Context, imageRef, jobID, step string) (string, error) {
	if imageRef == "" {
		return "", fmt.Errorf("failed to save result for step %s: empty image reference", step)
	}

	// Dev mode without storage: pass the reference through unchanged.
	if s.storage == nil {
		log.Printf("[%s] storage not configured, passing through %s reference", jobID, step)
		return imageRef, nil
	}

	buf, err := s.resolveBytes(ctx, imageRef)
	if err != nil {
		return "", fmt.Errorf("failed to save result for step %s: %w", step, err)
	}
	if len(buf) == 0 {
		return "", fmt.Errorf("failed to save result for step %s: %w", step, ErrEmptyImage)
	}

	key := fmt.Sprintf("ai-results/%s/%s-%d.png", jobID, step, time.Now().UnixMilli())

	if _, err := s.storage.Upload(ctx, key, bytes.NewReader(buf), "image/png"); err != nil {
		return "", fmt.Errorf("failed to save result for step %s: %w", step, err)
	}

	signedURL, err := s.storage.GetSignedURL(ctx, key, resultSignedURLTTL)
	if err != nil {
		return "", fmt.Errorf("failed to sign result for step %s: %w", step, err)
	}

	log.Printf("[%s] saved %s result under %s", jobID, step, key)
	return signedURL, nil
}

func (s *ResultService) resolveBytes(ctx context.Context, imageRef string) ([]byte, error) {
	if strings.HasPrefix(imageRef, "data:") {
		_, payload, found := strings.Cut(imageRef, ",")
		if !found {
			return nil, fmt.Errorf("invalid data URL format")
		}
		buf, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode data URL: %w", err)
		}
		return buf, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageRef, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: %d %s", resp.StatusCode, resp.Status)
	}

	return io.ReadAll(resp.Body)
}
