package scene

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"net/http"

	"github.com/fogleman/gg"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Mask geometry, proportional to the background canvas. The white rectangle
// marks where the subject is inserted.
const (
	maskRectWidthRatio  = 0.47
	maskRectHeightRatio = 0.53
	maskRectTopRatio    = 0.37
	maskCornerRatio     = 0.04
)

// BuildMaskPNG renders an inpainting mask with exactly the given canvas
// dimensions: black field with a white rounded rectangle, horizontally
// centered, clamped so it never exceeds the canvas bounds.
func BuildMaskPNG(width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid mask dimensions %dx%d", width, height)
	}

	rectW := float64(width) * maskRectWidthRatio
	rectH := float64(height) * maskRectHeightRatio
	x := (float64(width) - rectW) / 2
	y := float64(height) * maskRectTopRatio
	if y+rectH > float64(height) {
		y = float64(height) - rectH
	}
	if y < 0 {
		y = 0
	}

	radius := maskCornerRatio * float64(min(width, height))
	if radius > rectW/2 {
		radius = rectW / 2
	}
	if radius > rectH/2 {
		radius = rectH / 2
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(0, 0, 0)
	dc.Clear()
	dc.SetRGB(1, 1, 1)
	dc.DrawRoundedRectangle(x, y, rectW, rectH, radius)
	dc.Fill()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode mask PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// MaskRect returns the rectangle BuildMaskPNG will paint for a canvas,
// useful for verifying containment.
func MaskRect(width, height int) (x, y, w, h float64) {
	w = float64(width) * maskRectWidthRatio
	h = float64(height) * maskRectHeightRatio
	x = (float64(width) - w) / 2
	y = float64(height) * maskRectTopRatio
	if y+h > float64(height) {
		y = float64(height) - h
	}
	if y < 0 {
		y = 0
	}
	return x, y, w, h
}

// probeImageSize fetches an image URL and decodes only its header to learn
// the pixel dimensions. JPEG, PNG and WebP are supported.
func probeImageSize(ctx context.Context, httpClient *http.Client, url string) (int, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to fetch background image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("failed to fetch background image: %d %s", resp.StatusCode, resp.Status)
	}

	cfg, _, err := image.DecodeConfig(resp.Body)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode background image: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
