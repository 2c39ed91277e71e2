package scene

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func TestBuildMaskPNG_Dimensions(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		height int
	}{
		{"square", 1024, 1024},
		{"landscape", 1600, 1200},
		{"portrait", 768, 1024},
		{"small", 64, 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := BuildMaskPNG(tt.width, tt.height)
			if err != nil {
				t.Fatalf("BuildMaskPNG failed: %v", err)
			}

			img, err := png.Decode(bytes.NewReader(data))
			if err != nil {
				t.Fatalf("mask is not valid PNG: %v", err)
			}

			b := img.Bounds()
			if b.Dx() != tt.width || b.Dy() != tt.height {
				t.Errorf("mask is %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.width, tt.height)
			}
		})
	}
}

func TestBuildMaskPNG_Colors(t *testing.T) {
	const width, height = 800, 600

	data, err := BuildMaskPNG(width, height)
	if err != nil {
		t.Fatalf("BuildMaskPNG failed: %v", err)
	}

	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("mask is not valid PNG: %v", err)
	}

	x, y, w, h := MaskRect(width, height)

	// Center of the rectangle must be white.
	cx, cy := int(x+w/2), int(y+h/2)
	if !isWhite(img, cx, cy) {
		t.Errorf("rectangle center (%d,%d) is not white", cx, cy)
	}

	// Canvas corners must be black.
	for _, p := range [][2]int{{0, 0}, {width - 1, 0}, {0, height - 1}, {width - 1, height - 1}} {
		if isWhite(img, p[0], p[1]) {
			t.Errorf("corner (%d,%d) is not black", p[0], p[1])
		}
	}
}

func TestBuildMaskPNG_InvalidDimensions(t *testing.T) {
	for _, dims := range [][2]int{{0, 100}, {100, 0}, {-1, 100}} {
		if _, err := BuildMaskPNG(dims[0], dims[1]); err == nil {
			t.Errorf("expected error for %dx%d", dims[0], dims[1])
		}
	}
}

func TestMaskRect_Containment(t *testing.T) {
	for _, dims := range [][2]int{{1024, 1024}, {2000, 500}, {500, 2000}, {64, 64}} {
		width, height := dims[0], dims[1]
		x, y, w, h := MaskRect(width, height)

		if x < 0 || y < 0 {
			t.Errorf("%dx%d: rectangle origin (%v,%v) out of bounds", width, height, x, y)
		}
		if x+w > float64(width) || y+h > float64(height) {
			t.Errorf("%dx%d: rectangle extends to (%v,%v) beyond canvas", width, height, x+w, y+h)
		}
		if w <= 0 || h <= 0 {
			t.Errorf("%dx%d: degenerate rectangle %vx%v", width, height, w, h)
		}
	}
}

func isWhite(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	return r > 0x8000 && g > 0x8000 && b > 0x8000
}
