package scene

import (
	"math"
	"testing"

	"github.com/toilettails/api/internal/model"
)

func TestGuidanceScale(t *testing.T) {
	tests := []struct {
		name     string
		strength float64
		want     float64
	}{
		{"unset defaults to 6", 0, 6},
		{"midpoint maps to 6", 0.35, 6},
		{"low strength", 0.1, 3.5},
		{"high strength", 0.55, 8},
		{"clamped at upper bound", 0.9, 8},
		{"clamped at lower bound", -0.5, 2.5},
		{"full identity", 1.0, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GuidanceScale(tt.strength)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("GuidanceScale(%v) = %v, want %v", tt.strength, got, tt.want)
			}
		})
	}
}

func TestCatalog(t *testing.T) {
	catalog := Catalog()

	if len(catalog) != len(model.ValidScenes) {
		t.Fatalf("expected %d scenes, got %d", len(model.ValidScenes), len(catalog))
	}

	for i, info := range catalog {
		if info.ID != model.ValidScenes[i] {
			t.Errorf("scene %d: expected id %s, got %s", i, model.ValidScenes[i], info.ID)
		}
		if info.Prompt == "" {
			t.Errorf("scene %s has empty prompt", info.ID)
		}
	}
}

func TestTemplate_Unknown(t *testing.T) {
	if _, ok := Template(model.Scene("moon-landing")); ok {
		t.Error("expected unknown scene to miss")
	}
}

func TestPromptBuilders(t *testing.T) {
	template, ok := Template(model.SceneRoyalThrone)
	if !ok {
		t.Fatal("royal-throne template missing")
	}

	for name, prompt := range map[string]string{
		"kontext": KontextPrompt(template),
		"fill":    FillPrompt(template),
		"img2img": Img2ImgPrompt(template),
	} {
		if prompt == "" {
			t.Errorf("%s prompt is empty", name)
		}
		if len(prompt) <= len(template) {
			t.Errorf("%s prompt should extend the template", name)
		}
	}
}
