package scene

import (
	"fmt"

	"github.com/toilettails/api/internal/model"
)

// Templates maps each scene id to its tuned prompt. Prompts aim for strong
// styling while keeping subject identity.
var Templates = map[model.Scene]string{
	model.SceneRoyalThrone:  "opulent palace bathroom, ornate golden toilet throne, marble walls and floor, chandelier, cinematic warm lighting, centered composition, eye-level 50mm, pet seated proudly on the toilet like royalty",
	model.SceneBubbleBath:   "bright spa bathroom, white clawfoot tub overflowing with bubbles and soft steam, towel rack and candles, soft rim light, centered composition, the pet relaxing in the bubble bath with face clearly visible",
	model.SceneMirrorSelfie: "modern minimal bathroom, frameless vanity mirror with soft top light, clean chrome fixtures, reflection shows the same pet looking at the mirror, front camera look, centered portrait composition, natural soft light",
	model.SceneNewspaper:    "cozy home bathroom, warm ambient light, beige walls, small window light, pet seated on the toilet reading a newspaper, paws visible, gentle vignette, balanced 4:3 framing",
	model.SceneSpaDay:       "zen spa bathroom, natural stone, green plants, rolled towels, candles, warm diffused lighting, the pet wrapped in a towel enjoying a spa moment, soft depth of field",
	model.SceneTPTornado:    "playful chaotic bathroom, toilet paper strewn everywhere, rolls unraveling across the floor and around the pet, bright cheerful lighting, dynamic composition, the pet playfully tangled in toilet paper",
}

// Catalog returns the scene list in stable order for the picker UI.
func Catalog() []model.SceneInfo {
	infos := make([]model.SceneInfo, 0, len(model.ValidScenes))
	for _, id := range model.ValidScenes {
		infos = append(infos, model.SceneInfo{ID: id, Prompt: Templates[id]})
	}
	return infos
}

// Template returns the prompt for a scene id.
func Template(id model.Scene) (string, bool) {
	prompt, ok := Templates[id]
	return prompt, ok
}

// KontextPrompt builds the image-to-image prompt for a scene.
func KontextPrompt(template string) string {
	return fmt.Sprintf("%s, photorealistic, professional lighting, bathroom setting, keep subject identity", template)
}

// FillPrompt builds the inpainting prompt for a scene. The extra instruction
// keeps the inserted subject recognizable and blended with the background.
func FillPrompt(template string) string {
	return fmt.Sprintf("%s, insert the pet into the masked region, preserve subject identity, blend lighting and perspective with the background", template)
}

// Img2ImgPrompt builds the secondary-backend prompt for a scene.
func Img2ImgPrompt(template string) string {
	return fmt.Sprintf("A photorealistic %s, high quality, detailed, professional photography, the pet is clearly integrated in the bathroom", template)
}

// GuidanceScale maps identity strength onto the Kontext guidance scale:
// clamp(6 + (strength - 0.35) * 10, 2.5, 8). Zero means "unset" and yields
// the default of 6.
func GuidanceScale(identityStrength float64) float64 {
	if identityStrength == 0 {
		return 6
	}
	scale := 6 + (identityStrength-0.35)*10
	if scale < 2.5 {
		return 2.5
	}
	if scale > 8 {
		return 8
	}
	return scale
}
