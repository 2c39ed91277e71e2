package scene

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/toilettails/api/internal/client"
	"github.com/toilettails/api/internal/model"
)

// Inpainting parameters are fixed; identity strength only drives the
// image-to-image branch.
const (
	inferenceSteps       = 30
	fillGuidanceScale    = 7.5
	img2imgGuidanceScale = 10
	img2imgDefaultSeed   = 789
	defaultStrength      = 0.45
)

// ErrUnknownScene is returned when no template exists for a scene id.
var ErrUnknownScene = errors.New("unknown scene")

// ModelGateway is the slice of the FAL client the composer needs.
type ModelGateway interface {
	GenerateKontext(ctx context.Context, req *client.KontextRequest) (string, error)
	Inpaint(ctx context.Context, req *client.FillRequest) (string, error)
	IsConfigured() bool
}

// PredictionRunner is the slice of the Replicate client the composer needs.
type PredictionRunner interface {
	RunPrediction(ctx context.Context, req *client.PredictionRequest) (string, error)
	Img2ImgVersion() string
	IsConfigured() bool
}

// ResultSaver persists an image reference durably and returns a signed URL.
type ResultSaver interface {
	Save(ctx context.Context, imageRef, jobID, step string) (string, error)
}

// Result is a composed scene image. Degraded marks the documented
// last-resort fallback where the original pet image is returned unchanged.
type Result struct {
	URL      string
	Degraded bool
}

// Composer decides which generative backend to invoke and normalizes their
// responses into a single image URL.
type Composer struct {
	fal        ModelGateway
	replicate  PredictionRunner
	saver      ResultSaver
	httpClient *http.Client
}

// NewComposer wires the two gateways and the result saver.
func NewComposer(fal ModelGateway, replicate PredictionRunner, saver ResultSaver) *Composer {
	return &Composer{
		fal:       fal,
		replicate: replicate,
		saver:     saver,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Compose blends the pet into the chosen scene.
//
// With a background image the inpaint backend is used exclusively: a mask
// sized to the background is synthesized and persisted, and a failure is
// surfaced directly. Falling back to image-to-image would silently ignore
// the user-provided background.
//
// Without a background the Kontext image-to-image backend is tried first,
// then the prediction-based diffusion backend, and finally the original pet
// image is returned unchanged (Degraded=true) so the job still completes.
func (c *Composer) Compose(ctx context.Context, jobID, petImageURL string, sceneID model.Scene, bgImageURL string, opts model.GenerateOptions) (*Result, error) {
	template, ok := Template(sceneID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScene, sceneID)
	}

	if bgImageURL != "" {
		return c.composeInpaint(ctx, jobID, template, bgImageURL)
	}
	return c.composeImg2Img(ctx, jobID, template, petImageURL, opts)
}

func (c *Composer) composeInpaint(ctx context.Context, jobID, template, bgImageURL string) (*Result, error) {
	width, height, err := probeImageSize(ctx, c.httpClient, bgImageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compose scene: %w", err)
	}

	maskPNG, err := BuildMaskPNG(width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to compose scene: %w", err)
	}

	// The mask signed URL is threaded directly into the request builder.
	// Some backends reject inline data URIs, so persistence is preferred
	// and the data URL is only a fallback.
	maskDataURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(maskPNG)
	maskURL, err := c.saver.Save(ctx, maskDataURL, jobID, "mask")
	if err != nil {
		log.Printf("[%s] mask persistence failed, using data URL: %v", jobID, err)
		maskURL = maskDataURL
	}

	url, err := c.fal.Inpaint(ctx, &client.FillRequest{
		Prompt:            FillPrompt(template),
		ImageURL:          bgImageURL,
		MaskURL:           maskURL,
		NumInferenceSteps: inferenceSteps,
		GuidanceScale:     fillGuidanceScale,
	})
	if err != nil {
		// No fallback here: a supplied background means the user asked
		// for exactly this composition.
		return nil, fmt.Errorf("failed to compose scene: %w", err)
	}

	return &Result{URL: url}, nil
}

func (c *Composer) composeImg2Img(ctx context.Context, jobID, template, petImageURL string, opts model.GenerateOptions) (*Result, error) {
	aspect := opts.AspectRatio
	if aspect == "" {
		aspect = string(model.AspectSquare)
	}

	if c.fal != nil && c.fal.IsConfigured() {
		url, err := c.fal.GenerateKontext(ctx, &client.KontextRequest{
			Prompt:            KontextPrompt(template),
			ImageURL:          petImageURL,
			NumInferenceSteps: inferenceSteps,
			GuidanceScale:     GuidanceScale(opts.IdentityStrength),
			ImageSize:         aspect,
		})
		if err == nil {
			return &Result{URL: url}, nil
		}
		log.Printf("[%s] kontext generation failed, falling back to prediction backend: %v", jobID, err)
	}

	if c.replicate != nil && c.replicate.IsConfigured() {
		strength := opts.IdentityStrength
		if strength == 0 {
			strength = defaultStrength
		}
		url, err := c.replicate.RunPrediction(ctx, &client.PredictionRequest{
			Version: c.replicate.Img2ImgVersion(),
			Input: map[string]interface{}{
				"image":               petImageURL,
				"prompt":              Img2ImgPrompt(template),
				"num_inference_steps": inferenceSteps,
				"guidance_scale":      img2imgGuidanceScale,
				"strength":            strength,
				"seed":                img2imgDefaultSeed,
			},
		})
		if err == nil {
			return &Result{URL: url}, nil
		}
		log.Printf("[%s] prediction backend failed: %v", jobID, err)
	}

	// Documented last-resort policy: return the original pet image so the
	// job completes instead of failing. Callers can see Degraded and the
	// step outcome records it.
	log.Printf("[%s] all image-to-image backends failed, returning original image", jobID)
	return &Result{URL: petImageURL, Degraded: true}, nil
}
