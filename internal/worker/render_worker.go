package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
	"github.com/toilettails/api/internal/client"
	"github.com/toilettails/api/internal/model"
	"github.com/toilettails/api/internal/scene"
	"github.com/toilettails/api/internal/service"
	"github.com/toilettails/api/internal/websocket"
)

const sourceSignedURLTTL = time.Hour

// maskedPetStepKey names the stored artifact of the masking step. The storage
// key deliberately differs from the step's status-map name.
const maskedPetStepKey = "masked-pet"

// JobStore is the slice of the render service the worker mutates.
type JobStore interface {
	UpdateJobsByUpload(ctx context.Context, uploadID string, patch model.JobPatch) error
}

// UploadStore reads immutable upload rows and re-signs stored keys.
type UploadStore interface {
	GetUpload(ctx context.Context, id string) (*model.Upload, error)
	SignKey(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// Composer blends the pet into the scene via the model gateways.
type Composer interface {
	Compose(ctx context.Context, jobID, petImageURL string, sceneID model.Scene, bgImageURL string, opts model.GenerateOptions) (*scene.Result, error)
}

// ResultSaver persists a step output and returns its signed URL.
type ResultSaver interface {
	Save(ctx context.Context, imageRef, jobID, step string) (string, error)
}

// BackgroundRemover is the optional masking service. Unconfigured means the
// masking step is an identity transform.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, imageURL string) (string, error)
	IsConfigured() bool
}

// RenderWorker runs the pipeline for one render task: mask, compose,
// persist, finalize. Steps execute strictly in order and do not retry
// internally; asynq retries the whole run. Any step failure maps to exactly
// one `failed` status write, and artifacts persisted before the failure are
// left in place (keys are namespaced per job, so retries cannot collide).
type RenderWorker struct {
	jobs     JobStore
	uploads  UploadStore
	composer Composer
	results  ResultSaver
	rembg    BackgroundRemover
	storage  client.StorageClient
	hub      *websocket.Hub
}

// NewRenderWorker creates a new render worker.
func NewRenderWorker(jobs JobStore, uploads UploadStore, composer Composer, results ResultSaver, rembg BackgroundRemover, storage client.StorageClient, hub *websocket.Hub) *RenderWorker {
	return &RenderWorker{
		jobs:     jobs,
		uploads:  uploads,
		composer: composer,
		results:  results,
		rembg:    rembg,
		storage:  storage,
		hub:      hub,
	}
}

// ProcessTask handles render task processing.
func (w *RenderWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var taskPayload struct {
		JobID   string          `json:"jobId"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(t.Payload(), &taskPayload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	var payload model.RenderJobPayload
	if err := json.Unmarshal(taskPayload.Payload, &payload); err != nil {
		w.failJob(ctx, taskPayload.JobID, payload.UploadID, "Invalid payload", nil)
		return fmt.Errorf("failed to unmarshal render payload: %w", err)
	}

	log.Printf("[%s] starting render for upload %s", taskPayload.JobID, payload.UploadID)
	return w.runPipeline(ctx, taskPayload.JobID, &payload)
}

func (w *RenderWorker) runPipeline(ctx context.Context, jobID string, payload *model.RenderJobPayload) error {
	steps := make(map[model.PipelineStep]model.StepOutcome)

	// Step 1: mark processing. Visible to pollers immediately.
	if err := w.jobs.UpdateJobsByUpload(ctx, payload.UploadID, model.JobPatch{Status: model.JobStatusProcessing}); err != nil {
		return fmt.Errorf("failed to mark job processing: %w", err)
	}
	w.hub.BroadcastStatus(jobID, payload.UploadID, model.JobStatusProcessing, "", "")

	// Step 2: load the upload. Missing upload is fatal, no gateway calls.
	upload, err := w.uploads.GetUpload(ctx, payload.UploadID)
	if err != nil {
		if errors.Is(err, service.ErrUploadNotFound) {
			w.failJob(ctx, jobID, payload.UploadID, "Upload not found", steps)
			return err
		}
		w.failJob(ctx, jobID, payload.UploadID, fmt.Sprintf("Failed to load upload: %v", err), steps)
		return err
	}

	sceneID := payload.Scene
	if sceneID == "" {
		sceneID = upload.Scene
	}
	if sceneID == "" {
		w.failJob(ctx, jobID, payload.UploadID, "No scene selected", steps)
		return fmt.Errorf("no scene selected for upload %s", payload.UploadID)
	}

	// Step 3: resolve fresh source URLs from the stored keys. Stored URLs
	// may have expired; re-signing is idempotent.
	petURL, bgURL, err := w.resolveSourceURLs(ctx, upload)
	if err != nil {
		w.failJob(ctx, jobID, payload.UploadID, fmt.Sprintf("Failed to sign source URLs: %v", err), steps)
		return err
	}

	// Connectivity check before burning gateway quota.
	if w.storage != nil {
		if _, err := w.storage.List(ctx, "ai-results/", 1); err != nil {
			w.failJob(ctx, jobID, payload.UploadID, fmt.Sprintf("Storage unavailable: %v", err), steps)
			return err
		}
	}

	// Step 4: masking. Pass-through unless the removal service is
	// configured; the step boundary (and its persisted output) is kept so
	// the pipeline stays resumable stage by stage.
	maskedRef := petURL
	if w.rembg != nil && w.rembg.IsConfigured() {
		maskedRef, err = w.rembg.RemoveBackground(ctx, petURL)
		if err != nil {
			steps[model.StepMasking] = model.StepOutcome{Status: model.StepStatusFailed, Error: err.Error()}
			w.failJob(ctx, jobID, payload.UploadID, fmt.Sprintf("Background removal failed: %v", err), steps)
			return err
		}
	} else {
		log.Printf("[%s] background removal disabled, using original image", jobID)
	}

	maskedURL, err := w.results.Save(ctx, maskedRef, jobID, maskedPetStepKey)
	if err != nil {
		steps[model.StepMasking] = model.StepOutcome{Status: model.StepStatusFailed, Error: err.Error()}
		w.failJob(ctx, jobID, payload.UploadID, fmt.Sprintf("Failed to persist masking step: %v", err), steps)
		return err
	}
	steps[model.StepMasking] = model.StepOutcome{Status: model.StepStatusSuccess, Output: maskedURL}

	// Step 5: scene composition.
	composed, err := w.composer.Compose(ctx, jobID, maskedURL, sceneID, bgURL, payload.Options)
	if err != nil {
		steps[model.StepComposition] = model.StepOutcome{Status: model.StepStatusFailed, Error: err.Error()}
		w.failJob(ctx, jobID, payload.UploadID, err.Error(), steps)
		// Propagate so the scheduler observes the failure too.
		return err
	}

	resultURL, err := w.results.Save(ctx, composed.URL, jobID, string(model.StepComposition))
	if err != nil {
		steps[model.StepComposition] = model.StepOutcome{Status: model.StepStatusFailed, Error: err.Error()}
		w.failJob(ctx, jobID, payload.UploadID, fmt.Sprintf("Failed to persist composition step: %v", err), steps)
		return err
	}
	steps[model.StepComposition] = model.StepOutcome{
		Status:   model.StepStatusSuccess,
		Output:   resultURL,
		Degraded: composed.Degraded,
	}

	// Upscaling is a placeholder: the flag is accepted but the image is
	// forwarded unchanged.
	if payload.Options.Upscale {
		steps[model.StepUpscaling] = model.StepOutcome{Status: model.StepStatusSuccess, Output: resultURL}
	}

	// Step 6: finalize.
	if err := w.jobs.UpdateJobsByUpload(ctx, payload.UploadID, model.JobPatch{
		Status:    model.JobStatusComplete,
		ResultURL: &resultURL,
		Steps:     steps,
	}); err != nil {
		w.failJob(ctx, jobID, payload.UploadID, "Failed to save result", steps)
		return err
	}

	w.hub.BroadcastStatus(jobID, payload.UploadID, model.JobStatusComplete, resultURL, "")
	log.Printf("[%s] render complete", jobID)
	return nil
}

func (w *RenderWorker) resolveSourceURLs(ctx context.Context, upload *model.Upload) (string, string, error) {
	petURL, err := w.uploads.SignKey(ctx, upload.PetKey, sourceSignedURLTTL)
	if err != nil {
		// Fall back to the stored URL; it may still be valid.
		if upload.PetURL == "" {
			return "", "", err
		}
		petURL = upload.PetURL
	}

	var bgURL string
	if upload.BgKey != "" {
		bgURL, err = w.uploads.SignKey(ctx, upload.BgKey, sourceSignedURLTTL)
		if err != nil {
			if upload.BgURL == "" {
				return "", "", err
			}
			bgURL = upload.BgURL
		}
	}
	return petURL, bgURL, nil
}

func (w *RenderWorker) failJob(ctx context.Context, jobID, uploadID, errMsg string, steps map[model.PipelineStep]model.StepOutcome) {
	patch := model.JobPatch{
		Status: model.JobStatusFailed,
		Error:  &errMsg,
	}
	if len(steps) > 0 {
		patch.Steps = steps
	}
	if err := w.jobs.UpdateJobsByUpload(ctx, uploadID, patch); err != nil {
		log.Printf("[%s] failed to mark job as failed: %v", jobID, err)
	}
	w.hub.BroadcastStatus(jobID, uploadID, model.JobStatusFailed, "", errMsg)
}
