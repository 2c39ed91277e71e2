package model

import "time"

// RenderStartRequest triggers a render for a committed upload.
type RenderStartRequest struct {
	UploadID string `json:"uploadId" validate:"required"`
	// Scene overrides the scene stored on the upload; optional.
	Scene   string           `json:"scene,omitempty"`
	Options *GenerateOptions `json:"options,omitempty"`
}

// RenderStartResponse acknowledges a queued render job.
type RenderStartResponse struct {
	JobID     string    `json:"jobId"`
	UploadID  string    `json:"uploadId"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// RenderStatusResponse is the polling contract. The only state machine a
// consumer needs is Status moving queued, processing, then complete or failed.
type RenderStatusResponse struct {
	JobID     string                       `json:"jobId"`
	UploadID  string                       `json:"uploadId"`
	Status    JobStatus                    `json:"status"`
	ResultURL string                       `json:"resultUrl,omitempty"`
	Error     string                       `json:"error,omitempty"`
	Steps     map[PipelineStep]StepOutcome `json:"steps,omitempty"`
	CreatedAt time.Time                    `json:"createdAt"`
	UpdatedAt time.Time                    `json:"updatedAt"`
}

// SceneInfo describes one catalog entry for the scene picker.
type SceneInfo struct {
	ID     Scene  `json:"id"`
	Prompt string `json:"prompt"`
}
