package model

import "time"

// StepOutcome records the result of one pipeline stage. Output holds the
// persisted signed URL on success; Error holds the failure detail otherwise.
// Degraded marks a stage that "succeeded" only through the documented
// last-resort fallback (unmodified input returned).
type StepOutcome struct {
	Status   StepStatus `json:"status"`
	Output   string     `json:"output,omitempty"`
	Error    string     `json:"error,omitempty"`
	Degraded bool       `json:"degraded,omitempty"`
}

// RenderJob tracks one pipeline execution against an Upload.
// Status transitions are monotonic: queued, processing, then complete or failed.
type RenderJob struct {
	ID        string                       `json:"id"`
	UploadID  string                       `json:"uploadId"`
	Status    JobStatus                    `json:"status"`
	ResultURL string                       `json:"resultUrl,omitempty"`
	Error     string                       `json:"error,omitempty"`
	Steps     map[PipelineStep]StepOutcome `json:"steps,omitempty"`
	CreatedAt time.Time                    `json:"createdAt"`
	UpdatedAt time.Time                    `json:"updatedAt"`
}

// RenderJobPayload is the task payload carried through the queue to the
// render worker. Keys are stored alongside the upload id so the worker can
// re-sign source URLs without a second lookup when the originals expired.
type RenderJobPayload struct {
	UploadID string          `json:"uploadId"`
	Scene    Scene           `json:"scene"`
	PetKey   string          `json:"petKey"`
	BgKey    string          `json:"bgKey,omitempty"`
	Options  GenerateOptions `json:"options"`
}

// GenerateOptions tunes scene generation. Values outside the recommended
// ranges are passed through to the backend, not rejected here.
type GenerateOptions struct {
	// IdentityStrength controls divergence from the source pet image.
	// Recommended range 0.25 - 0.6.
	IdentityStrength float64 `json:"identityStrength,omitempty"`
	AspectRatio      string  `json:"aspectRatio,omitempty"`
	// Upscale is accepted but currently a no-op placeholder.
	Upscale bool `json:"upscale,omitempty"`
}

// JobPatch describes a partial status update applied to job rows.
// Nil fields are left untouched.
type JobPatch struct {
	Status    JobStatus
	ResultURL *string
	Error     *string
	Steps     map[PipelineStep]StepOutcome
}
