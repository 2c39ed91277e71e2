package model

// Job status
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether a job in this status may never transition again.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// Scene identifiers
type Scene string

const (
	SceneRoyalThrone  Scene = "royal-throne"
	SceneBubbleBath   Scene = "bubble-bath"
	SceneMirrorSelfie Scene = "mirror-selfie"
	SceneNewspaper    Scene = "newspaper"
	SceneSpaDay       Scene = "spa-day"
	SceneTPTornado    Scene = "tp-tornado"
)

var ValidScenes = []Scene{
	SceneRoyalThrone, SceneBubbleBath, SceneMirrorSelfie,
	SceneNewspaper, SceneSpaDay, SceneTPTornado,
}

// Aspect ratio tokens accepted by the image backends. Unknown values are
// passed through untouched so new backend size tokens need no change here.
type AspectRatio string

const (
	AspectSquare      AspectRatio = "square"
	AspectLandscape43 AspectRatio = "landscape_4_3"
	AspectPortrait43  AspectRatio = "portrait_4_3"
)

// Pipeline step names
type PipelineStep string

const (
	StepMasking     PipelineStep = "masking"
	StepComposition PipelineStep = "composition"
	StepUpscaling   PipelineStep = "upscaling"
)

// Step outcome status
type StepStatus string

const (
	StepStatusSuccess StepStatus = "success"
	StepStatusFailed  StepStatus = "failed"
)
