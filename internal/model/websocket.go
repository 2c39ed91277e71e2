package model

// WebSocket message types
const (
	WSMessageTypeStatus = "status"
	WSMessageTypeError  = "error"
)

// WSStatusMessage is pushed to subscribers whenever a job transitions.
type WSStatusMessage struct {
	Type      string    `json:"type"`
	JobID     string    `json:"jobId"`
	UploadID  string    `json:"uploadId"`
	Status    JobStatus `json:"status"`
	ResultURL string    `json:"resultUrl,omitempty"`
	Error     string    `json:"error,omitempty"`
}
