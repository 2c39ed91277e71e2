package model

import "time"

// Upload represents one committed pet photo (plus optional background photo).
// Rows are immutable after commit; the pipeline treats them as read-only input.
type Upload struct {
	ID        string    `json:"id"`
	PetKey    string    `json:"petKey"`
	PetURL    string    `json:"petUrl"`
	BgKey     string    `json:"bgKey,omitempty"`
	BgURL     string    `json:"bgUrl,omitempty"`
	Scene     Scene     `json:"scene,omitempty"`
	Name      string    `json:"name,omitempty"`
	Type      string    `json:"type,omitempty"`
	Size      int64     `json:"size,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// UploadCommitResponse is returned after both blobs are stored and the
// Upload row is persisted. URLs are 1-hour preview links; keys are permanent.
type UploadCommitResponse struct {
	UploadID  string    `json:"uploadId"`
	PetKey    string    `json:"petKey"`
	PetURL    string    `json:"petUrl"`
	BgKey     string    `json:"bgKey,omitempty"`
	BgURL     string    `json:"bgUrl,omitempty"`
	Scene     Scene     `json:"scene,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// SignRequest asks for a fresh signed URL for a stored object key.
type SignRequest struct {
	Key            string `json:"key" validate:"required"`
	ExpiresSeconds int    `json:"expiresSeconds,omitempty" validate:"omitempty,min=1,max=604800"`
}

// SignResponse carries the signed URL.
type SignResponse struct {
	Key       string `json:"key"`
	SignedURL string `json:"signedUrl"`
}
