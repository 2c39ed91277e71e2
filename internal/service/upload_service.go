package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/toilettails/api/internal/client"
	"github.com/toilettails/api/internal/model"
)

const previewSignedURLTTL = time.Hour

// ErrUploadNotFound is returned when no upload row exists for an id.
var ErrUploadNotFound = errors.New("upload not found")

// CommitFile describes one incoming image to be stored.
type CommitFile struct {
	Reader      io.Reader
	Name        string
	ContentType string
	Size        int64
}

// UploadService stores pet/background blobs and the immutable Upload record.
type UploadService struct {
	redis   *redis.Client
	storage client.StorageClient
}

func NewUploadService(redisClient *redis.Client, storage client.StorageClient) *UploadService {
	return &UploadService{
		redis:   redisClient,
		storage: storage,
	}
}

// Commit stores the pet image (and optional background image), persists the
// Upload row, and returns 1-hour preview URLs. The row is immutable after
// this call; the pipeline reads it but never writes it.
func (s *UploadService) Commit(ctx context.Context, pet *CommitFile, bg *CommitFile, sceneID model.Scene) (*model.UploadCommitResponse, error) {
	petKey, petURL, err := s.storeFile(ctx, pet)
	if err != nil {
		return nil, fmt.Errorf("failed to store pet image: %w", err)
	}

	var bgKey, bgURL string
	if bg != nil {
		bgKey, bgURL, err = s.storeFile(ctx, bg)
		if err != nil {
			return nil, fmt.Errorf("failed to store background image: %w", err)
		}
	}

	upload := &model.Upload{
		ID:        uuid.New().String(),
		PetKey:    petKey,
		PetURL:    petURL,
		BgKey:     bgKey,
		BgURL:     bgURL,
		Scene:     sceneID,
		Name:      pet.Name,
		Type:      pet.ContentType,
		Size:      pet.Size,
		CreatedAt: time.Now(),
	}

	data, err := json.Marshal(upload)
	if err != nil {
		return nil, err
	}
	if err := s.redis.Set(ctx, uploadKey(upload.ID), data, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	return &model.UploadCommitResponse{
		UploadID:  upload.ID,
		PetKey:    petKey,
		PetURL:    petURL,
		BgKey:     bgKey,
		BgURL:     bgURL,
		Scene:     sceneID,
		CreatedAt: upload.CreatedAt,
	}, nil
}

// GetUpload returns the immutable upload row by id.
func (s *UploadService) GetUpload(ctx context.Context, id string) (*model.Upload, error) {
	data, err := s.redis.Get(ctx, uploadKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrUploadNotFound
		}
		return nil, err
	}

	var upload model.Upload
	if err := json.Unmarshal(data, &upload); err != nil {
		return nil, err
	}
	return &upload, nil
}

// SignKey re-derives a fresh signed URL for a stored key. Pure function of
// key + TTL, so repeated calls are safe.
func (s *UploadService) SignKey(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s.storage == nil {
		return fmt.Sprintf("https://cdn.toilettails.app/%s", key), nil
	}
	return s.storage.GetSignedURL(ctx, key, expiry)
}

func (s *UploadService) storeFile(ctx context.Context, file *CommitFile) (string, string, error) {
	key := fmt.Sprintf("uploads/%d-%s%s", time.Now().UnixMilli(), uuid.New().String(), safeExtension(file))

	if s.storage == nil {
		// Mock mode for development without storage credentials.
		return key, fmt.Sprintf("https://cdn.toilettails.app/%s", key), nil
	}

	if _, err := s.storage.Upload(ctx, key, file.Reader, file.ContentType); err != nil {
		return "", "", err
	}

	signedURL, err := s.storage.GetSignedURL(ctx, key, previewSignedURLTTL)
	if err != nil {
		return "", "", err
	}
	return key, signedURL, nil
}

func safeExtension(file *CommitFile) string {
	ext := strings.ToLower(path.Ext(file.Name))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
		return ext
	}
	switch file.ContentType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}

func uploadKey(id string) string {
	return fmt.Sprintf("upload:%s", id)
}
