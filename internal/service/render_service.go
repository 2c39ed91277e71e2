package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/toilettails/api/internal/model"
)

const (
	TaskTypeRender = "render:process"

	jobRetention = 24 * time.Hour
)

// ErrJobNotFound is returned when no job row exists for a lookup.
var ErrJobNotFound = errors.New("job not found")

// RenderService is the Job Store adapter: it owns RenderJob rows in Redis
// and enqueues pipeline tasks. Duplicate active jobs per upload are allowed;
// updates target every job indexed under the upload, skipping terminal rows
// so status transitions stay monotonic.
type RenderService struct {
	redis       *redis.Client
	asynqClient *asynq.Client
}

func NewRenderService(redisClient *redis.Client, asynqClient *asynq.Client) *RenderService {
	return &RenderService{
		redis:       redisClient,
		asynqClient: asynqClient,
	}
}

// StartRender creates a queued job row for the upload and enqueues the
// pipeline task. The host scheduler (asynq) provides at-least-once delivery
// and whole-run retries; steps do not retry internally.
func (s *RenderService) StartRender(ctx context.Context, upload *model.Upload, sceneID model.Scene, opts model.GenerateOptions) (*model.RenderJob, error) {
	now := time.Now()
	job := &model.RenderJob{
		ID:        uuid.New().String(),
		UploadID:  upload.ID,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.saveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}
	if err := s.redis.RPush(ctx, uploadJobsKey(upload.ID), job.ID).Err(); err != nil {
		return nil, fmt.Errorf("failed to index job: %w", err)
	}
	s.redis.Expire(ctx, uploadJobsKey(upload.ID), jobRetention)

	payload := &model.RenderJobPayload{
		UploadID: upload.ID,
		Scene:    sceneID,
		PetKey:   upload.PetKey,
		BgKey:    upload.BgKey,
		Options:  opts,
	}

	task, err := newRenderTask(job.ID, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("render"),
		asynq.MaxRetry(3),
		asynq.Retention(jobRetention),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return job, nil
}

// GetJob returns a job row by id.
func (s *RenderService) GetJob(ctx context.Context, jobID string) (*model.RenderJob, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, err
	}

	var job model.RenderJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// LatestJobByUpload returns the most recently created job for an upload.
func (s *RenderService) LatestJobByUpload(ctx context.Context, uploadID string) (*model.RenderJob, error) {
	ids, err := s.redis.LRange(ctx, uploadJobsKey(uploadID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, err
	}

	for i := len(ids) - 1; i >= 0; i-- {
		job, err := s.GetJob(ctx, ids[i])
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, ErrJobNotFound) {
			return nil, err
		}
	}
	return nil, ErrJobNotFound
}

// UpdateJobsByUpload applies a patch to every job indexed under the upload.
// Terminal rows are skipped: complete and failed are final states.
func (s *RenderService) UpdateJobsByUpload(ctx context.Context, uploadID string, patch model.JobPatch) error {
	ids, err := s.redis.LRange(ctx, uploadJobsKey(uploadID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return err
	}

	for _, id := range ids {
		job, err := s.GetJob(ctx, id)
		if err != nil {
			if errors.Is(err, ErrJobNotFound) {
				continue
			}
			return err
		}
		if job.Status.IsTerminal() {
			continue
		}

		if patch.Status != "" {
			job.Status = patch.Status
		}
		if patch.ResultURL != nil {
			job.ResultURL = *patch.ResultURL
		}
		if patch.Error != nil {
			job.Error = *patch.Error
		}
		if patch.Steps != nil {
			job.Steps = patch.Steps
		}
		job.UpdatedAt = time.Now()

		if err := s.saveJob(ctx, job); err != nil {
			return err
		}
	}
	return nil
}

func (s *RenderService) saveJob(ctx context.Context, job *model.RenderJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobRetention).Err()
}

func jobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

func uploadJobsKey(uploadID string) string {
	return fmt.Sprintf("upload_jobs:%s", uploadID)
}

func newRenderTask(jobID string, payload *model.RenderJobPayload) (*asynq.Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	taskPayload := map[string]interface{}{
		"jobId":   jobID,
		"payload": json.RawMessage(payloadBytes),
	}
	data, err := json.Marshal(taskPayload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeRender, data), nil
}
