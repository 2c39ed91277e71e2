package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/toilettails/api/internal/model"
	"github.com/toilettails/api/internal/scene"
	"github.com/toilettails/api/internal/service"
	"github.com/toilettails/api/pkg/response"
)

type RenderHandler struct {
	renderService *service.RenderService
	uploadService *service.UploadService
	validator     *validator.Validate
}

func NewRenderHandler(renderService *service.RenderService, uploadService *service.UploadService, v *validator.Validate) *RenderHandler {
	return &RenderHandler{
		renderService: renderService,
		uploadService: uploadService,
		validator:     v,
	}
}

// Start handles POST /api/render/start
// @Summary      Start render job
// @Description  Queue the render pipeline for a committed upload
// @Tags         Render
// @Accept       json
// @Produce      json
// @Param        request body model.RenderStartRequest true "Render start request"
// @Success      202 {object} model.RenderStartResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/render/start [post]
func (h *RenderHandler) Start(c *fiber.Ctx) error {
	var req model.RenderStartRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	upload, err := h.uploadService.GetUpload(c.Context(), req.UploadID)
	if err != nil {
		if errors.Is(err, service.ErrUploadNotFound) {
			return response.NotFound(c, "Upload not found")
		}
		return response.ServiceError(c, err.Error())
	}

	sceneID := model.Scene(req.Scene)
	if sceneID == "" {
		sceneID = upload.Scene
	}
	if _, ok := scene.Template(sceneID); !ok {
		return response.ValidationError(c, "Unknown scene", map[string]interface{}{
			"scene": string(sceneID),
		})
	}

	var opts model.GenerateOptions
	if req.Options != nil {
		opts = *req.Options
	}

	job, err := h.renderService.StartRender(c.Context(), upload, sceneID, opts)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Accepted(c, model.RenderStartResponse{
		JobID:     job.ID,
		UploadID:  job.UploadID,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	})
}

// Status handles GET /api/render/status/:uploadId
// @Summary      Get render status
// @Description  Get the latest render job for an upload
// @Tags         Render
// @Produce      json
// @Param        uploadId path string true "Upload ID"
// @Success      200 {object} model.RenderStatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/render/status/{uploadId} [get]
func (h *RenderHandler) Status(c *fiber.Ctx) error {
	uploadID := c.Params("uploadId")
	if uploadID == "" {
		return response.ValidationError(c, "Upload ID is required", nil)
	}

	if _, err := h.uploadService.GetUpload(c.Context(), uploadID); err != nil {
		if errors.Is(err, service.ErrUploadNotFound) {
			return response.NotFound(c, "Upload not found")
		}
		return response.ServiceError(c, err.Error())
	}

	job, err := h.renderService.LatestJobByUpload(c.Context(), uploadID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "No job yet")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, toStatusResponse(job))
}

// Job handles GET /api/render/job/:jobId
// @Summary      Get render job
// @Description  Get one render job by id
// @Tags         Render
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.RenderStatusResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/render/job/{jobId} [get]
func (h *RenderHandler) Job(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	job, err := h.renderService.GetJob(c.Context(), jobID)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, toStatusResponse(job))
}

func toStatusResponse(job *model.RenderJob) model.RenderStatusResponse {
	return model.RenderStatusResponse{
		JobID:     job.ID,
		UploadID:  job.UploadID,
		Status:    job.Status,
		ResultURL: job.ResultURL,
		Error:     job.Error,
		Steps:     job.Steps,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}
