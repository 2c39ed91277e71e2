package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/toilettails/api/internal/model"
	"github.com/toilettails/api/internal/service"
	"github.com/toilettails/api/pkg/response"
)

const defaultSignExpirySeconds = 3600

type StorageHandler struct {
	uploadService *service.UploadService
	validator     *validator.Validate
}

func NewStorageHandler(uploadService *service.UploadService, v *validator.Validate) *StorageHandler {
	return &StorageHandler{
		uploadService: uploadService,
		validator:     v,
	}
}

// Sign handles POST /api/storage/sign
// @Summary      Sign storage key
// @Description  Issue a time-limited read URL for a stored object
// @Tags         Storage
// @Accept       json
// @Produce      json
// @Param        request body model.SignRequest true "Sign request"
// @Success      200 {object} model.SignResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/storage/sign [post]
func (h *StorageHandler) Sign(c *fiber.Ctx) error {
	var req model.SignRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	expirySeconds := req.ExpiresSeconds
	if expirySeconds == 0 {
		expirySeconds = defaultSignExpirySeconds
	}
	expiry := time.Duration(expirySeconds) * time.Second

	url, err := h.uploadService.SignKey(c.Context(), req.Key, expiry)
	if err != nil {
		return response.StorageError(c, err.Error())
	}

	return response.OK(c, model.SignResponse{
		Key:       req.Key,
		SignedURL: url,
	})
}
