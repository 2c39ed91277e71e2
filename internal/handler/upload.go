package handler

import (
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/toilettails/api/internal/model"
	"github.com/toilettails/api/internal/scene"
	"github.com/toilettails/api/internal/service"
	"github.com/toilettails/api/pkg/response"
)

const maxUploadBytes = 10 << 20 // 10MB per file

var allowedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/webp": true,
}

type UploadHandler struct {
	uploadService *service.UploadService
}

func NewUploadHandler(uploadService *service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// Commit handles POST /api/upload
// @Summary      Commit upload
// @Description  Store a pet photo (and optional bathroom background) and return the upload record
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        pet formData file true "Pet photo (png, jpeg or webp, max 10MB)"
// @Param        bg formData file false "Bathroom background photo"
// @Param        scene formData string false "Scene id"
// @Success      201 {object} model.UploadCommitResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/upload [post]
func (h *UploadHandler) Commit(c *fiber.Ctx) error {
	petHeader, err := c.FormFile("pet")
	if err != nil {
		return response.ValidationError(c, "Pet photo is required", nil)
	}
	if details := validateImageFile(petHeader); details != nil {
		return response.ValidationError(c, "Invalid pet photo", details)
	}

	var bgHeader *multipart.FileHeader
	if fh, err := c.FormFile("bg"); err == nil {
		if details := validateImageFile(fh); details != nil {
			return response.ValidationError(c, "Invalid background photo", details)
		}
		bgHeader = fh
	}

	sceneID := model.Scene(c.FormValue("scene"))
	if sceneID != "" {
		if _, ok := scene.Template(sceneID); !ok {
			return response.ValidationError(c, "Unknown scene", map[string]interface{}{
				"scene": string(sceneID),
			})
		}
	}

	petFile, err := petHeader.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to read pet photo")
	}
	defer petFile.Close()
	pet := &service.CommitFile{
		Reader:      petFile,
		Name:        petHeader.Filename,
		ContentType: petHeader.Header.Get("Content-Type"),
		Size:        petHeader.Size,
	}

	var bg *service.CommitFile
	if bgHeader != nil {
		bgFile, err := bgHeader.Open()
		if err != nil {
			return response.ServiceError(c, "Failed to read background photo")
		}
		defer bgFile.Close()
		bg = &service.CommitFile{
			Reader:      bgFile,
			Name:        bgHeader.Filename,
			ContentType: bgHeader.Header.Get("Content-Type"),
			Size:        bgHeader.Size,
		}
	}

	result, err := h.uploadService.Commit(c.Context(), pet, bg, sceneID)
	if err != nil {
		return response.StorageError(c, err.Error())
	}

	return response.Created(c, result)
}

func validateImageFile(fh *multipart.FileHeader) map[string]interface{} {
	if fh.Size > maxUploadBytes {
		return map[string]interface{}{
			"size": "file exceeds 10MB limit",
		}
	}

	contentType := fh.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		return map[string]interface{}{
			"type": "only png, jpeg and webp are accepted",
		}
	}
	return nil
}
