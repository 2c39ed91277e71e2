package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/toilettails/api/internal/scene"
	"github.com/toilettails/api/pkg/response"
)

type SceneHandler struct{}

func NewSceneHandler() *SceneHandler {
	return &SceneHandler{}
}

// List handles GET /api/scenes
// @Summary      List scenes
// @Description  List the available scene templates
// @Tags         Scenes
// @Produce      json
// @Success      200 {array} model.SceneInfo
// @Router       /api/scenes [get]
func (h *SceneHandler) List(c *fiber.Ctx) error {
	return response.OK(c, scene.Catalog())
}
