package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/services"
)

type ResultHandler struct {
	results services.ResultService
	log     *zap.SugaredLogger
}

func NewResultHandler(results services.ResultService, log *zap.SugaredLogger) *ResultHandler {
	return &ResultHandler{results: results, log: logger.OrNop(log)}
}

// HandleGetResult handles GET /results/:feature?role=candidate|hrd
func (h *ResultHandler) HandleGetResult(c *fiber.Ctx) error {
	role := models.Role(c.Query("role", string(models.RoleCandidate)))
	feature := models.Feature(c.Params("feature"))

	env, err := h.results.Get(c.UserContext(), userID(c), role, feature)
	return respond(c, h.log, env, err)
}
