package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/services"
)

type LinkedInHandler struct {
	linkedin services.LinkedInService
	log      *zap.SugaredLogger
}

func NewLinkedInHandler(linkedin services.LinkedInService, log *zap.SugaredLogger) *LinkedInHandler {
	return &LinkedInHandler{linkedin: linkedin, log: logger.OrNop(log)}
}

// HandleLinkedInProfile handles POST /actions/linkedin-profile
func (h *LinkedInHandler) HandleLinkedInProfile(c *fiber.Ctx) error {
	env, err := h.linkedin.Analyze(c.UserContext(), services.LinkedInRequest{
		UserID:       userID(c),
		ProfileURL:   c.FormValue("profile_url"),
		CaptchaToken: captchaToken(c),
	})
	return respond(c, h.log, env, err)
}
