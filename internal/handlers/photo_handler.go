package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/services"
)

type PhotoHandler struct {
	headshots   services.HeadshotService
	maxFileSize int64
	log         *zap.SugaredLogger
}

func NewPhotoHandler(headshots services.HeadshotService, maxFileSize int64, log *zap.SugaredLogger) *PhotoHandler {
	return &PhotoHandler{headshots: headshots, maxFileSize: maxFileSize, log: logger.OrNop(log)}
}

// HandleTransformPhoto handles POST /actions/transform-photo
func (h *PhotoHandler) HandleTransformPhoto(c *fiber.Ctx) error {
	photo, err := formDocument(c, "photo", h.maxFileSize)
	if err != nil {
		return respond(c, h.log, nil, err)
	}
	cv, err := formDocument(c, "cv", h.maxFileSize)
	if err != nil {
		return respond(c, h.log, nil, err)
	}

	env, err := h.headshots.Generate(c.UserContext(), services.HeadshotRequest{
		UserID:       userID(c),
		Photo:        photo,
		CV:           cv,
		Gender:       c.FormValue("gender"),
		Ethnicity:    c.FormValue("ethnicity"),
		CaptchaToken: captchaToken(c),
	})
	return respond(c, h.log, env, err)
}
