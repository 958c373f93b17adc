package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Analyze  *AnalyzeHandler
	Photo    *PhotoHandler
	LinkedIn *LinkedInHandler
	Result   *ResultHandler
}

// Register mounts the health check and the user-scoped actions on api.
func Register(api fiber.Router, h Handlers) {
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now(),
		})
	})

	actions := api.Group("/actions", RequireUser)
	actions.Post("/analyze-cv", h.Analyze.HandleAnalyzeCV)
	actions.Post("/analyze-job-poster", h.Analyze.HandleAnalyzeJobPoster)
	actions.Post("/analyze-candidate", h.Analyze.HandleAnalyzeCandidate)
	actions.Post("/transform-photo", h.Photo.HandleTransformPhoto)
	actions.Post("/linkedin-profile", h.LinkedIn.HandleLinkedInProfile)

	api.Get("/results/:feature", RequireUser, h.Result.HandleGetResult)
}
