package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/services"
)

type AnalyzeHandler struct {
	analyzer    services.AnalyzerService
	maxFileSize int64
	log         *zap.SugaredLogger
}

func NewAnalyzeHandler(analyzer services.AnalyzerService, maxFileSize int64, log *zap.SugaredLogger) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: analyzer, maxFileSize: maxFileSize, log: logger.OrNop(log)}
}

// HandleAnalyzeCV handles POST /actions/analyze-cv
func (h *AnalyzeHandler) HandleAnalyzeCV(c *fiber.Ctx) error {
	cv, err := formDocument(c, "cv", h.maxFileSize)
	if err != nil {
		return respond(c, h.log, nil, err)
	}

	staged, err := h.analyzer.AnalyzeCV(c.UserContext(), userID(c), cv, captchaToken(c))
	return respondStaged(c, h.log, staged, err)
}

// HandleAnalyzeJobPoster handles POST /actions/analyze-job-poster
func (h *AnalyzeHandler) HandleAnalyzeJobPoster(c *fiber.Ctx) error {
	job, err := h.jobPosting(c)
	if err != nil {
		return respond(c, h.log, nil, err)
	}

	staged, err := h.analyzer.AnalyzeJobPoster(c.UserContext(), userID(c), job, captchaToken(c))
	return respondStaged(c, h.log, staged, err)
}

// HandleAnalyzeCandidate handles POST /actions/analyze-candidate
func (h *AnalyzeHandler) HandleAnalyzeCandidate(c *fiber.Ctx) error {
	cv, err := formDocument(c, "cv", h.maxFileSize)
	if err != nil {
		return respond(c, h.log, nil, err)
	}
	job, err := h.jobPosting(c)
	if err != nil {
		return respond(c, h.log, nil, err)
	}

	env, err := h.analyzer.AnalyzeCandidate(c.UserContext(), services.AnalyzeRequest{
		UserID:       userID(c),
		Role:         models.Role(strings.ToLower(strings.TrimSpace(c.FormValue("role")))),
		CV:           cv,
		Job:          job,
		CaptchaToken: captchaToken(c),
	})
	return respond(c, h.log, env, err)
}

// jobPosting accepts either an uploaded poster or pasted text.
func (h *AnalyzeHandler) jobPosting(c *fiber.Ctx) (services.JobPosting, error) {
	doc, err := formDocument(c, "job_poster", h.maxFileSize)
	if err != nil {
		return services.JobPosting{}, err
	}
	return services.JobPosting{Document: doc, Text: c.FormValue("job_text")}, nil
}

func respondStaged(c *fiber.Ctx, log *zap.SugaredLogger, staged *models.StagedResponse, err error) error {
	if err != nil {
		return respond(c, log, nil, err)
	}
	env := models.SuccessEnvelope(staged)
	return respond(c, log, &env, nil)
}
