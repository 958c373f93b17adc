package handlers

import (
	"io"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
)

const (
	UserIDHeader    = "X-User-ID"
	userIDLocal     = "user_id"
	captchaField    = "g-recaptcha-response"
	maxUserIDLength = 128
)

// RequireUser rejects requests without a caller identity. Authentication happens
// upstream; the gateway forwards the user id in a header.
func RequireUser(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Get(UserIDHeader))
	if id == "" || len(id) > maxUserIDLength {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorEnvelope(models.CodeUnauthorized))
	}
	// The header value aliases fasthttp's request buffer; the id outlives the
	// request in progress messages and background work.
	c.Locals(userIDLocal, utils.CopyString(id))
	return c.Next()
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDLocal).(string)
	return id
}

func captchaToken(c *fiber.Ctx) string {
	return c.FormValue(captchaField)
}

// formDocument reads one uploaded file. A missing field yields nil so the
// services report it with their own validation message.
func formDocument(c *fiber.Ctx, field string, maxSize int64) (*models.Document, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	if maxSize > 0 && fh.Size > maxSize {
		return nil, pipeline.Validationf("%s is %d bytes, limit is %d", field, fh.Size, maxSize)
	}
	return readFile(fh)
}

func readFile(fh *multipart.FileHeader) (*models.Document, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, pipeline.Validationf("cannot open %s", fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, pipeline.Validationf("cannot read %s", fh.Filename)
	}
	return &models.Document{
		Filename: fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

// statusFor maps an envelope error code to the HTTP status of the response.
func statusFor(code string) int {
	switch code {
	case models.CodeValidationError:
		return fiber.StatusBadRequest
	case models.CodeCVInvalid, models.CodeJobPosterInvalid, models.CodePhotoInvalid:
		return fiber.StatusUnprocessableEntity
	case models.CodeUnauthorized:
		return fiber.StatusUnauthorized
	case models.CodeSecurityCheckFailed:
		return fiber.StatusForbidden
	case models.CodeNotFound:
		return fiber.StatusNotFound
	case models.CodeAlreadyAnalyzed, models.CodeAnalysisInProgress:
		return fiber.StatusConflict
	case models.CodeModelInvocationFailed, models.CodeSchemaViolation, models.CodeExternalTaskFailed, models.CodeBrowserFailed:
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respond writes env, or the error envelope for err. Internal details are only logged.
func respond(c *fiber.Ctx, log *zap.SugaredLogger, env *models.Envelope, err error) error {
	if err != nil {
		code := pipeline.ErrorCode(err)
		status := statusFor(code)
		if status >= fiber.StatusInternalServerError {
			log.Errorw("❌ Action failed", "path", c.Path(), "user_id", userID(c), "code", code, "error", err)
		} else {
			log.Infow("⚠️ Action rejected", "path", c.Path(), "user_id", userID(c), "code", code, "error", err)
		}
		return c.Status(status).JSON(models.ErrorEnvelope(code))
	}
	return c.JSON(env)
}
