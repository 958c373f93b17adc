package pipeline

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"alfredoptarigan/cv-copilot/internal/models"
)

// Failure classes. Errors are tagged with errors.Mark so the class survives wrapping.
var (
	ErrValidation       = errors.New("validation error")
	ErrSecurityCheck    = errors.New("security check failed")
	ErrModelInvocation  = errors.New("model invocation failed")
	ErrSchemaViolation  = errors.New("schema violation")
	ErrExternalTask     = errors.New("external task failed")
	ErrScrapeSection    = errors.New("scrape section failed")
	ErrBrowser          = errors.New("browser failed")
	ErrAlreadyAnalyzed  = errors.New("already analyzed")
	ErrAnalysisInFlight = errors.New("analysis in progress")
	ErrNotFound         = errors.New("not found")
)

// InvalidDocumentError is returned when a stage's response matched its sentinel,
// i.e. the model decided the upload is not the expected kind of document.
type InvalidDocumentError struct {
	Stage string
	Code  string
}

func (e *InvalidDocumentError) Error() string {
	return fmt.Sprintf("stage %q: invalid document (%s)", e.Stage, e.Code)
}

// Validationf builds a validation error with a formatted message.
func Validationf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrValidation)
}

// ErrorCode maps an error to the machine-readable code placed in an error envelope.
func ErrorCode(err error) string {
	var invalid *InvalidDocumentError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &invalid):
		return invalid.Code
	case errors.Is(err, ErrValidation):
		return models.CodeValidationError
	case errors.Is(err, ErrSecurityCheck):
		return models.CodeSecurityCheckFailed
	case errors.Is(err, ErrSchemaViolation):
		return models.CodeSchemaViolation
	case errors.Is(err, ErrModelInvocation):
		return models.CodeModelInvocationFailed
	case errors.Is(err, ErrExternalTask):
		return models.CodeExternalTaskFailed
	case errors.Is(err, ErrBrowser):
		return models.CodeBrowserFailed
	case errors.Is(err, ErrAlreadyAnalyzed):
		return models.CodeAlreadyAnalyzed
	case errors.Is(err, ErrAnalysisInFlight):
		return models.CodeAnalysisInProgress
	case errors.Is(err, ErrNotFound):
		return models.CodeNotFound
	default:
		return models.CodeInternalError
	}
}

// ErrorEnvelope converts err into the uniform error envelope.
func ErrorEnvelope(err error) models.Envelope {
	return models.ErrorEnvelope(ErrorCode(err))
}
