package models

// Machine-readable error codes returned in an error envelope.
const (
	CodeValidationError       = "validation_error"
	CodeSecurityCheckFailed   = "security_check_failed"
	CodeCVInvalid             = "cv_is_invalid"
	CodeJobPosterInvalid      = "job_poster_is_invalid"
	CodePhotoInvalid          = "photo_is_invalid"
	CodeModelInvocationFailed = "model_invocation_failed"
	CodeSchemaViolation       = "schema_violation"
	CodeExternalTaskFailed    = "external_task_failed"
	CodeBrowserFailed         = "browser_failed"
	CodeAlreadyAnalyzed       = "already_analyzed"
	CodeAnalysisInProgress    = "analysis_in_progress"
	CodeNotFound              = "not_found"
	CodeUnauthorized          = "unauthorized"
	CodeInternalError         = "internal_error"
)

// Envelope is the uniform wrapper returned by every action.
// When Errors is true, Response is always one of the codes above.
type Envelope struct {
	Errors   bool `json:"errors"`
	Response any  `json:"response"`
}

func SuccessEnvelope(response any) Envelope {
	return Envelope{Errors: false, Response: response}
}

func ErrorEnvelope(code string) Envelope {
	return Envelope{Errors: true, Response: code}
}

// PipelineState is the explicit position of a user inside the CV-vs-job flow.
type PipelineState string

const (
	StateAwaitingCV  PipelineState = "awaiting_cv"
	StateAwaitingJob PipelineState = "awaiting_job"
	StateFinished    PipelineState = "finished"
)

// StagedResponse is returned by the single-stage preview actions.
type StagedResponse struct {
	State  PipelineState `json:"state"`
	Result any           `json:"result"`
}
