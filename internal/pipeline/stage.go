package pipeline

import (
	"context"

	"google.golang.org/genai"

	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/schemas"
)

// GenerationConfig carries the sampling parameters of one model call.
type GenerationConfig struct {
	Temperature     float32
	TopP            float32
	MaxOutputTokens int32
}

// Part is one element of a multi-part model request: text, or an inline binary payload.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// Request is what the invoker hands to the model adapter.
type Request struct {
	Parts            []Part
	Config           GenerationConfig
	ResponseMIMEType string
	ResponseSchema   *genai.Schema
}

type Response struct {
	Text       string
	Candidates int
}

// Generator is the model endpoint adapter.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// FactExtractor derives named facts from a finished stage for later prompt templates.
type FactExtractor func(result *StageResult) map[string]string

// Stage describes one model invocation. Stages are built fresh for each run and
// are not modified afterwards.
type Stage struct {
	ID string
	// Prompt is a template rendered against the context facts.
	Prompt  string
	Payload *models.Document
	Config  GenerationConfig
	// Schema, when set, requests JSON output and makes decoding mandatory.
	Schema *schemas.Descriptor
	// Sentinels are matched against the raw response; a hit flags the document invalid.
	Sentinels   []string
	InvalidCode string
	// DependsOn names upstream stages; nil means every stage recorded so far.
	DependsOn []string
	Facts     FactExtractor
	// Check runs after schema validation and may normalize the parsed value.
	Check func(parsed any) (any, error)
}

// StageResult is the outcome of one invocation.
type StageResult struct {
	StageID           string `json:"stage_id"`
	RawText           string `json:"raw_text"`
	Parsed            any    `json:"parsed,omitempty"`
	IsSentinelInvalid bool   `json:"is_sentinel_invalid"`
	InvalidCode       string `json:"-"`
}

// Value returns the parsed value when present, otherwise the raw text.
func (r *StageResult) Value() any {
	if r.Parsed != nil {
		return r.Parsed
	}
	return r.RawText
}
