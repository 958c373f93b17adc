package pipeline

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/prompt"
)

// Invoker performs exactly one model call per Invoke. It never retries.
type Invoker struct {
	model Generator
	log   *zap.SugaredLogger
}

func NewInvoker(model Generator, log *zap.SugaredLogger) *Invoker {
	return &Invoker{model: model, log: logger.OrNop(log)}
}

// Invoke renders the stage prompt against pc, sends it with the optional inline
// payload, and interprets the response.
func (i *Invoker) Invoke(ctx context.Context, stage *Stage, pc *Context) (*StageResult, error) {
	vars := pc.Vars()
	if missing := prompt.Missing(stage.Prompt, vars); len(missing) > 0 {
		i.log.Debugw("📝 Stage prompt references unset facts", "stage", stage.ID, "missing", missing)
	}
	rendered, err := prompt.Render(stage.Prompt, vars)
	if err != nil {
		return nil, errors.Wrapf(err, "render prompt for stage %q", stage.ID)
	}
	if strings.TrimSpace(rendered) == "" {
		return nil, errors.Newf("stage %q rendered an empty prompt", stage.ID)
	}

	req := Request{
		Parts:  []Part{{Text: rendered}},
		Config: stage.Config,
	}
	if stage.Payload != nil {
		if err := checkPayload(stage.Payload); err != nil {
			return nil, err
		}
		req.Parts = append(req.Parts, Part{Data: stage.Payload.Data, MIMEType: models.NormalizeMIME(stage.Payload.MIMEType)})
	}
	if stage.Schema != nil {
		req.ResponseMIMEType = "application/json"
		req.ResponseSchema = stage.Schema.Schema
	}

	i.log.Debugw("📝 Stage prompt rendered", "stage", stage.ID, "prompt_length", len(rendered), "inline_payload", stage.Payload != nil)

	resp, err := i.model.Generate(ctx, req)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "stage %q", stage.ID), ErrModelInvocation)
	}
	if resp == nil {
		return nil, errors.Mark(errors.Newf("stage %q: nil response", stage.ID), ErrModelInvocation)
	}

	result := &StageResult{StageID: stage.ID, RawText: resp.Text, InvalidCode: stage.InvalidCode}

	if matchesSentinel(resp.Text, stage.Sentinels) {
		result.IsSentinelInvalid = true
		return result, nil
	}

	if stage.Schema == nil {
		return result, nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(ExtractJSON(resp.Text)), &parsed); err != nil {
		i.log.Warnw("❌ Stage response is not JSON", "stage", stage.ID, "response_length", len(resp.Text))
		return nil, errors.Mark(errors.Wrapf(err, "stage %q: decode response", stage.ID), ErrSchemaViolation)
	}
	if err := stage.Schema.Validate(parsed); err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "stage %q: schema %s", stage.ID, stage.Schema.Name), ErrSchemaViolation)
	}
	if stage.Check != nil {
		parsed, err = stage.Check(parsed)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "stage %q: check", stage.ID), ErrSchemaViolation)
		}
	}

	result.Parsed = parsed
	return result, nil
}

func checkPayload(doc *models.Document) error {
	if !models.IsAllowedMIME(doc.MIMEType) {
		return Validationf("unsupported payload type %q", doc.MIMEType)
	}
	if doc.Size() == 0 || doc.Size() > models.MaxDocumentSize {
		return Validationf("payload size %d outside (0, %d]", doc.Size(), models.MaxDocumentSize)
	}
	return nil
}

func matchesSentinel(text string, sentinels []string) bool {
	trimmed := strings.TrimSpace(text)
	for _, s := range sentinels {
		if s == "" {
			continue
		}
		if trimmed == s || strings.Contains(text, s) {
			return true
		}
	}
	return false
}
