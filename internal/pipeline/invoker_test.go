package pipeline

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/schemas"
)

func jobStage() *Stage {
	d := schemas.Default().MustGet(schemas.JobRequirements)
	return &Stage{
		ID:          "job",
		Prompt:      "extract job {{job_text}}",
		Schema:      &d,
		Sentinels:   []string{"Job Requirements not contains job requirements"},
		InvalidCode: models.CodeJobPosterInvalid,
		Config:      GenerationConfig{Temperature: 0.2, TopP: 0.9, MaxOutputTokens: 2048},
	}
}

func TestInvoke_DecodesFencedJSON(t *testing.T) {
	model := newScriptedModel().on("extract job", "```json\n{\"job_title\": \"Go Engineer\", \"requirements\": [\"Go\", \"SQL\", \"gRPC\"]}\n```")
	inv := NewInvoker(model, nil)
	pc := NewContext()
	pc.SetFact("job_text", "We need a Go engineer")

	res, err := inv.Invoke(context.Background(), jobStage(), pc)
	require.NoError(t, err)

	assert.False(t, res.IsSentinelInvalid)
	parsed, ok := res.Parsed.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Go Engineer", parsed["job_title"])

	require.Len(t, model.requests, 1)
	req := model.requests[0]
	assert.Equal(t, "application/json", req.ResponseMIMEType)
	assert.NotNil(t, req.ResponseSchema)
	assert.Equal(t, int32(2048), req.Config.MaxOutputTokens)
	assert.Contains(t, req.Parts[0].Text, "We need a Go engineer")
}

func TestInvoke_SchemaViolation(t *testing.T) {
	model := newScriptedModel().on("extract job", `{"job_title": "Go Engineer"}`)
	_, err := NewInvoker(model, nil).Invoke(context.Background(), jobStage(), NewContext())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaViolation))
	assert.Equal(t, models.CodeSchemaViolation, ErrorCode(err))
}

func TestInvoke_UndecodableResponse(t *testing.T) {
	model := newScriptedModel().on("extract job", "Sorry, I cannot help with that.")
	_, err := NewInvoker(model, nil).Invoke(context.Background(), jobStage(), NewContext())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchemaViolation))
}

func TestInvoke_SentinelSkipsDecoding(t *testing.T) {
	model := newScriptedModel().on("extract job", "Job Requirements not contains job requirements")
	res, err := NewInvoker(model, nil).Invoke(context.Background(), jobStage(), NewContext())

	require.NoError(t, err)
	assert.True(t, res.IsSentinelInvalid)
	assert.Nil(t, res.Parsed)
	assert.Equal(t, models.CodeJobPosterInvalid, res.InvalidCode)
}

func TestInvoke_SentinelInsideJSON(t *testing.T) {
	model := newScriptedModel().on("extract job", `{"error": "Job Requirements not contains job requirements"}`)
	res, err := NewInvoker(model, nil).Invoke(context.Background(), jobStage(), NewContext())

	require.NoError(t, err)
	assert.True(t, res.IsSentinelInvalid)
}

func TestInvoke_AdapterErrorIsModelInvocationFailure(t *testing.T) {
	model := newScriptedModel().fail("extract job", errors.New("connection reset"))
	_, err := NewInvoker(model, nil).Invoke(context.Background(), jobStage(), NewContext())

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelInvocation))
	assert.Equal(t, models.CodeModelInvocationFailed, ErrorCode(err))
}

func TestInvoke_InlinePayload(t *testing.T) {
	model := newScriptedModel().on("extract job", `{"job_title": "x", "requirements": []}`)
	stage := jobStage()
	stage.Payload = &models.Document{MIMEType: "image/png; charset=binary", Data: []byte("png-bytes")}

	_, err := NewInvoker(model, nil).Invoke(context.Background(), stage, NewContext())
	require.NoError(t, err)

	parts := model.requests[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "image/png", parts[1].MIMEType)
	assert.Equal(t, []byte("png-bytes"), parts[1].Data)
}

func TestInvoke_RejectsInvalidPayloadWithoutCallingModel(t *testing.T) {
	model := newScriptedModel()
	inv := NewInvoker(model, nil)

	stage := jobStage()
	stage.Payload = &models.Document{MIMEType: "text/html", Data: []byte("<html>")}
	_, err := inv.Invoke(context.Background(), stage, NewContext())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrValidation))

	stage.Payload = &models.Document{MIMEType: models.MIMEPDF, Data: make([]byte, models.MaxDocumentSize+1)}
	_, err = inv.Invoke(context.Background(), stage, NewContext())
	assert.True(t, errors.Is(err, ErrValidation))

	assert.Empty(t, model.requests)
}

func TestInvoke_EmptyPrompt(t *testing.T) {
	_, err := NewInvoker(newScriptedModel(), nil).Invoke(context.Background(), &Stage{ID: "x", Prompt: "{{nothing}}"}, NewContext())
	assert.Error(t, err)
}

func TestInvoke_CheckNormalizesParsed(t *testing.T) {
	model := newScriptedModel().on("extract job", `{"job_title": "x", "requirements": ["a"]}`)
	stage := jobStage()
	stage.Check = func(parsed any) (any, error) {
		m := parsed.(map[string]any)
		m["job_title"] = "normalized"
		return m, nil
	}
	res, err := NewInvoker(model, nil).Invoke(context.Background(), stage, NewContext())
	require.NoError(t, err)
	assert.Equal(t, "normalized", res.Parsed.(map[string]any)["job_title"])

	stage.Check = func(any) (any, error) { return nil, errors.New("inconsistent") }
	_, err = NewInvoker(model, nil).Invoke(context.Background(), stage, NewContext())
	assert.True(t, errors.Is(err, ErrSchemaViolation))
}

func TestInvoke_FreeTextStage(t *testing.T) {
	model := newScriptedModel().on("list skills", "Go\nSQL")
	res, err := NewInvoker(model, nil).Invoke(context.Background(), &Stage{ID: "skills", Prompt: "list skills"}, NewContext())
	require.NoError(t, err)
	assert.Equal(t, "Go\nSQL", res.RawText)
	assert.Nil(t, res.Parsed)
	assert.Empty(t, model.requests[0].ResponseMIMEType)
}

func TestInvoke_LogsUnsetFacts(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	model := newScriptedModel().on("extract job", `{"job_title": "Go Engineer", "requirements": ["Go", "SQL", "gRPC"]}`)

	_, err := NewInvoker(model, zap.New(core).Sugar()).Invoke(context.Background(), jobStage(), NewContext())
	require.NoError(t, err)

	entries := logs.FilterMessage("📝 Stage prompt references unset facts").All()
	require.Len(t, entries, 1)
	assert.Equal(t, []any{"job_text"}, entries[0].ContextMap()["missing"])
}
