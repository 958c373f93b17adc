package services

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
)

type fakeImages struct {
	prompts []string
	err     error
}

func (f *fakeImages) GenerateImage(_ context.Context, instruction string) ([]byte, error) {
	f.prompts = append(f.prompts, instruction)
	if f.err != nil {
		return nil, f.err
	}
	return pngBytes(), nil
}

type headshotFixture struct {
	model   *scriptedModel
	repo    *memoryRepo
	images  *fakeImages
	storage *memoryStorage
	tasks   *scriptedTasks
	svc     HeadshotService
}

func newHeadshotFixture(tasks *scriptedTasks, maxRetries int) *headshotFixture {
	f := &headshotFixture{
		model:   newScriptedModel().on(cvPromptMark, validCVJSON),
		repo:    newMemoryRepo(),
		images:  &fakeImages{},
		storage: newMemoryStorage(),
		tasks:   tasks,
	}
	f.svc = NewHeadshotService(HeadshotDependencies{
		Runner:    newTestRunner(f.model),
		Validator: NewDocumentValidator(0),
		Verifier:  &stubVerifier{},
		Guard:     NewUsageGuard(f.repo),
		Images:    f.images,
		Storage:   f.storage,
		Tasks:     tasks,
		Poller:    &Poller{API: tasks, MaxRetries: maxRetries, Sleep: noSleep},
		Notifier:  &recordingNotifier{},
	}, nil)
	return f
}

func headshotRequest() HeadshotRequest {
	return HeadshotRequest{
		UserID:       "user-1",
		Photo:        photoDocument(),
		CV:           cvDocument(),
		Gender:       "woman",
		Ethnicity:    "Southeast Asian",
		CaptchaToken: "token",
	}
}

func TestHeadshotGenerate_Success(t *testing.T) {
	tasks := &scriptedTasks{statuses: []string{TaskPending, TaskCompleted}, output: []byte("swapped")}
	f := newHeadshotFixture(tasks, 5)

	env, err := f.svc.Generate(context.Background(), headshotRequest())
	require.NoError(t, err)

	result, ok := env.Response.(models.HeadshotResult)
	require.True(t, ok)
	assert.Equal(t, "https://r2.test/headshots/user-1/final.png?ttl=3600", result.ImageURL)
	assert.Equal(t, "Backend Engineer / Intern", result.JobTitle)
	assert.Equal(t, "Technology", result.Industry)
	assert.Equal(t, AgeRangeJunior, result.AgeRange)
	assert.Equal(t, 2, result.Attempts)

	photoKey, generatedKey, finalKey := HeadshotKeys("user-1")
	assert.True(t, f.storage.has(finalKey))
	assert.False(t, f.storage.has(photoKey))
	assert.Contains(t, f.storage.removed, photoKey)

	require.Len(t, tasks.submitted, 1)
	assert.Contains(t, tasks.submitted[0].TargetImageURL, generatedKey)
	assert.Contains(t, tasks.submitted[0].SwapImageURL, photoKey)

	require.Len(t, f.images.prompts, 1)
	assert.Contains(t, f.images.prompts[0], "Southeast Asian woman working as a Backend Engineer / Intern in the Technology industry")
	assert.Equal(t, 1, f.repo.count())
}

func TestHeadshotGenerate_TaskNeverCompletes(t *testing.T) {
	tasks := &scriptedTasks{}
	f := newHeadshotFixture(tasks, 3)

	_, err := f.svc.Generate(context.Background(), headshotRequest())

	require.Error(t, err)
	assert.Equal(t, models.CodeExternalTaskFailed, pipeline.ErrorCode(err))
	assert.Equal(t, 4, tasks.checks)

	photoKey, generatedKey, _ := HeadshotKeys("user-1")
	assert.False(t, f.storage.has(photoKey))
	assert.False(t, f.storage.has(generatedKey))
	assert.Zero(t, f.repo.count())
}

func TestHeadshotGenerate_ImageModelFailure(t *testing.T) {
	f := newHeadshotFixture(&scriptedTasks{}, 1)
	f.images.err = errors.New("quota exhausted")

	_, err := f.svc.Generate(context.Background(), headshotRequest())

	assert.Equal(t, models.CodeModelInvocationFailed, pipeline.ErrorCode(err))
	assert.Empty(t, f.storage.objects)
}

func TestHeadshotGenerate_AlreadyAnalyzed(t *testing.T) {
	f := newHeadshotFixture(&scriptedTasks{}, 1)
	require.NoError(t, f.repo.Save(context.Background(), "user-1", models.RoleCandidate, models.FeatureHeadshot, models.SuccessEnvelope("old")))

	_, err := f.svc.Generate(context.Background(), headshotRequest())

	assert.Equal(t, models.CodeAlreadyAnalyzed, pipeline.ErrorCode(err))
	assert.Zero(t, f.model.total())
	assert.Empty(t, f.images.prompts)
}

func TestHeadshotGenerate_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*HeadshotRequest)
	}{
		{name: "missing gender", mutate: func(r *HeadshotRequest) { r.Gender = " " }},
		{name: "long ethnicity", mutate: func(r *HeadshotRequest) { r.Ethnicity = "abcdefghijklmnopqrstuvwxyzabcdefghijklmno" }},
		{name: "pdf as photo", mutate: func(r *HeadshotRequest) { r.Photo = cvDocument() }},
		{name: "photo as cv", mutate: func(r *HeadshotRequest) { r.CV = photoDocument() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newHeadshotFixture(&scriptedTasks{}, 1)
			req := headshotRequest()
			tt.mutate(&req)

			_, err := f.svc.Generate(context.Background(), req)

			assert.Equal(t, models.CodeValidationError, pipeline.ErrorCode(err))
			assert.Zero(t, f.model.total())
		})
	}
}

func TestHeadshotRefresh(t *testing.T) {
	f := newHeadshotFixture(&scriptedTasks{}, 1)
	stored := models.SuccessEnvelope(map[string]any{
		"image_url":  "https://expired.test/final.png",
		"object_key": "headshots/user-1/final.png",
		"job_title":  "Backend Engineer",
	})

	env, err := f.svc.Refresh(context.Background(), &stored)
	require.NoError(t, err)

	result, ok := env.Response.(models.HeadshotResult)
	require.True(t, ok)
	assert.Equal(t, "https://r2.test/headshots/user-1/final.png?ttl=3600", result.ImageURL)
	assert.Equal(t, "Backend Engineer", result.JobTitle)

	failed := models.ErrorEnvelope(models.CodeExternalTaskFailed)
	same, err := f.svc.Refresh(context.Background(), &failed)
	require.NoError(t, err)
	assert.Equal(t, &failed, same)
}

func TestHeadshotKeys(t *testing.T) {
	photo, generated, final := HeadshotKeys("u")
	assert.Equal(t, "headshots/u/photo", photo)
	assert.Equal(t, "headshots/u/generated.png", generated)
	assert.Equal(t, "headshots/u/final.png", final)
}
