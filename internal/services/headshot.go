package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
	"alfredoptarigan/cv-copilot/internal/prompt"
	"alfredoptarigan/cv-copilot/internal/schemas"
)

// ImageGenerator renders an image from a text instruction.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) ([]byte, error)
}

type HeadshotRequest struct {
	UserID       string
	Photo        *models.Document
	CV           *models.Document
	Gender       string
	Ethnicity    string
	CaptchaToken string
}

type HeadshotService interface {
	Generate(ctx context.Context, req HeadshotRequest) (*models.Envelope, error)
	// Refresh re-signs the stored headshot URL of a persisted envelope.
	Refresh(ctx context.Context, env *models.Envelope) (*models.Envelope, error)
}

// HeadshotKeys are the deterministic storage keys of one user's artifacts.
func HeadshotKeys(userID string) (photo, generated, final string) {
	base := "headshots/" + userID
	return base + "/photo", base + "/generated.png", base + "/final.png"
}

type HeadshotDependencies struct {
	Runner     *pipeline.Runner
	Validator  *DocumentValidator
	Verifier   BotVerifier
	Guard      *UsageGuard
	Images     ImageGenerator
	Storage    ObjectStorage
	Tasks      TaskAPI
	Poller     *Poller
	Notifier   ProgressNotifier
	Industries *IndustryTable
	SignedTTL  time.Duration
}

type headshotService struct {
	HeadshotDependencies
	cvSchema schemas.Descriptor
	log      *zap.SugaredLogger
}

func NewHeadshotService(deps HeadshotDependencies, log *zap.SugaredLogger) HeadshotService {
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	if deps.Industries == nil {
		deps.Industries = DefaultIndustryTable()
	}
	if deps.SignedTTL <= 0 {
		deps.SignedTTL = time.Hour
	}
	return &headshotService{
		HeadshotDependencies: deps,
		cvSchema:             schemas.Default().MustGet(schemas.CVExtraction),
		log:                  logger.OrNop(log),
	}
}

func (h *headshotService) Generate(ctx context.Context, req HeadshotRequest) (*models.Envelope, error) {
	if err := h.validate(req); err != nil {
		return nil, err
	}
	if err := h.Verifier.Verify(ctx, req.CaptchaToken); err != nil {
		return nil, err
	}
	if err := h.Guard.EnsureFirst(ctx, req.UserID, models.RoleCandidate, models.FeatureHeadshot); err != nil {
		return nil, err
	}
	release, err := h.Guard.Claim(req.UserID, models.RoleCandidate, models.FeatureHeadshot)
	if err != nil {
		return nil, err
	}
	defer release()

	h.log.Infow("🚀 Starting headshot generation", "user_id", req.UserID)

	cv, err := h.extractCV(ctx, req)
	if err != nil {
		return nil, err
	}

	profile := InferHeadshotProfile(cv, h.Industries)
	h.log.Infow("🧭 Role inferred", "user_id", req.UserID, "job_title", profile.JobTitle, "industry", profile.Industry, "years", profile.Years)

	instruction, err := prompt.Render(prompt.Headshot, prompt.Vars{
		"age_range": profile.AgeRange,
		"ethnicity": strings.TrimSpace(req.Ethnicity),
		"gender":    strings.TrimSpace(req.Gender),
		"job_title": profile.JobTitle,
		"industry":  profile.Industry,
		"setting":   profile.Setting,
	})
	if err != nil {
		return nil, errors.Wrap(err, "render headshot prompt")
	}

	h.Notifier.Notify(req.UserID, "Generating your headshot...")
	image, err := h.Images.GenerateImage(ctx, instruction)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "generate headshot"), pipeline.ErrModelInvocation)
	}

	photoKey, generatedKey, finalKey := HeadshotKeys(req.UserID)
	defer h.removeQuietly(photoKey)

	if err := h.Storage.Upload(ctx, generatedKey, image, models.MIMEPNG); err != nil {
		return nil, err
	}
	if err := h.Storage.Upload(ctx, photoKey, req.Photo.Data, req.Photo.MIMEType); err != nil {
		h.removeQuietly(generatedKey)
		return nil, err
	}

	h.Notifier.Notify(req.UserID, "Applying your face to the headshot...")
	attempts, output, err := h.faceSwap(ctx, generatedKey, photoKey)
	if err != nil {
		h.removeQuietly(generatedKey)
		return nil, err
	}

	if err := h.Storage.Upload(ctx, finalKey, output, models.MIMEPNG); err != nil {
		return nil, err
	}
	url, err := h.Storage.SignedURL(ctx, finalKey, h.SignedTTL)
	if err != nil {
		return nil, err
	}

	env := models.SuccessEnvelope(models.HeadshotResult{
		ImageURL:  url,
		JobTitle:  profile.JobTitle,
		Industry:  profile.Industry,
		AgeRange:  profile.AgeRange,
		Attempts:  attempts,
		ObjectKey: finalKey,
	})
	if err := h.Guard.Record(ctx, req.UserID, models.RoleCandidate, models.FeatureHeadshot, env); err != nil {
		return nil, err
	}

	h.Notifier.Notify(req.UserID, "Your headshot is ready ✓")
	h.log.Infow("✅ Headshot generated", "user_id", req.UserID, "attempts", attempts)
	return &env, nil
}

func (h *headshotService) validate(req HeadshotRequest) error {
	if err := h.Validator.ValidatePhoto(req.Photo); err != nil {
		return err
	}
	if err := h.Validator.ValidatePDF(req.CV); err != nil {
		return err
	}
	for field, value := range map[string]string{"gender": req.Gender, "ethnicity": req.Ethnicity} {
		value = strings.TrimSpace(value)
		if value == "" || len(value) > 40 {
			return pipeline.Validationf("%s must be between 1 and 40 characters", field)
		}
	}
	return nil
}

func (h *headshotService) extractCV(ctx context.Context, req HeadshotRequest) (*models.CVData, error) {
	stage := &pipeline.Stage{
		ID:          StageCV,
		Prompt:      prompt.CVExtraction,
		Payload:     req.CV,
		Config:      extractionConfig,
		Schema:      &h.cvSchema,
		Sentinels:   []string{prompt.CVInvalidSentinel},
		InvalidCode: models.CodeCVInvalid,
	}
	pc, err := h.Runner.WithObservers(h.Notifier.For(req.UserID)).Run(ctx, []*pipeline.Stage{stage}, pipeline.NewContext())
	if err != nil {
		return nil, err
	}

	res, _ := pc.Result(StageCV)
	raw, err := json.Marshal(res.Parsed)
	if err != nil {
		return nil, errors.Wrap(err, "encode cv")
	}
	var cv models.CVData
	if err := json.Unmarshal(raw, &cv); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decode cv"), pipeline.ErrSchemaViolation)
	}
	return &cv, nil
}

// faceSwap submits the task and waits for it. It returns the number of status
// checks and the swapped image.
func (h *headshotService) faceSwap(ctx context.Context, generatedKey, photoKey string) (int, []byte, error) {
	targetURL, err := h.Storage.SignedURL(ctx, generatedKey, h.SignedTTL)
	if err != nil {
		return 0, nil, err
	}
	swapURL, err := h.Storage.SignedURL(ctx, photoKey, h.SignedTTL)
	if err != nil {
		return 0, nil, err
	}

	taskID, err := h.Tasks.Submit(ctx, FaceSwapInput{TargetImageURL: targetURL, SwapImageURL: swapURL})
	if err != nil {
		return 0, nil, errors.Mark(err, pipeline.ErrExternalTask)
	}
	h.log.Infow("⏳ Face swap submitted", "task_id", taskID)

	result, err := h.Poller.Poll(ctx, taskID)
	if err != nil {
		return result.Attempts, nil, err
	}
	if !result.Success || result.Status == nil || result.Status.Output.ImageURL == "" {
		return result.Attempts, nil, errors.Mark(
			errors.Newf("face swap task %s did not complete after %d checks", taskID, result.Attempts),
			pipeline.ErrExternalTask,
		)
	}

	output, err := h.Tasks.Fetch(ctx, result.Status.Output.ImageURL)
	if err != nil {
		return result.Attempts, nil, errors.Mark(err, pipeline.ErrExternalTask)
	}
	return result.Attempts, output, nil
}

func (h *headshotService) removeQuietly(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.Storage.Remove(ctx, key); err != nil {
		h.log.Warnw("⚠️ Failed to remove intermediate object", "key", key, "error", err)
	}
}

func (h *headshotService) Refresh(ctx context.Context, env *models.Envelope) (*models.Envelope, error) {
	if env == nil || env.Errors {
		return env, nil
	}
	raw, err := json.Marshal(env.Response)
	if err != nil {
		return nil, errors.Wrap(err, "encode stored headshot")
	}
	var result models.HeadshotResult
	if err := json.Unmarshal(raw, &result); err != nil || result.ObjectKey == "" {
		return env, nil
	}

	url, err := h.Storage.SignedURL(ctx, result.ObjectKey, h.SignedTTL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to re-sign headshot")
	}
	result.ImageURL = url
	refreshed := models.SuccessEnvelope(result)
	return &refreshed, nil
}
