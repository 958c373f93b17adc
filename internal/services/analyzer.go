package services

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
	"alfredoptarigan/cv-copilot/internal/prompt"
	"alfredoptarigan/cv-copilot/internal/schemas"
)

// Stage ids of the CV-vs-job pipeline. They are also the keys of the response.
const (
	StageCV        = "cv"
	StageJob       = "job"
	StageCandidate = "candidate"
	StageRevision  = "revision"
	StageInterview = "interview"
	StageHRD       = "hrd"
)

// MinJobTextLength is the shortest pasted job posting accepted in text mode.
const MinJobTextLength = 100

var (
	extractionConfig = pipeline.GenerationConfig{Temperature: 0.1, TopP: 0.95, MaxOutputTokens: 4096}
	analysisConfig   = pipeline.GenerationConfig{Temperature: 0.4, TopP: 0.95, MaxOutputTokens: 8192}
	creativeConfig   = pipeline.GenerationConfig{Temperature: 0.7, TopP: 0.95, MaxOutputTokens: 8192}
)

// JobPosting is either an uploaded document or pasted text, never both.
type JobPosting struct {
	Document *models.Document
	Text     string
}

type AnalyzeRequest struct {
	UserID       string
	Role         models.Role
	CV           *models.Document
	Job          JobPosting
	CaptchaToken string
}

type AnalyzerService interface {
	// AnalyzeCV extracts the CV alone and moves the flow to awaiting_job.
	AnalyzeCV(ctx context.Context, userID string, cv *models.Document, captchaToken string) (*models.StagedResponse, error)
	// AnalyzeJobPoster extracts the job requirements alone.
	AnalyzeJobPoster(ctx context.Context, userID string, job JobPosting, captchaToken string) (*models.StagedResponse, error)
	// AnalyzeCandidate runs the full track for req.Role and persists the envelope.
	// A stored envelope is returned as-is without running anything.
	AnalyzeCandidate(ctx context.Context, req AnalyzeRequest) (*models.Envelope, error)
}

type analyzerService struct {
	runner    *pipeline.Runner
	registry  *schemas.Registry
	validator *DocumentValidator
	verifier  BotVerifier
	knowledge KnowledgeBase
	guard     *UsageGuard
	notifier  ProgressNotifier
	log       *zap.SugaredLogger
}

func NewAnalyzerService(
	runner *pipeline.Runner,
	validator *DocumentValidator,
	verifier BotVerifier,
	knowledge KnowledgeBase,
	guard *UsageGuard,
	notifier ProgressNotifier,
	log *zap.SugaredLogger,
) AnalyzerService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &analyzerService{
		runner:    runner,
		registry:  schemas.Default(),
		validator: validator,
		verifier:  verifier,
		knowledge: knowledge,
		guard:     guard,
		notifier:  notifier,
		log:       logger.OrNop(log),
	}
}

func (a *analyzerService) AnalyzeCV(ctx context.Context, userID string, cv *models.Document, captchaToken string) (*models.StagedResponse, error) {
	if err := a.validator.ValidatePDF(cv); err != nil {
		return nil, err
	}
	if err := a.verifier.Verify(ctx, captchaToken); err != nil {
		return nil, err
	}

	pc, err := a.runner.WithObservers(a.notifier.For(userID)).Run(ctx, []*pipeline.Stage{a.cvStage(cv)}, pipeline.NewContext())
	if err != nil {
		return nil, err
	}
	res, _ := pc.Result(StageCV)
	return &models.StagedResponse{State: models.StateAwaitingJob, Result: res.Value()}, nil
}

func (a *analyzerService) AnalyzeJobPoster(ctx context.Context, userID string, job JobPosting, captchaToken string) (*models.StagedResponse, error) {
	job, err := a.prepareJob(job)
	if err != nil {
		return nil, err
	}
	if err := a.verifier.Verify(ctx, captchaToken); err != nil {
		return nil, err
	}

	pc := pipeline.NewContext()
	pc.State = models.StateAwaitingJob
	pc.SetFact("job_text", job.Text)
	pc, err = a.runner.WithObservers(a.notifier.For(userID)).Run(ctx, []*pipeline.Stage{a.jobStage(job, nil)}, pc)
	if err != nil {
		return nil, err
	}
	res, _ := pc.Result(StageJob)
	return &models.StagedResponse{State: models.StateFinished, Result: res.Value()}, nil
}

func (a *analyzerService) AnalyzeCandidate(ctx context.Context, req AnalyzeRequest) (*models.Envelope, error) {
	if !req.Role.Valid() {
		return nil, pipeline.Validationf("unknown role %q", req.Role)
	}
	if err := a.validator.ValidatePDF(req.CV); err != nil {
		return nil, err
	}
	job, err := a.prepareJob(req.Job)
	if err != nil {
		return nil, err
	}
	if err := a.verifier.Verify(ctx, req.CaptchaToken); err != nil {
		return nil, err
	}

	prev, err := a.guard.Previous(ctx, req.UserID, req.Role, models.FeatureCVAnalysis)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		a.log.Infow("📦 Returning stored analysis", "user_id", req.UserID, "role", req.Role)
		return prev, nil
	}

	release, err := a.guard.Claim(req.UserID, req.Role, models.FeatureCVAnalysis)
	if err != nil {
		return nil, err
	}
	defer release()

	a.log.Infow("🚀 Starting CV analysis", "user_id", req.UserID, "role", req.Role)
	runner := a.runner.WithObservers(a.notifier.For(req.UserID))

	pc := pipeline.NewContext()
	pc.SetFact("job_text", job.Text)
	pc, err = runner.Run(ctx, []*pipeline.Stage{a.cvStage(req.CV)}, pc)
	if err != nil {
		return nil, err
	}
	pc.State = models.StateAwaitingJob

	pc, err = runner.Run(ctx, []*pipeline.Stage{a.jobStage(job, []string{StageCV})}, pc)
	if err != nil {
		return nil, err
	}

	pc.SetFact("guidance", a.guidance(ctx, pc.Fact("job_requirements"), req.Role))

	pc, err = runner.Run(ctx, a.crossStages(req.Role), pc)
	if err != nil {
		return nil, err
	}
	pc.State = models.StateFinished

	env := pc.Envelope()
	if err := a.guard.Record(ctx, req.UserID, req.Role, models.FeatureCVAnalysis, env); err != nil {
		return nil, err
	}

	a.log.Infow("✅ CV analysis completed", "user_id", req.UserID, "role", req.Role, "stages", pc.StageIDs())
	return &env, nil
}

// prepareJob enforces the job posting input rules. DOCX uploads are read as text.
func (a *analyzerService) prepareJob(job JobPosting) (JobPosting, error) {
	hasDoc := job.Document != nil && job.Document.Size() > 0
	hasText := strings.TrimSpace(job.Text) != ""

	switch {
	case hasDoc && hasText:
		return job, pipeline.Validationf("provide either a job posting document or text, not both")
	case !hasDoc && !hasText:
		return job, pipeline.Validationf("job posting is required")
	}

	if hasDoc && models.NormalizeMIME(job.Document.MIMEType) == models.MIMEDocx {
		if job.Document.Size() > models.MaxDocumentSize {
			return job, pipeline.Validationf("job posting document exceeds %d bytes", models.MaxDocumentSize)
		}
		text, err := ExtractText(models.MIMEDocx, job.Document.Data)
		if err != nil {
			return job, pipeline.Validationf("job posting document is unreadable")
		}
		job = JobPosting{Text: text}
		hasText = true
	}

	if hasText {
		if len([]rune(strings.TrimSpace(job.Text))) < MinJobTextLength {
			return job, pipeline.Validationf("job posting text must be at least %d characters", MinJobTextLength)
		}
		return job, nil
	}
	return job, a.validator.Validate(job.Document)
}

func (a *analyzerService) guidance(ctx context.Context, jobRequirements string, role models.Role) string {
	if a.knowledge == nil {
		return ""
	}
	docType := DocTypeCandidateGuidelines
	if role == models.RoleHRD {
		docType = DocTypeHRRubric
	}

	text, err := a.knowledge.Guidance(ctx, jobRequirements, docType)
	if err != nil {
		a.log.Warnw("⚠️ Failed to retrieve guidance, continuing without it", "doc_type", docType, "error", err)
		return ""
	}
	return text
}

func (a *analyzerService) schema(name string) *schemas.Descriptor {
	d := a.registry.MustGet(name)
	return &d
}

func (a *analyzerService) cvStage(cv *models.Document) *pipeline.Stage {
	return &pipeline.Stage{
		ID:          StageCV,
		Prompt:      prompt.CVExtraction,
		Payload:     cv,
		Config:      extractionConfig,
		Schema:      a.schema(schemas.CVExtraction),
		Sentinels:   []string{prompt.CVInvalidSentinel},
		InvalidCode: models.CodeCVInvalid,
		Facts: func(r *pipeline.StageResult) map[string]string {
			m, _ := r.Parsed.(map[string]any)
			return map[string]string{
				"cv":              pipeline.MarshalFact(m),
				"skills":          pipeline.MarshalFact(m["skills"]),
				"work_experience": pipeline.MarshalFact(m["work_experience"]),
			}
		},
	}
}

func (a *analyzerService) jobStage(job JobPosting, dependsOn []string) *pipeline.Stage {
	stage := &pipeline.Stage{
		ID:          StageJob,
		Config:      extractionConfig,
		Schema:      a.schema(schemas.JobRequirements),
		Sentinels:   []string{prompt.JobInvalidSentinel},
		InvalidCode: models.CodeJobPosterInvalid,
		DependsOn:   dependsOn,
		Facts: func(r *pipeline.StageResult) map[string]string {
			m, _ := r.Parsed.(map[string]any)
			title, _ := m["job_title"].(string)
			return map[string]string{
				"job_requirements": pipeline.MarshalFact(m),
				"job_title":        title,
			}
		},
	}
	if job.Document != nil {
		stage.Prompt = prompt.JobRequirementsFromDocument
		stage.Payload = job.Document
	} else {
		stage.Prompt = prompt.JobRequirementsFromText
	}
	return stage
}

func (a *analyzerService) crossStages(role models.Role) []*pipeline.Stage {
	if role == models.RoleHRD {
		return []*pipeline.Stage{{
			ID:     StageHRD,
			Prompt: prompt.HRAnalysis,
			Config: analysisConfig,
			Schema: a.schema(schemas.HRAnalysis),
			Check:  a.checkScoreConsistency,
		}}
	}

	return []*pipeline.Stage{
		{
			ID:     StageCandidate,
			Prompt: prompt.CandidateAnalysis,
			Config: analysisConfig,
			Schema: a.schema(schemas.CandidateAnalysis),
			Facts: func(r *pipeline.StageResult) map[string]string {
				m, _ := r.Parsed.(map[string]any)
				return map[string]string{"weaknesses": pipeline.MarshalFact(m["weaknesses"])}
			},
		},
		{
			ID:     StageRevision,
			Prompt: prompt.CVRevision,
			Config: analysisConfig,
			Schema: a.schema(schemas.RevisedCV),
		},
		{
			ID:     StageInterview,
			Prompt: prompt.InterviewQuestions,
			Config: creativeConfig,
			Schema: a.schema(schemas.InterviewQuestions),
		},
	}
}

// checkScoreConsistency recomputes overall_match_percentage from the score
// breakdown. A model total that disagrees is replaced by the computed one.
func (a *analyzerService) checkScoreConsistency(parsed any) (any, error) {
	report, ok := parsed.(map[string]any)
	if !ok {
		return nil, errors.New("hr report is not an object")
	}
	breakdown, _ := report["score_breakdown"].([]any)
	if len(breakdown) == 0 {
		return report, nil
	}

	var total float64
	for i, item := range breakdown {
		entry, _ := item.(map[string]any)
		score, err := numericField(entry, "score")
		if err != nil {
			return nil, errors.Wrapf(err, "score_breakdown[%d]", i)
		}
		total += score
	}

	stated, err := numericField(report, "overall_match_percentage")
	if err != nil {
		return nil, err
	}
	if math.Abs(stated-total) > 0.5 {
		a.log.Warnw("⚠️ HR total score does not match breakdown, using computed total", "stated", stated, "computed", total)
		report["overall_match_percentage"] = strconv.FormatFloat(total, 'f', -1, 64)
	}
	return report, nil
}

func numericField(m map[string]any, key string) (float64, error) {
	s, ok := m[key].(string)
	if !ok {
		return 0, errors.Newf("%s is not numeric text", key)
	}
	return schemas.ParseNumber(s)
}
