package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"alfredoptarigan/cv-copilot/internal/config"
	"alfredoptarigan/cv-copilot/internal/logger"
	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
	"alfredoptarigan/cv-copilot/internal/prompt"
	"alfredoptarigan/cv-copilot/internal/schemas"
)

const (
	linkedInLoginURL      = "https://www.linkedin.com/login"
	linkedInSectionPrefix = "section_"

	StageLinkedInOverview = linkedInSectionPrefix + models.SectionOverview
	StageLinkedInAnalysis = "linkedin_analysis"
)

var sectionConfig = pipeline.GenerationConfig{Temperature: 0.1, TopP: 0.9, MaxOutputTokens: 2048}

type linkedInSection struct {
	name         string
	label        string
	path         string
	instructions string
}

// linkedInSections are visited in this order after the overview.
var linkedInSections = []linkedInSection{
	{models.SectionContactInfo, "contact information", "overlay/contact-info/", "Include email, phone, websites and social links with their labels."},
	{models.SectionSkills, "skills", "details/skills/", "List each skill once, without endorsement counts."},
	{models.SectionExperience, "work experience", "details/experience/", "For each role give title, company, period and location on one line."},
	{models.SectionEducation, "education", "details/education/", "For each entry give institution, degree and period on one line."},
	{models.SectionProjects, "projects", "details/projects/", "For each project give its name, period and a one sentence description."},
	{models.SectionCertifications, "certifications", "details/certifications/", "For each certification give its name, issuer and issue date."},
	{models.SectionLanguages, "languages", "details/languages/", "For each language give its proficiency when shown."},
}

type LinkedInRequest struct {
	UserID       string
	ProfileURL   string
	CaptchaToken string
}

type LinkedInService interface {
	Analyze(ctx context.Context, req LinkedInRequest) (*models.Envelope, error)
}

type linkedInService struct {
	runner   *pipeline.Runner
	browser  Browser
	verifier BotVerifier
	guard    *UsageGuard
	notifier ProgressNotifier
	creds    config.LinkedInConfig
	schema   schemas.Descriptor
	log      *zap.SugaredLogger
}

func NewLinkedInService(
	runner *pipeline.Runner,
	browser Browser,
	verifier BotVerifier,
	guard *UsageGuard,
	notifier ProgressNotifier,
	creds config.LinkedInConfig,
	log *zap.SugaredLogger,
) LinkedInService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &linkedInService{
		runner:   runner,
		browser:  browser,
		verifier: verifier,
		guard:    guard,
		notifier: notifier,
		creds:    creds,
		schema:   schemas.Default().MustGet(schemas.LinkedInAnalysis),
		log:      logger.OrNop(log),
	}
}

// NormalizeProfileURL accepts only public profile URLs (linkedin.com/in/<handle>)
// and returns them with a trailing slash.
func NormalizeProfileURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", pipeline.Validationf("invalid profile url")
	}
	host := strings.ToLower(u.Hostname())
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", pipeline.Validationf("profile url must be http(s)")
	}
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return "", pipeline.Validationf("profile url must be on linkedin.com")
	}
	handle, ok := strings.CutPrefix(u.Path, "/in/")
	handle = strings.Trim(handle, "/")
	if !ok || handle == "" || strings.Contains(handle, "/") {
		return "", pipeline.Validationf("profile url must look like https://www.linkedin.com/in/<handle>")
	}
	return "https://www.linkedin.com/in/" + handle + "/", nil
}

func (l *linkedInService) Analyze(ctx context.Context, req LinkedInRequest) (*models.Envelope, error) {
	profileURL, err := NormalizeProfileURL(req.ProfileURL)
	if err != nil {
		return nil, err
	}
	if err := l.verifier.Verify(ctx, req.CaptchaToken); err != nil {
		return nil, err
	}
	if err := l.guard.EnsureFirst(ctx, req.UserID, models.RoleCandidate, models.FeatureLinkedIn); err != nil {
		return nil, err
	}
	release, err := l.guard.Claim(req.UserID, models.RoleCandidate, models.FeatureLinkedIn)
	if err != nil {
		return nil, err
	}
	defer release()

	l.log.Infow("🚀 Starting LinkedIn analysis", "user_id", req.UserID, "profile", profileURL)

	session, err := l.browser.Launch(ctx)
	if err != nil {
		return nil, err
	}
	defer session.Close()

	l.notifier.Notify(req.UserID, "Signing in to LinkedIn...")
	if err := l.authenticate(session); err != nil {
		return nil, err
	}

	l.notifier.Notify(req.UserID, "Opening the profile...")
	overview, err := l.capture(session, profileURL)
	if err != nil {
		return nil, err
	}

	runner := l.runner.WithObservers(l.notifier.For(req.UserID))
	pc := pipeline.NewContext()
	report := &models.LinkedInReport{ProfileURL: profileURL, Sections: make(map[string]string)}

	l.extractSection(ctx, runner, pc, report, linkedInSection{
		name:         models.SectionOverview,
		label:        "profile overview",
		instructions: "Include name, headline, location and the about text.",
	}, overview)

	for _, section := range linkedInSections {
		shot, err := l.capture(session, profileURL+section.path)
		if err != nil {
			l.sectionFailed(report, section.name, errors.Mark(err, pipeline.ErrScrapeSection))
			continue
		}
		l.extractSection(ctx, runner, pc, report, section, shot)
	}

	analysis, err := runner.Run(ctx, []*pipeline.Stage{{
		ID:        StageLinkedInAnalysis,
		Prompt:    prompt.LinkedInAnalysis,
		Payload:   screenshotDocument("overview", overview),
		Config:    analysisConfig,
		Schema:    &l.schema,
		DependsOn: []string{},
	}}, pc)
	if err != nil {
		return nil, err
	}
	res, _ := analysis.Result(StageLinkedInAnalysis)
	report.Analysis = res.Value()

	env := models.SuccessEnvelope(report)
	if err := l.guard.Record(ctx, req.UserID, models.RoleCandidate, models.FeatureLinkedIn, env); err != nil {
		return nil, err
	}

	l.log.Infow("✅ LinkedIn analysis completed", "user_id", req.UserID, "failed_sections", report.Failed)
	return &env, nil
}

func (l *linkedInService) authenticate(session BrowserSession) error {
	if l.creds.Email == "" || l.creds.Password == "" {
		return errors.Mark(errors.New("linkedin credentials are not configured"), pipeline.ErrBrowser)
	}

	steps := []func() error{
		func() error { return session.Goto(linkedInLoginURL) },
		func() error { return session.Fill("#username", l.creds.Email) },
		func() error { return session.Fill("#password", l.creds.Password) },
		func() error { return session.Click("button[type='submit']") },
		func() error { return session.WaitForSelector("#global-nav") },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return l.explainAuthFailure(session, err)
		}
	}
	return nil
}

func (l *linkedInService) explainAuthFailure(session BrowserSession, cause error) error {
	if html, err := session.HTML(); err == nil {
		if blocked, marker := DetectAuthWall(html); blocked {
			l.log.Warnw("🚫 LinkedIn sign-in blocked", "marker", marker)
			return errors.Mark(errors.Wrapf(cause, "sign-in blocked (%s)", marker), pipeline.ErrBrowser)
		}
	}
	return errors.Mark(errors.Wrap(cause, "sign-in failed"), pipeline.ErrBrowser)
}

// capture navigates to url, scrolls so lazy content renders, and takes a full-page screenshot.
func (l *linkedInService) capture(session BrowserSession, url string) ([]byte, error) {
	if err := session.Goto(url); err != nil {
		return nil, err
	}
	if err := session.WaitForSelector("main"); err != nil {
		return nil, err
	}
	if html, err := session.HTML(); err == nil {
		if blocked, marker := DetectAuthWall(html); blocked {
			return nil, errors.Mark(errors.Newf("auth wall at %s (%s)", url, marker), pipeline.ErrBrowser)
		}
	}

	var ignored any
	if err := session.Evaluate(`window.scrollTo(0, document.body.scrollHeight); true`, &ignored); err != nil {
		l.log.Debugw("Scroll failed, capturing anyway", "url", url, "error", err)
	}
	shot, err := session.Screenshot(true)
	if err != nil {
		return nil, err
	}
	if len(shot) > models.MaxDocumentSize {
		return nil, errors.Mark(errors.Newf("screenshot of %s is %d bytes, limit is %d", url, len(shot), models.MaxDocumentSize), pipeline.ErrBrowser)
	}
	return shot, nil
}

// extractSection never fails the pipeline: errors leave a placeholder for that section.
func (l *linkedInService) extractSection(ctx context.Context, runner *pipeline.Runner, pc *pipeline.Context, report *models.LinkedInReport, section linkedInSection, shot []byte) {
	pc.SetFact("section_label", section.label)
	pc.SetFact("section_instructions", section.instructions)

	id := linkedInSectionPrefix + section.name
	_, err := runner.Run(ctx, []*pipeline.Stage{{
		ID:        id,
		Prompt:    prompt.LinkedInSection,
		Payload:   screenshotDocument(section.name, shot),
		Config:    sectionConfig,
		DependsOn: []string{},
	}}, pc)
	if err != nil {
		l.sectionFailed(report, section.name, errors.Mark(err, pipeline.ErrScrapeSection))
		return
	}

	res, _ := pc.Result(id)
	text := strings.TrimSpace(res.RawText)
	if text == "" {
		text = prompt.NoDataSentinel
	}
	report.Sections[section.name] = text
}

func (l *linkedInService) sectionFailed(report *models.LinkedInReport, name string, err error) {
	l.log.Warnw("⚠️ Section extraction failed, using placeholder", "section", name, "error", err)
	report.Sections[name] = models.NoDataFound
	report.Failed = append(report.Failed, name)
}

func screenshotDocument(name string, data []byte) *models.Document {
	return &models.Document{Filename: name, MIMEType: models.NormalizeMIME(http.DetectContentType(data)), Data: data}
}
