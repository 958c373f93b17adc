package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
	"alfredoptarigan/cv-copilot/internal/services"
)

type fakeAnalyzer struct {
	cv       *models.Document
	job      services.JobPosting
	req      services.AnalyzeRequest
	userID   string
	token    string
	err      error
	envelope *models.Envelope
}

func (f *fakeAnalyzer) AnalyzeCV(_ context.Context, userID string, cv *models.Document, token string) (*models.StagedResponse, error) {
	f.userID, f.cv, f.token = userID, cv, token
	if f.err != nil {
		return nil, f.err
	}
	return &models.StagedResponse{State: models.StateAwaitingJob, Result: map[string]any{"full_name": "Ana"}}, nil
}

func (f *fakeAnalyzer) AnalyzeJobPoster(_ context.Context, userID string, job services.JobPosting, token string) (*models.StagedResponse, error) {
	f.userID, f.job, f.token = userID, job, token
	if f.err != nil {
		return nil, f.err
	}
	return &models.StagedResponse{State: models.StateFinished, Result: map[string]any{"job_title": "SRE"}}, nil
}

func (f *fakeAnalyzer) AnalyzeCandidate(_ context.Context, req services.AnalyzeRequest) (*models.Envelope, error) {
	f.req = req
	return f.envelope, f.err
}

type fakeHeadshots struct {
	req services.HeadshotRequest
	err error
}

func (f *fakeHeadshots) Generate(_ context.Context, req services.HeadshotRequest) (*models.Envelope, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	env := models.SuccessEnvelope(models.HeadshotResult{ImageURL: "https://r2.test/final.png"})
	return &env, nil
}

func (f *fakeHeadshots) Refresh(_ context.Context, env *models.Envelope) (*models.Envelope, error) {
	return env, nil
}

type fakeLinkedIn struct {
	req   services.LinkedInRequest
	users []string
	err   error
}

func (f *fakeLinkedIn) Analyze(_ context.Context, req services.LinkedInRequest) (*models.Envelope, error) {
	f.req = req
	f.users = append(f.users, req.UserID)
	if f.err != nil {
		return nil, f.err
	}
	env := models.SuccessEnvelope(&models.LinkedInReport{ProfileURL: req.ProfileURL})
	return &env, nil
}

type fakeResults struct {
	role    models.Role
	feature models.Feature
	err     error
}

func (f *fakeResults) Get(_ context.Context, _ string, role models.Role, feature models.Feature) (*models.Envelope, error) {
	f.role, f.feature = role, feature
	if f.err != nil {
		return nil, f.err
	}
	env := models.SuccessEnvelope("stored")
	return &env, nil
}

type testServer struct {
	app       *fiber.App
	analyzer  *fakeAnalyzer
	headshots *fakeHeadshots
	linkedin  *fakeLinkedIn
	results   *fakeResults
}

func newTestServer() *testServer {
	s := &testServer{
		analyzer:  &fakeAnalyzer{},
		headshots: &fakeHeadshots{},
		linkedin:  &fakeLinkedIn{},
		results:   &fakeResults{},
	}
	s.app = fiber.New()
	Register(s.app.Group("/api/v1"), Handlers{
		Analyze:  NewAnalyzeHandler(s.analyzer, 1<<20, nil),
		Photo:    NewPhotoHandler(s.headshots, 1<<20, nil),
		LinkedIn: NewLinkedInHandler(s.linkedin, nil),
		Result:   NewResultHandler(s.results, nil),
	})
	return s
}

type formFile struct {
	field    string
	filename string
	mimeType string
	data     []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.filename+`"`)
		h.Set("Content-Type", f.mimeType)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set(UserIDHeader, "user-1")
	return req
}

func decodeEnvelope(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env map[string]any
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

var pdfFile = formFile{field: "cv", filename: "cv.pdf", mimeType: models.MIMEPDF, data: []byte("%PDF-1.4 test")}

func TestHandleAnalyzeCV(t *testing.T) {
	s := newTestServer()

	resp, err := s.app.Test(multipartRequest(t, "/api/v1/actions/analyze-cv", map[string]string{"g-recaptcha-response": "tok"}, pdfFile))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	env := decodeEnvelope(t, resp)
	assert.Equal(t, false, env["errors"])
	assert.Equal(t, "awaiting_job", env["response"].(map[string]any)["state"])

	assert.Equal(t, "user-1", s.analyzer.userID)
	assert.Equal(t, "tok", s.analyzer.token)
	require.NotNil(t, s.analyzer.cv)
	assert.Equal(t, "cv.pdf", s.analyzer.cv.Filename)
	assert.Equal(t, models.MIMEPDF, s.analyzer.cv.MIMEType)
	assert.Equal(t, pdfFile.data, s.analyzer.cv.Data)
}

func TestHandleAnalyzeJobPoster_TextMode(t *testing.T) {
	s := newTestServer()

	resp, err := s.app.Test(multipartRequest(t, "/api/v1/actions/analyze-job-poster", map[string]string{"job_text": "We are hiring"}))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Nil(t, s.analyzer.job.Document)
	assert.Equal(t, "We are hiring", s.analyzer.job.Text)
}

func TestHandleAnalyzeCandidate(t *testing.T) {
	s := newTestServer()
	env := models.SuccessEnvelope(map[string]any{"stage_1": "cv"})
	s.analyzer.envelope = &env

	poster := formFile{field: "job_poster", filename: "job.png", mimeType: models.MIMEPNG, data: []byte("\x89PNG")}
	resp, err := s.app.Test(multipartRequest(t, "/api/v1/actions/analyze-candidate", map[string]string{"role": " HRD "}, pdfFile, poster))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.RoleHRD, s.analyzer.req.Role)
	require.NotNil(t, s.analyzer.req.Job.Document)
	assert.Equal(t, "job.png", s.analyzer.req.Job.Document.Filename)
}

func TestHandleActions_ErrorEnvelopes(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{name: "validation", err: pipeline.Validationf("bad"), status: fiber.StatusBadRequest, code: models.CodeValidationError},
		{name: "not a cv", err: &pipeline.InvalidDocumentError{Stage: "cv", Code: models.CodeCVInvalid}, status: fiber.StatusUnprocessableEntity, code: models.CodeCVInvalid},
		{name: "bot", err: errors.Mark(errors.New("low score"), pipeline.ErrSecurityCheck), status: fiber.StatusForbidden, code: models.CodeSecurityCheckFailed},
		{name: "in flight", err: errors.Wrap(pipeline.ErrAnalysisInFlight, "user-1"), status: fiber.StatusConflict, code: models.CodeAnalysisInProgress},
		{name: "model", err: errors.Mark(errors.New("503 from upstream"), pipeline.ErrModelInvocation), status: fiber.StatusBadGateway, code: models.CodeModelInvocationFailed},
		{name: "unknown", err: errors.New("db connection refused"), status: fiber.StatusInternalServerError, code: models.CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer()
			s.analyzer.err = tt.err

			resp, err := s.app.Test(multipartRequest(t, "/api/v1/actions/analyze-candidate", map[string]string{"role": "candidate"}, pdfFile))
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.StatusCode)
			env := decodeEnvelope(t, resp)
			assert.Equal(t, true, env["errors"])
			assert.Equal(t, tt.code, env["response"])
		})
	}
}

func TestHandleAnalyzeCV_FileTooLarge(t *testing.T) {
	s := newTestServer()
	big := formFile{field: "cv", filename: "cv.pdf", mimeType: models.MIMEPDF, data: bytes.Repeat([]byte("a"), 1<<20+1)}

	resp, err := s.app.Test(multipartRequest(t, "/api/v1/actions/analyze-cv", nil, big))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.CodeValidationError, decodeEnvelope(t, resp)["response"])
	assert.Nil(t, s.analyzer.cv)
}

func TestRequireUser(t *testing.T) {
	s := newTestServer()
	req := multipartRequest(t, "/api/v1/actions/analyze-cv", nil, pdfFile)
	req.Header.Del(UserIDHeader)

	resp, err := s.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeUnauthorized, decodeEnvelope(t, resp)["response"])
	assert.Empty(t, s.analyzer.userID)
}

func TestHandleTransformPhoto(t *testing.T) {
	s := newTestServer()
	photo := formFile{field: "photo", filename: "me.jpg", mimeType: models.MIMEJPEG, data: []byte{0xff, 0xd8, 0xff}}

	resp, err := s.app.Test(multipartRequest(t, "/api/v1/actions/transform-photo", map[string]string{"gender": "man", "ethnicity": "Javanese"}, photo, pdfFile))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "man", s.headshots.req.Gender)
	assert.Equal(t, "Javanese", s.headshots.req.Ethnicity)
	require.NotNil(t, s.headshots.req.Photo)
	assert.Equal(t, "me.jpg", s.headshots.req.Photo.Filename)
	require.NotNil(t, s.headshots.req.CV)

	s.headshots.err = errors.Mark(errors.New("task failed"), pipeline.ErrExternalTask)
	resp, err = s.app.Test(multipartRequest(t, "/api/v1/actions/transform-photo", nil, photo, pdfFile))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, models.CodeExternalTaskFailed, decodeEnvelope(t, resp)["response"])
}

func TestHandleLinkedInProfile(t *testing.T) {
	s := newTestServer()

	resp, err := s.app.Test(multipartRequest(t, "/api/v1/actions/linkedin-profile", map[string]string{"profile_url": "https://www.linkedin.com/in/ana"}))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "https://www.linkedin.com/in/ana", s.linkedin.req.ProfileURL)
	assert.Equal(t, "user-1", s.linkedin.req.UserID)
}

func TestRequireUser_IDSurvivesLaterRequests(t *testing.T) {
	s := newTestServer()

	users := []string{"user-AAAA", "user-BBBB", "user-CCCC"}
	for _, user := range users {
		req := multipartRequest(t, "/api/v1/actions/linkedin-profile", map[string]string{"profile_url": "https://www.linkedin.com/in/ana"})
		req.Header.Set(UserIDHeader, user)
		resp, err := s.app.Test(req)
		require.NoError(t, err)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	assert.Equal(t, users, s.linkedin.users)
}

func TestHandleGetResult(t *testing.T) {
	s := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/results/cv_analysis?role=hrd", nil)
	req.Header.Set(UserIDHeader, "user-1")
	resp, err := s.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.RoleHRD, s.results.role)
	assert.Equal(t, models.FeatureCVAnalysis, s.results.feature)

	s.results.err = errors.Wrap(pipeline.ErrNotFound, "nothing stored")
	req = httptest.NewRequest(http.MethodGet, "/api/v1/results/headshot", nil)
	req.Header.Set(UserIDHeader, "user-1")
	resp, err = s.app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, models.RoleCandidate, s.results.role)
}

func TestHealth(t *testing.T) {
	s := newTestServer()

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
