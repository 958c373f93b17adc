package services

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
	"alfredoptarigan/cv-copilot/internal/repositories"
)

// Prompt fragments that identify each stage template.
const (
	cvPromptMark        = "expert CV parser"
	jobPromptMark       = "reading a job posting"
	candidatePromptMark = "career coach"
	revisionPromptMark  = "professional CV writer"
	interviewPromptMark = "preparing an interview"
	hrPromptMark        = "senior recruiter screening"
	sectionPromptMark   = "screenshot of the"
	critiquePromptMark  = "LinkedIn profile consultant"
)

const (
	validCVJSON        = `{"full_name": "Ana Putri", "skills": ["Go", "PostgreSQL"], "work_experience": [{"title": "Backend Engineer", "company": "Acme", "period": "Jan 2021 - Present (3 years 2 months)"}, {"title": "Intern", "company": "Beta", "period": "Jun 2020 - Dec 2020 (7 months)"}], "education": [{"institution": "ITB", "degree": "BSc Informatics"}]}`
	validJobJSON       = `{"job_title": "Senior Backend Engineer", "requirements": ["Go", "PostgreSQL", "Kubernetes"]}`
	validCandidateJSON = `{"match_percentage": "72", "strengths": ["Go"], "weaknesses": ["No Kubernetes experience"]}`
	validRevisionJSON  = `{"summary": "Backend engineer", "skills": ["Go"], "work_experience": [{"title": "Backend Engineer", "company": "Acme", "bullets": ["Built APIs"]}], "changes": ["Reordered skills"]}`
	validInterviewJSON = `{"questions": [{"question": "How do you deploy Go services?", "category": "technical"}]}`
	validCritiqueJSON  = `{"overall_score": "68", "summary": "Solid profile", "strengths": ["Clear headline"], "improvements": ["Add an about section"]}`
)

type scriptedModel struct {
	mu       sync.Mutex
	replies  map[string]string
	failures map[string]error
	prompts  []string
}

func newScriptedModel() *scriptedModel {
	return &scriptedModel{replies: map[string]string{}, failures: map[string]error{}}
}

func (m *scriptedModel) on(fragment, reply string) *scriptedModel {
	m.replies[fragment] = reply
	return m
}

func (m *scriptedModel) fail(fragment string, err error) *scriptedModel {
	m.failures[fragment] = err
	return m
}

func (m *scriptedModel) Generate(_ context.Context, req pipeline.Request) (*pipeline.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text := req.Parts[0].Text
	m.prompts = append(m.prompts, text)
	for fragment, err := range m.failures {
		if strings.Contains(text, fragment) {
			return nil, err
		}
	}
	for fragment, reply := range m.replies {
		if strings.Contains(text, fragment) {
			return &pipeline.Response{Text: reply, Candidates: 1}, nil
		}
	}
	return nil, errors.Newf("no scripted reply for prompt %.40q", text)
}

func (m *scriptedModel) calls(fragment string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, p := range m.prompts {
		if strings.Contains(p, fragment) {
			n++
		}
	}
	return n
}

func (m *scriptedModel) promptWith(fragment string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.prompts {
		if strings.Contains(p, fragment) {
			return p
		}
	}
	return ""
}

func (m *scriptedModel) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

func newTestRunner(model pipeline.Generator) *pipeline.Runner {
	return pipeline.NewRunner(pipeline.NewInvoker(model, nil), nil)
}

type memoryRepo struct {
	mu   sync.Mutex
	rows map[string]models.Envelope
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{rows: map[string]models.Envelope{}}
}

func (r *memoryRepo) Save(_ context.Context, userID string, role models.Role, feature models.Feature, env models.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := usageKey(userID, role, feature)
	if _, exists := r.rows[key]; exists {
		return errors.Mark(errors.New("duplicate key"), repositories.ErrDuplicate)
	}
	r.rows[key] = env
	return nil
}

func (r *memoryRepo) Find(_ context.Context, userID string, role models.Role, feature models.Feature) (*models.AnalysisResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[usageKey(userID, role, feature)]; !ok {
		return nil, repositories.ErrNotFound
	}
	return &models.AnalysisResult{UserID: userID, Role: role, Feature: feature}, nil
}

func (r *memoryRepo) FindEnvelope(_ context.Context, userID string, role models.Role, feature models.Feature) (*models.Envelope, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	env, ok := r.rows[usageKey(userID, role, feature)]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &env, nil
}

func (r *memoryRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type stubVerifier struct {
	err   error
	calls int
}

func (v *stubVerifier) Verify(context.Context, string) error {
	v.calls++
	return v.err
}

type stubKnowledge struct {
	text     string
	err      error
	docTypes []string
}

func (k *stubKnowledge) Guidance(_ context.Context, _ string, docType string) (string, error) {
	k.docTypes = append(k.docTypes, docType)
	return k.text, k.err
}

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	removed []string
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (s *memoryStorage) Upload(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memoryStorage) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return fmt.Sprintf("https://r2.test/%s?ttl=%d", key, int(ttl.Seconds())), nil
}

func (s *memoryStorage) Remove(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.objects, k)
		s.removed = append(s.removed, k)
	}
	return nil
}

func (s *memoryStorage) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

type scriptedTasks struct {
	statuses  []string
	checks    int
	submitted []FaceSwapInput
	output    []byte
}

func (t *scriptedTasks) Submit(_ context.Context, input FaceSwapInput) (string, error) {
	t.submitted = append(t.submitted, input)
	return "task-1", nil
}

func (t *scriptedTasks) GetStatus(_ context.Context, taskID string) (*TaskStatus, error) {
	status := TaskPending
	if t.checks < len(t.statuses) {
		status = t.statuses[t.checks]
	}
	t.checks++
	st := &TaskStatus{TaskID: taskID, Status: status}
	if status == TaskCompleted {
		st.Output.ImageURL = "https://cdn.test/swapped.png"
	}
	return st, nil
}

func (t *scriptedTasks) Fetch(context.Context, string) ([]byte, error) {
	return t.output, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ string, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) For(channel string) pipeline.Observer {
	return progressObserver{notifier: n, channel: channel}
}

func (n *recordingNotifier) Close() error { return nil }

func noSleep(context.Context, time.Duration) error { return nil }

// minimalPDF builds a one-page PDF with a correct cross-reference table.
func minimalPDF() []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>",
	}
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func cvDocument() *models.Document {
	return &models.Document{Filename: "cv.pdf", MIMEType: models.MIMEPDF, Data: minimalPDF()}
}

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
}

func photoDocument() *models.Document {
	return &models.Document{Filename: "me.png", MIMEType: models.MIMEPNG, Data: pngBytes()}
}
