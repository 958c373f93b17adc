// Package schemas holds the structured-output schemas used to constrain model responses.
package schemas

import (
	"github.com/cockroachdb/errors"
	"google.golang.org/genai"
)

// Schema names.
const (
	CVExtraction       = "cv_extraction"
	JobRequirements    = "job_requirements"
	CandidateAnalysis  = "candidate_analysis"
	RevisedCV          = "revised_cv"
	HRAnalysis         = "hr_analysis"
	InterviewQuestions = "interview_questions"
	LinkedInAnalysis   = "linkedin_analysis"
)

// ErrUnknownSchema is returned by Get for a name that was never registered.
var ErrUnknownSchema = errors.New("unknown schema")

// Descriptor pairs a wire schema with the fields that carry numbers as text.
type Descriptor struct {
	Name   string
	Schema *genai.Schema
	// NumericText lists paths ("score", "items[].score") typed as strings on the
	// wire that must still parse as numbers.
	NumericText []string
}

// Registry is a read-only lookup table of descriptors.
type Registry struct {
	descriptors map[string]Descriptor
}

// NewRegistry builds a registry from the given descriptors.
func NewRegistry(descriptors ...Descriptor) *Registry {
	r := &Registry{descriptors: make(map[string]Descriptor, len(descriptors))}
	for _, d := range descriptors {
		r.descriptors[d.Name] = d
	}
	return r
}

// Default returns the registry with every schema the pipelines use.
func Default() *Registry {
	return NewRegistry(
		cvExtraction(),
		jobRequirements(),
		candidateAnalysis(),
		revisedCV(),
		hrAnalysis(),
		interviewQuestions(),
		linkedInAnalysis(),
	)
}

func (r *Registry) Get(name string) (Descriptor, error) {
	d, ok := r.descriptors[name]
	if !ok {
		return Descriptor{}, errors.Wrapf(ErrUnknownSchema, "schema %q", name)
	}
	return d, nil
}

// MustGet panics on an unknown name. Stage tables are built at startup, so a
// missing schema is a programming error.
func (r *Registry) MustGet(name string) Descriptor {
	d, err := r.Get(name)
	if err != nil {
		panic(err)
	}
	return d
}
