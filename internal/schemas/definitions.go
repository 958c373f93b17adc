package schemas

import "google.golang.org/genai"

func str(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func strList(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Description: description, Items: &genai.Schema{Type: genai.TypeString}}
}

func object(required []string, properties map[string]*genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: properties, Required: required}
}

func list(item *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: item}
}

func cvExtraction() Descriptor {
	return Descriptor{
		Name: CVExtraction,
		Schema: object(
			[]string{"full_name", "skills", "work_experience", "education"},
			map[string]*genai.Schema{
				"full_name": str("Candidate full name"),
				"email":     str("Contact email, empty if absent"),
				"phone":     str("Contact phone, empty if absent"),
				"summary":   str("Professional summary as written in the CV"),
				"skills":    strList("Every skill mentioned in the CV"),
				"work_experience": list(object(
					[]string{"title", "company", "period"},
					map[string]*genai.Schema{
						"title":       str("Job title"),
						"company":     str("Employer"),
						"period":      str("Employment period as written, including any (N years M months) suffix"),
						"description": str("Responsibilities and achievements"),
					},
				)),
				"education": list(object(
					[]string{"institution", "degree"},
					map[string]*genai.Schema{
						"institution": str("School or university"),
						"degree":      str("Degree or program"),
						"period":      str("Study period"),
					},
				)),
				"certifications": strList("Certifications"),
				"languages":      strList("Spoken languages"),
			},
		),
	}
}

func jobRequirements() Descriptor {
	return Descriptor{
		Name: JobRequirements,
		Schema: object(
			[]string{"job_title", "requirements"},
			map[string]*genai.Schema{
				"job_title":        str("Advertised position"),
				"company":          str("Hiring company, empty if absent"),
				"requirements":     strList("Hard requirements, one per entry"),
				"responsibilities": strList("Responsibilities"),
				"qualifications":   strList("Education and certification qualifications"),
				"nice_to_have":     strList("Optional or preferred requirements"),
			},
		),
	}
}

func candidateAnalysis() Descriptor {
	return Descriptor{
		Name: CandidateAnalysis,
		Schema: object(
			[]string{"match_percentage", "strengths", "weaknesses"},
			map[string]*genai.Schema{
				"match_percentage": str("Overall match between 0 and 100, digits only"),
				"summary":          str("Two to three sentence verdict"),
				"strengths":        strList("Where the CV meets the requirements"),
				"weaknesses":       strList("Where the CV falls short"),
				"missing_skills":   strList("Required skills absent from the CV"),
				"recommendations":  strList("Concrete actions for the candidate"),
			},
		),
		NumericText: []string{"match_percentage"},
	}
}

func revisedCV() Descriptor {
	return Descriptor{
		Name: RevisedCV,
		Schema: object(
			[]string{"summary", "skills", "work_experience"},
			map[string]*genai.Schema{
				"summary": str("Rewritten professional summary targeted at the job"),
				"skills":  strList("Skills reordered for the job"),
				"work_experience": list(object(
					[]string{"title", "company", "bullets"},
					map[string]*genai.Schema{
						"title":   str("Job title"),
						"company": str("Employer"),
						"period":  str("Employment period"),
						"bullets": strList("Rewritten achievement bullets"),
					},
				)),
				"changes": strList("What was changed and why"),
			},
		),
	}
}

func hrAnalysis() Descriptor {
	return Descriptor{
		Name: HRAnalysis,
		Schema: object(
			[]string{"overall_match_percentage", "recommendation", "score_breakdown", "red_flags"},
			map[string]*genai.Schema{
				"overall_match_percentage": str("Total score, equal to the sum of score_breakdown scores"),
				"recommendation": {
					Type: genai.TypeString,
					Enum: []string{"Strong Hire", "Hire", "Maybe", "No Hire"},
				},
				"summary": str("Recruiter-oriented summary"),
				"score_breakdown": list(object(
					[]string{"category", "score", "max_score"},
					map[string]*genai.Schema{
						"category":  str("Scoring category"),
						"score":     str("Points awarded, digits only"),
						"max_score": str("Points available, digits only"),
						"notes":     str("Justification"),
					},
				)),
				"red_flags":       strList("Risks such as gaps or inconsistencies"),
				"strengths":       strList("Strong points for the role"),
				"interview_focus": strList("Topics to probe in the interview"),
			},
		),
		NumericText: []string{
			"overall_match_percentage",
			"score_breakdown[].score",
			"score_breakdown[].max_score",
		},
	}
}

func interviewQuestions() Descriptor {
	return Descriptor{
		Name: InterviewQuestions,
		Schema: object(
			[]string{"questions"},
			map[string]*genai.Schema{
				"questions": list(object(
					[]string{"question", "category"},
					map[string]*genai.Schema{
						"question":      str("The question"),
						"category":      str("technical, behavioral or situational"),
						"purpose":       str("What the interviewer wants to learn"),
						"sample_answer": str("A strong answer grounded in the CV"),
					},
				)),
			},
		),
	}
}

func linkedInAnalysis() Descriptor {
	return Descriptor{
		Name: LinkedInAnalysis,
		Schema: object(
			[]string{"overall_score", "summary", "strengths", "improvements"},
			map[string]*genai.Schema{
				"overall_score":       str("Profile quality between 0 and 100, digits only"),
				"summary":             str("Overall critique"),
				"headline_feedback":   str("Feedback on the headline"),
				"about_feedback":      str("Feedback on the about section"),
				"experience_feedback": str("Feedback on the experience section"),
				"skills_feedback":     str("Feedback on skills and endorsements"),
				"strengths":           strList("What the profile does well"),
				"improvements":        strList("Prioritized improvements"),
			},
		),
		NumericText: []string{"overall_score"},
	}
}
