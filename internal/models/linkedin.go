package models

// LinkedIn section names, in navigation order.
const (
	SectionOverview       = "overview"
	SectionContactInfo    = "contact_info"
	SectionSkills         = "skills"
	SectionExperience     = "experience"
	SectionEducation      = "education"
	SectionProjects       = "projects"
	SectionCertifications = "certifications"
	SectionLanguages      = "languages"
)

// NoDataFound replaces a section whose extraction failed.
const NoDataFound = "No Data Found"

// LinkedInReport is the persisted response of the LinkedIn pipeline.
type LinkedInReport struct {
	ProfileURL string            `json:"profile_url"`
	Sections   map[string]string `json:"sections"`
	Failed     []string          `json:"failed_sections,omitempty"`
	Analysis   any               `json:"analysis"`
}
