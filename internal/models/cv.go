package models

// CVData mirrors the cv_extraction schema.
type CVData struct {
	FullName       string           `json:"full_name"`
	Email          string           `json:"email"`
	Phone          string           `json:"phone"`
	Summary        string           `json:"summary"`
	Skills         []string         `json:"skills"`
	WorkExperience []WorkExperience `json:"work_experience"`
	Education      []Education      `json:"education"`
	Certifications []string         `json:"certifications"`
	Languages      []string         `json:"languages"`
}

type WorkExperience struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Period      string `json:"period"`
	Description string `json:"description"`
}

type Education struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Period      string `json:"period"`
}

// HeadshotResult is the persisted response of the headshot pipeline.
type HeadshotResult struct {
	ImageURL  string `json:"image_url"`
	JobTitle  string `json:"job_title"`
	Industry  string `json:"industry"`
	AgeRange  string `json:"age_range"`
	Attempts  int    `json:"attempts"`
	ObjectKey string `json:"object_key"`
}
