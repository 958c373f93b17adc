package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleCandidate Role = "candidate"
	RoleHRD       Role = "hrd"
)

func (r Role) Valid() bool {
	return r == RoleCandidate || r == RoleHRD
}

type Feature string

const (
	FeatureCVAnalysis Feature = "cv_analysis"
	FeatureHeadshot   Feature = "headshot"
	FeatureLinkedIn   Feature = "linkedin"
)

func (f Feature) Valid() bool {
	switch f {
	case FeatureCVAnalysis, FeatureHeadshot, FeatureLinkedIn:
		return true
	}
	return false
}

// AnalysisResult stores one serialized envelope per (user, role, feature).
type AnalysisResult struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID    string    `gorm:"type:text;not null;uniqueIndex:idx_analysis_owner" json:"user_id"`
	Role      Role      `gorm:"type:text;not null;uniqueIndex:idx_analysis_owner" json:"role"`
	Feature   Feature   `gorm:"type:text;not null;uniqueIndex:idx_analysis_owner" json:"feature"`
	Envelope  string    `gorm:"type:jsonb;not null" json:"envelope"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AnalysisResult) TableName() string {
	return "analysis_results"
}
