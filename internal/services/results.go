package services

import (
	"context"

	"github.com/cockroachdb/errors"

	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
)

// ResultService serves persisted envelopes so users can revisit a finished run.
type ResultService interface {
	Get(ctx context.Context, userID string, role models.Role, feature models.Feature) (*models.Envelope, error)
}

type resultService struct {
	guard     *UsageGuard
	headshots HeadshotService
}

func NewResultService(guard *UsageGuard, headshots HeadshotService) ResultService {
	return &resultService{guard: guard, headshots: headshots}
}

func (r *resultService) Get(ctx context.Context, userID string, role models.Role, feature models.Feature) (*models.Envelope, error) {
	if !feature.Valid() {
		return nil, pipeline.Validationf("unknown feature %q", feature)
	}
	if !role.Valid() {
		return nil, pipeline.Validationf("unknown role %q", role)
	}

	env, err := r.guard.Previous(ctx, userID, role, feature)
	if err != nil {
		return nil, err
	}
	if env == nil {
		return nil, errors.Wrapf(pipeline.ErrNotFound, "%s/%s for user %s", role, feature, userID)
	}

	if feature == models.FeatureHeadshot && r.headshots != nil {
		return r.headshots.Refresh(ctx, env)
	}
	return env, nil
}
