package services

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"alfredoptarigan/cv-copilot/internal/models"
	"alfredoptarigan/cv-copilot/internal/pipeline"
	"alfredoptarigan/cv-copilot/internal/repositories"
)

// UsageGuard enforces one run per (user, role, feature): an in-process claim
// rejects concurrent submissions and the unique index on the row store rejects
// anything that slips past it (other replicas, restarts).
type UsageGuard struct {
	repo repositories.AnalysisRepository

	mu     sync.Mutex
	active map[string]struct{}
}

func NewUsageGuard(repo repositories.AnalysisRepository) *UsageGuard {
	return &UsageGuard{repo: repo, active: make(map[string]struct{})}
}

func usageKey(userID string, role models.Role, feature models.Feature) string {
	return userID + "|" + string(role) + "|" + string(feature)
}

// Claim marks the run in flight. The returned release must be called exactly once.
func (g *UsageGuard) Claim(userID string, role models.Role, feature models.Feature) (func(), error) {
	key := usageKey(userID, role, feature)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[key]; busy {
		return nil, errors.Wrapf(pipeline.ErrAnalysisInFlight, "%s/%s for user %s", role, feature, userID)
	}
	g.active[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, key)
			g.mu.Unlock()
		})
	}, nil
}

// Previous returns the stored envelope, or nil when the user has no result yet.
func (g *UsageGuard) Previous(ctx context.Context, userID string, role models.Role, feature models.Feature) (*models.Envelope, error) {
	env, err := g.repo.FindEnvelope(ctx, userID, role, feature)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return env, nil
}

// EnsureFirst fails with ErrAlreadyAnalyzed when a result is already stored.
func (g *UsageGuard) EnsureFirst(ctx context.Context, userID string, role models.Role, feature models.Feature) error {
	prev, err := g.Previous(ctx, userID, role, feature)
	if err != nil {
		return err
	}
	if prev != nil {
		return errors.Wrapf(pipeline.ErrAlreadyAnalyzed, "%s/%s for user %s", role, feature, userID)
	}
	return nil
}

// Record persists a finished envelope.
func (g *UsageGuard) Record(ctx context.Context, userID string, role models.Role, feature models.Feature, env models.Envelope) error {
	err := g.repo.Save(ctx, userID, role, feature, env)
	if errors.Is(err, repositories.ErrDuplicate) {
		return errors.Mark(err, pipeline.ErrAlreadyAnalyzed)
	}
	return err
}
