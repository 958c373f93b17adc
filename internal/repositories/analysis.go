package repositories

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"alfredoptarigan/cv-copilot/internal/models"
)

var (
	ErrNotFound  = errors.New("analysis result not found")
	ErrDuplicate = errors.New("analysis result already exists")
)

const uniqueViolation = "23505"

// AnalysisRepository is the row store for finished pipeline envelopes.
type AnalysisRepository interface {
	Save(ctx context.Context, userID string, role models.Role, feature models.Feature, envelope models.Envelope) error
	Find(ctx context.Context, userID string, role models.Role, feature models.Feature) (*models.AnalysisResult, error)
	FindEnvelope(ctx context.Context, userID string, role models.Role, feature models.Feature) (*models.Envelope, error)
}

type analysisRepository struct {
	db *gorm.DB
}

func NewAnalysisRepository(db *gorm.DB) AnalysisRepository {
	return &analysisRepository{db: db}
}

// Save inserts the envelope. A second row for the same owner fails with ErrDuplicate.
func (r *analysisRepository) Save(ctx context.Context, userID string, role models.Role, feature models.Feature, envelope models.Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return errors.Wrap(err, "failed to encode envelope")
	}

	row := &models.AnalysisResult{
		UserID:   userID,
		Role:     role,
		Feature:  feature,
		Envelope: string(body),
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return errors.Mark(errors.Wrapf(err, "user %s %s/%s", userID, role, feature), ErrDuplicate)
		}
		return errors.Wrap(err, "failed to create analysis result")
	}
	return nil
}

func (r *analysisRepository) Find(ctx context.Context, userID string, role models.Role, feature models.Feature) (*models.AnalysisResult, error) {
	var row models.AnalysisResult
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND role = ? AND feature = ?", userID, role, feature).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "failed to find analysis result")
	}
	return &row, nil
}

func (r *analysisRepository) FindEnvelope(ctx context.Context, userID string, role models.Role, feature models.Feature) (*models.Envelope, error) {
	row, err := r.Find(ctx, userID, role, feature)
	if err != nil {
		return nil, err
	}

	var env models.Envelope
	if err := json.Unmarshal([]byte(row.Envelope), &env); err != nil {
		return nil, errors.Wrap(err, "failed to decode stored envelope")
	}
	return &env, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
