package postgres

import (
	"context"
	"errors"

	"github.com/cvcraft/cvcraft/internal/models"
	"github.com/cvcraft/cvcraft/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CVRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.FullCV, error)
	GetByID(ctx context.Context, cvID string) (*models.FullCV, error)
	Insert(ctx context.Context, cv *models.UserCV) error
	// UpdateFields applies a narrow column update to one aggregate row.
	UpdateFields(ctx context.Context, cvID string, fields map[string]any) error

	UpsertExperiences(ctx context.Context, rows []models.Experience) error
	DeleteExperiencesNotIn(ctx context.Context, cvID string, keepIDs []string) error
	UpsertEducation(ctx context.Context, rows []models.Education) error
	DeleteEducationNotIn(ctx context.Context, cvID string, keepIDs []string) error
	DeleteAllChildren(ctx context.Context, cvID string) error

	// ForeignExperienceIDs returns the candidate ids that already exist under
	// a different aggregate. Same for education.
	ForeignExperienceIDs(ctx context.Context, cvID string, ids []string) ([]string, error)
	ForeignEducationIDs(ctx context.Context, cvID string, ids []string) ([]string, error)
}

type cvRepo struct {
	db *gorm.DB
}

func NewCVRepo(db *gorm.DB) CVRepository {
	return &cvRepo{db: db}
}

func (r *cvRepo) GetByUserID(ctx context.Context, userID string) (*models.FullCV, error) {
	var cv models.FullCV
	err := r.db.WithContext(ctx).
		Preload("Experiences", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("Education", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("user_id = ?", userID).
		Take(&cv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *cvRepo) GetByID(ctx context.Context, cvID string) (*models.FullCV, error) {
	var cv models.FullCV
	err := r.db.WithContext(ctx).
		Preload("Experiences", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Preload("Education", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order ASC") }).
		Where("id = ?", cvID).
		Take(&cv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cv, nil
}

func (r *cvRepo) Insert(ctx context.Context, cv *models.UserCV) error {
	return r.db.WithContext(ctx).Create(cv).Error
}

func (r *cvRepo) UpdateFields(ctx context.Context, cvID string, fields map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.UserCV{}).
		Where("id = ?", cvID).
		Updates(fields).Error
}

func (r *cvRepo) UpsertExperiences(ctx context.Context, rows []models.Experience) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"company", "position", "start_date", "end_date", "description", "sort_order"}),
		}).
		Create(&rows).Error
}

func (r *cvRepo) DeleteExperiencesNotIn(ctx context.Context, cvID string, keepIDs []string) error {
	q := r.db.WithContext(ctx).Where("cv_id = ?", cvID)
	if len(keepIDs) > 0 {
		q = q.Where("id NOT IN ?", keepIDs)
	}
	return q.Delete(&models.Experience{}).Error
}

func (r *cvRepo) UpsertEducation(ctx context.Context, rows []models.Education) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"institution", "degree", "start_date", "end_date", "sort_order"}),
		}).
		Create(&rows).Error
}

func (r *cvRepo) DeleteEducationNotIn(ctx context.Context, cvID string, keepIDs []string) error {
	q := r.db.WithContext(ctx).Where("cv_id = ?", cvID)
	if len(keepIDs) > 0 {
		q = q.Where("id NOT IN ?", keepIDs)
	}
	return q.Delete(&models.Education{}).Error
}

func (r *cvRepo) ForeignExperienceIDs(ctx context.Context, cvID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []string
	err := r.db.WithContext(ctx).
		Model(&models.Experience{}).
		Where("id IN ? AND cv_id <> ?", ids, cvID).
		Pluck("id", &out).Error
	return out, err
}

func (r *cvRepo) ForeignEducationIDs(ctx context.Context, cvID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []string
	err := r.db.WithContext(ctx).
		Model(&models.Education{}).
		Where("id IN ? AND cv_id <> ?", ids, cvID).
		Pluck("id", &out).Error
	return out, err
}

func (r *cvRepo) DeleteAllChildren(ctx context.Context, cvID string) error {
	if err := r.db.WithContext(ctx).Where("cv_id = ?", cvID).Delete(&models.Experience{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Where("cv_id = ?", cvID).Delete(&models.Education{}).Error
}
