package repository

import (
	"context"
	"fmt"

	"github.com/citystash/pickup-sms/models"
	"gorm.io/gorm"
)

// JobRunRepositoryImpl implements JobRunRepository
type JobRunRepositoryImpl struct {
	*BaseRepository[models.JobRun, models.JobRunFilter]
}

func NewJobRunRepository(db *gorm.DB) JobRunRepository {
	return &JobRunRepositoryImpl{BaseRepository: NewBaseRepository[models.JobRun, models.JobRunFilter](db)}
}

func (r *JobRunRepositoryImpl) applyFilter(db *gorm.DB, f models.JobRunFilter) *gorm.DB {
	if f.Feature != nil {
		db = db.Where("feature = ?", *f.Feature)
	}
	if f.Unfinished != nil {
		if *f.Unfinished {
			db = db.Where("finished_at IS NULL")
		} else {
			db = db.Where("finished_at IS NOT NULL")
		}
	}
	if f.StartedAfter != nil {
		db = db.Where("started_at >= ?", *f.StartedAfter)
	}
	if f.StartedBefore != nil {
		db = db.Where("started_at < ?", *f.StartedBefore)
	}
	return db
}

func (r *JobRunRepositoryImpl) ByFilter(ctx context.Context, filter models.JobRunFilter, orderBy string, limit, offset int) ([]*models.JobRun, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.JobRun{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.JobRun
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *JobRunRepositoryImpl) Update(ctx context.Context, run *models.JobRun) error {
	db := r.getDB(ctx)
	if run.ID == 0 {
		return fmt.Errorf("cannot update job run without ID")
	}
	if err := db.Save(run).Error; err != nil {
		return fmt.Errorf("failed to update job run %d: %w", run.ID, err)
	}
	return nil
}

func (r *JobRunRepositoryImpl) LatestByFeature(ctx context.Context, feature string) (*models.JobRun, error) {
	rows, err := r.ByFilter(ctx, models.JobRunFilter{Feature: &feature}, "started_at DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *JobRunRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*models.JobRun, error) {
	return r.ByFilter(ctx, models.JobRunFilter{}, "started_at DESC", limit, 0)
}

func (r *JobRunRepositoryImpl) Count(ctx context.Context, filter models.JobRunFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.JobRun{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
