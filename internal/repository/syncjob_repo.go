package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-stocksync/internal/apperr"
	"go-stocksync/internal/model"
)

type SyncJobRepository interface {
	Create(ctx context.Context, job *model.SyncJob) error
	Get(ctx context.Context, id uuid.UUID) (*model.SyncJob, error)
	// HasActive reports whether a pending or running job of this type exists
	// for the store. Used to reject duplicate starts, never to queue them.
	HasActive(ctx context.Context, storeID uuid.UUID, jobType model.SyncJobType) (bool, error)
	// Claim transitions the job pending → running if and only if it is still
	// pending. The rows-affected check makes the claim exclusive across
	// worker instances.
	Claim(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Update(ctx context.Context, job *model.SyncJob) error
	AppendLog(ctx context.Context, entry *model.SyncLog) error
	Logs(ctx context.Context, jobID uuid.UUID) ([]model.SyncLog, error)
	ListByStore(ctx context.Context, storeID uuid.UUID, limit int) ([]model.SyncJob, error)
}

type syncJobRepo struct {
	db *gorm.DB
}

func NewSyncJobRepo(db *gorm.DB) SyncJobRepository {
	return &syncJobRepo{db}
}

func (r *syncJobRepo) Create(ctx context.Context, job *model.SyncJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *syncJobRepo) Get(ctx context.Context, id uuid.UUID) (*model.SyncJob, error) {
	var job model.SyncJob
	err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("sync job", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *syncJobRepo) HasActive(ctx context.Context, storeID uuid.UUID, jobType model.SyncJobType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.SyncJob{}).
		Where("store_id = ? AND job_type = ? AND status IN ?", storeID, jobType,
			[]model.SyncJobStatus{model.JobPending, model.JobRunning}).
		Count(&count).Error
	return count > 0, err
}

func (r *syncJobRepo) Claim(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.SyncJob{}).
		Where("id = ? AND status = ?", id, model.JobPending).
		Updates(map[string]interface{}{
			"status":     model.JobRunning,
			"started_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *syncJobRepo) Update(ctx context.Context, job *model.SyncJob) error {
	return r.db.WithContext(ctx).Save(job).Error
}

func (r *syncJobRepo) AppendLog(ctx context.Context, entry *model.SyncLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *syncJobRepo) Logs(ctx context.Context, jobID uuid.UUID) ([]model.SyncLog, error) {
	var logs []model.SyncLog
	err := r.db.WithContext(ctx).
		Where("sync_job_id = ?", jobID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

func (r *syncJobRepo) ListByStore(ctx context.Context, storeID uuid.UUID, limit int) ([]model.SyncJob, error) {
	var jobs []model.SyncJob
	q := r.db.WithContext(ctx).Where("store_id = ?", storeID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&jobs).Error
	return jobs, err
}
