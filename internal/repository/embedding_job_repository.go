package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lawspark-go/internal/model"
	"lawspark-go/pkg/apperrors"
)

// EmbeddingJobRepository 管理 embedding_jobs 表中的抢占记录。
type EmbeddingJobRepository interface {
	// Claim 以 INSERT ... ON CONFLICT DO NOTHING 写入 pending 任务，返回是否抢占成功。
	Claim(ctx context.Context, job *model.EmbeddingJob) (bool, error)
	// Reclaim 在当前状态属于 from，或 pending 且 started_at 早于 staleBefore 时
	// 把任务改回 pending 并换成 job.RunID，返回是否抢占成功。
	Reclaim(ctx context.Context, job *model.EmbeddingJob, staleBefore time.Time, from ...string) (bool, error)
	// Finish 写回最终状态。任务已被删除或被其他 RunID 接管时返回 false。
	Finish(ctx context.Context, job *model.EmbeddingJob) (bool, error)
	FindByDocument(ctx context.Context, documentID uuid.UUID) (*model.EmbeddingJob, error)
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
	List(ctx context.Context, status string, page, size int) ([]model.EmbeddingJob, int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)
}

type embeddingJobRepository struct {
	db *gorm.DB
}

// NewEmbeddingJobRepository 创建一个新的 EmbeddingJobRepository 实例。
func NewEmbeddingJobRepository(db *gorm.DB) EmbeddingJobRepository {
	return &embeddingJobRepository{db: db}
}

func (r *embeddingJobRepository) Claim(ctx context.Context, job *model.EmbeddingJob) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "document_id"}}, DoNothing: true}).
		Create(job)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *embeddingJobRepository) Reclaim(ctx context.Context, job *model.EmbeddingJob, staleBefore time.Time, from ...string) (bool, error) {
	res := reclaimQuery(r.db.WithContext(ctx), job.DocumentID, staleBefore, from).
		Updates(map[string]interface{}{
			"status":        model.JobPending,
			"run_id":        job.RunID,
			"model":         job.Model,
			"chunk_size":    job.ChunkSize,
			"chunk_overlap": job.ChunkOverlap,
			"total_chunks":  0,
			"stored_chunks": 0,
			"failures":      gorm.Expr("'[]'::jsonb"),
			"requested_by":  job.RequestedBy,
			"started_at":    job.StartedAt,
			"finished_at":   nil,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func reclaimQuery(db *gorm.DB, documentID uuid.UUID, staleBefore time.Time, from []string) *gorm.DB {
	q := db.Model(&model.EmbeddingJob{}).Where("document_id = ?", documentID)
	if len(from) == 0 {
		return q.Where("status = ? AND started_at < ?", model.JobPending, staleBefore)
	}
	return q.Where("(status IN ? OR (status = ? AND started_at < ?))", from, model.JobPending, staleBefore)
}

func (r *embeddingJobRepository) Finish(ctx context.Context, job *model.EmbeddingJob) (bool, error) {
	job.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).Model(&model.EmbeddingJob{}).
		Where("document_id = ? AND run_id = ? AND status = ?", job.DocumentID, job.RunID, model.JobPending).
		Updates(map[string]interface{}{
			"status":        job.Status,
			"total_chunks":  job.TotalChunks,
			"stored_chunks": job.StoredChunks,
			"failures":      job.Failures,
			"finished_at":   job.FinishedAt,
			"updated_at":    job.UpdatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *embeddingJobRepository) FindByDocument(ctx context.Context, documentID uuid.UUID) (*model.EmbeddingJob, error) {
	var job model.EmbeddingJob
	err := r.db.WithContext(ctx).Where("document_id = ?", documentID).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.NotFoundf("embedding job for document %s", documentID)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *embeddingJobRepository) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.EmbeddingJob{}).Error
}

func (r *embeddingJobRepository) List(ctx context.Context, status string, page, size int) ([]model.EmbeddingJob, int64, error) {
	var (
		jobs  []model.EmbeddingJob
		total int64
	)
	q := r.db.WithContext(ctx).Model(&model.EmbeddingJob{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("updated_at DESC").Offset((page - 1) * size).Limit(size).Find(&jobs).Error
	return jobs, total, err
}

func (r *embeddingJobRepository) CountByStatus(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&model.EmbeddingJob{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := map[string]int64{
		model.JobPending:  0,
		model.JobPartial:  0,
		model.JobComplete: 0,
		model.JobFailed:   0,
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
