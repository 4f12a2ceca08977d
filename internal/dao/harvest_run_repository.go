package dao

import (
	"context"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/internal/model"
	"github.com/haierkeys/harvester-service/pkg/convert"
	"github.com/haierkeys/harvester-service/pkg/timex"

	"gorm.io/gorm"
)

type harvestRunRepository struct {
	dao *Dao
}

// NewHarvestRunRepository 创建 HarvestRunRepository 实例
func NewHarvestRunRepository(dao *Dao) domain.HarvestRunRepository {
	return &harvestRunRepository{dao: dao}
}

func (r *harvestRunRepository) toDomain(m *model.HarvestRun) (*domain.HarvestRun, error) {
	d := &domain.HarvestRun{}
	if err := convert.StructAssign(m, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Create 写入一条运行历史
func (r *harvestRunRepository) Create(ctx context.Context, run *domain.HarvestRun) (*domain.HarvestRun, error) {
	m := &model.HarvestRun{}
	if err := convert.StructAssign(run, m); err != nil {
		return nil, err
	}
	m.ID = 0
	err := r.dao.ExecuteWrite(ctx, run.ConfigID, func(db *gorm.DB) error {
		return db.Create(m).Error
	})
	if err != nil {
		return nil, err
	}
	return r.toDomain(m)
}

// ListByConfig 分页获取运行历史
func (r *harvestRunRepository) ListByConfig(ctx context.Context, configID int64, page, pageSize int) ([]*domain.HarvestRun, error) {
	var ms []*model.HarvestRun
	q := r.dao.DB(ctx).Where("config_id = ?", configID).Order("started_at DESC").Order("id DESC")
	if pageSize > 0 {
		if page < 1 {
			page = 1
		}
		q = q.Offset((page - 1) * pageSize).Limit(pageSize)
	}
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.HarvestRun, 0, len(ms))
	for _, m := range ms {
		d, err := r.toDomain(m)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (r *harvestRunRepository) CountByConfig(ctx context.Context, configID int64) (int64, error) {
	var count int64
	err := r.dao.DB(ctx).Model(&model.HarvestRun{}).Where("config_id = ?", configID).Count(&count).Error
	return count, err
}

// DeleteBefore 删除早于 before 的历史记录
func (r *harvestRunRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res := r.dao.DB(ctx).Where("started_at < ?", timex.Time(before)).Delete(&model.HarvestRun{})
	return res.RowsAffected, res.Error
}
