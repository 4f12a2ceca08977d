package dao

import (
	"context"
	"math"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/internal/model"
	"github.com/haierkeys/harvester-service/pkg/timex"

	"gorm.io/gorm"
)

type harvesterConfigRepository struct {
	dao *Dao
}

// NewHarvesterConfigRepository 创建 HarvesterConfigRepository 实例
func NewHarvesterConfigRepository(dao *Dao) domain.HarvesterConfigRepository {
	return &harvesterConfigRepository{dao: dao}
}

func (r *harvesterConfigRepository) toDomain(m *model.HarvesterConfig) *domain.HarvesterConfig {
	if m == nil {
		return nil
	}
	d := &domain.HarvesterConfig{
		ID:           m.ID,
		Protocol:     domain.Protocol(m.Protocol),
		Name:         m.Name,
		Schedule:     m.Schedule,
		Transfile:    m.Transfile,
		Seqno:        m.Seqno,
		SeqnoExtract: m.SeqnoExtract,
		Agency:       m.Agency,
		Enabled:      m.Enabled,
		Gzip:         m.Gzip,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
	if !m.LastHarvested.IsZero() {
		t := m.LastHarvested.Time()
		d.LastHarvested = &t
	}

	switch d.Protocol {
	case domain.ProtocolHTTP:
		headers := make([]domain.HttpHeader, 0, len(m.HttpHeaders))
		for _, h := range m.HttpHeaders {
			headers = append(headers, domain.HttpHeader{Key: h.Key, Value: h.Value})
		}
		d.Http = &domain.HttpPayload{
			URL:              m.URL,
			URLPattern:       m.URLPattern,
			ListFilesHandler: domain.ListFilesHandler(m.ListFilesHandler),
			HttpHeaders:      headers,
		}
	case domain.ProtocolFTP:
		d.Ftp = &domain.FtpPayload{
			Host:         m.Host,
			Port:         m.Port,
			Username:     m.Username,
			Password:     m.Password,
			Dir:          m.Dir,
			FilesPattern: m.FilesPattern,
		}
	case domain.ProtocolSFTP:
		d.SFtp = &domain.SFtpPayload{
			Host:         m.Host,
			Port:         m.Port,
			Username:     m.Username,
			Password:     m.Password,
			Dir:          m.Dir,
			FilesPattern: m.FilesPattern,
			PrivateKey:   m.PrivateKey,
			PublicKey:    m.PublicKey,
		}
	}
	return d
}

func (r *harvesterConfigRepository) toModel(d *domain.HarvesterConfig) *model.HarvesterConfig {
	if d == nil {
		return nil
	}
	m := &model.HarvesterConfig{
		ID:           d.ID,
		Protocol:     string(d.Protocol),
		Name:         d.Name,
		Schedule:     d.Schedule,
		Transfile:    d.Transfile,
		Seqno:        d.Seqno,
		SeqnoExtract: d.SeqnoExtract,
		Agency:       d.Agency,
		Enabled:      d.Enabled,
		Gzip:         d.Gzip,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if d.LastHarvested != nil {
		m.LastHarvested = timex.Time(*d.LastHarvested)
	}

	switch {
	case d.Http != nil:
		m.URL = d.Http.URL
		m.URLPattern = d.Http.URLPattern
		m.ListFilesHandler = string(d.Http.ListFilesHandler)
		for _, h := range d.Http.HttpHeaders {
			m.HttpHeaders = append(m.HttpHeaders, model.HttpHeader{Key: h.Key, Value: h.Value})
		}
	case d.Ftp != nil:
		m.Host, m.Port, m.Username, m.Password = d.Ftp.Host, d.Ftp.Port, d.Ftp.Username, d.Ftp.Password
		m.Dir, m.FilesPattern = d.Ftp.Dir, d.Ftp.FilesPattern
	case d.SFtp != nil:
		m.Host, m.Port, m.Username, m.Password = d.SFtp.Host, d.SFtp.Port, d.SFtp.Username, d.SFtp.Password
		m.Dir, m.FilesPattern = d.SFtp.Dir, d.SFtp.FilesPattern
		m.PrivateKey, m.PublicKey = d.SFtp.PrivateKey, d.SFtp.PublicKey
	}
	return m
}

// Create 创建配置
func (r *harvesterConfigRepository) Create(ctx context.Context, cfg *domain.HarvesterConfig) (*domain.HarvesterConfig, error) {
	m := r.toModel(cfg)
	m.ID = 0
	// 新配置还没有 ID，使用 0 号队列
	err := r.dao.ExecuteWrite(ctx, 0, func(db *gorm.DB) error {
		return db.Create(m).Error
	})
	if err != nil {
		return nil, err
	}
	return r.toDomain(m), nil
}

// Update replaces the row; seqno and lastHarvested given by the caller are honoured
// Update 整体替换配置
func (r *harvesterConfigRepository) Update(ctx context.Context, cfg *domain.HarvesterConfig) (*domain.HarvesterConfig, error) {
	m := r.toModel(cfg)
	var out *model.HarvesterConfig
	err := r.dao.ExecuteWrite(ctx, cfg.ID, func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			var existing model.HarvesterConfig
			if err := tx.Where("id = ?", m.ID).First(&existing).Error; err != nil {
				return err
			}
			err := tx.Model(&model.HarvesterConfig{}).
				Where("id = ?", m.ID).
				Select("*").Omit("id", "created_at").
				Updates(m).Error
			if err != nil {
				return err
			}
			m.CreatedAt = existing.CreatedAt
			out = m
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return r.toDomain(out), nil
}

// GetByID 根据ID获取配置
func (r *harvesterConfigRepository) GetByID(ctx context.Context, id int64) (*domain.HarvesterConfig, error) {
	var m model.HarvesterConfig
	if err := r.dao.DB(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return r.toDomain(&m), nil
}

// List 按 ID 顺序列出配置
func (r *harvesterConfigRepository) List(ctx context.Context, protocol domain.Protocol, start, limit int) ([]*domain.HarvesterConfig, error) {
	var ms []*model.HarvesterConfig
	q := r.dao.DB(ctx).Where("protocol = ?", string(protocol)).Order("id ASC")
	if start > 0 {
		q = q.Offset(start)
	}
	if limit > 0 {
		q = q.Limit(limit)
	} else if start > 0 {
		// MySQL 与 SQLite 要求 OFFSET 必须配合 LIMIT
		q = q.Limit(math.MaxInt32)
	}
	if err := q.Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.HarvesterConfig, 0, len(ms))
	for _, m := range ms {
		out = append(out, r.toDomain(m))
	}
	return out, nil
}

// ListEnabled 列出所有启用的配置
func (r *harvesterConfigRepository) ListEnabled(ctx context.Context) ([]*domain.HarvesterConfig, error) {
	var ms []*model.HarvesterConfig
	if err := r.dao.DB(ctx).Where("enabled = ?", true).Order("id ASC").Find(&ms).Error; err != nil {
		return nil, err
	}
	out := make([]*domain.HarvesterConfig, 0, len(ms))
	for _, m := range ms {
		out = append(out, r.toDomain(m))
	}
	return out, nil
}

// Delete 删除配置，不存在时返回 gorm.ErrRecordNotFound
func (r *harvesterConfigRepository) Delete(ctx context.Context, id int64) error {
	return r.dao.ExecuteWrite(ctx, id, func(db *gorm.DB) error {
		res := db.Where("id = ?", id).Delete(&model.HarvesterConfig{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SetEnabled 修改启用状态
func (r *harvesterConfigRepository) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	return r.dao.ExecuteWrite(ctx, id, func(db *gorm.DB) error {
		res := db.Model(&model.HarvesterConfig{}).Where("id = ?", id).Update("enabled", enabled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// 值未变化时 MySQL 返回 0 行，再确认记录是否存在
			var count int64
			if err := db.Model(&model.HarvesterConfig{}).Where("id = ?", id).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return gorm.ErrRecordNotFound
			}
		}
		return nil
	})
}

// CommitSeqno 只在新值更大时写入
func (r *harvesterConfigRepository) CommitSeqno(ctx context.Context, id int64, seqno int64) error {
	return r.dao.ExecuteWrite(ctx, id, func(db *gorm.DB) error {
		return db.Model(&model.HarvesterConfig{}).
			Where("id = ? AND seqno < ?", id, seqno).
			Update("seqno", seqno).Error
	})
}

// MarkHarvested 更新最后采集时间
func (r *harvesterConfigRepository) MarkHarvested(ctx context.Context, id int64, at time.Time) error {
	return r.dao.ExecuteWrite(ctx, id, func(db *gorm.DB) error {
		return db.Model(&model.HarvesterConfig{}).
			Where("id = ?", id).
			Update("last_harvested", timex.Time(at)).Error
	})
}
