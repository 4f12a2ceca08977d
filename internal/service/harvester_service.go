package service

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/haierkeys/harvester-service/internal/domain"
	"github.com/haierkeys/harvester-service/internal/harvest"
	"github.com/haierkeys/harvester-service/pkg/code"
	"github.com/haierkeys/harvester-service/pkg/cronexpr"
	"github.com/haierkeys/harvester-service/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var agencyPattern = regexp.MustCompile(`^[0-9]`)

// HarvesterService 定义采集配置业务服务接口
type HarvesterService interface {
	// Save creates the config when it has no id and replaces it otherwise
	// Save 无 ID 时创建，有 ID 时整体替换
	Save(ctx context.Context, cfg *domain.HarvesterConfig) (*domain.HarvesterConfig, error)

	// Get 根据协议和 ID 获取配置
	Get(ctx context.Context, protocol domain.Protocol, id int64) (*domain.HarvesterConfig, error)

	// List 按 ID 顺序分段列出配置，limit <= 0 表示不限制
	List(ctx context.Context, protocol domain.Protocol, start, limit int) ([]*domain.HarvesterConfig, error)

	// Delete 删除配置
	Delete(ctx context.Context, protocol domain.Protocol, id int64) error

	// SetEnabled 启用或停用配置
	SetEnabled(ctx context.Context, protocol domain.Protocol, id int64, enabled bool) error
}

// harvesterService 实现 HarvesterService 接口
type harvesterService struct {
	repo   domain.HarvesterConfigRepository
	logger *zap.Logger
}

// NewHarvesterService 创建 HarvesterService 实例
func NewHarvesterService(repo domain.HarvesterConfigRepository, logger *zap.Logger) HarvesterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &harvesterService{repo: repo, logger: logger}
}

// ValidateConfig checks a config before it is stored.
// The returned error is a *code.Code carrying the failing field in its details.
func ValidateConfig(cfg *domain.HarvesterConfig) error {
	if _, ok := domain.ParseProtocol(string(cfg.Protocol)); !ok {
		return code.ErrorInvalidProtocol
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return code.ErrorValidation.WithDetails("name is required")
	}
	if err := cronexpr.Validate(cfg.Schedule); err != nil {
		return code.ErrorInvalidSchedule.WithDetails(err.Error())
	}
	if err := harvest.ValidateTransfile(cfg.Transfile); err != nil {
		return code.ErrorInvalidTransfile.WithDetails(err.Error())
	}
	if !agencyPattern.MatchString(cfg.Agency) {
		return code.ErrorValidation.WithDetails("agency must start with a digit")
	}
	if cfg.Seqno < 0 {
		return code.ErrorValidation.WithDetails("seqno must not be negative")
	}
	if strings.TrimSpace(cfg.SeqnoExtract) != "" {
		if _, err := harvest.ParseCut(cfg.SeqnoExtract); err != nil {
			return code.ErrorValidation.WithDetails("seqnoExtract: " + err.Error())
		}
	}
	if !cfg.HasPayload() {
		return code.ErrorValidation.WithDetails(string(cfg.Protocol) + " settings are required")
	}

	switch cfg.Protocol {
	case domain.ProtocolHTTP:
		if strings.TrimSpace(cfg.Http.URL) == "" {
			return code.ErrorValidation.WithDetails("url is required")
		}
		switch cfg.Http.ListFilesHandler {
		case domain.ListFilesStandard, domain.ListFilesLitteratursiden:
		default:
			return code.ErrorValidation.WithDetails("unknown listFilesHandler " + string(cfg.Http.ListFilesHandler))
		}
	case domain.ProtocolFTP:
		if err := validateRemote(cfg.Ftp.Host, cfg.Ftp.Port); err != nil {
			return err
		}
	case domain.ProtocolSFTP:
		if err := validateRemote(cfg.SFtp.Host, cfg.SFtp.Port); err != nil {
			return err
		}
		if cfg.SFtp.Username == "" {
			return code.ErrorValidation.WithDetails("username is required")
		}
	}
	return nil
}

func validateRemote(host string, port int) error {
	if strings.TrimSpace(host) == "" {
		return code.ErrorValidation.WithDetails("host is required")
	}
	if port < 1 || port > 65535 {
		return code.ErrorValidation.WithDetails("port must be between 1 and 65535")
	}
	return nil
}

// Save 保存配置
func (s *harvesterService) Save(ctx context.Context, cfg *domain.HarvesterConfig) (*domain.HarvesterConfig, error) {
	cfg.Normalize()
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	if cfg.ID == 0 {
		created, err := s.repo.Create(ctx, cfg)
		if err != nil {
			return nil, code.ErrorDBQuery.WithDetails(err.Error())
		}
		s.logger.Info("harvester config created",
			zap.Int64(logger.FieldConfigID, created.ID),
			zap.String(logger.FieldProtocol, string(created.Protocol)),
			zap.String("name", created.Name))
		return created, nil
	}

	existing, err := s.repo.GetByID(ctx, cfg.ID)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if existing.Protocol != cfg.Protocol {
		return nil, code.ErrorProtocolMismatch
	}
	updated, err := s.repo.Update(ctx, cfg)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	return updated, nil
}

// Get 获取配置
func (s *harvesterService) Get(ctx context.Context, protocol domain.Protocol, id int64) (*domain.HarvesterConfig, error) {
	cfg, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoErr(err)
	}
	if protocol != "" && cfg.Protocol != protocol {
		return nil, code.ErrorConfigNotFound
	}
	return cfg, nil
}

// List 列出配置
func (s *harvesterService) List(ctx context.Context, protocol domain.Protocol, start, limit int) ([]*domain.HarvesterConfig, error) {
	if start < 0 {
		start = 0
	}
	list, err := s.repo.List(ctx, protocol, start, limit)
	if err != nil {
		return nil, code.ErrorDBQuery.WithDetails(err.Error())
	}
	return list, nil
}

// Delete 删除配置
func (s *harvesterService) Delete(ctx context.Context, protocol domain.Protocol, id int64) error {
	if _, err := s.Get(ctx, protocol, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoErr(err)
	}
	s.logger.Info("harvester config deleted", zap.Int64(logger.FieldConfigID, id))
	return nil
}

// SetEnabled 启用或停用
func (s *harvesterService) SetEnabled(ctx context.Context, protocol domain.Protocol, id int64, enabled bool) error {
	if _, err := s.Get(ctx, protocol, id); err != nil {
		return err
	}
	if err := s.repo.SetEnabled(ctx, id, enabled); err != nil {
		return mapRepoErr(err)
	}
	return nil
}

func mapRepoErr(err error) error {
	var c *code.Code
	switch {
	case errors.As(err, &c):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return code.ErrorConfigNotFound
	default:
		return code.ErrorDBQuery.WithDetails(err.Error())
	}
}
