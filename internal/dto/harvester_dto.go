package dto

import (
	"bytes"
	"strconv"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"

	"github.com/dustin/go-humanize"
)

// IDRequest path parameter :id
// IDRequest 路径参数 :id
type IDRequest struct {
	ID int64 `uri:"id" binding:"required,gte=1" example:"1"` // Config ID // 配置 ID
}

// EnableRequest query of the enable endpoint
// EnableRequest 启用/停用请求参数
type EnableRequest struct {
	Enabled *bool `form:"enabled" json:"enabled" binding:"required"` // Target state // 目标状态
}

// Seqno watermark accepting a JSON number or a numeric string
// Seqno 序号水位，同时接受数字与数字字符串（GUI 表单提交原始字符串）
type Seqno int64

// UnmarshalJSON 解析数字或数字字符串，空字符串与 null 视为 0
func (s *Seqno) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		str, err := strconv.Unquote(string(data))
		if err != nil {
			return err
		}
		data = bytes.TrimSpace([]byte(str))
		if len(data) == 0 {
			*s = 0
			return nil
		}
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return &SeqnoError{Value: string(data)}
	}
	*s = Seqno(n)
	return nil
}

// SeqnoError seqno 不是整数
type SeqnoError struct {
	Value string
}

func (e *SeqnoError) Error() string {
	return "seqno must be an integer, got " + strconv.Quote(e.Value)
}

// ConfigCommon fields shared by every harvester config document
// ConfigCommon 所有协议共有的配置字段
type ConfigCommon struct {
	ID            int64            `json:"id" example:"1"`                                          // Config ID, 0 creates // 配置 ID，0 表示新建
	Name          string           `json:"name" binding:"required,max=255"`                         // Display name // 名称
	Schedule      string           `json:"schedule" binding:"required,cron" example:"0 * * * *"`    // 5-field cron // cron 表达式
	Transfile     string           `json:"transfile" binding:"transfile" example:"b=databroendpr3"` // Transfile template // transfile 模板
	Seqno         Seqno            `json:"seqno" binding:"gte=0"`                                   // Seqno watermark // 序号水位
	SeqnoExtract  string           `json:"seqnoExtract" example:"2-3,6-7"`                          // Cut expression // 序号提取表达式
	Agency        string           `json:"agency" binding:"agency" example:"010100"`                // Filename prefix // 文件名前缀
	Enabled       bool             `json:"enabled"`                                                 // Scheduled firing on // 是否启用定时
	Gzip          bool             `json:"gzip"`                                                    // Compress data files // 是否压缩
	LastHarvested *time.Time       `json:"lastHarvested"`                                           // Last completed run // 上次完成时间
	Progress      *domain.Progress `json:"progress,omitempty" binding:"-"`                          // Run state, response only // 运行状态，仅响应
}

func (c *ConfigCommon) toDomain(p domain.Protocol) *domain.HarvesterConfig {
	return &domain.HarvesterConfig{
		ID:            c.ID,
		Protocol:      p,
		Name:          c.Name,
		Schedule:      c.Schedule,
		Transfile:     c.Transfile,
		Seqno:         int64(c.Seqno),
		SeqnoExtract:  c.SeqnoExtract,
		Agency:        c.Agency,
		Enabled:       c.Enabled,
		Gzip:          c.Gzip,
		LastHarvested: c.LastHarvested,
	}
}

func commonFrom(cfg *domain.HarvesterConfig, progress *domain.Progress) ConfigCommon {
	return ConfigCommon{
		ID:            cfg.ID,
		Name:          cfg.Name,
		Schedule:      cfg.Schedule,
		Transfile:     cfg.Transfile,
		Seqno:         Seqno(cfg.Seqno),
		SeqnoExtract:  cfg.SeqnoExtract,
		Agency:        cfg.Agency,
		Enabled:       cfg.Enabled,
		Gzip:          cfg.Gzip,
		LastHarvested: cfg.LastHarvested,
		Progress:      progress,
	}
}

// ConfigDocument is the JSON document of one protocol
// ConfigDocument 单个协议的配置 JSON 文档
type ConfigDocument interface {
	ToDomain() *domain.HarvesterConfig
}

// HttpHeaderDTO 自定义请求头
type HttpHeaderDTO struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

// HttpConfigDTO HTTP harvester config
// HttpConfigDTO HTTP 采集配置
type HttpConfigDTO struct {
	ConfigCommon
	URL              string          `json:"url" binding:"required,max=2048"`                                     // Listing or file URL // 地址
	URLPattern       string          `json:"urlPattern"`                                                          // Glob searched in the body of url // 页面内链接匹配
	ListFilesHandler string          `json:"listFilesHandler" binding:"omitempty,oneof=STANDARD LITTERATURSIDEN"` // Listing strategy // 列表方式
	HttpHeaders      []HttpHeaderDTO `json:"httpHeaders" binding:"omitempty,dive"`                                // Ordered request headers // 请求头
}

func (d *HttpConfigDTO) ToDomain() *domain.HarvesterConfig {
	cfg := d.ConfigCommon.toDomain(domain.ProtocolHTTP)
	headers := make([]domain.HttpHeader, 0, len(d.HttpHeaders))
	for _, h := range d.HttpHeaders {
		headers = append(headers, domain.HttpHeader{Key: h.Key, Value: h.Value})
	}
	cfg.Http = &domain.HttpPayload{
		URL:              d.URL,
		URLPattern:       d.URLPattern,
		ListFilesHandler: domain.ListFilesHandler(d.ListFilesHandler),
		HttpHeaders:      headers,
	}
	return cfg
}

// FtpConfigDTO FTP harvester config
// FtpConfigDTO FTP 采集配置
type FtpConfigDTO struct {
	ConfigCommon
	Host         string `json:"host" binding:"required"`                  // Remote host // 主机
	Port         int    `json:"port" binding:"omitempty,min=1,max=65535"` // Remote port, default 21 // 端口
	Username     string `json:"username"`                                 // Login // 用户名
	Password     string `json:"password"`                                 // Password // 密码
	Dir          string `json:"dir"`                                      // Remote directory // 目录
	FilesPattern string `json:"filesPattern"`                             // Glob for file names // 文件名匹配
}

func (d *FtpConfigDTO) ToDomain() *domain.HarvesterConfig {
	cfg := d.ConfigCommon.toDomain(domain.ProtocolFTP)
	cfg.Ftp = &domain.FtpPayload{
		Host:         d.Host,
		Port:         d.Port,
		Username:     d.Username,
		Password:     d.Password,
		Dir:          d.Dir,
		FilesPattern: d.FilesPattern,
	}
	return cfg
}

// SFtpConfigDTO SFTP harvester config
// SFtpConfigDTO SFTP 采集配置
type SFtpConfigDTO struct {
	ConfigCommon
	Host         string `json:"host" binding:"required"`
	Port         int    `json:"port" binding:"omitempty,min=1,max=65535"` // default 22 // 默认 22
	Username     string `json:"username" binding:"required"`
	Password     string `json:"password"`
	Dir          string `json:"dir"`
	FilesPattern string `json:"filesPattern"`
	PrivateKey   string `json:"privateKey"`                               // PEM, wins over password // PEM 私钥，优先于密码
	PublicKey    string `json:"publicKey"`
}

func (d *SFtpConfigDTO) ToDomain() *domain.HarvesterConfig {
	cfg := d.ConfigCommon.toDomain(domain.ProtocolSFTP)
	cfg.SFtp = &domain.SFtpPayload{
		Host:         d.Host,
		Port:         d.Port,
		Username:     d.Username,
		Password:     d.Password,
		Dir:          d.Dir,
		FilesPattern: d.FilesPattern,
		PrivateKey:   d.PrivateKey,
		PublicKey:    d.PublicKey,
	}
	return cfg
}

// NewConfigDocument returns an empty document to bind a request of protocol p into
// NewConfigDocument 返回用于绑定请求的空文档
func NewConfigDocument(p domain.Protocol) ConfigDocument {
	switch p {
	case domain.ProtocolHTTP:
		return &HttpConfigDTO{}
	case domain.ProtocolFTP:
		return &FtpConfigDTO{}
	case domain.ProtocolSFTP:
		return &SFtpConfigDTO{}
	}
	return nil
}

// ConfigFromDomain renders cfg as the document of its protocol, progress may be nil
// ConfigFromDomain 将领域配置转为对应协议的文档
func ConfigFromDomain(cfg *domain.HarvesterConfig, progress *domain.Progress) any {
	common := commonFrom(cfg, progress)
	switch {
	case cfg.Protocol == domain.ProtocolHTTP && cfg.Http != nil:
		headers := make([]HttpHeaderDTO, 0, len(cfg.Http.HttpHeaders))
		for _, h := range cfg.Http.HttpHeaders {
			headers = append(headers, HttpHeaderDTO{Key: h.Key, Value: h.Value})
		}
		return &HttpConfigDTO{
			ConfigCommon:     common,
			URL:              cfg.Http.URL,
			URLPattern:       cfg.Http.URLPattern,
			ListFilesHandler: string(cfg.Http.ListFilesHandler),
			HttpHeaders:      headers,
		}
	case cfg.Protocol == domain.ProtocolFTP && cfg.Ftp != nil:
		return &FtpConfigDTO{
			ConfigCommon: common,
			Host:         cfg.Ftp.Host,
			Port:         cfg.Ftp.Port,
			Username:     cfg.Ftp.Username,
			Password:     cfg.Ftp.Password,
			Dir:          cfg.Ftp.Dir,
			FilesPattern: cfg.Ftp.FilesPattern,
		}
	case cfg.Protocol == domain.ProtocolSFTP && cfg.SFtp != nil:
		return &SFtpConfigDTO{
			ConfigCommon: common,
			Host:         cfg.SFtp.Host,
			Port:         cfg.SFtp.Port,
			Username:     cfg.SFtp.Username,
			Password:     cfg.SFtp.Password,
			Dir:          cfg.SFtp.Dir,
			FilesPattern: cfg.SFtp.FilesPattern,
			PrivateKey:   cfg.SFtp.PrivateKey,
			PublicKey:    cfg.SFtp.PublicKey,
		}
	}
	return &common
}

// SaveResponse 保存结果
type SaveResponse struct {
	ID int64 `json:"id"`
}

// RunResponse 手动运行结果
type RunResponse struct {
	ID    int64  `json:"id"`
	RunID string `json:"runId"`
}

// HarvestRunDTO run history entry
// HarvestRunDTO 运行历史条目
type HarvestRunDTO struct {
	RunID       string    `json:"runId"`
	ConfigID    int64     `json:"configId"`
	Protocol    string    `json:"protocol"`
	Trigger     string    `json:"trigger"`
	State       string    `json:"state"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Duration    string    `json:"duration"`          // Human readable // 可读耗时
	FilesTotal  int       `json:"filesTotal"`
	FilesDone   int       `json:"filesDone"`
	Bytes       int64     `json:"bytes"`
	Size        string    `json:"size"`              // Human readable bytes // 可读大小
	SeqnoBefore int64     `json:"seqnoBefore"`
	SeqnoAfter  int64     `json:"seqnoAfter"`
	Message     string    `json:"message,omitempty"`
}

// RunFromDomain 转换运行历史
func RunFromDomain(run *domain.HarvestRun) *HarvestRunDTO {
	d := &HarvestRunDTO{
		RunID:       run.RunID,
		ConfigID:    run.ConfigID,
		Protocol:    string(run.Protocol),
		Trigger:     string(run.Trigger),
		State:       string(run.State),
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
		FilesTotal:  run.FilesTotal,
		FilesDone:   run.FilesDone,
		Bytes:       run.Bytes,
		Size:        humanize.Bytes(uint64(max(run.Bytes, 0))),
		SeqnoBefore: run.SeqnoBefore,
		SeqnoAfter:  run.SeqnoAfter,
		Message:     run.Message,
	}
	if !run.FinishedAt.IsZero() {
		d.Duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
	}
	return d
}

// MessageResponse 错误或描述信息
type MessageResponse struct {
	Message string `json:"message"`
}
