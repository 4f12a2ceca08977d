// Package app 提供应用容器，封装所有依赖和服务
package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/haierkeys/harvester-service/internal/dao"
	"github.com/haierkeys/harvester-service/internal/harvest"
	"github.com/haierkeys/harvester-service/internal/service"
	"github.com/haierkeys/harvester-service/pkg/storage"
	"github.com/haierkeys/harvester-service/pkg/util"
	"github.com/haierkeys/harvester-service/pkg/workerpool"
	"github.com/haierkeys/harvester-service/pkg/writequeue"

	"github.com/creasty/defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// MaxHarvestWorkers 采集 worker 数量上限
const MaxHarvestWorkers = 16

// AppConfig 应用配置
type AppConfig struct {
	File     string               `yaml:"-"` // 配置文件路径，不序列化
	Server   ServerConfig         `yaml:"server"`
	Log      LogConfig            `yaml:"log"`
	Database DatabaseConfig       `yaml:"database"`
	App      AppSettings          `yaml:"app"`
	Harvest  HarvestConfig        `yaml:"harvest"`
	Output   storage.Config       `yaml:"output"`
	Notify   service.NotifyConfig `yaml:"notify"`
	Security SecurityConfig       `yaml:"security"`
	Tracer   TracerConfig         `yaml:"tracer"`
}

// LogConfig 日志配置
type LogConfig struct {
	// Level 日志级别，参见 zapcore.ParseLevel
	Level string `yaml:"level" default:"info"`
	// File 日志文件路径，默认为 stderr
	File string `yaml:"file" default:"storage/logs/log.log"`
	// Production 是否启用 JSON 输出
	Production bool `yaml:"production" default:"true"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// RunMode 运行模式
	RunMode string `yaml:"run-mode" default:"release"`
	// HttpPort HTTP 端口
	HttpPort string `yaml:"http-port" default:":8080"`
	// ReadTimeout 读取超时（秒）
	ReadTimeout int `yaml:"read-timeout" default:"60"`
	// WriteTimeout 写入超时（秒）
	WriteTimeout int `yaml:"write-timeout" default:"60"`
	// PrivateHttpListen 私有 HTTP 监听地址，提供 metrics 与 pprof
	PrivateHttpListen string `yaml:"private-http-listen" default:":8081"`
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	// AuthTokenKey 操作员令牌签名密钥，为空时 API 不鉴权
	AuthTokenKey string `yaml:"auth-token-key"`
	TokenExpiry  string `yaml:"token-expiry" default:"365d"` // Token 过期时间，支持格式：7d（天）、24h（小时）、30m（分钟）
	// RateLimit 每秒允许的写请求数，0 表示不限流
	RateLimit int64 `yaml:"rate-limit" default:"20"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// Type 数据库类型 sqlite / mysql / postgres
	Type string `yaml:"type" default:"sqlite"`
	// Path SQLite 数据库文件路径
	Path string `yaml:"path" default:"storage/database/harvester.sqlite3"`
	// UserName 用户名
	UserName string `yaml:"username"`
	// Password 密码
	Password string `yaml:"password"`
	// Host 主机
	Host string `yaml:"host"`
	// Name 数据库名
	Name string `yaml:"name"`
	// TablePrefix 表前缀
	TablePrefix string `yaml:"table-prefix"`
	// AutoMigrate 是否启用自动迁移
	AutoMigrate bool `yaml:"auto-migrate" default:"true"`
	// Charset 字符集
	Charset string `yaml:"charset"`
	// ParseTime 是否解析时间
	ParseTime bool `yaml:"parse-time"`
	// MaxIdleConns 最大闲置连接数，默认 10
	MaxIdleConns int `yaml:"max-idle-conns" default:"10"`
	// MaxOpenConns 最大打开连接数，默认 100
	MaxOpenConns int `yaml:"max-open-conns" default:"100"`
	// ConnMaxLifetime 连接最大生命周期，支持格式：30m（分钟）、1h（小时），默认 30m
	ConnMaxLifetime string `yaml:"conn-max-lifetime" default:"30m"`
	// ConnMaxIdleTime 空闲连接最大生命周期，默认 10m
	ConnMaxIdleTime string `yaml:"conn-max-idle-time" default:"10m"`
}

// AppSettings 应用设置
type AppSettings struct {
	// DefaultPageSize 默认页面大小
	DefaultPageSize int `yaml:"default-page-size" default:"10"`
	// MaxPageSize 最大页面大小
	MaxPageSize int `yaml:"max-page-size" default:"100"`
	// DefaultContextTimeout 默认上下文超时时间（秒）
	DefaultContextTimeout int `yaml:"default-context-timeout" default:"60"`
}

// HarvestConfig 采集调度配置
type HarvestConfig struct {
	// SchedulerInterval 调度器检查间隔
	SchedulerInterval string `yaml:"scheduler-interval" default:"20s"`
	// Timezone cron 表达式使用的时区，为空时使用本地时区
	Timezone string `yaml:"timezone"`
	// AppID 写入 transfile 文件名的应用标识
	AppID string `yaml:"app-id" default:"harvester"`
	// RunHistoryRetention 运行历史保留时间，0 表示永久保留
	RunHistoryRetention string `yaml:"run-history-retention" default:"30d"`
	// TestTimeout 预览列举超时
	TestTimeout string `yaml:"test-timeout" default:"2m"`
	// WorkerPool 运行采集任务的 worker 池
	WorkerPool workerpool.Config `yaml:"worker-pool"`
	// WriteQueue 按配置串行化的写队列
	WriteQueue writequeue.Config `yaml:"write-queue"`
	// Transport 远端连接参数
	Transport harvest.Options `yaml:"transport"`
}

// TracerConfig 请求追踪配置
type TracerConfig struct {
	// Enabled 是否启用追踪
	Enabled bool `yaml:"enabled" default:"true"`
	// Header 追踪 ID 请求头名称，默认 X-Trace-ID
	Header string `yaml:"header" default:"X-Trace-ID"`
	// JaegerAgent Jaeger agent 地址，例如 127.0.0.1:6831，为空时不上报
	JaegerAgent string `yaml:"jaeger-agent"`
	// SampleRate 采样率，1 表示全部采样
	SampleRate float64 `yaml:"sample-rate" default:"1"`
}

// LoadConfig 从文件加载配置
// 返回配置实例和配置文件的绝对路径
func LoadConfig(f string) (*AppConfig, string, error) {
	realpath, err := filepath.Abs(f)
	if err != nil {
		return nil, "", err
	}
	realpath = filepath.Clean(realpath)

	file, err := os.ReadFile(realpath)
	if err != nil {
		return nil, realpath, errors.Wrap(err, "read config file failed")
	}

	c, err := ParseConfig(file)
	if err != nil {
		return nil, realpath, err
	}
	c.File = realpath
	return c, realpath, nil
}

// ParseConfig 解析 YAML 配置内容并填充默认值
func ParseConfig(data []byte) (*AppConfig, error) {
	c := new(AppConfig)

	// 设置默认值
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "set default config failed")
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, errors.Wrap(err, "parse config file failed")
	}

	// 再次设置默认值，以填充 YAML 中存在但值为空的字段
	// defaults.Set 只有在字段为该类型的零值时才会填充
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "re-set default config failed")
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate 校验无法由默认值修正的配置项
func (c *AppConfig) Validate() error {
	if _, err := util.ParseDuration(c.Harvest.SchedulerInterval); err != nil {
		return errors.Wrapf(err, "invalid harvest.scheduler-interval %q", c.Harvest.SchedulerInterval)
	}
	if _, err := util.ParseDuration(c.Harvest.RunHistoryRetention); err != nil {
		return errors.Wrapf(err, "invalid harvest.run-history-retention %q", c.Harvest.RunHistoryRetention)
	}
	if _, err := util.ParseDuration(c.Harvest.TestTimeout); err != nil {
		return errors.Wrapf(err, "invalid harvest.test-timeout %q", c.Harvest.TestTimeout)
	}
	if _, err := time.LoadLocation(c.Harvest.Timezone); err != nil {
		return errors.Wrapf(err, "invalid harvest.timezone %q", c.Harvest.Timezone)
	}
	if n := c.Harvest.WorkerPool.MaxWorkers; n < 1 || n > MaxHarvestWorkers {
		return errors.Errorf("harvest.worker-pool.max-workers must be between 1 and %d, got %d", MaxHarvestWorkers, n)
	}
	if c.Output.IsEnabled && !storage.StorageTypeMap[c.Output.Type] {
		return errors.Errorf("unknown output.type %q", c.Output.Type)
	}
	return nil
}

// Save 保存配置到文件
func (c *AppConfig) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config failed")
	}

	err = os.WriteFile(c.File, data, 0644)
	if err != nil {
		return errors.Wrap(err, "write config file failed")
	}

	return nil
}

// GetDatabaseConfig 转换为 DAO 使用的数据库配置
func (c *AppConfig) GetDatabaseConfig() dao.DatabaseConfig {
	dc := dao.DatabaseConfig{
		Type:         c.Database.Type,
		Path:         c.Database.Path,
		UserName:     c.Database.UserName,
		Password:     c.Database.Password,
		Host:         c.Database.Host,
		Name:         c.Database.Name,
		TablePrefix:  c.Database.TablePrefix,
		AutoMigrate:  c.Database.AutoMigrate,
		Charset:      c.Database.Charset,
		ParseTime:    c.Database.ParseTime,
		MaxIdleConns: c.Database.MaxIdleConns,
		MaxOpenConns: c.Database.MaxOpenConns,
		RunMode:      c.Server.RunMode,
	}
	if d, err := util.ParseDuration(c.Database.ConnMaxLifetime); err == nil {
		dc.ConnMaxLifetime = d
	}
	if d, err := util.ParseDuration(c.Database.ConnMaxIdleTime); err == nil {
		dc.ConnMaxIdleTime = d
	}
	return dc
}

// GetSchedulerInterval 获取调度器检查间隔
func (c *AppConfig) GetSchedulerInterval() time.Duration {
	if d, err := util.ParseDuration(c.Harvest.SchedulerInterval); err == nil && d > 0 {
		return d
	}
	return 20 * time.Second
}

// GetHarvestServiceConfig 提取 Service 层需要的配置
func (c *AppConfig) GetHarvestServiceConfig() service.HarvestServiceConfig {
	sc := service.HarvestServiceConfig{Timezone: c.Harvest.Timezone}
	if d, err := util.ParseDuration(c.Harvest.RunHistoryRetention); err == nil {
		sc.RunHistoryRetention = d
	}
	if d, err := util.ParseDuration(c.Harvest.TestTimeout); err == nil {
		sc.TestTimeout = d
	}
	return sc
}

// GetTokenExpiry 获取 Token 过期时间
func (c *AppConfig) GetTokenExpiry() time.Duration {
	if expiry, err := util.ParseDuration(c.Security.TokenExpiry); err == nil {
		return expiry
	}
	return 365 * 24 * time.Hour // 理论上不会走到这里，因为有默认值
}

// GetContextTimeout 获取请求上下文超时时间
func (c *AppConfig) GetContextTimeout() time.Duration {
	return time.Duration(c.App.DefaultContextTimeout) * time.Second
}
