// Package domain 定义领域模型和接口
package domain

import (
	"strings"
	"time"
)

// Protocol tags the variant of a harvester config
// Protocol 采集配置的协议类型
type Protocol string

const (
	ProtocolHTTP Protocol = "http"
	ProtocolFTP  Protocol = "ftp"
	ProtocolSFTP Protocol = "sftp"
)

// Protocols 所有支持的协议，按路由注册顺序
var Protocols = []Protocol{ProtocolHTTP, ProtocolFTP, ProtocolSFTP}

// ParseProtocol 解析路由中的协议段
func ParseProtocol(s string) (Protocol, bool) {
	switch p := Protocol(strings.ToLower(s)); p {
	case ProtocolHTTP, ProtocolFTP, ProtocolSFTP:
		return p, true
	}
	return "", false
}

// ListFilesHandler selects how an HTTP harvester enumerates its remote entries
type ListFilesHandler string

const (
	ListFilesStandard        ListFilesHandler = "STANDARD"
	ListFilesLitteratursiden ListFilesHandler = "LITTERATURSIDEN"
)

const (
	DefaultFtpPort  = 21
	DefaultSFtpPort = 22
)

// HttpHeader 一个有序的请求头
type HttpHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// HttpPayload HTTP 采集专有字段
type HttpPayload struct {
	URL              string
	URLPattern       string
	ListFilesHandler ListFilesHandler
	HttpHeaders      []HttpHeader
}

// FtpPayload FTP 采集专有字段
type FtpPayload struct {
	Host         string
	Port         int
	Username     string
	Password     string
	Dir          string
	FilesPattern string
}

// SFtpPayload SFTP 采集专有字段，PrivateKey 优先于 Password
type SFtpPayload struct {
	Host         string
	Port         int
	Username     string
	Password     string
	Dir          string
	FilesPattern string
	PrivateKey   string
	PublicKey    string
}

// HarvesterConfig is a harvester configuration; exactly one payload matching Protocol is set
// HarvesterConfig 采集配置领域模型，与 Protocol 对应的载荷有且仅有一个
type HarvesterConfig struct {
	ID            int64
	Protocol      Protocol
	Name          string
	Schedule      string
	Transfile     string
	Seqno         int64
	SeqnoExtract  string
	Agency        string
	Enabled       bool
	Gzip          bool
	LastHarvested *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	Http *HttpPayload
	Ftp  *FtpPayload
	SFtp *SFtpPayload
}

// Normalize applies protocol defaults and drops payloads that do not match Protocol
// Normalize 补齐默认值并清除与协议不符的载荷
func (c *HarvesterConfig) Normalize() {
	switch c.Protocol {
	case ProtocolHTTP:
		c.Ftp, c.SFtp = nil, nil
		if c.Http != nil && c.Http.ListFilesHandler == "" {
			c.Http.ListFilesHandler = ListFilesStandard
		}
	case ProtocolFTP:
		c.Http, c.SFtp = nil, nil
		if c.Ftp != nil && c.Ftp.Port == 0 {
			c.Ftp.Port = DefaultFtpPort
		}
	case ProtocolSFTP:
		c.Http, c.Ftp = nil, nil
		if c.SFtp != nil && c.SFtp.Port == 0 {
			c.SFtp.Port = DefaultSFtpPort
		}
	}
}

// HasPayload 与协议对应的载荷是否存在
func (c *HarvesterConfig) HasPayload() bool {
	switch c.Protocol {
	case ProtocolHTTP:
		return c.Http != nil
	case ProtocolFTP:
		return c.Ftp != nil
	case ProtocolSFTP:
		return c.SFtp != nil
	}
	return false
}

// UploadName is the name a harvested file is delivered under.
// FTP and SFTP files are prefixed with the agency, HTTP files keep their name.
// UploadName 投递文件名：FTP/SFTP 以 agency 为前缀，HTTP 保持原名
func (c *HarvesterConfig) UploadName(filename string) string {
	if c.Protocol == ProtocolHTTP || c.Agency == "" {
		return filename
	}
	return c.Agency + "." + filename
}
