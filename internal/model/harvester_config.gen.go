package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/haierkeys/harvester-service/pkg/timex"

	"github.com/bytedance/sonic"
)

const TableNameHarvesterConfig = "harvester_config"

// HarvesterConfig mapped from table <harvester_config>
// The protocol payloads share one row; columns not used by a protocol stay empty.
type HarvesterConfig struct {
	ID            int64      `gorm:"column:id;primaryKey" json:"id" form:"id"`
	Protocol      string     `gorm:"column:protocol;not null;size:8;index:idx_harvester_config_protocol" json:"protocol" form:"protocol"`
	Name          string     `gorm:"column:name;not null" json:"name" form:"name"`
	Schedule      string     `gorm:"column:schedule;not null" json:"schedule" form:"schedule"`
	Transfile     string     `gorm:"column:transfile;not null" json:"transfile" form:"transfile"`
	Seqno         int64      `gorm:"column:seqno;not null;default:0" json:"seqno" form:"seqno"`
	SeqnoExtract  string     `gorm:"column:seqno_extract" json:"seqnoExtract" form:"seqnoExtract"`
	Agency        string     `gorm:"column:agency" json:"agency" form:"agency"`
	Enabled       bool       `gorm:"column:enabled;not null;default:false;index:idx_harvester_config_enabled" json:"enabled" form:"enabled"`
	Gzip          bool       `gorm:"column:gzip;not null;default:false" json:"gzip" form:"gzip"`
	LastHarvested timex.Time `gorm:"column:last_harvested;type:datetime;default:NULL" json:"lastHarvested" form:"lastHarvested"`

	// http
	URL              string      `gorm:"column:url" json:"url" form:"url"`
	URLPattern       string      `gorm:"column:url_pattern" json:"urlPattern" form:"urlPattern"`
	ListFilesHandler string      `gorm:"column:list_files_handler;size:32" json:"listFilesHandler" form:"listFilesHandler"`
	HttpHeaders      HttpHeaders `gorm:"column:http_headers;type:text" json:"httpHeaders" form:"httpHeaders"`

	// ftp / sftp
	Host         string `gorm:"column:host" json:"host" form:"host"`
	Port         int    `gorm:"column:port" json:"port" form:"port"`
	Username     string `gorm:"column:username" json:"username" form:"username"`
	Password     string `gorm:"column:password" json:"password" form:"password"`
	Dir          string `gorm:"column:dir" json:"dir" form:"dir"`
	FilesPattern string `gorm:"column:files_pattern" json:"filesPattern" form:"filesPattern"`
	PrivateKey   string `gorm:"column:private_key;type:text" json:"privateKey" form:"privateKey"`
	PublicKey    string `gorm:"column:public_key;type:text" json:"publicKey" form:"publicKey"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt" form:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt" form:"updatedAt"`
}

// HttpHeader 单个请求头
type HttpHeader struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// HttpHeaders is stored as a JSON array so the order given by the operator is kept
// HttpHeaders 以 JSON 数组存储，保留顺序
type HttpHeaders []HttpHeader

func (h HttpHeaders) Value() (driver.Value, error) {
	if len(h) == 0 {
		return "[]", nil
	}
	b, err := sonic.Marshal([]HttpHeader(h))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (h *HttpHeaders) Scan(v interface{}) error {
	var data []byte
	switch val := v.(type) {
	case nil:
		*h = nil
		return nil
	case string:
		data = []byte(val)
	case []byte:
		data = val
	default:
		return fmt.Errorf("http_headers: can not scan %T", v)
	}
	if len(data) == 0 {
		*h = nil
		return nil
	}
	var out []HttpHeader
	if err := sonic.Unmarshal(data, &out); err != nil {
		return err
	}
	*h = out
	return nil
}
