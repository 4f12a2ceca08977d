package model

import "github.com/haierkeys/harvester-service/pkg/timex"

const TableNameHarvestRun = "harvest_run"

// HarvestRun mapped from table <harvest_run>
type HarvestRun struct {
	ID          int64      `gorm:"column:id;primaryKey" json:"id" form:"id"`
	RunID       string     `gorm:"column:run_id;not null;size:36;uniqueIndex:idx_harvest_run_run_id" json:"runId" form:"runId"`
	ConfigID    int64      `gorm:"column:config_id;not null;index:idx_harvest_run_config,priority:1" json:"configId" form:"configId"`
	Protocol    string     `gorm:"column:protocol;size:8" json:"protocol" form:"protocol"`
	Trigger     string     `gorm:"column:trigger_type;size:16" json:"trigger" form:"trigger"`
	State       string     `gorm:"column:state;size:16" json:"state" form:"state"`
	StartedAt   timex.Time `gorm:"column:started_at;type:datetime;index:idx_harvest_run_config,priority:2" json:"startedAt" form:"startedAt"`
	FinishedAt  timex.Time `gorm:"column:finished_at;type:datetime;default:NULL" json:"finishedAt" form:"finishedAt"`
	FilesTotal  int        `gorm:"column:files_total;default:0" json:"filesTotal" form:"filesTotal"`
	FilesDone   int        `gorm:"column:files_done;default:0" json:"filesDone" form:"filesDone"`
	Bytes       int64      `gorm:"column:bytes;default:0" json:"bytes" form:"bytes"`
	SeqnoBefore int64      `gorm:"column:seqno_before" json:"seqnoBefore" form:"seqnoBefore"`
	SeqnoAfter  int64      `gorm:"column:seqno_after" json:"seqnoAfter" form:"seqnoAfter"`
	Message     string     `gorm:"column:message;type:text" json:"message" form:"message"`
}
