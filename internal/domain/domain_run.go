package domain

import "time"

// RunState 采集运行状态
type RunState string

const (
	RunPending     RunState = "PENDING"
	RunListing     RunState = "LISTING"
	RunDownloading RunState = "DOWNLOADING"
	RunProcessing  RunState = "PROCESSING"
	RunCompleted   RunState = "COMPLETED"
	RunAborted     RunState = "ABORTED"
	RunFailed      RunState = "FAILED"
)

// IsTerminal 是否为终止状态
func (s RunState) IsTerminal() bool {
	return s == RunCompleted || s == RunAborted || s == RunFailed
}

// Trigger 触发方式
type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// HarvestRun is the history record of one finished run
// HarvestRun 一次运行的历史记录
type HarvestRun struct {
	ID          int64
	RunID       string
	ConfigID    int64
	Protocol    Protocol
	Trigger     Trigger
	State       RunState
	StartedAt   time.Time
	FinishedAt  time.Time
	FilesTotal  int
	FilesDone   int
	Bytes       int64
	SeqnoBefore int64
	SeqnoAfter  int64
	Message     string
}

// Progress is the transient run state merged into API responses
// Progress 运行中的瞬时状态，不落库
type Progress struct {
	Percentage int       `json:"percentage"`
	Running    bool      `json:"running"`
	State      RunState  `json:"state,omitempty"`
	Message    string    `json:"message,omitempty"`
	RunID      string    `json:"runId,omitempty"`
	FilesTotal int       `json:"filesTotal,omitempty"`
	FilesDone  int       `json:"filesDone,omitempty"`
	Bytes      int64     `json:"bytes,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitempty"`
}

// TestStatus 测试预览中每个条目的状态
type TestStatus string

const (
	StatusAwaitingDownload  TestStatus = "AWAITING_DOWNLOAD"
	StatusSkippedByFilename TestStatus = "SKIPPED_BY_FILENAME"
	StatusSkippedBySeqno    TestStatus = "SKIPPED_BY_SEQNO"
)

// TestEntry 测试预览条目
type TestEntry struct {
	Filename string     `json:"filename"`
	Status   TestStatus `json:"status"`
	Seqno    *int64     `json:"seqno"`
}
