package harvest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haierkeys/harvester-service/internal/domain"

	"github.com/dustin/go-humanize"
)

// Tracker holds the live progress of one run and its abort switch.
// Tracker 记录一次运行的实时进度与中止开关
type Tracker struct {
	runID     string
	configID  int64
	startedAt time.Time

	filesTotal atomic.Int64
	filesDone  atomic.Int64
	bytes      atomic.Int64
	totalBytes atomic.Int64
	aborted    atomic.Bool

	mu      sync.Mutex
	state   domain.RunState
	message string
	listed  bool
	cancel  context.CancelFunc
}

// NewTracker 创建 PENDING 状态的进度跟踪器
func NewTracker(runID string, configID int64) *Tracker {
	return &Tracker{
		runID:     runID,
		configID:  configID,
		startedAt: time.Now(),
		state:     domain.RunPending,
	}
}

func (t *Tracker) RunID() string        { return t.runID }
func (t *Tracker) ConfigID() int64      { return t.configID }
func (t *Tracker) StartedAt() time.Time { return t.startedAt }

// State 当前状态
func (t *Tracker) State() domain.RunState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// setState moves to s unless the run already reached a terminal state.
func (t *Tracker) setState(s domain.RunState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return false
	}
	t.state = s
	return true
}

// setListed records the number of eligible files and their announced size.
func (t *Tracker) setListed(files int, totalBytes int64) {
	t.filesTotal.Store(int64(files))
	t.totalBytes.Store(totalBytes)
	t.mu.Lock()
	t.listed = true
	t.mu.Unlock()
}

func (t *Tracker) addBytes(n int64) {
	t.bytes.Add(n)
}

func (t *Tracker) fileDone() {
	t.filesDone.Add(1)
}

// bindCancel 记录当前条目的取消函数，中止时调用
func (t *Tracker) bindCancel(cancel context.CancelFunc) {
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	if t.aborted.Load() {
		cancel()
	}
}

// Abort sets the abort flag and cancels the in-flight transfer.
// Returns false when the run has already finished.
func (t *Tracker) Abort() bool {
	t.mu.Lock()
	if t.state.IsTerminal() {
		t.mu.Unlock()
		return false
	}
	t.aborted.Store(true)
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// Aborted 是否已请求中止
func (t *Tracker) Aborted() bool {
	return t.aborted.Load()
}

// finish moves the run to a terminal state with its final message.
func (t *Tracker) finish(s domain.RunState, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state.IsTerminal() {
		return
	}
	t.state = s
	t.message = message
}

// Fail ends a run that never reached the runner, e.g. because its config vanished.
func (t *Tracker) Fail(err error) {
	t.finish(domain.RunFailed, err.Error())
}

// Running 运行是否仍在进行
func (t *Tracker) Running() bool {
	return !t.State().IsTerminal()
}

// Percentage 完成百分比，按字节优先，其次按文件数
func (t *Tracker) Percentage() float64 {
	if t.State() == domain.RunCompleted {
		return 100
	}
	if total := t.totalBytes.Load(); total > 0 {
		p := 100 * float64(t.bytes.Load()) / float64(total)
		if p > 100 {
			p = 100
		}
		return p
	}
	if files := t.filesTotal.Load(); files > 0 {
		return 100 * float64(t.filesDone.Load()) / float64(files)
	}
	return 0
}

// Message renders the progress line shown in the GUI:
// "Listing" before the listing is known, "<bytes> <pct>%" while transferring,
// and the terminal message ("Done in Ns", "Aborted", the failure) afterwards.
func (t *Tracker) Message() string {
	t.mu.Lock()
	message, listed := t.message, t.listed
	t.mu.Unlock()
	if message != "" {
		return message
	}
	if !listed {
		return "Listing"
	}
	return fmt.Sprintf("%s %.1f%%", humanize.Bytes(uint64(t.bytes.Load())), t.Percentage())
}

// Snapshot 导出 API 使用的进度对象
func (t *Tracker) Snapshot() domain.Progress {
	return domain.Progress{
		Percentage: int(t.Percentage()),
		Running:    t.Running(),
		State:      t.State(),
		Message:    t.Message(),
		RunID:      t.runID,
		FilesTotal: int(t.filesTotal.Load()),
		FilesDone:  int(t.filesDone.Load()),
		Bytes:      t.bytes.Load(),
		StartedAt:  t.startedAt,
	}
}
