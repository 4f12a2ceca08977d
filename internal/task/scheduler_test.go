package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/haierkeys/harvester-service/pkg/safe_close"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingTask struct {
	runs     atomic.Int32
	interval time.Duration
	startup  bool
	panics   bool
	ctxDone  chan struct{}
}

func (t *countingTask) Name() string                { return "counting" }
func (t *countingTask) LoopInterval() time.Duration { return t.interval }
func (t *countingTask) IsStartupRun() bool          { return t.startup }

func (t *countingTask) Run(ctx context.Context) error {
	t.runs.Add(1)
	if t.ctxDone != nil {
		go func() {
			<-ctx.Done()
			select {
			case t.ctxDone <- struct{}{}:
			default:
			}
		}()
	}
	if t.panics {
		panic("boom")
	}
	return errors.New("ignored")
}

func TestScheduler_StartupAndLoop(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(zap.NewNop(), sc)
	task := &countingTask{interval: 10 * time.Millisecond, startup: true, panics: true, ctxDone: make(chan struct{}, 1)}
	s.AddTask(task)
	s.Start()

	assert.Eventually(t, func() bool { return task.runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond,
		"panics and errors do not stop the loop")

	sc.SendCloseSignal(nil)
	require.NoError(t, sc.WaitClosed())

	select {
	case <-task.ctxDone:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled on close")
	}
}

func TestScheduler_StartupOnly(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(nil, sc)
	task := &countingTask{startup: true}
	s.AddTask(task)
	s.Start()

	require.NoError(t, sc.WaitClosed())
	assert.EqualValues(t, 1, task.runs.Load())
}

type fakeDispatcher struct {
	calls atomic.Int32
	err   error
}

func (f *fakeDispatcher) ExecuteScheduled(context.Context) (int, error) {
	f.calls.Add(1)
	return 2, f.err
}

func TestHarvestDispatchTask(t *testing.T) {
	d := &fakeDispatcher{}
	task := &HarvestDispatchTask{runs: d, interval: 20 * time.Second, logger: zap.NewNop()}

	assert.Equal(t, "HarvestDispatch", task.Name())
	assert.True(t, task.IsStartupRun())
	assert.Equal(t, 20*time.Second, task.LoopInterval())
	require.NoError(t, task.Run(context.Background()))

	d.err = errors.New("db down")
	assert.Error(t, task.Run(context.Background()))
	assert.EqualValues(t, 2, d.calls.Load())
}
