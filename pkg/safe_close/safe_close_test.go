package safe_close

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestSafeClose(t *testing.T) {
	sc := NewSafeClose()
	var exited int32

	for i := 0; i < 3; i++ {
		sc.Attach(func(done func(), closeSignal <-chan struct{}) {
			defer done()
			<-closeSignal
			atomic.AddInt32(&exited, 1)
		})
	}

	first := errors.New("listener failed")
	sc.SendCloseSignal(first)
	sc.SendCloseSignal(errors.New("second"))

	if err := sc.WaitClosed(); err != first {
		t.Fatalf("WaitClosed() = %v, want %v", err, first)
	}
	if got := atomic.LoadInt32(&exited); got != 3 {
		t.Errorf("exited = %d, want 3", got)
	}
}
