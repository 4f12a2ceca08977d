// Package safe_close coordinates the shutdown of long running goroutines
// Package safe_close 协调常驻协程的关闭
package safe_close

import (
	"sync"
)

// SafeClose broadcasts a close signal to attached workers and waits for all of them to finish
// SafeClose 向所有挂载的任务广播关闭信号并等待其退出
type SafeClose struct {
	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup

	mu  sync.Mutex
	err error
}

func NewSafeClose() *SafeClose {
	return &SafeClose{closeCh: make(chan struct{})}
}

// Attach runs fn in a new goroutine; fn must call done when it exits
// Attach 启动一个受管协程，退出时必须调用 done
func (s *SafeClose) Attach(fn func(done func(), closeSignal <-chan struct{})) {
	s.wg.Add(1)
	var once sync.Once
	done := func() { once.Do(s.wg.Done) }
	go fn(done, s.closeCh)
}

// SendCloseSignal closes the signal channel; the first non-nil err is kept
// SendCloseSignal 发送关闭信号，只保留第一个错误
func (s *SafeClose) SendCloseSignal(err error) {
	if err != nil {
		s.mu.Lock()
		if s.err == nil {
			s.err = err
		}
		s.mu.Unlock()
	}
	s.closeOnce.Do(func() { close(s.closeCh) })
}

// CloseSignal 关闭信号通道
func (s *SafeClose) CloseSignal() <-chan struct{} {
	return s.closeCh
}

// WaitClosed blocks until every attached goroutine called done
// WaitClosed 等待所有受管协程退出
func (s *SafeClose) WaitClosed() error {
	s.wg.Wait()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
