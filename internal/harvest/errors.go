package harvest

import (
	"errors"
	"fmt"

	"github.com/haierkeys/harvester-service/internal/domain"
)

// ErrAborted 运行被操作员中止
var ErrAborted = errors.New("harvest aborted")

// TransportError wraps a failure talking to the remote side of a harvester.
// TransportError 与远端通信失败
type TransportError struct {
	Protocol domain.Protocol
	Op       string
	Target   string
	Err      error
}

func (e *TransportError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("%s %s: %v", e.Protocol, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Protocol, e.Op, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func transportErr(p domain.Protocol, op, target string, err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	return &TransportError{Protocol: p, Op: op, Target: target, Err: err}
}

// IsTransport 是否为远端传输错误
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
