// FILE: internal/sys/sock/errors.go
package sock

import (
	"errors"
	"fmt"
	"syscall"
)

// 错误分类。每个失败的系统调用都被包装成 *OpError，可以用 errors.Is 匹配分类。
var (
	ErrSocketCreation = errors.New("socket creation error")
	ErrNotConnected   = errors.New("socket is not connected")
	ErrConnect        = errors.New("connection failed")
	ErrAddressQuery   = errors.New("address query failed")
	ErrTransfer       = errors.New("transfer failed")
	ErrClosed         = errors.New("use of closed socket")
)

// OpError records the failed socket operation, its error kind and the
// underlying OS error (usually a syscall.Errno).
type OpError struct {
	Op   string
	Kind error
	Err  error
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Errno returns the OS error code carried by err, or 0 if there is none.
func Errno(err error) int {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}
	return 0
}

func opError(op string, kind, err error) error {
	return &OpError{Op: op, Kind: kind, Err: err}
}
