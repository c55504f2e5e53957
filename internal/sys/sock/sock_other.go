//go:build !linux

// FILE: internal/sys/sock/sock_other.go
package sock

import (
	"errors"

	"sockprobe/internal/shared/types"
)

// 非 Linux 平台上的存根实现
var errUnsupported = errors.New("raw socket probing is not supported on this platform")

func sysSocket() (int, error) { return -1, errUnsupported }

func sysGetsockname(int) (types.Endpoint, error) { return types.Endpoint{}, errUnsupported }

func sysGetpeername(int) (types.Endpoint, error) { return types.Endpoint{}, errUnsupported }

func isNotConnected(error) bool { return false }

func sysConnect(int, types.Endpoint) error { return errUnsupported }

func sysRead(int, []byte) (int, error) { return 0, errUnsupported }

func sysWrite(int, []byte) (int, error) { return 0, errUnsupported }

func sysSend(int, []byte) (int, error) { return 0, errUnsupported }

func sysRecvfrom(int, []byte) (int, types.Endpoint, bool, error) {
	return 0, types.Endpoint{}, false, errUnsupported
}

func sysSendBuffers(int, [][]byte) (int, error) { return 0, errUnsupported }

func sysShutdownWrite(int) error { return errUnsupported }

func sysClose(int) error { return errUnsupported }
