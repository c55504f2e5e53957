//go:build linux

// FILE: internal/sys/sock/sock_linux.go
package sock

import (
	"errors"

	"golang.org/x/sys/unix"

	"sockprobe/internal/shared/types"
)

func sysSocket() (int, error) {
	return unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
}

func sysGetsockname(fd int) (types.Endpoint, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return types.Endpoint{}, err
	}
	return fromSockaddr(sa)
}

func sysGetpeername(fd int) (types.Endpoint, error) {
	sa, err := unix.Getpeername(fd)
	if err != nil {
		return types.Endpoint{}, err
	}
	return fromSockaddr(sa)
}

func isNotConnected(err error) bool {
	return errors.Is(err, unix.ENOTCONN)
}

// sysConnect 阻塞连接。被信号打断时内核仍在后台完成握手，此时改为等待可写再读取 SO_ERROR。
func sysConnect(fd int, target types.Endpoint) error {
	sa := &unix.SockaddrInet4{Port: int(target.Port), Addr: target.Octets()}
	err := unix.Connect(fd, sa)
	switch err {
	case nil, unix.EISCONN:
		return nil
	case unix.EINTR, unix.EALREADY, unix.EINPROGRESS:
		return waitConnected(fd)
	default:
		return err
	}
}

func waitConnected(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
	for {
		_, err := unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		break
	}
	soErr, err := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if soErr != 0 {
		return unix.Errno(soErr)
	}
	return nil
}

func sysRead(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

func sysWrite(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

// sysSend 使用 sendto(2) 且不带目标地址，即 send(2)。
// unix.Sendto 不返回字节数；阻塞套接字上成功即表示整个 p 已进入发送缓冲区。
func sysSend(fd int, p []byte) (int, error) {
	for {
		err := unix.Sendto(fd, p, unix.MSG_NOSIGNAL, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return len(p), nil
	}
}

func sysRecvfrom(fd int, p []byte) (int, types.Endpoint, bool, error) {
	for {
		n, from, err := unix.Recvfrom(fd, p, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, types.Endpoint{}, false, err
		}
		if from == nil {
			return n, types.Endpoint{}, false, nil
		}
		ep, err := fromSockaddr(from)
		if err != nil {
			return n, types.Endpoint{}, false, nil
		}
		return n, ep, true, nil
	}
}

func sysSendBuffers(fd int, segments [][]byte) (int, error) {
	for {
		n, err := unix.SendmsgBuffers(fd, segments, nil, nil, unix.MSG_NOSIGNAL)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
}

func sysShutdownWrite(fd int) error {
	return unix.Shutdown(fd, unix.SHUT_WR)
}

func sysClose(fd int) error {
	return unix.Close(fd)
}

func fromSockaddr(sa unix.Sockaddr) (types.Endpoint, error) {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return types.EndpointFrom4(a.Addr, a.Port), nil
	default:
		return types.Endpoint{}, unix.EAFNOSUPPORT
	}
}
