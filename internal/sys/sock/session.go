// FILE: internal/sys/sock/session.go
package sock

import (
	"io"

	"sockprobe/internal/shared/types"
)

// SockaddrLen is the size of a sockaddr_in structure.
const SockaddrLen = 16

// sendBuffers 是 SendBuffers 实际使用的 sendmsg 调用，测试中替换以模拟部分发送。
var sendBuffers = sysSendBuffers

// Session 独占一个 OS 层的流式套接字描述符。
// 它不是并发安全的：所有调用都应来自同一个 goroutine。
// Close 是幂等的，关闭之后的其他操作都返回 ErrClosed。
type Session struct {
	fd    int
	state types.SessionState
}

// Open creates a blocking AF_INET stream socket.
func Open() (*Session, error) {
	fd, err := sysSocket()
	if err != nil {
		return nil, opError("socket", ErrSocketCreation, err)
	}
	return &Session{fd: fd, state: types.StateUnconnected}, nil
}

// Fd returns the descriptor number, or -1 once closed.
func (s *Session) Fd() int {
	if s.state == types.StateClosed {
		return -1
	}
	return s.fd
}

// State returns the lifecycle state of the session.
func (s *Session) State() types.SessionState {
	return s.state
}

// LocalAddr returns the locally bound address. On a fresh socket this is 0.0.0.0:0.
func (s *Session) LocalAddr() (types.Endpoint, error) {
	if s.state == types.StateClosed {
		return types.Endpoint{}, opError("getsockname", ErrClosed, nil)
	}
	ep, err := sysGetsockname(s.fd)
	if err != nil {
		return types.Endpoint{}, opError("getsockname", ErrAddressQuery, err)
	}
	return ep, nil
}

// PeerAddr returns the remote address. Before Connect it fails with ErrNotConnected.
func (s *Session) PeerAddr() (types.Endpoint, error) {
	if s.state == types.StateClosed {
		return types.Endpoint{}, opError("getpeername", ErrClosed, nil)
	}
	ep, err := sysGetpeername(s.fd)
	if err != nil {
		if isNotConnected(err) {
			return types.Endpoint{}, opError("getpeername", ErrNotConnected, err)
		}
		return types.Endpoint{}, opError("getpeername", ErrAddressQuery, err)
	}
	return ep, nil
}

// Connect performs a blocking connect to target.
func (s *Session) Connect(target types.Endpoint) error {
	if s.state == types.StateClosed {
		return opError("connect", ErrClosed, nil)
	}
	if err := sysConnect(s.fd, target); err != nil {
		return opError("connect", ErrConnect, err)
	}
	s.state = types.StateConnected
	return nil
}

// Read performs a single blocking read(2). n == 0 with a nil error means the peer closed.
func (s *Session) Read(p []byte) (int, error) {
	if s.state == types.StateClosed {
		return 0, opError("read", ErrClosed, nil)
	}
	n, err := sysRead(s.fd, p)
	if err != nil {
		return 0, opError("read", ErrTransfer, err)
	}
	return n, nil
}

// Write writes p with write(2), looping over partial writes.
func (s *Session) Write(p []byte) (int, error) {
	if s.state == types.StateClosed {
		return 0, opError("write", ErrClosed, nil)
	}
	written := 0
	for written < len(p) {
		n, err := sysWrite(s.fd, p[written:])
		if err != nil {
			return written, opError("write", ErrTransfer, err)
		}
		if n == 0 {
			return written, opError("write", ErrTransfer, io.ErrShortWrite)
		}
		written += n
	}
	return written, nil
}

// Send writes p with the socket send primitive, looping over partial sends.
func (s *Session) Send(p []byte) (int, error) {
	if s.state == types.StateClosed {
		return 0, opError("send", ErrClosed, nil)
	}
	sent := 0
	for sent < len(p) {
		n, err := sysSend(s.fd, p[sent:])
		if err != nil {
			return sent, opError("send", ErrTransfer, err)
		}
		if n == 0 {
			return sent, opError("send", ErrTransfer, io.ErrShortWrite)
		}
		sent += n
	}
	return sent, nil
}

// RecvFrom reads with recvfrom(2). ok is false when the kernel did not report
// a source address, which is the normal case for a connected stream socket.
func (s *Session) RecvFrom(p []byte) (n int, from types.Endpoint, ok bool, err error) {
	if s.state == types.StateClosed {
		return 0, types.Endpoint{}, false, opError("recvfrom", ErrClosed, nil)
	}
	n, from, ok, err = sysRecvfrom(s.fd, p)
	if err != nil {
		return 0, types.Endpoint{}, false, opError("recvfrom", ErrTransfer, err)
	}
	return n, from, ok, nil
}

// SendBuffers transmits the segments as one scatter-gather message. A partial
// send is resumed from the first unsent byte until every segment is flushed.
// It returns the total number of bytes sent and the number of sendmsg calls.
func (s *Session) SendBuffers(segments [][]byte) (int, int, error) {
	if s.state == types.StateClosed {
		return 0, 0, opError("sendmsg", ErrClosed, nil)
	}
	pending := make([][]byte, 0, len(segments))
	for _, seg := range segments {
		if len(seg) > 0 {
			pending = append(pending, seg)
		}
	}

	sent, calls := 0, 0
	for len(pending) > 0 {
		n, err := sendBuffers(s.fd, pending)
		calls++
		if err != nil {
			return sent, calls, opError("sendmsg", ErrTransfer, err)
		}
		if n == 0 {
			return sent, calls, opError("sendmsg", ErrTransfer, io.ErrShortWrite)
		}
		sent += n
		pending = consume(pending, n)
	}
	return sent, calls, nil
}

// CloseWrite shuts down the sending half with shutdown(SHUT_WR). Data already
// queued is still delivered and the peer then reads EOF; reads keep working.
func (s *Session) CloseWrite() error {
	if s.state == types.StateClosed {
		return opError("shutdown", ErrClosed, nil)
	}
	if err := sysShutdownWrite(s.fd); err != nil {
		return opError("shutdown", ErrTransfer, err)
	}
	return nil
}

// Close releases the descriptor. Calling it again is a no-op.
// Unread received data makes the kernel reset the connection and discard
// unsent data, so callers that need delivery use CloseWrite and drain first.
func (s *Session) Close() error {
	if s.state == types.StateClosed {
		return nil
	}
	s.state = types.StateClosed
	if err := sysClose(s.fd); err != nil {
		return opError("close", ErrTransfer, err)
	}
	return nil
}

// consume drops the first n bytes from the segment list.
func consume(segments [][]byte, n int) [][]byte {
	for n > 0 && len(segments) > 0 {
		if n < len(segments[0]) {
			segments[0] = segments[0][n:]
			return segments
		}
		n -= len(segments[0])
		segments = segments[1:]
	}
	return segments
}
