package shared

import (
	"io"
	"net"
	"sync/atomic"
	"testing"
)

func TestCountedConn(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	var received, sent atomic.Int64
	counted := NewCountedConn(server, &received, &sent)

	go func() {
		client.Write([]byte("Hello from client"))
		io.ReadFull(client, make([]byte, 5))
	}()

	buf := make([]byte, len("Hello from client"))
	if _, err := io.ReadFull(counted, buf); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if _, err := counted.Write([]byte("hello")); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	if received.Load() != int64(len("Hello from client")) {
		t.Errorf("Expected %d bytes received, but got %d", len("Hello from client"), received.Load())
	}
	if sent.Load() != 5 {
		t.Errorf("Expected 5 bytes sent, but got %d", sent.Load())
	}

	uncounted := NewCountedConn(server, nil, nil)
	go client.Write([]byte("x"))
	if _, err := uncounted.Read(make([]byte, 1)); err != nil {
		t.Fatalf("read failed: %v", err)
	}
}
