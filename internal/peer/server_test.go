package peer

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"golang.org/x/net/nettest"
)

func startServer(t *testing.T, srv *Server) (string, context.CancelFunc, <-chan error) {
	t.Helper()
	ln, err := nettest.NewLocalListener("tcp4")
	if err != nil {
		t.Fatalf("failed to create local listener: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(cancel)
	return ln.Addr().String(), cancel, done
}

func TestServer_GreetAndEcho(t *testing.T) {
	closed := make(chan ConnStats, 1)
	srv := New("Hello from server")
	srv.OnClose = func(st ConnStats) { closed <- st }
	addr, cancel, done := startServer(t, srv)

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	greeting := make([]byte, len("Hello from server"))
	if _, err := io.ReadFull(conn, greeting); err != nil {
		t.Fatalf("failed to read greeting: %v", err)
	}
	if string(greeting) != "Hello from server" {
		t.Errorf("Expected greeting 'Hello from server', but got '%s'", greeting)
	}

	if _, err := conn.Write([]byte("Hello from client")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	echo := make([]byte, len("Hello from client"))
	if _, err := io.ReadFull(conn, echo); err != nil {
		t.Fatalf("failed to read echo: %v", err)
	}
	if string(echo) != "Hello from client" {
		t.Errorf("Expected echo 'Hello from client', but got '%s'", echo)
	}
	conn.Close()

	select {
	case st := <-closed:
		if st.BytesReceived != int64(len("Hello from client")) {
			t.Errorf("Expected %d bytes received, but got %d", len("Hello from client"), st.BytesReceived)
		}
		if st.FirstRead != "Hello from client" {
			t.Errorf("Expected first read 'Hello from client', but got '%s'", st.FirstRead)
		}
		if string(st.Payload) != "Hello from client" {
			t.Errorf("unexpected captured payload %q", st.Payload)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the connection to finish")
	}

	if got := srv.Stats(); got.Connections != 1 || got.BytesReceived != int64(len("Hello from client")) {
		t.Errorf("unexpected aggregate stats: %+v", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() returned an error after cancel: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

func TestServer_CancelClosesOpenConnections(t *testing.T) {
	srv := New("")
	srv.Echo = false
	addr, cancel, done := startServer(t, srv)

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// 确保连接已经被接受
	deadline := time.Now().Add(5 * time.Second)
	for srv.Stats().Connections == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() returned an error after cancel: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Errorf("expected the server side to be closed")
	}
}
