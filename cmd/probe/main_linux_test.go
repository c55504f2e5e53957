//go:build linux

package main

import (
	"bytes"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"

	"golang.org/x/net/nettest"
)

func TestRun_LogsTargetAndFailsOnRefusedConnect(t *testing.T) {
	ln, err := nettest.NewLocalListener("tcp4")
	if err != nil {
		t.Fatalf("failed to create local listener: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	var stdout, stderr bytes.Buffer
	argv := []string{"--host", addr.IP.String(), "--port", strconv.Itoa(addr.Port), "--pause", "0s"}
	if code := run(argv, &stdout, &stderr); code != exitFailed {
		t.Fatalf("Expected exit code %d, but got %d\nstderr:\n%s", exitFailed, code, stderr.String())
	}

	logs := stderr.String()
	for _, want := range []string{
		"Starting probe",
		fmt.Sprintf("target=%s:%d", addr.IP, addr.Port),
		"strict_peer_check=false",
		"unconnected_send=false",
	} {
		if !strings.Contains(logs, want) {
			t.Errorf("Expected logs to contain %q, got:\n%s", want, logs)
		}
	}
	if !strings.Contains(stdout.String(), "Connection Failed") {
		t.Errorf("expected a connection failure line, got: %s", stdout.String())
	}
}
