//go:build linux

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"
)

const signalHelperEnv = "SOCKPROBE_SIGNAL_HELPER"

// 子进程模式：等待第一次信号取消 ctx，然后像卡在阻塞的 connect 一样不再检查 ctx
func signalHelper() {
	ctx, stop := signalContext(context.Background())
	defer stop()
	fmt.Println("ready")
	<-ctx.Done()
	time.Sleep(200 * time.Millisecond)
	fmt.Println("cancelled")
	time.Sleep(time.Minute)
	os.Exit(3)
}

func TestSignalContext_SecondInterruptTerminates(t *testing.T) {
	if os.Getenv(signalHelperEnv) == "1" {
		signalHelper()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestSignalContext_SecondInterruptTerminates$")
	cmd.Env = append(os.Environ(), signalHelperEnv+"=1")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatalf("StdoutPipe failed: %v", err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("failed to start helper process: %v", err)
	}
	defer cmd.Process.Kill()

	lines := make(chan string, 4)
	go func() {
		sc := bufio.NewScanner(stdout)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	expectLine := func(want string) {
		t.Helper()
		select {
		case got := <-lines:
			if got != want {
				t.Fatalf("Expected helper to print %q, but got %q", want, got)
			}
		case <-time.After(10 * time.Second):
			t.Fatalf("timed out waiting for helper to print %q", want)
		}
	}

	expectLine("ready")
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("first SIGINT failed: %v", err)
	}
	expectLine("cancelled")
	if err := cmd.Process.Signal(syscall.SIGINT); err != nil {
		t.Fatalf("second SIGINT failed: %v", err)
	}

	waited := make(chan error, 1)
	go func() { waited <- cmd.Wait() }()
	select {
	case err := <-waited:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			t.Fatalf("Expected the helper to die from a signal, but Wait returned %v", err)
		}
		ws, ok := exitErr.Sys().(syscall.WaitStatus)
		if !ok || !ws.Signaled() || ws.Signal() != syscall.SIGINT {
			t.Errorf("Expected termination by SIGINT, but got %v", exitErr)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("helper still running after the second SIGINT")
	}
}
