package collector

import (
	"context"
	"os"
	"runtime"
	"sync/atomic"
	"testing"
	"time"
)

// TestSetupSignalHandler tests that the signal handler context works
func TestSetupSignalHandler(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Signal tests not supported on Windows")
	}

	// Cancelling the parent releases the watcher once the test is over.
	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()

	var shutdownCalled atomic.Bool
	ctx, cancel := SetupSignalHandler(parent, nil, func(ctx context.Context) {
		shutdownCalled.Store(true)
	})
	defer cancel()

	select {
	case <-ctx.Done():
		t.Fatal("Context should not be cancelled initially")
	default:
	}

	p, _ := os.FindProcess(os.Getpid())
	p.Signal(os.Interrupt)

	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("Context should be cancelled after signal")
	}
	if !shutdownCalled.Load() {
		t.Error("Shutdown function should have been called")
	}
}

// TestSetupSignalHandler_SecondSignalExits checks the forced exit path.
func TestSetupSignalHandler_SecondSignalExits(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Signal tests not supported on Windows")
	}

	exited := make(chan int, 1)
	exit = func(code int) { exited <- code }
	defer func() { exit = os.Exit }()

	parent, cancelParent := context.WithCancel(context.Background())
	defer cancelParent()
	ctx, cancel := SetupSignalHandler(parent, nil, nil)
	defer cancel()

	p, _ := os.FindProcess(os.Getpid())
	p.Signal(os.Interrupt)
	<-ctx.Done()
	p.Signal(os.Interrupt)

	select {
	case code := <-exited:
		if code != 1 {
			t.Errorf("expected exit code 1, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatal("second signal did not force exit")
	}
}

// TestSetupSignalHandler_ParentCancel stops the watcher without a signal.
func TestSetupSignalHandler_ParentCancel(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	var called atomic.Bool
	ctx, cancel := SetupSignalHandler(parent, nil, func(context.Context) { called.Store(true) })
	defer cancel()

	cancelParent()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("child context should follow parent")
	}
	time.Sleep(20 * time.Millisecond)
	if called.Load() {
		t.Error("shutdown hook must not run without a signal")
	}
}
