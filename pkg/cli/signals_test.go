package cli

import (
	"testing"
	"time"
)

func TestSetupSignalHandler_NotCancelledInitially(t *testing.T) {
	ctx := SetupSignalHandler()

	select {
	case <-ctx.Done():
		t.Error("context cancelled before any signal")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestSetupSignalHandler_DrainFlow(t *testing.T) {
	// The run command hands this context to the server, the rollback
	// monitor, and the decision pool; they all stop when it cancels.
	ctx := SetupSignalHandler()

	stopped := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Error("drain started without a signal")
	case <-time.After(10 * time.Millisecond):
	}
}
