package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SetupSignalHandler returns a context cancelled on the first SIGINT
// or SIGTERM, which starts the graceful drain (server shutdown,
// rollback monitor and decision pool stop). A second signal aborts
// the process immediately for operators who will not wait out the
// drain.
func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigs
		cancel()
		<-sigs
		os.Exit(130)
	}()

	return ctx
}
