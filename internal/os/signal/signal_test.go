//go:build !windows

package signal_test

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/distbuild/distbuild/internal/os/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyContextCancelsOnSignal(t *testing.T) {
	received := make(chan os.Signal, 1)

	ctx, stop := signal.NotifyContext(context.Background(), func(sig os.Signal) { received <- sig }, syscall.SIGUSR1)
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGUSR1))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled")
	}

	assert.Equal(t, syscall.SIGUSR1, <-received)
	require.ErrorIs(t, ctx.Err(), context.Canceled)

	var cause *signal.ContextCanceledCause
	require.ErrorAs(t, context.Cause(ctx), &cause)
	assert.Equal(t, syscall.SIGUSR1, cause.Signal)
}

func TestNotifyContextStop(t *testing.T) {
	t.Parallel()

	ctx, stop := signal.NotifyContext(context.Background(), nil, syscall.SIGUSR2)
	stop()

	<-ctx.Done()
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
}
