package scheduler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"resourcehub/pkg/logger"
)

type fakeCompleter struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCompleter) CompletePast(_ context.Context) (int64, error) {
	f.calls.Add(1)
	return 0, f.err
}

type fakeExpirer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeExpirer) ExpireStale(_ context.Context) (int64, error) {
	f.calls.Add(1)
	return 0, f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: logger.ERROR, Format: logger.TEXT, Output: io.Discard})
}

func TestSchedulerRunsBothSweeps(t *testing.T) {
	completer := &fakeCompleter{}
	expirer := &fakeExpirer{}
	s := New(completer, expirer, 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()

	s.Start(ctx)

	assert.GreaterOrEqual(t, completer.calls.Load(), int32(1))
	assert.GreaterOrEqual(t, expirer.calls.Load(), int32(1))
}

func TestSchedulerKeepsTickingAfterSweepError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("db down")}
	expirer := &fakeExpirer{}
	s := New(completer, expirer, 20*time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 110*time.Millisecond)
	defer cancel()

	s.Start(ctx)

	// A failing booking sweep never blocks the waitlist sweep.
	assert.GreaterOrEqual(t, expirer.calls.Load(), int32(1))
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	s := New(&fakeCompleter{}, &fakeExpirer{}, time.Hour, testLogger())

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop on context cancel")
	}
}
