package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(context.Background(), time.Second, zap.NewNop())

	var ok, failed atomic.Int32
	require.NoError(t, s.AddJob("@every 1s", JobFunc{JobName: "ok", Fn: func(ctx context.Context) error {
		_, hasDeadline := ctx.Deadline()
		if hasDeadline {
			ok.Add(1)
		}
		return nil
	}}))
	require.NoError(t, s.AddJob("@every 1s", JobFunc{JobName: "failing", Fn: func(context.Context) error {
		failed.Add(1)
		return errors.New("boom")
	}}))

	s.Start()
	assert.Eventually(t, func() bool { return ok.Load() > 0 && failed.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(context.Background(), time.Second, zap.NewNop())
	noop := JobFunc{JobName: "noop", Fn: func(context.Context) error { return nil }}

	assert.NoError(t, s.AddJob("", noop))
	assert.Empty(t, s.cron.Entries())

	err := s.AddJob("every now and then", noop)
	assert.ErrorContains(t, err, "schedule noop")
}

func TestScheduler_CancelledContextSkipsRuns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(ctx, time.Second, zap.NewNop())

	var runs atomic.Int32
	s.run(JobFunc{JobName: "late", Fn: func(context.Context) error {
		runs.Add(1)
		return nil
	}})
	assert.Zero(t, runs.Load())
}
