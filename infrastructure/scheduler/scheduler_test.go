package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingOptimizer struct {
	calls atomic.Int32
	err   error
}

func (o *countingOptimizer) Optimize(ctx context.Context) error {
	o.calls.Add(1)
	return o.err
}

type recordingSnapshotter struct {
	paths []string
}

func (s *recordingSnapshotter) SaveFile(path string) error {
	s.paths = append(s.paths, path)
	return nil
}

type countingFlusher struct {
	calls atomic.Int32
}

func (f *countingFlusher) Flush(ctx context.Context) error {
	f.calls.Add(1)
	return nil
}

func TestScheduler_Add_Validation(t *testing.T) {
	noop := func(context.Context) error { return nil }

	tests := []struct {
		name    string
		job     Job
		wantErr bool
		wantJob bool
	}{
		{name: "standard expression", job: Job{Name: "a", Schedule: "*/5 * * * *", Run: noop}, wantJob: true},
		{name: "descriptor", job: Job{Name: "a", Schedule: "@every 5m", Run: noop}, wantJob: true},
		{name: "empty schedule disables", job: Job{Name: "a", Run: noop}},
		{name: "malformed expression", job: Job{Name: "a", Schedule: "every now and then", Run: noop}, wantErr: true},
		{name: "missing run function", job: Job{Name: "a", Schedule: "@hourly"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			s := New(time.Second, zap.NewNop())

			// Act
			err := s.Add(tt.job)

			// Assert
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantJob, len(s.Jobs()) == 1)
		})
	}
}

func TestScheduler_Add_RejectsDuplicates(t *testing.T) {
	// Arrange
	s := New(time.Second, zap.NewNop())
	job := Job{Name: JobOptimizeIndex, Schedule: "@hourly", Run: func(context.Context) error { return nil }}
	require.NoError(t, s.Add(job))

	// Act
	err := s.Add(job)

	// Assert
	require.Error(t, err)
}

func TestScheduler_Run(t *testing.T) {
	// Arrange
	optimizer := &countingOptimizer{err: errors.New("disk full")}
	snapshots := &recordingSnapshotter{}
	path := filepath.Join(t.TempDir(), "fulltext.msgpack")
	s := New(time.Second, zap.NewNop())
	require.NoError(t, s.Register(MaintenanceJobs(Schedules{
		Optimize: "@hourly",
		Snapshot: "@hourly",
	}, optimizer, snapshots, path, nil)...))

	// Act
	optimizeErr := s.Run(context.Background(), JobOptimizeIndex)
	snapshotErr := s.Run(context.Background(), JobSnapshotIndex)
	unknownErr := s.Run(context.Background(), JobFlushMetrics)

	// Assert
	assert.EqualError(t, optimizeErr, "disk full")
	assert.NoError(t, snapshotErr)
	assert.Error(t, unknownErr)
	assert.Equal(t, int32(1), optimizer.calls.Load())
	assert.Equal(t, []string{path}, snapshots.paths)
	assert.Equal(t, []string{JobOptimizeIndex, JobSnapshotIndex}, s.Jobs())
}

func TestMaintenanceJobs_OptionalJobs(t *testing.T) {
	// Act
	minimal := MaintenanceJobs(Schedules{Optimize: "@hourly"}, &countingOptimizer{}, &recordingSnapshotter{}, "", nil)
	full := MaintenanceJobs(Schedules{}, &countingOptimizer{}, &recordingSnapshotter{}, "/tmp/x", &countingFlusher{})

	// Assert
	require.Len(t, minimal, 1)
	assert.Equal(t, JobOptimizeIndex, minimal[0].Name)
	assert.Len(t, full, 3)
}

func TestScheduler_FiresOnSchedule(t *testing.T) {
	// Arrange
	flusher := &countingFlusher{}
	s := New(time.Second, zap.NewNop())
	require.NoError(t, s.Add(Job{Name: JobFlushMetrics, Schedule: "@every 1s", Run: flusher.Flush}))

	// Act
	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})

	// Assert
	assert.Eventually(t, func() bool { return flusher.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
}
