package scheduler

import (
	"context"
)

// Job names
const (
	JobOptimizeIndex = "optimize-index"
	JobSnapshotIndex = "snapshot-index"
	JobFlushMetrics  = "flush-metrics"
)

// Optimizer compacts the full-text index.
type Optimizer interface {
	Optimize(ctx context.Context) error
}

// Snapshotter persists the full-text index to a file.
type Snapshotter interface {
	SaveFile(path string) error
}

// Flusher pushes buffered metrics.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Schedules holds the cron expressions for the maintenance jobs.
type Schedules struct {
	Optimize     string
	Snapshot     string
	MetricsFlush string
}

// MaintenanceJobs builds the index maintenance jobs. A nil snapshotter or
// empty snapshotPath drops the snapshot job; a nil flusher drops the metrics job.
func MaintenanceJobs(schedules Schedules, optimizer Optimizer, snapshotter Snapshotter, snapshotPath string, flusher Flusher) []Job {
	jobs := []Job{{
		Name:     JobOptimizeIndex,
		Schedule: schedules.Optimize,
		Run:      optimizer.Optimize,
	}}

	if snapshotter != nil && snapshotPath != "" {
		jobs = append(jobs, Job{
			Name:     JobSnapshotIndex,
			Schedule: schedules.Snapshot,
			Run: func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				return snapshotter.SaveFile(snapshotPath)
			},
		})
	}

	if flusher != nil {
		jobs = append(jobs, Job{
			Name:     JobFlushMetrics,
			Schedule: schedules.MetricsFlush,
			Run:      flusher.Flush,
		})
	}
	return jobs
}

// Register adds every job to the scheduler.
func (s *Scheduler) Register(jobs ...Job) error {
	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			return err
		}
	}
	return nil
}
