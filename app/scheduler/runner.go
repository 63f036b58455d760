package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRunInProgress is returned when another run of the same job holds the
// advisory lock.
var ErrRunInProgress = errors.New("a run of this job is already in progress")

// ErrUnknownFeature is returned for a feature name no job variant owns.
var ErrUnknownFeature = errors.New("unknown job feature")

// JobRunner is the single entry point for executing jobs, shared by the
// timers and the manual HTTP triggers. It wraps the pipeline with a
// run-scoped Redis advisory lock per feature so overlapping triggers of the
// same job cannot double-send.
type JobRunner struct {
	pipeline   *Pipeline
	specs      map[Feature]JobSpec
	locks      *redis.Client
	lockPrefix string
	lockTTL    time.Duration
	logger     *log.Logger
}

func NewJobRunner(pipeline *Pipeline, locks *redis.Client, lockPrefix string, lockTTL time.Duration, logger *log.Logger) *JobRunner {
	if lockPrefix == "" {
		lockPrefix = "pickupsms:runlock:"
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Minute
	}
	if logger == nil {
		logger = log.Default()
	}
	return &JobRunner{
		pipeline:   pipeline,
		specs:      JobSpecs(),
		locks:      locks,
		lockPrefix: lockPrefix,
		lockTTL:    lockTTL,
		logger:     logger,
	}
}

// Spec returns the job variant for a feature name.
func (r *JobRunner) Spec(feature string) (JobSpec, bool) {
	spec, ok := r.specs[Feature(feature)]
	return spec, ok
}

// Run executes one job under its advisory lock. The lock TTL bounds how long
// a crashed holder can block later runs.
func (r *JobRunner) Run(ctx context.Context, feature string, opts RunOptions) (RunCounts, error) {
	spec, ok := r.Spec(feature)
	if !ok {
		return RunCounts{}, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}

	release, err := r.acquireLock(ctx, spec.Feature)
	if err != nil {
		return RunCounts{}, err
	}
	defer release()

	return r.pipeline.Run(ctx, spec, opts)
}

// Preview runs the fetch+filter steps only. No lock: previews are read-only
// and safe to overlap with a live run.
func (r *JobRunner) Preview(ctx context.Context, feature string, opts RunOptions) ([]PreviewRow, error) {
	spec, ok := r.Spec(feature)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFeature, feature)
	}
	return r.pipeline.Preview(ctx, spec, opts)
}

func (r *JobRunner) acquireLock(ctx context.Context, feature Feature) (func(), error) {
	key := r.lockPrefix + string(feature)
	token := uuid.NewString()

	ok, err := r.locks.SetNX(ctx, key, token, r.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock for %s: %w", feature, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, feature)
	}

	release := func() {
		// Release only our own token: a lock that expired and was re-taken
		// by a newer run must not be deleted from here.
		current, err := r.locks.Get(context.Background(), key).Result()
		if err == nil && current == token {
			if err := r.locks.Del(context.Background(), key).Err(); err != nil {
				r.logger.Printf("runner: failed to release run lock for %s: %v", feature, err)
			}
		}
	}
	return release, nil
}
