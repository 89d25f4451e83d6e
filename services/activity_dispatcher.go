package services

import (
	"context"

	log "github.com/sirupsen/logrus"

	"buildInPublicAPI/internal/metrics"
	"buildInPublicAPI/internal/types/achievement"
	"buildInPublicAPI/internal/types/streak"
	"buildInPublicAPI/internal/workers"
)

type ActivityRecorder interface {
	RecordActivity(ctx context.Context, userID string, kind streak.ActivityKind) (*streak.ActivityResult, error)
}

type AchievementEvaluator interface {
	Evaluate(ctx context.Context, userID string) ([]achievement.Definition, error)
}

// ActivitySink receives qualifying actions. Dispatch never fails the caller.
type ActivitySink interface {
	Dispatch(userID string, kind streak.ActivityKind)
}

// AchievementTrigger re-runs evaluation for actions that are not streak
// activity, such as milestones and sponsorships.
type AchievementTrigger interface {
	Reevaluate(userID string)
}

// ActivityDispatcher runs streak accounting and achievement evaluation off
// the request path, with its own retry policy.
type ActivityDispatcher struct {
	pool         *workers.Pool
	streaks      ActivityRecorder
	achievements AchievementEvaluator
}

func NewActivityDispatcher(streaks ActivityRecorder, opts workers.Options) *ActivityDispatcher {
	opts.OnDone = func(job workers.Job, attempts int, err error) {
		outcome := "ok"
		if err != nil {
			outcome = "failed"
		} else if attempts > 1 {
			outcome = "retried"
		}
		metrics.ActivityJobs.WithLabelValues(job.Name, outcome).Inc()
	}

	return &ActivityDispatcher{
		pool:    workers.NewPool(opts),
		streaks: streaks,
	}
}

// SetAchievementEvaluator wires evaluation after the streak update. It is set
// after construction because the evaluator dispatches achievement activity back.
func (d *ActivityDispatcher) SetAchievementEvaluator(e AchievementEvaluator) {
	d.achievements = e
}

// Dispatch queues the activity. When the queue is full the job runs in the
// calling goroutine so no activity is dropped.
func (d *ActivityDispatcher) Dispatch(userID string, kind streak.ActivityKind) {
	job := workers.Job{
		Name: string(kind),
		Run: func(ctx context.Context) error {
			return d.process(ctx, userID, kind)
		},
	}

	if d.pool.TrySubmit(job) {
		return
	}

	log.WithFields(log.Fields{"user_id": userID, "kind": kind}).Warn("activity: queue full, processing inline")
	d.pool.Execute(job)
}

// Reevaluate queues an achievement evaluation without recording activity.
func (d *ActivityDispatcher) Reevaluate(userID string) {
	if d.achievements == nil {
		return
	}
	job := workers.Job{
		Name: "evaluate",
		Run: func(ctx context.Context) error {
			_, err := d.achievements.Evaluate(ctx, userID)
			return err
		},
	}
	if !d.pool.TrySubmit(job) {
		d.pool.Execute(job)
	}
}

func (d *ActivityDispatcher) process(ctx context.Context, userID string, kind streak.ActivityKind) error {
	if _, err := d.streaks.RecordActivity(ctx, userID, kind); err != nil {
		return err
	}

	// Achievement activity comes from evaluation itself; evaluating again would loop.
	if kind == streak.ActivityAchievement || d.achievements == nil {
		return nil
	}

	if _, err := d.achievements.Evaluate(ctx, userID); err != nil {
		log.WithError(err).WithField("user_id", userID).Warn("activity: achievement evaluation failed")
	}
	return nil
}

// Close drains queued activity. Call it during shutdown after the HTTP server stops.
func (d *ActivityDispatcher) Close() {
	d.pool.Close()
}
