package services

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"buildInPublicAPI/internal/metrics"
	"buildInPublicAPI/internal/types/streak"
	"buildInPublicAPI/internal/workers"
)

func testDispatcherOptions(attempts int) workers.Options {
	return workers.Options{Workers: 2, QueueSize: 16, MaxAttempts: attempts, Backoff: time.Millisecond}
}

func TestActivityDispatcher_RecordsThenEvaluates(t *testing.T) {
	rec := &fakeRecorder{}
	eval := &fakeEvaluator{}
	d := NewActivityDispatcher(rec, testDispatcherOptions(1))
	d.SetAchievementEvaluator(eval)

	d.Dispatch("u1", streak.ActivityPost)
	d.Dispatch("u1", streak.ActivityAchievement)
	d.Close()

	assert.ElementsMatch(t, []streak.ActivityKind{streak.ActivityPost, streak.ActivityAchievement}, rec.Kinds())
	assert.Equal(t, []string{"u1"}, eval.Users(), "achievement activity does not re-trigger evaluation")
}

func TestActivityDispatcher_RetriesFailedRecording(t *testing.T) {
	rec := &fakeRecorder{failFirst: 2}
	before := testutil.ToFloat64(metrics.ActivityJobs.WithLabelValues("revenue", "retried"))

	d := NewActivityDispatcher(rec, testDispatcherOptions(3))
	d.Dispatch("u1", streak.ActivityRevenue)
	d.Close()

	assert.Len(t, rec.Kinds(), 3)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ActivityJobs.WithLabelValues("revenue", "retried")))
}

func TestActivityDispatcher_PermanentFailureIsCountedNotSurfaced(t *testing.T) {
	rec := &fakeRecorder{failFirst: 100}
	eval := &fakeEvaluator{}
	before := testutil.ToFloat64(metrics.ActivityJobs.WithLabelValues("commit", "failed"))

	d := NewActivityDispatcher(rec, testDispatcherOptions(2))
	d.SetAchievementEvaluator(eval)
	assert.NotPanics(t, func() { d.Dispatch("u1", streak.ActivityCommit) })
	d.Close()

	assert.Len(t, rec.Kinds(), 2)
	assert.Empty(t, eval.Users())
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ActivityJobs.WithLabelValues("commit", "failed")))
}

func TestActivityDispatcher_AfterCloseRunsInline(t *testing.T) {
	rec := &fakeRecorder{}
	d := NewActivityDispatcher(rec, testDispatcherOptions(1))
	d.Close()

	d.Dispatch("u1", streak.ActivityPost)
	assert.Len(t, rec.Kinds(), 1)
}

func TestActivityDispatcher_ReevaluateSkipsStreak(t *testing.T) {
	rec := &fakeRecorder{}
	eval := &fakeEvaluator{}
	d := NewActivityDispatcher(rec, testDispatcherOptions(1))

	d.Reevaluate("u1")
	d.SetAchievementEvaluator(eval)
	d.Reevaluate("u2")
	d.Close()

	assert.Empty(t, rec.Kinds())
	assert.Equal(t, []string{"u2"}, eval.Users())
}
