package scheduler

import (
	"testing"
	"time"

	"github.com/Miglio04/OREKA-BACKEND/internal/cache"
	"github.com/Miglio04/OREKA-BACKEND/internal/service"
	"github.com/Miglio04/OREKA-BACKEND/internal/store/memory"
)

func TestSchedulerStartStop(t *testing.T) {
	svc := service.New(memory.New(), cache.NoopSummaryCache{}, nil, time.Minute, nil)
	sched := New(svc, "@every 1h", nil)

	if err := sched.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	sched.Stop()
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	svc := service.New(memory.New(), cache.NoopSummaryCache{}, nil, time.Minute, nil)
	sched := New(svc, "not a cron spec", nil)

	if err := sched.Start(); err == nil {
		t.Fatalf("expected invalid cron spec to fail")
	}
}

func TestSchedulerRefreshWarmsCache(t *testing.T) {
	svc := service.New(memory.New(), cache.NoopSummaryCache{}, nil, time.Minute, nil)
	sched := New(svc, "", nil)

	// Run the job body directly; the cron loop just calls this on schedule.
	sched.refresh()
}
