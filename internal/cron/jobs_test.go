package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bawabati/bawabati-backend/pkg/enums"
	"github.com/bawabati/bawabati-backend/pkg/logger"
)

type fakeHandoffSweepRepo struct {
	cleared int64
	err     error
	phases  []enums.HandoffPhase
	lastNow time.Time
}

func (f *fakeHandoffSweepRepo) ClearExpiredCodes(ctx context.Context, phase enums.HandoffPhase, now time.Time) (int64, error) {
	f.phases = append(f.phases, phase)
	f.lastNow = now
	if f.err != nil {
		return 0, f.err
	}
	return f.cleared, nil
}

func TestHandoffSweepJobClearsBothPhases(t *testing.T) {
	repo := &fakeHandoffSweepRepo{cleared: 7}
	jobIface, err := NewHandoffSweepJob(HandoffSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewHandoffSweepJob: %v", err)
	}

	if err := jobIface.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.phases) != 2 {
		t.Fatalf("expected both phases swept, got %v", repo.phases)
	}
	if repo.phases[0] != enums.HandoffPhasePickup || repo.phases[1] != enums.HandoffPhaseDelivery {
		t.Fatalf("unexpected sweep order: %v", repo.phases)
	}
}

func TestHandoffSweepJobPropagatesErrors(t *testing.T) {
	repo := &fakeHandoffSweepRepo{err: errors.New("boom")}
	jobIface, err := NewHandoffSweepJob(HandoffSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
	})
	if err != nil {
		t.Fatalf("NewHandoffSweepJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

type fakeNotificationCleaner struct {
	deletedRows int64
	err         error
	called      int
	lastCutoff  time.Time
}

func (f *fakeNotificationCleaner) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.called++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return f.deletedRows, nil
}

func TestNotificationCleanupJobUsesConfiguredMaxAge(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	cleaner := &fakeNotificationCleaner{deletedRows: 42}
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Notifications: cleaner,
		MaxAge:        720 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	job, ok := jobIface.(*notificationCleanupJob)
	if !ok {
		t.Fatalf("expected notificationCleanupJob, got %T", jobIface)
	}
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expectedCutoff := now.Add(-720 * time.Hour)
	if !cleaner.lastCutoff.Equal(expectedCutoff) {
		t.Fatalf("expected cutoff %s, got %s", expectedCutoff, cleaner.lastCutoff)
	}
	if cleaner.called != 1 {
		t.Fatalf("expected cleaner called once, got %d", cleaner.called)
	}
}

func TestNotificationCleanupJobPropagatesErrors(t *testing.T) {
	cleaner := &fakeNotificationCleaner{err: errors.New("boom")}
	jobIface, err := NewNotificationCleanupJob(NotificationCleanupJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Notifications: cleaner,
	})
	if err != nil {
		t.Fatalf("NewNotificationCleanupJob: %v", err)
	}
	if err := jobIface.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
