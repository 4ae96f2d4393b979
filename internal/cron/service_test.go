package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/bawabati/bawabati-backend/pkg/logger"
)

type fakeLock struct {
	available  bool
	acquireErr error
	acquires   int
	releases   int
}

func (f *fakeLock) Acquire(ctx context.Context) (bool, error) {
	f.acquires++
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	return f.available, nil
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.releases++
	return nil
}

func newTestCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "test"}),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRunCycleExecutesJobsUnderLock(t *testing.T) {
	lock := &fakeLock{available: true}
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b", err: errors.New("boom")}
	svc := newTestCronService(t, lock, jobA, jobB)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if jobA.runs != 1 || jobB.runs != 1 {
		t.Fatalf("expected each job once, got %d and %d", jobA.runs, jobB.runs)
	}
	if lock.acquires != 1 || lock.releases != 1 {
		t.Fatalf("expected lock acquired and released once, got %d/%d", lock.acquires, lock.releases)
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	lock := &fakeLock{available: false}
	job := &stubJob{name: "a"}
	svc := newTestCronService(t, lock, job)

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatal("jobs must not run without the lock")
	}
	if lock.releases != 0 {
		t.Fatal("lock must not be released when never acquired")
	}
}

func TestRunCycleSurfacesAcquireErrors(t *testing.T) {
	lock := &fakeLock{acquireErr: errors.New("redis down")}
	svc := newTestCronService(t, lock)

	if err := svc.runCycle(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
