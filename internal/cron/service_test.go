package cron

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/angelmondragon/remitflow-backend/pkg/logger"
)

type fakeLock struct {
	held       bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name   string
	err    error
	panics bool
	runs   int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	if t.panics {
		panic("job exploded")
	}
	return t.err
}

type fakeRecorder struct {
	success map[string]int
	failure map[string]int
	skipped int
}

func (f *fakeRecorder) ObserveRun(job string, _ time.Duration, err error) {
	if err != nil {
		f.failure[job]++
		return
	}
	f.success[job]++
}

func (f *fakeRecorder) IncSkipped() { f.skipped++ }

func newTestService(t *testing.T, lock Lock, rec jobRecorder, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Lock:     lock,
		Metrics:  rec,
		Interval: time.Minute,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return svc
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &testJob{name: "ok"}
	failing := &testJob{name: "failing", err: errors.New("boom")}
	panicking := &testJob{name: "panicking", panics: true}
	rec := &fakeRecorder{success: map[string]int{}, failure: map[string]int{}}
	lock := &fakeLock{}
	svc := newTestService(t, lock, rec, failing, panicking, ok)

	err := svc.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected combined error")
	}
	if !strings.Contains(err.Error(), "failing: boom") || !strings.Contains(err.Error(), "panicking: panic") {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, job := range []*testJob{ok, failing, panicking} {
		if job.runs != 1 {
			t.Fatalf("%s ran %d times", job.name, job.runs)
		}
	}
	if rec.success["ok"] != 1 || rec.failure["failing"] != 1 || rec.failure["panicking"] != 1 {
		t.Fatalf("unexpected metrics: %+v %+v", rec.success, rec.failure)
	}
	if lock.held || lock.releases != 1 {
		t.Fatal("expected lock to be released")
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "ok"}
	rec := &fakeRecorder{success: map[string]int{}, failure: map[string]int{}}
	svc := newTestService(t, &fakeLock{held: true}, rec, job)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job should not run without the lock")
	}
	if rec.skipped != 1 {
		t.Fatalf("expected skipped cycle to be counted, got %d", rec.skipped)
	}
}

func TestRunOnceReturnsLockError(t *testing.T) {
	svc := newTestService(t, &fakeLock{acquireErr: errors.New("redis down")}, nil, &testJob{name: "ok"})
	if err := svc.RunOnce(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "ok"}
	svc := newTestService(t, &fakeLock{}, nil, job)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if job.runs != 1 {
		t.Fatalf("expected the initial cycle to run, got %d runs", job.runs)
	}
}

func TestNewServiceRequiresInterval(t *testing.T) {
	registry, _ := NewRegistry()
	_, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Lock:     &fakeLock{},
	})
	if err == nil {
		t.Fatal("expected interval error")
	}
}
