package maintenance

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeStore struct {
	purged  atomic.Int32
	expired atomic.Int32
	fail    bool
	block   chan struct{}
}

func (f *fakeStore) PurgeExpiredSessions(context.Context, time.Time) (int64, error) {
	f.purged.Add(1)
	if f.block != nil {
		<-f.block
	}
	return 3, nil
}

func (f *fakeStore) ExpireInterviews(context.Context, time.Time) (int64, error) {
	f.expired.Add(1)
	if f.fail {
		return 0, errors.New("db down")
	}
	return 1, nil
}

func TestRunOnceLogsEachJob(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	st := &fakeStore{fail: true}

	s, err := New(st, Config{}, zap.New(core))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	s.RunOnce()

	if st.purged.Load() != 1 || st.expired.Load() != 1 {
		t.Fatalf("expected both jobs to run once, got purge=%d expire=%d", st.purged.Load(), st.expired.Load())
	}

	finished := logs.FilterMessage("maintenance job finished").All()
	if len(finished) != 1 || finished[0].ContextMap()["affected"] != int64(3) {
		t.Fatalf("unexpected finished logs: %+v", finished)
	}
	if logs.FilterMessage("maintenance job failed").Len() != 1 {
		t.Fatalf("expected failure log")
	}
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New(&fakeStore{}, Config{SessionPurge: "every now and then"}, nil); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestScheduledJobsRunAndStopWaits(t *testing.T) {
	st := &fakeStore{block: make(chan struct{})}
	s, err := New(st, Config{SessionPurge: "@every 1s", InterviewExpiry: "@every 1h"}, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	s.Start()

	deadline := time.Now().Add(5 * time.Second)
	for st.purged.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("scheduled job did not run")
		}
		time.Sleep(20 * time.Millisecond)
	}

	// The purge job is still blocked, so Stop must wait for it.
	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Stop(short); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected stop to wait for running job, got %v", err)
	}

	close(st.block)
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
