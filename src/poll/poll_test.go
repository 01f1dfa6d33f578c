package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

var backupStates = struct {
	success []string
	failure []string
}{
	success: []string{"COMPLETED"},
	failure: []string{"FAILED", "ABORTED"},
}

// scriptedQuery returns statuses in order, repeating the last one.
func scriptedQuery(t *testing.T, statuses ...Status) Query {
	t.Helper()
	i := 0
	return func(_ context.Context, _ string) (Status, error) {
		st := statuses[i]
		if i < len(statuses)-1 {
			i++
		}
		return st, nil
	}
}

func newTestPoller(t *testing.T, clock Clock, opts ...Option) *Poller {
	t.Helper()
	opts = append([]Option{WithClock(clock)}, opts...)
	return New(zap.NewNop(), opts...)
}

func TestPollSucceeds(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	p := newTestPoller(t, clock)

	query := scriptedQuery(t,
		Status{Value: "CREATED"},
		Status{Value: "RUNNING"},
		Status{Value: "COMPLETED"},
	)

	res, err := p.Poll(context.Background(), Job{ID: "j1", Kind: Backup}, query, backupStates.success, backupStates.failure)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.State != Succeeded {
		t.Fatalf("state = %v, want Succeeded", res.State)
	}
	// Two non-terminal statuses -> two sleeps at the backup interval.
	if len(clock.Slept) != 2 {
		t.Fatalf("slept %d times, want 2", len(clock.Slept))
	}
	for _, d := range clock.Slept {
		if d != 30*time.Second {
			t.Fatalf("backup jobs must poll at a fixed 30s interval, slept %v", d)
		}
	}
}

func TestPollNeverQueriesAfterTerminal(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	p := newTestPoller(t, clock)

	calls := 0
	query := func(_ context.Context, _ string) (Status, error) {
		calls++
		return Status{Value: "COMPLETED"}, nil
	}

	if _, err := p.Poll(context.Background(), Job{ID: "j1", Kind: Backup}, query, backupStates.success, backupStates.failure); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if calls != 1 {
		t.Fatalf("query called %d times after terminal status, want 1", calls)
	}
}

func TestPollFailureCarriesDetail(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	p := newTestPoller(t, clock)

	query := scriptedQuery(t,
		Status{Value: "RUNNING"},
		Status{Value: "FAILED", Detail: "insufficient vault permissions"},
	)

	res, err := p.Poll(context.Background(), Job{ID: "j2", Kind: Restore}, query, backupStates.success, backupStates.failure)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.State != Failed {
		t.Fatalf("state = %v, want Failed", res.State)
	}
	if res.Reason != "insufficient vault permissions" {
		t.Fatalf("reason = %q, want provider detail", res.Reason)
	}
}

func TestPollFailureWithoutDetailFallsBackToStatus(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	p := newTestPoller(t, clock)

	query := scriptedQuery(t, Status{Value: "ABORTED"})

	res, err := p.Poll(context.Background(), Job{ID: "j3", Kind: Backup}, query, backupStates.success, backupStates.failure)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.State != Failed || res.Reason != "ABORTED" {
		t.Fatalf("got %+v, want Failed with status as reason", res)
	}
}

func TestPollTimesOutWithinOneInterval(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	timeout := 95 * time.Second
	p := newTestPoller(t, clock, WithTimeout(ClusterCreation, timeout))

	query := scriptedQuery(t, Status{Value: "CREATING"})

	job := Job{ID: "j4", Kind: ClusterCreation}
	res, err := p.Poll(context.Background(), job, query, []string{"ACTIVE"}, []string{"FAILED"})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if res.State != TimedOut {
		t.Fatalf("state = %v, want TimedOut", res.State)
	}
	if res.Reason != "CREATING" {
		t.Fatalf("timeout should report the last status, got %q", res.Reason)
	}
	if res.Elapsed < timeout || res.Elapsed >= timeout+job.Kind.Interval() {
		t.Fatalf("elapsed %v outside [%v, %v)", res.Elapsed, timeout, timeout+job.Kind.Interval())
	}
}

func TestPollActivationInterval(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	p := newTestPoller(t, clock)

	query := scriptedQuery(t,
		Status{Value: "CREATING"},
		Status{Value: "ACTIVE"},
	)

	if _, err := p.Poll(context.Background(), Job{ID: "a1", Kind: AddonActivation}, query, []string{"ACTIVE"}, []string{"CREATE_FAILED"}); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(clock.Slept) != 1 || clock.Slept[0] != 10*time.Second {
		t.Fatalf("activation jobs must poll every 10s, slept %v", clock.Slept)
	}
}

func TestPollQueryErrorAborts(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	p := newTestPoller(t, clock)

	boom := errors.New("throttled")
	query := func(_ context.Context, _ string) (Status, error) {
		return Status{}, boom
	}

	if _, err := p.Poll(context.Background(), Job{ID: "j5", Kind: Backup}, query, backupStates.success, backupStates.failure); !errors.Is(err, boom) {
		t.Fatalf("expected query error to propagate, got %v", err)
	}
}

func TestPollCancellation(t *testing.T) {
	clock := NewManualClock(time.Unix(0, 0))
	ctx, cancel := context.WithCancel(context.Background())
	clock.Cancel = cancel
	p := newTestPoller(t, clock)

	query := scriptedQuery(t, Status{Value: "RUNNING"})

	_, err := p.Poll(ctx, Job{ID: "j6", Kind: Restore}, query, backupStates.success, backupStates.failure)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
