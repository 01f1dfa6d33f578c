package poll

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Kind classifies an asynchronous job by the service operation behind it.
// The kind fixes the poll interval: backup and restore jobs move slowly and
// are polled every 30s, activation-style jobs every 10s. Intervals are fixed
// per kind; there is no backoff.
type Kind int

const (
	Backup Kind = iota
	Restore
	AddonActivation
	ClusterCreation
	StackOperation
)

func (k Kind) String() string {
	switch k {
	case Backup:
		return "backup"
	case Restore:
		return "restore"
	case AddonActivation:
		return "addon-activation"
	case ClusterCreation:
		return "cluster-creation"
	case StackOperation:
		return "stack-operation"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Interval returns the fixed poll interval for the kind.
func (k Kind) Interval() time.Duration {
	switch k {
	case Backup, Restore:
		return 30 * time.Second
	default:
		return 10 * time.Second
	}
}

// DefaultTimeout returns the overall deadline for the kind.
func (k Kind) DefaultTimeout() time.Duration {
	switch k {
	case Backup, Restore:
		return 2 * time.Hour
	case ClusterCreation:
		return 1 * time.Hour
	case AddonActivation:
		return 20 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// Job is an asynchronous operation handle. The handle is discarded once a
// terminal Result is produced.
type Job struct {
	ID   string
	Kind Kind
}

// Status is one observation of a job's remote state. Detail carries the
// provider's failure message when there is one.
type Status struct {
	Value  string
	Detail string
}

// Query fetches the current status of a job. The concrete query differs per
// job kind, so it is injected.
type Query func(ctx context.Context, jobID string) (Status, error)

// State is the terminal classification of a polled job.
type State int

const (
	Succeeded State = iota
	Failed
	TimedOut
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of a Poll call. Reason is non-empty for Failed and
// carries the last observed status for TimedOut.
type Result struct {
	State   State
	Reason  string
	Elapsed time.Duration
}

// Observer is called after every status observation, terminal or not.
// Used to drive interactive progress output.
type Observer func(job Job, st Status, elapsed time.Duration)

// Poller runs fixed-interval status polls against asynchronous jobs.
// The zero value is not usable; construct with New.
type Poller struct {
	clock    Clock
	log      *zap.Logger
	timeouts map[Kind]time.Duration
	observe  Observer
}

// Option configures a Poller.
type Option func(*Poller)

// WithClock replaces the wall clock, for deterministic tests.
func WithClock(c Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithTimeout overrides the default timeout for one job kind.
func WithTimeout(k Kind, d time.Duration) Option {
	return func(p *Poller) { p.timeouts[k] = d }
}

// WithObserver registers a callback invoked on every observation.
func WithObserver(o Observer) Option {
	return func(p *Poller) { p.observe = o }
}

// New returns a Poller logging through log.
func New(log *zap.Logger, opts ...Option) *Poller {
	p := &Poller{
		clock:    SystemClock{},
		log:      log,
		timeouts: map[Kind]time.Duration{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Poller) timeout(k Kind) time.Duration {
	if d, ok := p.timeouts[k]; ok {
		return d
	}
	return k.DefaultTimeout()
}

// Poll queries the job's status at the kind's fixed interval until the
// status lands in successStates or failureStates, or the kind's timeout
// elapses. Query errors abort the poll; context cancellation aborts the
// sleep. Polling is read-only: all mutation happened in the call that
// produced the job.
func (p *Poller) Poll(ctx context.Context, job Job, query Query, successStates, failureStates []string) (Result, error) {
	interval := job.Kind.Interval()
	timeout := p.timeout(job.Kind)
	start := p.clock.Now()

	for {
		st, err := query(ctx, job.ID)
		if err != nil {
			return Result{}, fmt.Errorf("querying %s job %s: %w", job.Kind, job.ID, err)
		}
		elapsed := p.clock.Now().Sub(start)
		if p.observe != nil {
			p.observe(job, st, elapsed)
		}

		if contains(successStates, st.Value) {
			p.log.Info("job succeeded",
				zap.String("kind", job.Kind.String()),
				zap.String("job", job.ID),
				zap.Duration("elapsed", elapsed))
			return Result{State: Succeeded, Elapsed: elapsed}, nil
		}
		if contains(failureStates, st.Value) {
			reason := st.Detail
			if reason == "" {
				reason = st.Value
			}
			p.log.Warn("job failed",
				zap.String("kind", job.Kind.String()),
				zap.String("job", job.ID),
				zap.String("status", st.Value),
				zap.String("reason", reason))
			return Result{State: Failed, Reason: reason, Elapsed: elapsed}, nil
		}
		if elapsed >= timeout {
			p.log.Warn("job timed out",
				zap.String("kind", job.Kind.String()),
				zap.String("job", job.ID),
				zap.String("last_status", st.Value),
				zap.Duration("elapsed", elapsed))
			return Result{State: TimedOut, Reason: st.Value, Elapsed: elapsed}, nil
		}

		p.log.Debug("job still running",
			zap.String("kind", job.Kind.String()),
			zap.String("job", job.ID),
			zap.String("status", st.Value),
			zap.Duration("elapsed", elapsed))
		if err := p.clock.Sleep(ctx, interval); err != nil {
			return Result{}, err
		}
	}
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
