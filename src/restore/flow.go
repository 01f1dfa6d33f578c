package restore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"eks-backup/src/awsapi"
	"eks-backup/src/poll"
)

// Terminal status sets for the jobs this flow drives.
var (
	restoreSuccessStates = []string{"COMPLETED"}
	restoreFailureStates = []string{"ABORTED", "FAILED"}

	clusterActiveStates = []string{"ACTIVE"}
	clusterFailedStates = []string{"FAILED", "DELETING"}
)

// Flow runs a full restore: build the descriptor, start the restore job,
// poll it to completion, and for new-cluster restores wait until the control
// plane is active.
type Flow struct {
	backup  awsapi.BackupService
	cluster awsapi.ClusterService
	builder *Builder
	poller  *poll.Poller
	log     *zap.Logger
}

// NewFlow wires a restore Flow.
func NewFlow(backup awsapi.BackupService, cluster awsapi.ClusterService, builder *Builder, poller *poll.Poller, log *zap.Logger) *Flow {
	return &Flow{backup: backup, cluster: cluster, builder: builder, poller: poller, log: log}
}

// RunInput parameterizes one restore run.
type RunInput struct {
	Build BuildInput
	// BackupRoleArn is the service role the restore job runs under.
	BackupRoleArn string
}

// RunResult reports what the restore produced.
type RunResult struct {
	Build *BuildResult
	JobID string
	// Job is the final job description, including the created resource ARN.
	Job awsapi.RestoreJob
}

// Run executes the restore flow. A failed or timed-out job is returned as an
// error; the job itself is never retried.
func (f *Flow) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	build, err := f.builder.Build(ctx, in.Build)
	if err != nil {
		return nil, err
	}
	for _, name := range build.SkippedNodeGroups {
		f.log.Warn("restore will not include node group", zap.String("nodegroup", name))
	}

	metadata, err := build.Descriptor.Metadata()
	if err != nil {
		return nil, err
	}

	jobID, err := f.backup.StartRestoreJob(ctx, in.Build.RecoveryPoint.Arn, in.BackupRoleArn, "EKS", metadata)
	if err != nil {
		return nil, err
	}
	f.log.Info("restore job started",
		zap.String("job", jobID),
		zap.String("recovery_point", in.Build.RecoveryPoint.Arn),
		zap.String("target", in.Build.TargetName))

	query := func(ctx context.Context, id string) (poll.Status, error) {
		job, err := f.backup.DescribeRestoreJob(ctx, id)
		if err != nil {
			return poll.Status{}, err
		}
		return poll.Status{Value: job.Status, Detail: job.Message}, nil
	}
	res, err := f.poller.Poll(ctx, poll.Job{ID: jobID, Kind: poll.Restore}, query, restoreSuccessStates, restoreFailureStates)
	if err != nil {
		return nil, err
	}
	switch res.State {
	case poll.Failed:
		return nil, fmt.Errorf("restore job %s failed: %s", jobID, res.Reason)
	case poll.TimedOut:
		return nil, fmt.Errorf("restore job %s timed out after %s (last status %s)", jobID, res.Elapsed, res.Reason)
	}

	job, err := f.backup.DescribeRestoreJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if in.Build.NewCluster {
		if err := f.WaitClusterActive(ctx, in.Build.TargetName); err != nil {
			return nil, err
		}
	}

	return &RunResult{Build: build, JobID: jobID, Job: job}, nil
}

// WaitClusterActive polls the control plane until it reports ACTIVE.
func (f *Flow) WaitClusterActive(ctx context.Context, name string) error {
	query := func(ctx context.Context, id string) (poll.Status, error) {
		c, err := f.cluster.DescribeCluster(ctx, id)
		if err != nil {
			return poll.Status{}, err
		}
		return poll.Status{Value: c.Status}, nil
	}
	res, err := f.poller.Poll(ctx, poll.Job{ID: name, Kind: poll.ClusterCreation}, query, clusterActiveStates, clusterFailedStates)
	if err != nil {
		return err
	}
	switch res.State {
	case poll.Failed:
		return fmt.Errorf("cluster %s entered state %s while waiting for ACTIVE", name, res.Reason)
	case poll.TimedOut:
		return fmt.Errorf("cluster %s not active after %s (last status %s)", name, res.Elapsed, res.Reason)
	}
	return nil
}
