package cluster

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"eks-backup/src/awsapi"
	"eks-backup/src/iamroles"
	"eks-backup/src/poll"
)

var (
	backupSuccessStates = []string{"COMPLETED"}
	backupFailureStates = []string{"ABORTED", "FAILED", "EXPIRED"}
)

// Flow backs one cluster up into a vault: ensure the backup-service role,
// snapshot the cluster's restorable state into a manifest, start the backup
// job, and poll it to a terminal state.
type Flow struct {
	backup  awsapi.BackupService
	cluster awsapi.ClusterService
	roles   *iamroles.Resolver
	poller  *poll.Poller
	log     *zap.Logger
	now     func() time.Time
}

// NewFlow wires a backup Flow.
func NewFlow(backup awsapi.BackupService, cluster awsapi.ClusterService, roles *iamroles.Resolver, poller *poll.Poller, log *zap.Logger) *Flow {
	return &Flow{backup: backup, cluster: cluster, roles: roles, poller: poller, log: log, now: time.Now}
}

// RunInput names the cluster and vault for one backup run.
type RunInput struct {
	ClusterName string
	VaultName   string
	// RoleName optionally overrides the backup-service role name.
	RoleName string
}

// RunResult reports the finished backup.
type RunResult struct {
	JobID    string
	Job      awsapi.BackupJob
	Manifest *Manifest
}

// Run executes the backup flow. Failure or timeout of the job is fatal and
// reported as an error; the job is never retried.
func (f *Flow) Run(ctx context.Context, in RunInput) (*RunResult, error) {
	manifest, err := BuildManifest(ctx, f.cluster, in.ClusterName, f.now())
	if err != nil {
		return nil, err
	}

	roleArn, err := f.roles.Ensure(ctx, in.RoleName, iamroles.BackupServiceRole)
	if err != nil {
		return nil, err
	}

	jobID, err := f.backup.StartBackupJob(ctx, manifest.ClusterArn, in.VaultName, roleArn)
	if err != nil {
		return nil, err
	}
	f.log.Info("backup job started",
		zap.String("job", jobID),
		zap.String("cluster", in.ClusterName),
		zap.String("vault", in.VaultName))

	query := func(ctx context.Context, id string) (poll.Status, error) {
		job, err := f.backup.DescribeBackupJob(ctx, id)
		if err != nil {
			return poll.Status{}, err
		}
		return poll.Status{Value: job.Status, Detail: job.Message}, nil
	}
	res, err := f.poller.Poll(ctx, poll.Job{ID: jobID, Kind: poll.Backup}, query, backupSuccessStates, backupFailureStates)
	if err != nil {
		return nil, err
	}
	switch res.State {
	case poll.Failed:
		return nil, fmt.Errorf("backup job %s failed: %s", jobID, res.Reason)
	case poll.TimedOut:
		return nil, fmt.Errorf("backup job %s timed out after %s (last status %s)", jobID, res.Elapsed, res.Reason)
	}

	job, err := f.backup.DescribeBackupJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	manifest.RecoveryPointArn = job.RecoveryPointArn

	return &RunResult{JobID: jobID, Job: job, Manifest: manifest}, nil
}
