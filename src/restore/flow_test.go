package restore

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"eks-backup/src/awsapi"
	"eks-backup/src/poll"
)

func newFlowFixture(t *testing.T) (*Flow, *awsapi.FakeClients) {
	t.Helper()
	b, fake := newBuilderFixture(t)
	log := zap.NewNop()
	poller := poll.New(log, poll.WithClock(poll.NewManualClock(time.Unix(0, 0))))
	return NewFlow(fake, fake, b, poller, log), fake
}

func TestRunRestoreToNewCluster(t *testing.T) {
	f, fake := newFlowFixture(t)

	// The restore job completes on the second describe; the restored
	// control plane is registered so the active wait can succeed.
	fake.RestoreJobs["restore-job-1"] = &awsapi.FakeJob{
		ID:       "restore-job-1",
		Statuses: []string{"RUNNING", "COMPLETED"},
		ResultArn: "arn:aws:eks:us-west-2:111122223333:cluster/prod-a-restored",
	}
	fake.ClustersMap["prod-a-restored"] = awsapi.Cluster{
		Name: "prod-a-restored", Status: "ACTIVE", Version: "1.31",
	}

	in := RunInput{
		Build:         buildInput(fake),
		BackupRoleArn: "arn:aws:iam::111122223333:role/EKSBackupRestoreRole",
	}
	res, err := f.Run(context.Background(), in)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(fake.StartedRestores) != 1 {
		t.Fatalf("started %d restores, want 1", len(fake.StartedRestores))
	}
	started := fake.StartedRestores[0]
	if started.RecoveryPointArn != parentRPArn || started.ResourceType != "EKS" {
		t.Fatalf("unexpected restore call: %+v", started)
	}
	if started.Metadata["ClusterName"] != "prod-a-restored" || started.Metadata["NewCluster"] != "true" {
		t.Fatalf("unexpected metadata: %v", started.Metadata)
	}
	if !json.Valid([]byte(started.Metadata["NodeGroups"])) {
		t.Fatalf("NodeGroups metadata is not JSON: %s", started.Metadata["NodeGroups"])
	}
	if res.Job.CreatedResourceArn == "" {
		t.Fatal("final job description should carry the created resource ARN")
	}
}

func TestRunSurfacesJobFailure(t *testing.T) {
	f, fake := newFlowFixture(t)
	fake.RestoreJobs["restore-job-1"] = &awsapi.FakeJob{
		ID:       "restore-job-1",
		Statuses: []string{"RUNNING", "ABORTED"},
		Message:  "restore point expired mid-flight",
	}

	_, err := f.Run(context.Background(), RunInput{
		Build:         buildInput(fake),
		BackupRoleArn: "arn:aws:iam::111122223333:role/EKSBackupRestoreRole",
	})
	if err == nil || !strings.Contains(err.Error(), "restore point expired mid-flight") {
		t.Fatalf("expected failure with provider detail, got %v", err)
	}
}

func TestRunConfigErrorIssuesNoRestoreCall(t *testing.T) {
	f, fake := newFlowFixture(t)
	// One subnet: configuration error during descriptor build.
	fake.Subnets["vpc-9"] = fake.Subnets["vpc-9"][:1]

	_, err := f.Run(context.Background(), RunInput{
		Build:         buildInput(fake),
		BackupRoleArn: "arn:aws:iam::111122223333:role/EKSBackupRestoreRole",
	})
	if err == nil {
		t.Fatal("Run should fail before the restore call")
	}
	if len(fake.StartedRestores) != 0 {
		t.Fatalf("no restore job may be issued on a config error, got %d", len(fake.StartedRestores))
	}
}

func TestLatestRecoveryPoint(t *testing.T) {
	fake := awsapi.NewFake()
	mk := func(arn, resource, status, parent string, created time.Time) {
		fake.RecoveryPointsMap[arn] = awsapi.RecoveryPoint{
			Arn: arn, ResourceArn: resource, Status: status, ParentArn: parent, CreatedAt: created,
		}
	}
	mk("rp-old", srcClusterArn, "COMPLETED", "", time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC))
	mk("rp-new", srcClusterArn, "COMPLETED", "", time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	mk("rp-partial", srcClusterArn, "PARTIAL", "", time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC))
	mk("rp-child", "arn:aws:ec2:us-west-2:111122223333:volume/vol-1", "COMPLETED", "rp-new", time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC))
	mk("rp-other", "arn:aws:eks:us-west-2:111122223333:cluster/other", "COMPLETED", "", time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))

	rp, err := LatestRecoveryPoint(context.Background(), fake, "eks-dr-vault", "prod-a")
	if err != nil {
		t.Fatalf("LatestRecoveryPoint: %v", err)
	}
	if rp.Arn != "rp-new" {
		t.Fatalf("picked %s, want rp-new", rp.Arn)
	}

	if _, err := LatestRecoveryPoint(context.Background(), fake, "eks-dr-vault", "absent"); err == nil {
		t.Fatal("expected error for a cluster with no recovery points")
	}
}

