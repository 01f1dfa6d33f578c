package cluster

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"eks-backup/src/awsapi"
	"eks-backup/src/iamroles"
	"eks-backup/src/poll"
)

const clusterArn = "arn:aws:eks:us-west-2:111122223333:cluster/prod-a"

func newFixture(t *testing.T) (*Flow, *awsapi.FakeClients) {
	t.Helper()
	fake := awsapi.NewFake()
	fake.ClustersMap["prod-a"] = awsapi.Cluster{
		Name: "prod-a", Arn: clusterArn, Version: "1.31", Status: "ACTIVE",
		VpcID: "vpc-1", SubnetIDs: []string{"subnet-a", "subnet-b"},
	}
	fake.NodegroupsMap["prod-a"] = map[string]awsapi.Nodegroup{
		"ng-1": {Name: "ng-1", SubnetIDs: []string{"subnet-a"}, InstanceTypes: []string{"m5.large"}, NodeRoleArn: "arn:aws:iam::111122223333:role/eksNodeRole", MinSize: 1, MaxSize: 3, DesiredSize: 2},
	}
	fake.AddonsMap["prod-a"] = map[string]awsapi.Addon{
		"aws-ebs-csi-driver": {Name: "aws-ebs-csi-driver", Status: "ACTIVE"},
	}

	log := zap.NewNop()
	roles := iamroles.New(fake, log, iamroles.WithSleeper(func(context.Context, time.Duration) error { return nil }))
	poller := poll.New(log, poll.WithClock(poll.NewManualClock(time.Unix(0, 0))))
	f := NewFlow(fake, fake, roles, poller, log)
	f.now = func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) }
	return f, fake
}

func TestRunBackupHappyPath(t *testing.T) {
	f, fake := newFixture(t)
	fake.BackupJobs["backup-job-1"] = &awsapi.FakeJob{
		ID:        "backup-job-1",
		Statuses:  []string{"CREATED", "RUNNING", "COMPLETED"},
		ResultArn: "arn:aws:backup:us-west-2:111122223333:recovery-point:snap-1",
	}

	res, err := f.Run(context.Background(), RunInput{ClusterName: "prod-a", VaultName: "eks-dr-vault"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if diff := cmp.Diff([]string{clusterArn}, fake.StartedBackups); diff != "" {
		t.Fatalf("backup calls mismatch (-want +got):\n%s", diff)
	}
	// The backup-service role is ensured before the job starts.
	if fake.RoleCreates["EKSBackupRestoreRole"] != 1 {
		t.Fatal("backup-service role was not provisioned")
	}
	if res.Manifest.RecoveryPointArn != "arn:aws:backup:us-west-2:111122223333:recovery-point:snap-1" {
		t.Fatalf("manifest recovery point = %q", res.Manifest.RecoveryPointArn)
	}
	if len(res.Manifest.NodeGroups) != 1 || res.Manifest.NodeGroups[0].Name != "ng-1" {
		t.Fatalf("manifest node groups = %+v", res.Manifest.NodeGroups)
	}
	if len(res.Manifest.Addons) != 1 || res.Manifest.Addons[0] != "aws-ebs-csi-driver" {
		t.Fatalf("manifest addons = %v", res.Manifest.Addons)
	}
}

func TestRunBackupJobFailureIsFatal(t *testing.T) {
	f, fake := newFixture(t)
	fake.BackupJobs["backup-job-1"] = &awsapi.FakeJob{
		ID:       "backup-job-1",
		Statuses: []string{"RUNNING", "FAILED"},
		Message:  "vault access denied",
	}

	_, err := f.Run(context.Background(), RunInput{ClusterName: "prod-a", VaultName: "eks-dr-vault"})
	if err == nil || !strings.Contains(err.Error(), "vault access denied") {
		t.Fatalf("expected fatal error with provider detail, got %v", err)
	}
}

func TestRunBackupMissingClusterIsConfigError(t *testing.T) {
	f, fake := newFixture(t)

	_, err := f.Run(context.Background(), RunInput{ClusterName: "ghost", VaultName: "eks-dr-vault"})
	if err == nil {
		t.Fatal("Run should fail for an unknown cluster")
	}
	if len(fake.StartedBackups) != 0 {
		t.Fatal("no backup job may start when the cluster lookup fails")
	}
}

func TestBuildManifestCapturesOrdering(t *testing.T) {
	_, fake := newFixture(t)
	fake.NodegroupsMap["prod-a"]["ng-0"] = awsapi.Nodegroup{Name: "ng-0"}

	m, err := BuildManifest(context.Background(), fake, "prod-a", time.Now())
	if err != nil {
		t.Fatalf("BuildManifest: %v", err)
	}
	// The fake lists node groups sorted; the manifest must preserve that.
	if m.NodeGroups[0].Name != "ng-0" || m.NodeGroups[1].Name != "ng-1" {
		t.Fatalf("node group order not preserved: %+v", m.NodeGroups)
	}
}
