package restore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"eks-backup/src/awsapi"
	"eks-backup/src/network"
)

const (
	srcClusterArn = "arn:aws:eks:us-west-2:111122223333:cluster/prod-a"
	parentRPArn   = "arn:aws:backup:us-west-2:111122223333:recovery-point:snap-1"
)

func newBuilderFixture(t *testing.T) (*Builder, *awsapi.FakeClients) {
	t.Helper()
	fake := awsapi.NewFake()

	fake.ClustersMap["prod-a"] = awsapi.Cluster{
		Name: "prod-a", Arn: srcClusterArn, Version: "1.31", Status: "ACTIVE",
	}
	fake.NodegroupsMap["prod-a"] = map[string]awsapi.Nodegroup{
		"ng-1": {
			Name:          "ng-1",
			SubnetIDs:     []string{"subnet-a", "subnet-b"},
			InstanceTypes: []string{"m5.large"},
			NodeRoleArn:   "arn:aws:iam::111122223333:role/prod-a-node",
			MinSize:       1, MaxSize: 4, DesiredSize: 2,
		},
		"ng-2": {
			Name:          "ng-2",
			SubnetIDs:     []string{"subnet-b"},
			InstanceTypes: []string{"m5.xlarge", "m5a.xlarge"},
			NodeRoleArn:   "arn:aws:iam::111122223333:role/prod-a-node",
			MinSize:       0, MaxSize: 2, DesiredSize: 1,
		},
	}

	fake.RecoveryPointsMap[parentRPArn] = awsapi.RecoveryPoint{
		Arn: parentRPArn, ResourceArn: srcClusterArn, ResourceType: "EKS",
		Status: "COMPLETED", CreatedAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}

	fake.VPCs["dr-vpc"] = awsapi.VPC{ID: "vpc-9", Name: "dr-vpc"}
	fake.Subnets["vpc-9"] = []awsapi.Subnet{
		{ID: "subnet-x", VpcID: "vpc-9", AvailabilityZone: "us-west-2a"},
		{ID: "subnet-y", VpcID: "vpc-9", AvailabilityZone: "us-west-2b", Public: true},
	}
	fake.AZs = []string{"us-west-2a", "us-west-2b"}

	log := zap.NewNop()
	b := NewBuilder(fake, fake, fake, network.New(fake, log), log)
	return b, fake
}

func buildInput(fake *awsapi.FakeClients) BuildInput {
	return BuildInput{
		RecoveryPoint: fake.RecoveryPointsMap[parentRPArn],
		VaultName:     "eks-dr-vault",
		TargetName:    "prod-a-restored",
		TargetVersion: "1.31",
		VPCName:       "dr-vpc",
		NewCluster:    true,
	}
}

func TestBuildNoChildren(t *testing.T) {
	b, fake := newBuilderFixture(t)

	res, err := b.Build(context.Background(), buildInput(fake))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(res.Descriptor.ChildOverrides) != 0 {
		t.Fatalf("expected empty override map, got %v", res.Descriptor.ChildOverrides)
	}
	if len(res.SkippedNodeGroups) != 0 {
		t.Fatalf("unexpected skips: %v", res.SkippedNodeGroups)
	}

	want := []NodeGroupSpec{
		{
			Name: "ng-1", SubnetIDs: []string{"subnet-a", "subnet-b"},
			InstanceTypes: []string{"m5.large"},
			NodeRoleArn:   "arn:aws:iam::111122223333:role/prod-a-node",
			MinSize:       1, MaxSize: 4, DesiredSize: 2,
		},
		{
			Name: "ng-2", SubnetIDs: []string{"subnet-b"},
			InstanceTypes: []string{"m5.xlarge", "m5a.xlarge"},
			NodeRoleArn:   "arn:aws:iam::111122223333:role/prod-a-node",
			MinSize:       0, MaxSize: 2, DesiredSize: 1,
		},
	}
	if diff := cmp.Diff(want, res.Descriptor.NodeGroups); diff != "" {
		t.Fatalf("node groups mismatch (-want +got):\n%s", diff)
	}
	if res.Descriptor.VpcID != "vpc-9" {
		t.Fatalf("vpc = %q, want vpc-9", res.Descriptor.VpcID)
	}
	if diff := cmp.Diff([]string{"subnet-x", "subnet-y"}, res.Descriptor.SubnetIDs); diff != "" {
		t.Fatalf("subnets mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildChildOverrideTable(t *testing.T) {
	b, fake := newBuilderFixture(t)
	childA := "arn:aws:backup:us-west-2:111122223333:recovery-point:child-a"
	childB := "arn:aws:backup:us-west-2:111122223333:recovery-point:child-b"
	childC := "arn:aws:backup:us-west-2:111122223333:recovery-point:child-c"
	fake.RecoveryPointsMap[childA] = awsapi.RecoveryPoint{
		Arn: childA, ParentArn: parentRPArn, ResourceType: "EBS", Status: "COMPLETED",
		ResourceArn: "arn:aws:ec2:us-west-2:111122223333:volume/vol-1",
	}
	fake.RecoveryPointsMap[childB] = awsapi.RecoveryPoint{
		Arn: childB, ParentArn: parentRPArn, ResourceType: "EFS", Status: "COMPLETED",
		ResourceArn: "arn:aws:elasticfilesystem:us-west-2:111122223333:file-system/fs-1",
	}
	// Unknown child kinds get an empty override, not an error.
	fake.RecoveryPointsMap[childC] = awsapi.RecoveryPoint{
		Arn: childC, ParentArn: parentRPArn, ResourceType: "DynamoDB", Status: "COMPLETED",
		ResourceArn: "arn:aws:dynamodb:us-west-2:111122223333:table/t1",
	}

	res, err := b.Build(context.Background(), buildInput(fake))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	ov := res.Descriptor.ChildOverrides
	if len(ov) != 3 {
		t.Fatalf("want one override per child, got %d", len(ov))
	}
	if got := ov[childA]; got.Kind != ChildVolume || got.AvailabilityZone != "us-west-2a" {
		t.Fatalf("volume override = %+v, want first zone us-west-2a", got)
	}
	if got := ov[childB]; got.Kind != ChildFilesystem || !got.NewFileSystem {
		t.Fatalf("filesystem override = %+v, want new-filesystem flag", got)
	}
	if got := ov[childB].Metadata()["newFileSystem"]; got != "true" {
		t.Fatalf("filesystem metadata newFileSystem = %q, want true", got)
	}
	if got := ov[childC]; got.Kind != ChildOther || len(got.Metadata()) != 0 {
		t.Fatalf("unknown kind override = %+v, want empty", got)
	}
}

func TestBuildSkipsNodeGroupOnDetailFailure(t *testing.T) {
	b, fake := newBuilderFixture(t)
	fake.NodegroupErrs["ng-2"] = errors.New("throttled")

	res, err := b.Build(context.Background(), buildInput(fake))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(res.Descriptor.NodeGroups) != 1 || res.Descriptor.NodeGroups[0].Name != "ng-1" {
		t.Fatalf("node groups = %+v, want only ng-1", res.Descriptor.NodeGroups)
	}
	if diff := cmp.Diff([]string{"ng-2"}, res.SkippedNodeGroups); diff != "" {
		t.Fatalf("skip record mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildInsufficientSubnetsIsFatal(t *testing.T) {
	b, fake := newBuilderFixture(t)
	fake.Subnets["vpc-9"] = fake.Subnets["vpc-9"][:1]

	if _, err := b.Build(context.Background(), buildInput(fake)); err == nil {
		t.Fatal("Build should fail with fewer than two subnets")
	}
}

func TestBuildRoleFallback(t *testing.T) {
	b, fake := newBuilderFixture(t)
	// No roles registered: the identity collaborator has no record, so the
	// builder falls back to the naming convention instead of failing.
	res, err := b.Build(context.Background(), buildInput(fake))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "arn:aws:iam::111122223333:role/eksClusterRole"
	if res.Descriptor.ClusterRoleArn != want {
		t.Fatalf("cluster role = %q, want fallback %q", res.Descriptor.ClusterRoleArn, want)
	}
}

func TestBuildUsesExistingRole(t *testing.T) {
	b, fake := newBuilderFixture(t)
	fake.RolesMap["eksClusterRole"] = awsapi.Role{
		Name: "eksClusterRole",
		Arn:  "arn:aws:iam::111122223333:role/custom/eksClusterRole",
	}

	res, err := b.Build(context.Background(), buildInput(fake))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Descriptor.ClusterRoleArn != "arn:aws:iam::111122223333:role/custom/eksClusterRole" {
		t.Fatalf("cluster role = %q, want the collaborator's record", res.Descriptor.ClusterRoleArn)
	}
}

func TestBuildVersionFromSourceCluster(t *testing.T) {
	b, fake := newBuilderFixture(t)
	in := buildInput(fake)
	in.TargetVersion = ""

	res, err := b.Build(context.Background(), in)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if res.Descriptor.ClusterVersion != "1.31" {
		t.Fatalf("version = %q, want source cluster's 1.31", res.Descriptor.ClusterVersion)
	}
}

func TestBuildRejectsNonClusterRecoveryPoint(t *testing.T) {
	b, fake := newBuilderFixture(t)
	in := buildInput(fake)
	in.RecoveryPoint.ResourceArn = "arn:aws:ec2:us-west-2:111122223333:volume/vol-9"

	if _, err := b.Build(context.Background(), in); err == nil {
		t.Fatal("Build should reject a recovery point whose source is not a cluster")
	}
}
