package verify

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"

	"eks-backup/src/awsapi"
	"eks-backup/src/backup/cluster"
)

func manifest() *cluster.Manifest {
	return &cluster.Manifest{
		ClusterName: "prod-a",
		Version:     "1.31",
		NodeGroups: []cluster.NodeGroupState{
			{Name: "ng-1", InstanceTypes: []string{"m5.large"}, DesiredSize: 2},
		},
		Addons: []string{"aws-ebs-csi-driver"},
	}
}

func restoredFake() *awsapi.FakeClients {
	fake := awsapi.NewFake()
	fake.ClustersMap["restored"] = awsapi.Cluster{
		Name: "restored", Arn: "arn:aws:eks:us-west-2:111122223333:cluster/restored",
		Version: "1.31", Status: "ACTIVE",
	}
	fake.NodegroupsMap["restored"] = map[string]awsapi.Nodegroup{
		"ng-1": {Name: "ng-1", Status: "ACTIVE", InstanceTypes: []string{"m5.large"}, DesiredSize: 2},
	}
	fake.AddonsMap["restored"] = map[string]awsapi.Addon{
		"aws-ebs-csi-driver": {Name: "aws-ebs-csi-driver", Status: "ACTIVE", Version: "v1.35.0"},
	}
	return fake
}

func TestVerifyPasses(t *testing.T) {
	fake := restoredFake()
	fake.FileSystems["restored-restore-fs-1"] = awsapi.FileSystem{
		ID: "fs-9", CreationToken: "restored-restore-fs-1", State: "available",
	}

	v := New(fake, fake, zap.NewNop())
	rep, err := v.Verify(context.Background(), "restored", manifest(), []string{"restored-restore-fs-1"})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !rep.Passed() {
		t.Fatalf("expected pass, got %+v", rep.Checks)
	}
}

func TestVerifyFlagsVersionDrift(t *testing.T) {
	fake := restoredFake()
	c := fake.ClustersMap["restored"]
	c.Version = "1.30"
	fake.ClustersMap["restored"] = c

	v := New(fake, fake, zap.NewNop())
	rep, _ := v.Verify(context.Background(), "restored", manifest(), nil)
	if rep.Passed() {
		t.Fatal("version drift must fail verification")
	}
}

func TestVerifyFlagsMissingNodeGroupAndAddon(t *testing.T) {
	fake := restoredFake()
	delete(fake.NodegroupsMap["restored"], "ng-1")
	delete(fake.AddonsMap["restored"], "aws-ebs-csi-driver")

	v := New(fake, fake, zap.NewNop())
	rep, _ := v.Verify(context.Background(), "restored", manifest(), nil)

	failures := 0
	for _, c := range rep.Checks {
		if !c.OK {
			failures++
		}
	}
	if failures != 2 {
		t.Fatalf("want 2 failing checks, got %d: %+v", failures, rep.Checks)
	}
}

func TestVerifyMissingClusterShortCircuits(t *testing.T) {
	v := New(awsapi.NewFake(), awsapi.NewFake(), zap.NewNop())
	rep, err := v.Verify(context.Background(), "ghost", manifest(), nil)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if rep.Passed() || len(rep.Checks) != 1 {
		t.Fatalf("missing cluster should produce exactly one failing check, got %+v", rep.Checks)
	}
}

func TestMarkdownRendering(t *testing.T) {
	rep := &Report{ClusterName: "restored"}
	rep.add("cluster exists", true, "arn x")
	rep.add("addon foo", false, "status DEGRADED")

	md := rep.Markdown()
	if !strings.Contains(md, "**FAIL**") {
		t.Fatalf("failing report must render FAIL:\n%s", md)
	}
	if !strings.Contains(md, "| addon foo | FAIL | status DEGRADED |") {
		t.Fatalf("check row missing:\n%s", md)
	}
}
