package arn

import "testing"

func TestParse(t *testing.T) {
	a, err := Parse("arn:aws:eks:us-west-2:111122223333:cluster/prod-a")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if a.Service != "eks" || a.Region != "us-west-2" || a.AccountID != "111122223333" {
		t.Fatalf("unexpected fields: %#v", a)
	}
	if a.Resource != "cluster/prod-a" {
		t.Fatalf("unexpected resource: %q", a.Resource)
	}
	if a.ResourceType() != "cluster" || a.ResourceName() != "prod-a" {
		t.Fatalf("unexpected type/name: %q/%q", a.ResourceType(), a.ResourceName())
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"not-an-arn",
		"arn:aws:eks:us-west-2:123", // too few fields
		"aws:arn:eks:us-west-2:123:cluster/x",
	} {
		if _, err := Parse(raw); err == nil {
			t.Errorf("Parse(%q) should have failed", raw)
		}
	}
}

func TestResourceNameColonSeparated(t *testing.T) {
	a, err := Parse("arn:aws:backup:us-west-2:111122223333:backup-vault:eks-dr-vault")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := a.ResourceName(); got != "eks-dr-vault" {
		t.Fatalf("ResourceName = %q, want eks-dr-vault", got)
	}
}

func TestClusterName(t *testing.T) {
	name, err := ClusterName("arn:aws:eks:us-west-2:111122223333:cluster/prod-a")
	if err != nil {
		t.Fatalf("ClusterName: %v", err)
	}
	if name != "prod-a" {
		t.Fatalf("ClusterName = %q, want prod-a", name)
	}
	if _, err := ClusterName("arn:aws:ec2:us-west-2:111122223333:volume/vol-1"); err == nil {
		t.Fatal("ClusterName should reject a non-EKS arn")
	}
}

func TestRoleARN(t *testing.T) {
	got := RoleARN("111122223333", "eksClusterRole")
	want := "arn:aws:iam::111122223333:role/eksClusterRole"
	if got != want {
		t.Fatalf("RoleARN = %q, want %q", got, want)
	}
}
