package verify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"eks-backup/src/awsapi"
	"eks-backup/src/backup/cluster"
)

// Check is one verification probe against the restored cluster.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Report collects every check for one verification run.
type Report struct {
	ClusterName string  `json:"clusterName"`
	Checks      []Check `json:"checks"`
}

// Passed reports whether every check succeeded.
func (r *Report) Passed() bool {
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

func (r *Report) add(name string, ok bool, format string, args ...any) {
	r.Checks = append(r.Checks, Check{Name: name, OK: ok, Detail: fmt.Sprintf(format, args...)})
}

// Verifier compares a restored cluster against the manifest captured at
// backup time. It only reads; pass/fail is the caller's decision to act on.
type Verifier struct {
	cluster awsapi.ClusterService
	storage awsapi.StorageService
	log     *zap.Logger
}

// New wires a Verifier.
func New(clusterSvc awsapi.ClusterService, storage awsapi.StorageService, log *zap.Logger) *Verifier {
	return &Verifier{cluster: clusterSvc, storage: storage, log: log}
}

// Verify runs all checks. fsTokens are creation tokens of filesystems the
// restore was expected to create; pass nil when no filesystem children were
// restored.
func (v *Verifier) Verify(ctx context.Context, clusterName string, m *cluster.Manifest, fsTokens []string) (*Report, error) {
	rep := &Report{ClusterName: clusterName}

	c, err := v.cluster.DescribeCluster(ctx, clusterName)
	if err != nil {
		rep.add("cluster exists", false, "%v", err)
		return rep, nil
	}
	rep.add("cluster exists", true, "arn %s", c.Arn)
	rep.add("cluster active", c.Status == "ACTIVE", "status %s", c.Status)
	rep.add("version matches backup", c.Version == m.Version, "restored %s, backed up %s", c.Version, m.Version)

	v.verifyNodeGroups(ctx, clusterName, m, rep)
	v.verifyAddons(ctx, clusterName, m, rep)
	v.verifyFilesystems(ctx, fsTokens, rep)

	v.log.Info("verification finished",
		zap.String("cluster", clusterName),
		zap.Bool("passed", rep.Passed()),
		zap.Int("checks", len(rep.Checks)))
	return rep, nil
}

func (v *Verifier) verifyNodeGroups(ctx context.Context, clusterName string, m *cluster.Manifest, rep *Report) {
	for _, want := range m.NodeGroups {
		name := "node group " + want.Name
		ng, err := v.cluster.DescribeNodegroup(ctx, clusterName, want.Name)
		if err != nil {
			rep.add(name, false, "%v", err)
			continue
		}
		if ng.Status != "ACTIVE" {
			rep.add(name, false, "status %s", ng.Status)
			continue
		}
		if !equalStrings(ng.InstanceTypes, want.InstanceTypes) {
			rep.add(name, false, "instance types %v, backed up %v", ng.InstanceTypes, want.InstanceTypes)
			continue
		}
		if ng.DesiredSize != want.DesiredSize {
			rep.add(name, false, "desired size %d, backed up %d", ng.DesiredSize, want.DesiredSize)
			continue
		}
		rep.add(name, true, "active, %d node(s)", ng.DesiredSize)
	}
}

func (v *Verifier) verifyAddons(ctx context.Context, clusterName string, m *cluster.Manifest, rep *Report) {
	for _, name := range m.Addons {
		check := "addon " + name
		ad, err := v.cluster.DescribeAddon(ctx, clusterName, name)
		if err != nil {
			rep.add(check, false, "%v", err)
			continue
		}
		if ad.Status != "ACTIVE" {
			rep.add(check, false, "status %s: %s", ad.Status, strings.Join(ad.Issues, "; "))
			continue
		}
		rep.add(check, true, "version %s", ad.Version)
	}
}

func (v *Verifier) verifyFilesystems(ctx context.Context, tokens []string, rep *Report) {
	for _, token := range tokens {
		check := "filesystem " + token
		fs, err := v.storage.FileSystemByCreationToken(ctx, token)
		if err != nil {
			rep.add(check, false, "%v", err)
			continue
		}
		rep.add(check, fs.State == "available", "%s, state %s", fs.ID, fs.State)
	}
}

// Markdown renders the report for the results directory.
func (r *Report) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Restore verification: %s\n\n", r.ClusterName)
	if r.Passed() {
		b.WriteString("Result: **PASS**\n\n")
	} else {
		b.WriteString("Result: **FAIL**\n\n")
	}
	b.WriteString("| Check | Result | Detail |\n|---|---|---|\n")
	for _, c := range r.Checks {
		status := "ok"
		if !c.OK {
			status = "FAIL"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", c.Name, status, c.Detail)
	}
	return b.String()
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
