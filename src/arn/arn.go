package arn

import (
	"fmt"
	"strings"
)

// ARN is a parsed Amazon Resource Name.
// Example: arn:aws:eks:us-west-2:111122223333:cluster/prod-a
type ARN struct {
	// Raw is the original input string.
	Raw string

	Partition string
	Service   string
	Region    string
	AccountID string
	// Resource is everything after the account id, e.g. "cluster/prod-a"
	// or "backup-vault:eks-dr-vault".
	Resource string
}

// Parse splits an ARN into its fixed fields. The resource part is kept
// verbatim since its shape is service-specific.
func Parse(raw string) (ARN, error) {
	a := ARN{Raw: raw}
	s := strings.TrimSpace(raw)
	if s == "" {
		return a, fmt.Errorf("arn must not be empty")
	}
	parts := strings.SplitN(s, ":", 6)
	if len(parts) != 6 || parts[0] != "arn" {
		return a, fmt.Errorf("invalid arn %q; expected 'arn:partition:service:region:account:resource'", raw)
	}
	a.Partition = parts[1]
	a.Service = parts[2]
	a.Region = parts[3]
	a.AccountID = parts[4]
	a.Resource = parts[5]
	if a.Service == "" || a.Resource == "" {
		return a, fmt.Errorf("invalid arn %q: missing service or resource", raw)
	}
	return a, nil
}

// ResourceName returns the trailing path segment of the resource part.
// For "cluster/prod-a" that is "prod-a"; for a resource without a path
// separator the whole resource part (minus any type prefix after ':')
// is returned.
func (a ARN) ResourceName() string {
	res := a.Resource
	if i := strings.LastIndex(res, "/"); i >= 0 {
		return res[i+1:]
	}
	if i := strings.LastIndex(res, ":"); i >= 0 {
		return res[i+1:]
	}
	return res
}

// ResourceType returns the leading type segment of the resource part, or ""
// when the resource carries no type prefix.
func (a ARN) ResourceType() string {
	res := a.Resource
	if i := strings.IndexAny(res, "/:"); i > 0 {
		return res[:i]
	}
	return ""
}

// ClusterName extracts the cluster name from an EKS cluster ARN.
func ClusterName(raw string) (string, error) {
	a, err := Parse(raw)
	if err != nil {
		return "", err
	}
	if a.Service != "eks" || a.ResourceType() != "cluster" {
		return "", fmt.Errorf("%q is not an EKS cluster arn", raw)
	}
	name := a.ResourceName()
	if name == "" {
		return "", fmt.Errorf("cluster arn %q has an empty name segment", raw)
	}
	return name, nil
}

// RoleARN builds a conventional IAM role ARN for the given account and name.
func RoleARN(accountID, name string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", accountID, name)
}

// ManagedPolicyARN builds the ARN of an AWS-managed IAM policy.
func ManagedPolicyARN(name string) string {
	return "arn:aws:iam::aws:policy/" + name
}

// String returns the raw ARN.
func (a ARN) String() string {
	return a.Raw
}
