package iamroles

import (
	"encoding/json"
	"fmt"

	"eks-backup/src/arn"
)

// Kind enumerates the role purposes this tool provisions. Each kind carries
// a fixed trust policy and a fixed policy attachment set; adding a kind
// means extending the switches below.
type Kind int

const (
	ClusterRole Kind = iota
	NodeRole
	BackupServiceRole
	EBSDriverRole
	EFSDriverRole
	AutoscalerControllerRole
	AutoscalerNodeRole
)

// Kinds lists every role kind, in provisioning order.
var Kinds = []Kind{
	ClusterRole,
	NodeRole,
	BackupServiceRole,
	EBSDriverRole,
	EFSDriverRole,
	AutoscalerControllerRole,
	AutoscalerNodeRole,
}

func (k Kind) String() string {
	switch k {
	case ClusterRole:
		return "cluster"
	case NodeRole:
		return "node"
	case BackupServiceRole:
		return "backup-service"
	case EBSDriverRole:
		return "ebs-driver"
	case EFSDriverRole:
		return "efs-driver"
	case AutoscalerControllerRole:
		return "autoscaler-controller"
	case AutoscalerNodeRole:
		return "autoscaler-node"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindFromString parses the CLI spelling of a role kind.
func KindFromString(s string) (Kind, error) {
	for _, k := range Kinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown role kind %q", s)
}

// DefaultName returns the conventional role name for the kind, used when the
// caller does not supply one.
func (k Kind) DefaultName() string {
	switch k {
	case ClusterRole:
		return "eksClusterRole"
	case NodeRole:
		return "eksNodeRole"
	case BackupServiceRole:
		return "EKSBackupRestoreRole"
	case EBSDriverRole:
		return "AmazonEKS_EBS_CSI_DriverRole"
	case EFSDriverRole:
		return "AmazonEKS_EFS_CSI_DriverRole"
	case AutoscalerControllerRole:
		return "KarpenterControllerRole"
	case AutoscalerNodeRole:
		return "KarpenterNodeRole"
	default:
		return ""
	}
}

// NeedsInstanceProfile reports whether EC2 instances assume this role
// directly, requiring a same-named instance profile binding.
func (k Kind) NeedsInstanceProfile() bool {
	return k == NodeRole || k == AutoscalerNodeRole
}

// ManagedPolicies returns the AWS-managed policy names attached on creation.
func (k Kind) ManagedPolicies() []string {
	switch k {
	case ClusterRole:
		return []string{"AmazonEKSClusterPolicy"}
	case NodeRole, AutoscalerNodeRole:
		return []string{
			"AmazonEKSWorkerNodePolicy",
			"AmazonEKS_CNI_Policy",
			"AmazonEC2ContainerRegistryReadOnly",
			"AmazonSSMManagedInstanceCore",
		}
	case BackupServiceRole:
		return []string{
			"service-role/AWSBackupServiceRolePolicyForBackup",
			"service-role/AWSBackupServiceRolePolicyForRestores",
		}
	case EBSDriverRole:
		return []string{"service-role/AmazonEBSCSIDriverPolicy"}
	case EFSDriverRole:
		return []string{"service-role/AmazonEFSCSIDriverPolicy"}
	default:
		return nil
	}
}

// policyDocument is an IAM policy built as a typed structure and serialized
// through encoding/json, never by string templating.
type policyDocument struct {
	Version   string      `json:"Version"`
	Statement []statement `json:"Statement"`
}

type statement struct {
	Sid       string            `json:"Sid,omitempty"`
	Effect    string            `json:"Effect"`
	Principal map[string]string `json:"Principal,omitempty"`
	Action    []string          `json:"Action"`
	Resource  []string          `json:"Resource,omitempty"`
}

func (d policyDocument) encode() string {
	// The document is built from literals; marshalling cannot fail.
	b, _ := json.Marshal(d)
	return string(b)
}

func serviceTrust(service string, actions ...string) string {
	if len(actions) == 0 {
		actions = []string{"sts:AssumeRole"}
	}
	return policyDocument{
		Version: "2012-10-17",
		Statement: []statement{{
			Effect:    "Allow",
			Principal: map[string]string{"Service": service},
			Action:    actions,
		}},
	}.encode()
}

// TrustPolicy returns the kind's assume-role policy document.
func (k Kind) TrustPolicy() string {
	switch k {
	case ClusterRole:
		return serviceTrust("eks.amazonaws.com")
	case NodeRole, AutoscalerNodeRole:
		return serviceTrust("ec2.amazonaws.com")
	case BackupServiceRole:
		return serviceTrust("backup.amazonaws.com")
	case EBSDriverRole, EFSDriverRole, AutoscalerControllerRole:
		// Pod Identity: the agent both assumes the role and tags the session.
		return serviceTrust("pods.eks.amazonaws.com", "sts:AssumeRole", "sts:TagSession")
	default:
		return ""
	}
}

// InlinePolicies returns inline policy documents put on the role at
// creation, keyed by policy name. Only the autoscaler controller needs one;
// everything else is covered by managed policies.
func (k Kind) InlinePolicies(accountID string) map[string]string {
	if k != AutoscalerControllerRole {
		return nil
	}
	doc := policyDocument{
		Version: "2012-10-17",
		Statement: []statement{
			{
				Sid:    "AllowScopedEC2",
				Effect: "Allow",
				Action: []string{
					"ec2:CreateFleet",
					"ec2:CreateLaunchTemplate",
					"ec2:CreateTags",
					"ec2:DeleteLaunchTemplate",
					"ec2:RunInstances",
					"ec2:TerminateInstances",
					"ec2:Describe*",
				},
				Resource: []string{"*"},
			},
			{
				Sid:      "AllowPricingAndSSMReads",
				Effect:   "Allow",
				Action:   []string{"pricing:GetProducts", "ssm:GetParameter"},
				Resource: []string{"*"},
			},
			{
				Sid:      "AllowPassNodeRole",
				Effect:   "Allow",
				Action:   []string{"iam:PassRole"},
				Resource: []string{arn.RoleARN(accountID, AutoscalerNodeRole.DefaultName())},
			},
			{
				Sid:    "AllowInstanceProfileManagement",
				Effect: "Allow",
				Action: []string{
					"iam:GetInstanceProfile",
					"iam:CreateInstanceProfile",
					"iam:TagInstanceProfile",
					"iam:AddRoleToInstanceProfile",
					"iam:RemoveRoleFromInstanceProfile",
					"iam:DeleteInstanceProfile",
				},
				Resource: []string{"*"},
			},
			{
				Sid:      "AllowClusterEndpointDiscovery",
				Effect:   "Allow",
				Action:   []string{"eks:DescribeCluster"},
				Resource: []string{"*"},
			},
		},
	}
	return map[string]string{"KarpenterControllerPolicy": doc.encode()}
}
