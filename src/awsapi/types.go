package awsapi

import (
	"context"
	"time"
)

// Cluster models the slice of an EKS cluster we care about.
type Cluster struct {
	Name                 string
	Arn                  string
	Version              string
	Status               string
	Endpoint             string
	CertificateAuthority string // base64-encoded PEM, as returned by the API
	RoleArn              string
	VpcID                string
	SubnetIDs            []string
}

// Nodegroup models a managed node group's restorable configuration.
type Nodegroup struct {
	Name          string
	Status        string
	SubnetIDs     []string
	InstanceTypes []string
	NodeRoleArn   string
	MinSize       int32
	MaxSize       int32
	DesiredSize   int32
}

// Addon is an EKS add-on and its activation status.
type Addon struct {
	Name    string
	Version string
	Status  string
	Issues  []string
}

// RecoveryPoint is a point-in-time capture stored in a backup vault.
// A non-empty ParentArn marks it as a child of a compound recovery point.
type RecoveryPoint struct {
	Arn          string
	ResourceArn  string
	ResourceType string // EKS | EBS | EFS | ...
	ParentArn    string
	Status       string
	CreatedAt    time.Time
}

// BackupJob is the polled view of an in-flight or finished backup.
type BackupJob struct {
	ID               string
	Status           string
	Message          string
	RecoveryPointArn string
	SizeBytes        int64
	CreatedAt        time.Time
	CompletedAt      time.Time
}

// RestoreJob is the polled view of an in-flight or finished restore.
type RestoreJob struct {
	ID                 string
	Status             string
	Message            string
	CreatedResourceArn string
	CreatedAt          time.Time
	CompletedAt        time.Time
}

// Role is an IAM role reference.
type Role struct {
	Name string
	Arn  string
}

// InstanceProfile is an IAM instance profile and its bound roles.
type InstanceProfile struct {
	Name      string
	Arn       string
	RoleNames []string
}

// VPC is a minimal VPC reference.
type VPC struct {
	ID   string
	Name string
	Cidr string
}

// Subnet is a minimal subnet reference. Public reflects whether instances
// launched into it get a public address by default.
type Subnet struct {
	ID               string
	VpcID            string
	AvailabilityZone string
	Public           bool
}

// FileSystem is a minimal EFS filesystem reference.
type FileSystem struct {
	ID            string
	Arn           string
	CreationToken string
	State         string
}

// BackupService covers the backup/restore operations we use from AWS Backup.
// Keep it narrow so the fake stays honest.
type BackupService interface {
	StartBackupJob(ctx context.Context, resourceArn, vaultName, roleArn string) (string, error)
	DescribeBackupJob(ctx context.Context, jobID string) (BackupJob, error)
	StartRestoreJob(ctx context.Context, recoveryPointArn, roleArn, resourceType string, metadata map[string]string) (string, error)
	DescribeRestoreJob(ctx context.Context, jobID string) (RestoreJob, error)
	ListRecoveryPoints(ctx context.Context, vaultName string) ([]RecoveryPoint, error)
	DeleteRecoveryPoint(ctx context.Context, vaultName, recoveryPointArn string) error
}

// ClusterService covers the EKS control-plane operations we use.
type ClusterService interface {
	DescribeCluster(ctx context.Context, name string) (Cluster, error)
	ListNodegroups(ctx context.Context, clusterName string) ([]string, error)
	DescribeNodegroup(ctx context.Context, clusterName, name string) (Nodegroup, error)
	ListAddons(ctx context.Context, clusterName string) ([]string, error)
	CreateAddon(ctx context.Context, clusterName, addonName string, podIdentity *PodIdentity) error
	DescribeAddon(ctx context.Context, clusterName, addonName string) (Addon, error)
}

// PodIdentity binds an add-on's service account to an IAM role without
// static credentials.
type PodIdentity struct {
	ServiceAccount string
	RoleArn        string
}

// IdentityService covers IAM plus the caller-identity lookup.
type IdentityService interface {
	GetRole(ctx context.Context, name string) (Role, error)
	CreateRole(ctx context.Context, name, description, trustPolicy string) (Role, error)
	AttachRolePolicy(ctx context.Context, roleName, policyArn string) error
	PutRolePolicy(ctx context.Context, roleName, policyName, document string) error
	GetInstanceProfile(ctx context.Context, name string) (InstanceProfile, error)
	CreateInstanceProfile(ctx context.Context, name string) (InstanceProfile, error)
	AddRoleToInstanceProfile(ctx context.Context, profileName, roleName string) error
	AccountID(ctx context.Context) (string, error)
}

// NetworkService covers the EC2 lookups needed for restore placement.
type NetworkService interface {
	VPCByName(ctx context.Context, name string) (VPC, error)
	SubnetsByVPC(ctx context.Context, vpcID string) ([]Subnet, error)
	AvailabilityZones(ctx context.Context) ([]string, error)
}

// StorageService covers the EFS lookups used by verification.
type StorageService interface {
	FileSystemByCreationToken(ctx context.Context, token string) (FileSystem, error)
}

// Clients bundles the per-service interfaces a flow needs. Flows take the
// bundle; components take only the interfaces they use.
type Clients struct {
	Backup   BackupService
	Cluster  ClusterService
	Identity IdentityService
	Network  NetworkService
	Storage  StorageService
}
