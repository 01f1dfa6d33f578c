package awsapi

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/backup"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/efs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// Connect loads the ambient AWS configuration (env, shared config, IMDS) for
// the given region and returns real service clients.
func Connect(ctx context.Context, region string) (*Clients, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	return &Clients{
		Backup:   &backupClient{api: backup.NewFromConfig(cfg)},
		Cluster:  &eksClient{api: eks.NewFromConfig(cfg)},
		Identity: &iamClient{api: iam.NewFromConfig(cfg), sts: sts.NewFromConfig(cfg)},
		Network:  &ec2Client{api: ec2.NewFromConfig(cfg)},
		Storage:  &efsClient{api: efs.NewFromConfig(cfg)},
	}, nil
}

type backupClient struct {
	api *backup.Client
}

func (c *backupClient) StartBackupJob(ctx context.Context, resourceArn, vaultName, roleArn string) (string, error) {
	out, err := c.api.StartBackupJob(ctx, &backup.StartBackupJobInput{
		BackupVaultName: aws.String(vaultName),
		ResourceArn:     aws.String(resourceArn),
		IamRoleArn:      aws.String(roleArn),
	})
	if err != nil {
		return "", fmt.Errorf("starting backup job for %s: %w", resourceArn, err)
	}
	return aws.ToString(out.BackupJobId), nil
}

func (c *backupClient) DescribeBackupJob(ctx context.Context, jobID string) (BackupJob, error) {
	out, err := c.api.DescribeBackupJob(ctx, &backup.DescribeBackupJobInput{
		BackupJobId: aws.String(jobID),
	})
	if err != nil {
		return BackupJob{}, fmt.Errorf("describing backup job %s: %w", jobID, err)
	}
	return BackupJob{
		ID:               jobID,
		Status:           string(out.State),
		Message:          aws.ToString(out.StatusMessage),
		RecoveryPointArn: aws.ToString(out.RecoveryPointArn),
		SizeBytes:        aws.ToInt64(out.BackupSizeInBytes),
		CreatedAt:        aws.ToTime(out.CreationDate),
		CompletedAt:      aws.ToTime(out.CompletionDate),
	}, nil
}

func (c *backupClient) StartRestoreJob(ctx context.Context, recoveryPointArn, roleArn, resourceType string, metadata map[string]string) (string, error) {
	out, err := c.api.StartRestoreJob(ctx, &backup.StartRestoreJobInput{
		RecoveryPointArn: aws.String(recoveryPointArn),
		IamRoleArn:       aws.String(roleArn),
		ResourceType:     aws.String(resourceType),
		Metadata:         metadata,
	})
	if err != nil {
		return "", fmt.Errorf("starting restore job from %s: %w", recoveryPointArn, err)
	}
	return aws.ToString(out.RestoreJobId), nil
}

func (c *backupClient) DescribeRestoreJob(ctx context.Context, jobID string) (RestoreJob, error) {
	out, err := c.api.DescribeRestoreJob(ctx, &backup.DescribeRestoreJobInput{
		RestoreJobId: aws.String(jobID),
	})
	if err != nil {
		return RestoreJob{}, fmt.Errorf("describing restore job %s: %w", jobID, err)
	}
	return RestoreJob{
		ID:                 jobID,
		Status:             string(out.Status),
		Message:            aws.ToString(out.StatusMessage),
		CreatedResourceArn: aws.ToString(out.CreatedResourceArn),
		CreatedAt:          aws.ToTime(out.CreationDate),
		CompletedAt:        aws.ToTime(out.CompletionDate),
	}, nil
}

func (c *backupClient) ListRecoveryPoints(ctx context.Context, vaultName string) ([]RecoveryPoint, error) {
	var points []RecoveryPoint
	p := backup.NewListRecoveryPointsByBackupVaultPaginator(c.api, &backup.ListRecoveryPointsByBackupVaultInput{
		BackupVaultName: aws.String(vaultName),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing recovery points in vault %s: %w", vaultName, err)
		}
		for _, rp := range page.RecoveryPoints {
			points = append(points, RecoveryPoint{
				Arn:          aws.ToString(rp.RecoveryPointArn),
				ResourceArn:  aws.ToString(rp.ResourceArn),
				ResourceType: aws.ToString(rp.ResourceType),
				ParentArn:    aws.ToString(rp.ParentRecoveryPointArn),
				Status:       string(rp.Status),
				CreatedAt:    aws.ToTime(rp.CreationDate),
			})
		}
	}
	return points, nil
}

func (c *backupClient) DeleteRecoveryPoint(ctx context.Context, vaultName, recoveryPointArn string) error {
	_, err := c.api.DeleteRecoveryPoint(ctx, &backup.DeleteRecoveryPointInput{
		BackupVaultName:  aws.String(vaultName),
		RecoveryPointArn: aws.String(recoveryPointArn),
	})
	if err != nil {
		return fmt.Errorf("deleting recovery point %s: %w", recoveryPointArn, err)
	}
	return nil
}

type eksClient struct {
	api *eks.Client
}

func (c *eksClient) DescribeCluster(ctx context.Context, name string) (Cluster, error) {
	out, err := c.api.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(name)})
	if err != nil {
		if IsNotFound(err) {
			return Cluster{}, &NotFoundError{Resource: "cluster", Name: name}
		}
		return Cluster{}, fmt.Errorf("describing cluster %s: %w", name, err)
	}
	cl := out.Cluster
	c2 := Cluster{
		Name:     aws.ToString(cl.Name),
		Arn:      aws.ToString(cl.Arn),
		Version:  aws.ToString(cl.Version),
		Status:   string(cl.Status),
		Endpoint: aws.ToString(cl.Endpoint),
		RoleArn:  aws.ToString(cl.RoleArn),
	}
	if cl.CertificateAuthority != nil {
		c2.CertificateAuthority = aws.ToString(cl.CertificateAuthority.Data)
	}
	if cl.ResourcesVpcConfig != nil {
		c2.VpcID = aws.ToString(cl.ResourcesVpcConfig.VpcId)
		c2.SubnetIDs = cl.ResourcesVpcConfig.SubnetIds
	}
	return c2, nil
}

func (c *eksClient) ListNodegroups(ctx context.Context, clusterName string) ([]string, error) {
	var names []string
	p := eks.NewListNodegroupsPaginator(c.api, &eks.ListNodegroupsInput{
		ClusterName: aws.String(clusterName),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing node groups of %s: %w", clusterName, err)
		}
		names = append(names, page.Nodegroups...)
	}
	return names, nil
}

func (c *eksClient) DescribeNodegroup(ctx context.Context, clusterName, name string) (Nodegroup, error) {
	out, err := c.api.DescribeNodegroup(ctx, &eks.DescribeNodegroupInput{
		ClusterName:   aws.String(clusterName),
		NodegroupName: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return Nodegroup{}, &NotFoundError{Resource: "nodegroup", Name: name}
		}
		return Nodegroup{}, fmt.Errorf("describing node group %s/%s: %w", clusterName, name, err)
	}
	ng := out.Nodegroup
	n := Nodegroup{
		Name:          aws.ToString(ng.NodegroupName),
		Status:        string(ng.Status),
		SubnetIDs:     ng.Subnets,
		InstanceTypes: ng.InstanceTypes,
		NodeRoleArn:   aws.ToString(ng.NodeRole),
	}
	if sc := ng.ScalingConfig; sc != nil {
		n.MinSize = aws.ToInt32(sc.MinSize)
		n.MaxSize = aws.ToInt32(sc.MaxSize)
		n.DesiredSize = aws.ToInt32(sc.DesiredSize)
	}
	return n, nil
}

func (c *eksClient) ListAddons(ctx context.Context, clusterName string) ([]string, error) {
	var names []string
	p := eks.NewListAddonsPaginator(c.api, &eks.ListAddonsInput{
		ClusterName: aws.String(clusterName),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing addons of %s: %w", clusterName, err)
		}
		names = append(names, page.Addons...)
	}
	return names, nil
}

func (c *eksClient) CreateAddon(ctx context.Context, clusterName, addonName string, podIdentity *PodIdentity) error {
	in := &eks.CreateAddonInput{
		ClusterName:      aws.String(clusterName),
		AddonName:        aws.String(addonName),
		ResolveConflicts: ekstypes.ResolveConflictsOverwrite,
	}
	if podIdentity != nil {
		in.PodIdentityAssociations = []ekstypes.AddonPodIdentityAssociations{{
			ServiceAccount: aws.String(podIdentity.ServiceAccount),
			RoleArn:        aws.String(podIdentity.RoleArn),
		}}
	}
	if _, err := c.api.CreateAddon(ctx, in); err != nil {
		if IsConflict(err) {
			return &ConflictError{Resource: "addon", Name: addonName}
		}
		return fmt.Errorf("creating addon %s on %s: %w", addonName, clusterName, err)
	}
	return nil
}

func (c *eksClient) DescribeAddon(ctx context.Context, clusterName, addonName string) (Addon, error) {
	out, err := c.api.DescribeAddon(ctx, &eks.DescribeAddonInput{
		ClusterName: aws.String(clusterName),
		AddonName:   aws.String(addonName),
	})
	if err != nil {
		if IsNotFound(err) {
			return Addon{}, &NotFoundError{Resource: "addon", Name: addonName}
		}
		return Addon{}, fmt.Errorf("describing addon %s on %s: %w", addonName, clusterName, err)
	}
	ad := Addon{
		Name:    aws.ToString(out.Addon.AddonName),
		Version: aws.ToString(out.Addon.AddonVersion),
		Status:  string(out.Addon.Status),
	}
	if h := out.Addon.Health; h != nil {
		for _, issue := range h.Issues {
			ad.Issues = append(ad.Issues, aws.ToString(issue.Message))
		}
	}
	return ad, nil
}

type iamClient struct {
	api *iam.Client
	sts *sts.Client
}

func (c *iamClient) GetRole(ctx context.Context, name string) (Role, error) {
	out, err := c.api.GetRole(ctx, &iam.GetRoleInput{RoleName: aws.String(name)})
	if err != nil {
		if IsNotFound(err) {
			return Role{}, &NotFoundError{Resource: "role", Name: name}
		}
		return Role{}, fmt.Errorf("getting role %s: %w", name, err)
	}
	return Role{Name: aws.ToString(out.Role.RoleName), Arn: aws.ToString(out.Role.Arn)}, nil
}

func (c *iamClient) CreateRole(ctx context.Context, name, description, trustPolicy string) (Role, error) {
	out, err := c.api.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(name),
		Description:              aws.String(description),
		AssumeRolePolicyDocument: aws.String(trustPolicy),
	})
	if err != nil {
		if IsConflict(err) {
			return Role{}, &ConflictError{Resource: "role", Name: name}
		}
		return Role{}, fmt.Errorf("creating role %s: %w", name, err)
	}
	return Role{Name: aws.ToString(out.Role.RoleName), Arn: aws.ToString(out.Role.Arn)}, nil
}

func (c *iamClient) AttachRolePolicy(ctx context.Context, roleName, policyArn string) error {
	_, err := c.api.AttachRolePolicy(ctx, &iam.AttachRolePolicyInput{
		RoleName:  aws.String(roleName),
		PolicyArn: aws.String(policyArn),
	})
	if err != nil {
		return fmt.Errorf("attaching policy %s to role %s: %w", policyArn, roleName, err)
	}
	return nil
}

func (c *iamClient) PutRolePolicy(ctx context.Context, roleName, policyName, document string) error {
	_, err := c.api.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(policyName),
		PolicyDocument: aws.String(document),
	})
	if err != nil {
		return fmt.Errorf("putting inline policy %s on role %s: %w", policyName, roleName, err)
	}
	return nil
}

func (c *iamClient) GetInstanceProfile(ctx context.Context, name string) (InstanceProfile, error) {
	out, err := c.api.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{
		InstanceProfileName: aws.String(name),
	})
	if err != nil {
		if IsNotFound(err) {
			return InstanceProfile{}, &NotFoundError{Resource: "instance profile", Name: name}
		}
		return InstanceProfile{}, fmt.Errorf("getting instance profile %s: %w", name, err)
	}
	p := InstanceProfile{
		Name: aws.ToString(out.InstanceProfile.InstanceProfileName),
		Arn:  aws.ToString(out.InstanceProfile.Arn),
	}
	for _, r := range out.InstanceProfile.Roles {
		p.RoleNames = append(p.RoleNames, aws.ToString(r.RoleName))
	}
	return p, nil
}

func (c *iamClient) CreateInstanceProfile(ctx context.Context, name string) (InstanceProfile, error) {
	out, err := c.api.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: aws.String(name),
	})
	if err != nil {
		if IsConflict(err) {
			return InstanceProfile{}, &ConflictError{Resource: "instance profile", Name: name}
		}
		return InstanceProfile{}, fmt.Errorf("creating instance profile %s: %w", name, err)
	}
	return InstanceProfile{
		Name: aws.ToString(out.InstanceProfile.InstanceProfileName),
		Arn:  aws.ToString(out.InstanceProfile.Arn),
	}, nil
}

func (c *iamClient) AddRoleToInstanceProfile(ctx context.Context, profileName, roleName string) error {
	_, err := c.api.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	})
	if err != nil {
		return fmt.Errorf("binding role %s to instance profile %s: %w", roleName, profileName, err)
	}
	return nil
}

func (c *iamClient) AccountID(ctx context.Context) (string, error) {
	out, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("getting caller identity: %w", err)
	}
	return aws.ToString(out.Account), nil
}

type ec2Client struct {
	api *ec2.Client
}

func (c *ec2Client) VPCByName(ctx context.Context, name string) (VPC, error) {
	out, err := c.api.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("tag:Name"),
			Values: []string{name},
		}},
	})
	if err != nil {
		return VPC{}, fmt.Errorf("describing VPCs named %s: %w", name, err)
	}
	if len(out.Vpcs) == 0 {
		return VPC{}, &NotFoundError{Resource: "vpc", Name: name}
	}
	v := out.Vpcs[0]
	return VPC{ID: aws.ToString(v.VpcId), Name: name, Cidr: aws.ToString(v.CidrBlock)}, nil
}

func (c *ec2Client) SubnetsByVPC(ctx context.Context, vpcID string) ([]Subnet, error) {
	out, err := c.api.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("vpc-id"),
			Values: []string{vpcID},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("describing subnets of %s: %w", vpcID, err)
	}
	subnets := make([]Subnet, 0, len(out.Subnets))
	for _, s := range out.Subnets {
		subnets = append(subnets, Subnet{
			ID:               aws.ToString(s.SubnetId),
			VpcID:            aws.ToString(s.VpcId),
			AvailabilityZone: aws.ToString(s.AvailabilityZone),
			Public:           aws.ToBool(s.MapPublicIpOnLaunch),
		})
	}
	return subnets, nil
}

func (c *ec2Client) AvailabilityZones(ctx context.Context) ([]string, error) {
	out, err := c.api.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{
		Filters: []ec2types.Filter{{
			Name:   aws.String("state"),
			Values: []string{"available"},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("describing availability zones: %w", err)
	}
	zones := make([]string, 0, len(out.AvailabilityZones))
	for _, az := range out.AvailabilityZones {
		zones = append(zones, aws.ToString(az.ZoneName))
	}
	return zones, nil
}

type efsClient struct {
	api *efs.Client
}

func (c *efsClient) FileSystemByCreationToken(ctx context.Context, token string) (FileSystem, error) {
	out, err := c.api.DescribeFileSystems(ctx, &efs.DescribeFileSystemsInput{
		CreationToken: aws.String(token),
	})
	if err != nil {
		return FileSystem{}, fmt.Errorf("describing filesystems with token %s: %w", token, err)
	}
	if len(out.FileSystems) == 0 {
		return FileSystem{}, &NotFoundError{Resource: "filesystem", Name: token}
	}
	fs := out.FileSystems[0]
	return FileSystem{
		ID:            aws.ToString(fs.FileSystemId),
		Arn:           aws.ToString(fs.FileSystemArn),
		CreationToken: aws.ToString(fs.CreationToken),
		State:         string(fs.LifeCycleState),
	}, nil
}
