package restore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"eks-backup/src/arn"
	"eks-backup/src/awsapi"
	"eks-backup/src/iamroles"
	"eks-backup/src/network"
)

// Builder assembles restore descriptors from a compound recovery point and
// the current state of its source cluster.
type Builder struct {
	backup   awsapi.BackupService
	cluster  awsapi.ClusterService
	identity awsapi.IdentityService
	network  *network.Resolver
	log      *zap.Logger
}

// NewBuilder wires a Builder from its collaborators.
func NewBuilder(backup awsapi.BackupService, cluster awsapi.ClusterService, identity awsapi.IdentityService, net *network.Resolver, log *zap.Logger) *Builder {
	return &Builder{backup: backup, cluster: cluster, identity: identity, network: net, log: log}
}

// BuildInput names the restore target and the recovery point to restore.
type BuildInput struct {
	RecoveryPoint awsapi.RecoveryPoint
	VaultName     string
	// TargetName is the name of the cluster to create or restore into.
	TargetName string
	// TargetVersion is the Kubernetes version for the restored control
	// plane; empty means the source cluster's current version.
	TargetVersion string
	// VPCName is the Name tag of the VPC to place the restore in.
	VPCName string
	// NewCluster selects restore-to-new-cluster semantics.
	NewCluster bool
}

// BuildResult carries the descriptor plus what the build had to leave out.
type BuildResult struct {
	Descriptor *Descriptor
	// SkippedNodeGroups lists node groups whose detail fetch failed and
	// that are therefore absent from the descriptor. The restore proceeds
	// without them; callers must surface this loudly.
	SkippedNodeGroups []string
	// Children are the child recovery points discovered under the input.
	Children []awsapi.RecoveryPoint
}

// Build assembles the descriptor in five steps: source identity, node-group
// expansion, child discovery, network placement, role resolution. The output
// is deterministic for identical collaborator answers; collection orderings
// are preserved as returned.
func (b *Builder) Build(ctx context.Context, in BuildInput) (*BuildResult, error) {
	sourceName, err := sourceClusterName(in.RecoveryPoint)
	if err != nil {
		return nil, err
	}

	version := in.TargetVersion
	if version == "" {
		source, err := b.cluster.DescribeCluster(ctx, sourceName)
		if err != nil {
			return nil, fmt.Errorf("resolving source cluster version: %w", err)
		}
		version = source.Version
	}

	nodeGroups, skipped, err := b.expandNodeGroups(ctx, sourceName)
	if err != nil {
		return nil, err
	}

	children, overrides, err := b.discoverChildren(ctx, in)
	if err != nil {
		return nil, err
	}

	placement, err := b.network.Placement(ctx, in.VPCName)
	if err != nil {
		return nil, err
	}

	clusterRoleArn, err := b.resolveRole(ctx, iamroles.ClusterRole)
	if err != nil {
		return nil, err
	}
	nodeRoleArn, err := b.resolveRole(ctx, iamroles.NodeRole)
	if err != nil {
		return nil, err
	}
	for i := range nodeGroups {
		if nodeGroups[i].NodeRoleArn == "" {
			nodeGroups[i].NodeRoleArn = nodeRoleArn
		}
	}

	return &BuildResult{
		Descriptor: &Descriptor{
			ClusterName:    in.TargetName,
			ClusterVersion: version,
			VpcID:          placement.VpcID,
			SubnetIDs:      placement.SubnetIDs,
			ClusterRoleArn: clusterRoleArn,
			NodeGroups:     nodeGroups,
			ChildOverrides: overrides,
			NewCluster:     in.NewCluster,
		},
		SkippedNodeGroups: skipped,
		Children:          children,
	}, nil
}

// sourceClusterName derives the original cluster name from the recovery
// point's source resource reference.
func sourceClusterName(rp awsapi.RecoveryPoint) (string, error) {
	name, err := arn.ClusterName(rp.ResourceArn)
	if err != nil {
		return "", fmt.Errorf("recovery point %s: %w", rp.Arn, err)
	}
	return name, nil
}

// expandNodeGroups emits one spec per node group of the source cluster.
// A node group whose detail fetch fails is skipped with a warning rather
// than aborting the build; the restored cluster will simply lack it.
func (b *Builder) expandNodeGroups(ctx context.Context, sourceName string) ([]NodeGroupSpec, []string, error) {
	names, err := b.cluster.ListNodegroups(ctx, sourceName)
	if err != nil {
		return nil, nil, fmt.Errorf("listing node groups of source cluster %s: %w", sourceName, err)
	}

	specs := make([]NodeGroupSpec, 0, len(names))
	var skipped []string
	for _, name := range names {
		ng, err := b.cluster.DescribeNodegroup(ctx, sourceName, name)
		if err != nil {
			b.log.Warn("skipping node group, detail fetch failed",
				zap.String("cluster", sourceName),
				zap.String("nodegroup", name),
				zap.Error(err))
			skipped = append(skipped, name)
			continue
		}
		specs = append(specs, NodeGroupSpec{
			Name:          ng.Name,
			SubnetIDs:     ng.SubnetIDs,
			InstanceTypes: ng.InstanceTypes,
			NodeRoleArn:   ng.NodeRoleArn,
			MinSize:       ng.MinSize,
			MaxSize:       ng.MaxSize,
			DesiredSize:   ng.DesiredSize,
		})
	}
	return specs, skipped, nil
}

// discoverChildren lists the vault and keeps the recovery points whose
// parent is the input point, synthesizing one override per child from the
// fixed kind table.
func (b *Builder) discoverChildren(ctx context.Context, in BuildInput) ([]awsapi.RecoveryPoint, map[string]Override, error) {
	all, err := b.backup.ListRecoveryPoints(ctx, in.VaultName)
	if err != nil {
		return nil, nil, fmt.Errorf("discovering child recovery points: %w", err)
	}

	var children []awsapi.RecoveryPoint
	overrides := make(map[string]Override)
	var volumeAZ string

	for _, rp := range all {
		if rp.ParentArn != in.RecoveryPoint.Arn {
			continue
		}
		children = append(children, rp)

		ov := Override{Kind: childKindFor(rp.ResourceType)}
		switch ov.Kind {
		case ChildVolume:
			if volumeAZ == "" {
				volumeAZ, err = b.network.FirstAvailabilityZone(ctx)
				if err != nil {
					return nil, nil, fmt.Errorf("picking a zone for restored volumes: %w", err)
				}
			}
			ov.AvailabilityZone = volumeAZ
		case ChildFilesystem:
			ov.NewFileSystem = true
			ov.CreationToken = filesystemCreationToken(in.TargetName, rp)
		}
		overrides[rp.Arn] = ov
	}
	return children, overrides, nil
}

// filesystemCreationToken is deterministic so a rebuilt descriptor matches
// and verification can find the restored filesystem afterwards.
func filesystemCreationToken(targetName string, rp awsapi.RecoveryPoint) string {
	a, err := arn.Parse(rp.Arn)
	if err != nil {
		return targetName + "-restore"
	}
	return targetName + "-restore-" + a.ResourceName()
}

// resolveRole asks the identity collaborator for the kind's conventional
// role; when it has no record, fall back to the conventional ARN rather
// than failing at descriptor-build time.
func (b *Builder) resolveRole(ctx context.Context, kind iamroles.Kind) (string, error) {
	name := kind.DefaultName()
	role, err := b.identity.GetRole(ctx, name)
	if err == nil {
		return role.Arn, nil
	}
	var nf *awsapi.NotFoundError
	if !errors.As(err, &nf) {
		return "", fmt.Errorf("resolving %s role: %w", kind, err)
	}
	account, err := b.identity.AccountID(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving account for %s role fallback: %w", kind, err)
	}
	fallback := arn.RoleARN(account, name)
	b.log.Warn("role not found, falling back to naming convention",
		zap.String("kind", kind.String()),
		zap.String("arn", fallback))
	return fallback, nil
}
