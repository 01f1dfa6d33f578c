package network

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"eks-backup/src/awsapi"
)

// Placement is where a restored cluster's control plane and node groups go.
type Placement struct {
	VpcID string
	// SubnetIDs is the deduplicated union of the VPC's private and public
	// subnets, in the order the provider returned them.
	SubnetIDs []string
}

// Resolver answers network placement questions for the restore flow.
type Resolver struct {
	net awsapi.NetworkService
	log *zap.Logger
}

// New returns a Resolver over the given network service.
func New(net awsapi.NetworkService, log *zap.Logger) *Resolver {
	return &Resolver{net: net, log: log}
}

// Placement resolves the VPC with the given Name tag and its subnets.
// An EKS control plane needs subnets in at least two availability zones, so
// fewer than two distinct subnets is a configuration error.
func (r *Resolver) Placement(ctx context.Context, vpcName string) (Placement, error) {
	vpc, err := r.net.VPCByName(ctx, vpcName)
	if err != nil {
		return Placement{}, fmt.Errorf("resolving VPC %q: %w", vpcName, err)
	}

	subnets, err := r.net.SubnetsByVPC(ctx, vpc.ID)
	if err != nil {
		return Placement{}, err
	}

	seen := make(map[string]struct{}, len(subnets))
	ids := make([]string, 0, len(subnets))
	for _, s := range subnets {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		ids = append(ids, s.ID)
	}

	if len(ids) < 2 {
		return Placement{}, fmt.Errorf("VPC %s has %d subnet(s); a cluster control plane needs at least 2 across availability zones", vpc.ID, len(ids))
	}

	r.log.Debug("resolved placement",
		zap.String("vpc", vpc.ID),
		zap.Strings("subnets", ids))
	return Placement{VpcID: vpc.ID, SubnetIDs: ids}, nil
}

// FirstAvailabilityZone returns the first available zone in the region,
// used to place restored volumes.
func (r *Resolver) FirstAvailabilityZone(ctx context.Context) (string, error) {
	zones, err := r.net.AvailabilityZones(ctx)
	if err != nil {
		return "", err
	}
	if len(zones) == 0 {
		return "", fmt.Errorf("region reports no available zones")
	}
	return zones[0], nil
}
