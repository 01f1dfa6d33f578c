package cluster

import (
	"context"
	"fmt"
	"time"

	"eks-backup/src/awsapi"
)

// NodeGroupState is a node group's configuration as captured at backup time.
type NodeGroupState struct {
	Name          string   `json:"name"`
	SubnetIDs     []string `json:"subnetIds"`
	InstanceTypes []string `json:"instanceTypes"`
	NodeRoleArn   string   `json:"nodeRoleArn"`
	MinSize       int32    `json:"minSize"`
	MaxSize       int32    `json:"maxSize"`
	DesiredSize   int32    `json:"desiredSize"`
}

// Manifest records what the cluster looked like when it was backed up.
// The verify flow compares a restored cluster against it.
type Manifest struct {
	ClusterName      string           `json:"clusterName"`
	ClusterArn       string           `json:"clusterArn"`
	Version          string           `json:"version"`
	VpcID            string           `json:"vpcId"`
	SubnetIDs        []string         `json:"subnetIds"`
	NodeGroups       []NodeGroupState `json:"nodeGroups"`
	Addons           []string         `json:"addons"`
	RecoveryPointArn string           `json:"recoveryPointArn,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

// BuildManifest captures the cluster's current restorable state.
func BuildManifest(ctx context.Context, svc awsapi.ClusterService, clusterName string, now time.Time) (*Manifest, error) {
	c, err := svc.DescribeCluster(ctx, clusterName)
	if err != nil {
		return nil, err
	}

	names, err := svc.ListNodegroups(ctx, clusterName)
	if err != nil {
		return nil, err
	}
	groups := make([]NodeGroupState, 0, len(names))
	for _, name := range names {
		ng, err := svc.DescribeNodegroup(ctx, clusterName, name)
		if err != nil {
			return nil, fmt.Errorf("capturing node group %s: %w", name, err)
		}
		groups = append(groups, NodeGroupState{
			Name:          ng.Name,
			SubnetIDs:     ng.SubnetIDs,
			InstanceTypes: ng.InstanceTypes,
			NodeRoleArn:   ng.NodeRoleArn,
			MinSize:       ng.MinSize,
			MaxSize:       ng.MaxSize,
			DesiredSize:   ng.DesiredSize,
		})
	}

	addons, err := svc.ListAddons(ctx, clusterName)
	if err != nil {
		return nil, err
	}

	return &Manifest{
		ClusterName: c.Name,
		ClusterArn:  c.Arn,
		Version:     c.Version,
		VpcID:       c.VpcID,
		SubnetIDs:   c.SubnetIDs,
		NodeGroups:  groups,
		Addons:      addons,
		CreatedAt:   now.UTC(),
	}, nil
}
