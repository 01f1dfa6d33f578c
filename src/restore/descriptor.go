package restore

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NodeGroupSpec is the restorable configuration of one managed node group.
type NodeGroupSpec struct {
	Name          string   `json:"name"`
	SubnetIDs     []string `json:"subnetIds"`
	InstanceTypes []string `json:"instanceTypes"`
	NodeRoleArn   string   `json:"nodeRoleArn"`
	MinSize       int32    `json:"minSize"`
	MaxSize       int32    `json:"maxSize"`
	DesiredSize   int32    `json:"desiredSize"`
}

// Descriptor is the declarative description handed to the restore service to
// recreate a cluster, its node groups, and its child snapshots. It is built
// once, deterministically, and serialized through typed structures.
type Descriptor struct {
	ClusterName    string
	ClusterVersion string
	VpcID          string
	SubnetIDs      []string
	ClusterRoleArn string
	NodeGroups     []NodeGroupSpec
	// ChildOverrides has exactly one entry (possibly empty) per child
	// recovery point discovered under the compound recovery point.
	ChildOverrides map[string]Override
	NewCluster     bool
}

// Metadata serializes the descriptor into the flat key/value map the restore
// service accepts. Nested collections are JSON-encoded values.
func (d *Descriptor) Metadata() (map[string]string, error) {
	network, err := json.Marshal(struct {
		VpcID     string   `json:"vpcId"`
		SubnetIDs []string `json:"subnetIds"`
	}{d.VpcID, d.SubnetIDs})
	if err != nil {
		return nil, fmt.Errorf("encoding network config: %w", err)
	}

	nodeGroups, err := json.Marshal(d.NodeGroups)
	if err != nil {
		return nil, fmt.Errorf("encoding node groups: %w", err)
	}

	children := make(map[string]map[string]string, len(d.ChildOverrides))
	for childArn, ov := range d.ChildOverrides {
		children[childArn] = ov.Metadata()
	}
	childJSON, err := json.Marshal(children)
	if err != nil {
		return nil, fmt.Errorf("encoding child overrides: %w", err)
	}

	return map[string]string{
		"ClusterName":         d.ClusterName,
		"ClusterVersion":      d.ClusterVersion,
		"ClusterRoleArn":      d.ClusterRoleArn,
		"NetworkConfig":       string(network),
		"NodeGroups":          string(nodeGroups),
		"ChildRecoveryPoints": string(childJSON),
		"NewCluster":          strconv.FormatBool(d.NewCluster),
	}, nil
}
