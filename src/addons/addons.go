package addons

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"eks-backup/src/awsapi"
	"eks-backup/src/iamroles"
	"eks-backup/src/poll"
)

var (
	addonActiveStates = []string{"ACTIVE"}
	addonFailedStates = []string{"CREATE_FAILED", "DELETE_FAILED", "DEGRADED"}
)

// Driver describes one storage add-on to reinstall after a restore, and the
// Pod Identity role its controller runs under.
type Driver struct {
	AddonName      string
	ServiceAccount string
	RoleKind       iamroles.Kind
}

// CSIDrivers are the storage drivers a restored cluster needs before any
// volume- or filesystem-backed workload can start.
var CSIDrivers = []Driver{
	{AddonName: "aws-ebs-csi-driver", ServiceAccount: "ebs-csi-controller-sa", RoleKind: iamroles.EBSDriverRole},
	{AddonName: "aws-efs-csi-driver", ServiceAccount: "efs-csi-controller-sa", RoleKind: iamroles.EFSDriverRole},
}

// Installer reinstalls cluster add-ons and waits for them to activate.
type Installer struct {
	cluster awsapi.ClusterService
	roles   *iamroles.Resolver
	poller  *poll.Poller
	log     *zap.Logger
}

// NewInstaller wires an Installer.
func NewInstaller(cluster awsapi.ClusterService, roles *iamroles.Resolver, poller *poll.Poller, log *zap.Logger) *Installer {
	return &Installer{cluster: cluster, roles: roles, poller: poller, log: log}
}

// Install ensures the driver's role, creates the add-on with a Pod Identity
// association, and polls until it reports ACTIVE. An add-on that already
// exists is not an error; it is simply waited on.
func (i *Installer) Install(ctx context.Context, clusterName string, d Driver) error {
	roleArn, err := i.roles.Ensure(ctx, "", d.RoleKind)
	if err != nil {
		return err
	}

	err = i.cluster.CreateAddon(ctx, clusterName, d.AddonName, &awsapi.PodIdentity{
		ServiceAccount: d.ServiceAccount,
		RoleArn:        roleArn,
	})
	if err != nil {
		var conflict *awsapi.ConflictError
		if !errors.As(err, &conflict) {
			return err
		}
		i.log.Info("addon already installed, waiting for it",
			zap.String("cluster", clusterName),
			zap.String("addon", d.AddonName))
	} else {
		i.log.Info("addon installation started",
			zap.String("cluster", clusterName),
			zap.String("addon", d.AddonName),
			zap.String("role", roleArn))
	}

	query := func(ctx context.Context, id string) (poll.Status, error) {
		ad, err := i.cluster.DescribeAddon(ctx, clusterName, id)
		if err != nil {
			return poll.Status{}, err
		}
		return poll.Status{Value: ad.Status, Detail: strings.Join(ad.Issues, "; ")}, nil
	}
	res, err := i.poller.Poll(ctx, poll.Job{ID: d.AddonName, Kind: poll.AddonActivation}, query, addonActiveStates, addonFailedStates)
	if err != nil {
		return err
	}
	switch res.State {
	case poll.Failed:
		return fmt.Errorf("addon %s on %s failed to activate: %s", d.AddonName, clusterName, res.Reason)
	case poll.TimedOut:
		return fmt.Errorf("addon %s on %s not active after %s", d.AddonName, clusterName, res.Elapsed)
	}
	return nil
}

// InstallAll installs every driver in order, stopping at the first failure.
func (i *Installer) InstallAll(ctx context.Context, clusterName string, drivers []Driver) error {
	for _, d := range drivers {
		if err := i.Install(ctx, clusterName, d); err != nil {
			return err
		}
	}
	return nil
}
