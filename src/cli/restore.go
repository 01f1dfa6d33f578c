package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"eks-backup/src/addons"
	"eks-backup/src/awsapi"
	"eks-backup/src/iamroles"
	"eks-backup/src/kubeconfig"
	"eks-backup/src/restore"
	"eks-backup/src/safety"
)

func newRestoreCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore clusters or node groups from the vault",
	}
	cmd.AddCommand(newRestoreClusterCmd(stdout, stderr))
	cmd.AddCommand(newRestoreNodegroupsCmd(stdout, stderr))
	return cmd
}

// restoreFlags are shared between the new-cluster and nodegroups forms.
type restoreFlags struct {
	from          string
	sourceCluster string
	targetName    string
	targetVersion string
	vpcName       string
	backupRole    string
}

func (f *restoreFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "Recovery point ARN (default: newest completed point of --source-cluster)")
	cmd.Flags().StringVar(&f.sourceCluster, "source-cluster", "", "Source cluster name, used to pick the newest recovery point")
	cmd.Flags().StringVar(&f.targetName, "target-name", "", "Name of the cluster to create or restore into")
	cmd.Flags().StringVar(&f.targetVersion, "target-version", "", "Kubernetes version for the restored control plane (default: source version)")
	cmd.Flags().StringVar(&f.vpcName, "vpc", "", "Name tag of the VPC to place the restore in")
	cmd.Flags().StringVar(&f.backupRole, "backup-role", "", "IAM role name for the restore job (default EKSBackupRestoreRole)")
}

func (f *restoreFlags) recoveryPoint(ctx context.Context, a *app) (awsapi.RecoveryPoint, error) {
	if f.from != "" {
		return restore.FindRecoveryPoint(ctx, a.clients.Backup, a.vault, f.from)
	}
	if f.sourceCluster == "" {
		return awsapi.RecoveryPoint{}, errors.New("either --from or --source-cluster is required")
	}
	return restore.LatestRecoveryPoint(ctx, a.clients.Backup, a.vault, f.sourceCluster)
}

func (f *restoreFlags) buildInput(rp awsapi.RecoveryPoint, vault string, newCluster bool) restore.BuildInput {
	return restore.BuildInput{
		RecoveryPoint: rp,
		VaultName:     vault,
		TargetName:    f.targetName,
		TargetVersion: f.targetVersion,
		VPCName:       f.vpcName,
		NewCluster:    newCluster,
	}
}

func newRestoreClusterCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags restoreFlags
	var kubeconfigPath string
	var withAddons bool
	cmd := &cobra.Command{
		Use:   "new-cluster",
		Short: "Restore a backup into a brand-new cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.targetName == "" || flags.vpcName == "" {
				return errors.New("--target-name and --vpc are required")
			}
			a, err := newApp(cmd, stdout)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			rp, err := flags.recoveryPoint(ctx, a)
			if err != nil {
				return err
			}

			if getSafetyOptions(cmd).DryRun {
				return previewDescriptor(ctx, a, flags.buildInput(rp, a.vault, true), stdout)
			}

			roleArn, err := a.roles().Ensure(ctx, flags.backupRole, iamroles.BackupServiceRole)
			if err != nil {
				return err
			}
			flow := restore.NewFlow(a.clients.Backup, a.clients.Cluster, a.builder(), a.poller, a.log)
			res, err := flow.Run(ctx, restore.RunInput{
				Build:         flags.buildInput(rp, a.vault, true),
				BackupRoleArn: roleArn,
			})
			a.printer.Done()
			if err != nil {
				return err
			}
			jobPath, err := a.store.WriteJSON("restore-"+flags.targetName, res.Job)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Restore complete: %s\n", res.Job.CreatedResourceArn)
			fmt.Fprintf(stdout, "Job details written to %s\n", jobPath)

			if withAddons {
				installer := addons.NewInstaller(a.clients.Cluster, a.roles(), a.poller, a.log)
				if err := installer.InstallAll(ctx, flags.targetName, addons.CSIDrivers); err != nil {
					return err
				}
				a.printer.Done()
				fmt.Fprintln(stdout, "CSI driver add-ons active")
			}
			if kubeconfigPath != "" {
				c, err := a.clients.Cluster.DescribeCluster(ctx, flags.targetName)
				if err != nil {
					return err
				}
				if err := kubeconfig.Write(kubeconfigPath, c, a.region); err != nil {
					return err
				}
				fmt.Fprintf(stdout, "Kubeconfig written to %s\n", kubeconfigPath)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&kubeconfigPath, "kubeconfig", "", "Write a kubeconfig for the restored cluster to this path")
	cmd.Flags().BoolVar(&withAddons, "with-addons", false, "Reinstall the EBS and EFS CSI driver add-ons after the restore")
	return cmd
}

func newRestoreNodegroupsCmd(stdout, stderr io.Writer) *cobra.Command {
	var flags restoreFlags
	cmd := &cobra.Command{
		Use:   "nodegroups",
		Short: "Restore node groups into an existing cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.targetName == "" || flags.vpcName == "" {
				return errors.New("--target-name and --vpc are required")
			}
			a, err := newApp(cmd, stdout)
			if err != nil {
				return err
			}
			defer a.close()
			ctx := cmd.Context()

			rp, err := flags.recoveryPoint(ctx, a)
			if err != nil {
				return err
			}
			in := flags.buildInput(rp, a.vault, false)

			// Preview before touching the existing cluster.
			build, err := a.builder().Build(ctx, in)
			if err != nil {
				return err
			}
			if err := previewNodeGroups(build, stdout); err != nil {
				return err
			}

			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				return nil
			}
			ok, err := safety.Confirm(opts, os.Stdin, stdout,
				fmt.Sprintf("Restore %d node group(s) into existing cluster %s?", len(build.Descriptor.NodeGroups), flags.targetName))
			if err != nil || !ok {
				return err
			}

			roleArn, err := a.roles().Ensure(ctx, flags.backupRole, iamroles.BackupServiceRole)
			if err != nil {
				return err
			}
			flow := restore.NewFlow(a.clients.Backup, a.clients.Cluster, a.builder(), a.poller, a.log)
			res, err := flow.Run(ctx, restore.RunInput{Build: in, BackupRoleArn: roleArn})
			a.printer.Done()
			if err != nil {
				return err
			}
			jobPath, err := a.store.WriteJSON("restore-nodegroups-"+flags.targetName, res.Job)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Restore complete: job %s\n", res.JobID)
			fmt.Fprintf(stdout, "Job details written to %s\n", jobPath)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func previewDescriptor(ctx context.Context, a *app, in restore.BuildInput, stdout io.Writer) error {
	build, err := a.builder().Build(ctx, in)
	if err != nil {
		return err
	}
	for _, name := range build.SkippedNodeGroups {
		fmt.Fprintf(stdout, "WARNING: node group %s will not be restored\n", name)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(build.Descriptor)
}

func previewNodeGroups(build *restore.BuildResult, stdout io.Writer) error {
	for _, name := range build.SkippedNodeGroups {
		fmt.Fprintf(stdout, "WARNING: node group %s will not be restored\n", name)
	}
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODEGROUP\tINSTANCE-TYPES\tDESIRED\tACTION")
	for _, ng := range build.Descriptor.NodeGroups {
		fmt.Fprintf(tw, "%s\t%v\t%d\trestore\n", ng.Name, ng.InstanceTypes, ng.DesiredSize)
	}
	return tw.Flush()
}
