package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"eks-backup/src/backup/cluster"
)

func newBackupCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up EKS clusters into the vault",
	}
	cmd.AddCommand(newBackupClusterCmd(stdout, stderr))
	return cmd
}

func newBackupClusterCmd(stdout, stderr io.Writer) *cobra.Command {
	var roleName string
	cmd := &cobra.Command{
		Use:   "cluster <name>",
		Short: "Back up one cluster and wait for the job to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, stdout)
			if err != nil {
				return err
			}
			defer a.close()

			opts := getSafetyOptions(cmd)
			if opts.DryRun {
				manifest, err := cluster.BuildManifest(cmd.Context(), a.clients.Cluster, args[0], time.Now())
				if err != nil {
					return err
				}
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				fmt.Fprintf(stdout, "Would back up %s into vault %s:\n", args[0], a.vault)
				return enc.Encode(manifest)
			}

			flow := cluster.NewFlow(a.clients.Backup, a.clients.Cluster, a.roles(), a.poller, a.log)
			res, err := flow.Run(cmd.Context(), cluster.RunInput{
				ClusterName: args[0],
				VaultName:   a.vault,
				RoleName:    roleName,
			})
			a.printer.Done()
			if err != nil {
				return err
			}

			manifestPath, err := a.store.WriteJSON("backup-"+args[0], res.Manifest)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Backup complete: %s\n", res.Manifest.RecoveryPointArn)
			fmt.Fprintf(stdout, "Manifest written to %s\n", manifestPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&roleName, "backup-role", "", "IAM role name for the backup job (default EKSBackupRestoreRole)")
	return cmd
}
