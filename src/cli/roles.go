package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"eks-backup/src/iamroles"
)

func newRolesCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Manage the IAM roles backup and restore depend on",
	}
	cmd.AddCommand(newRolesEnsureCmd(stdout, stderr))
	return cmd
}

func newRolesEnsureCmd(stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ensure [kind ...]",
		Short: "Create missing roles and instance profiles; existing ones are reused",
		Long: "Kinds: cluster, node, backup-service, ebs-driver, efs-driver, " +
			"autoscaler-controller, autoscaler-node. With no arguments all kinds are ensured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := iamroles.Kinds
			if len(args) > 0 {
				kinds = make([]iamroles.Kind, 0, len(args))
				for _, a := range args {
					k, err := iamroles.KindFromString(a)
					if err != nil {
						return err
					}
					kinds = append(kinds, k)
				}
			}

			if getSafetyOptions(cmd).DryRun {
				for _, k := range kinds {
					fmt.Fprintf(stdout, "Would ensure %s role %s\n", k, k.DefaultName())
				}
				return nil
			}

			a, err := newApp(cmd, stdout)
			if err != nil {
				return err
			}
			defer a.close()

			arns, err := a.roles().EnsureDefaults(cmd.Context(), kinds)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tROLE\tARN")
			for _, k := range kinds {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", k, k.DefaultName(), arns[k])
			}
			return tw.Flush()
		},
	}
	return cmd
}
