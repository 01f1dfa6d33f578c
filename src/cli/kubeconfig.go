package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"eks-backup/src/kubeconfig"
)

func newKubeconfigCmd(stdout, stderr io.Writer) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "kubeconfig <cluster>",
		Short: "Write a kubeconfig for a cluster, authenticated via the AWS CLI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outPath == "" {
				return errors.New("--out is required")
			}
			a, err := newApp(cmd, stdout)
			if err != nil {
				return err
			}
			defer a.close()

			c, err := a.clients.Cluster.DescribeCluster(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := kubeconfig.Write(outPath, c, a.region); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Kubeconfig written to %s\n", outPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "Path to write the kubeconfig to")
	return cmd
}
