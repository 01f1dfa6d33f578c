package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"eks-backup/src/backup/cluster"
	"eks-backup/src/verify"
)

func newVerifyCmd(stdout, stderr io.Writer) *cobra.Command {
	var manifestPath string
	var fsTokens []string
	cmd := &cobra.Command{
		Use:   "verify <cluster>",
		Short: "Compare a restored cluster against a backup manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(manifestPath)
			if err != nil {
				return fmt.Errorf("reading manifest: %w", err)
			}
			var manifest cluster.Manifest
			if err := json.Unmarshal(data, &manifest); err != nil {
				return fmt.Errorf("parsing manifest %s: %w", manifestPath, err)
			}

			a, err := newApp(cmd, stdout)
			if err != nil {
				return err
			}
			defer a.close()

			v := verify.New(a.clients.Cluster, a.clients.Storage, a.log)
			rep, err := v.Verify(cmd.Context(), args[0], &manifest, fsTokens)
			if err != nil {
				return err
			}

			reportPath, err := a.store.WriteMarkdown("verification-"+args[0], rep.Markdown())
			if err != nil {
				return err
			}
			fmt.Fprint(stdout, rep.Markdown())
			fmt.Fprintf(stdout, "\nReport written to %s\n", reportPath)

			if !rep.Passed() {
				return fmt.Errorf("verification of %s failed", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&manifestPath, "manifest", "", "Path to the backup manifest JSON")
	cmd.Flags().StringArrayVar(&fsTokens, "fs-token", nil, "Creation token of a filesystem the restore should have created (repeatable)")
	_ = cmd.MarkFlagRequired("manifest")
	return cmd
}
