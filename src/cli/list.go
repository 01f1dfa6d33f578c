package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"eks-backup/src/arn"
)

func newListCmd(stdout, stderr io.Writer) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recovery points in the vault",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, stdout)
			if err != nil {
				return err
			}
			defer a.close()

			points, err := a.clients.Backup.ListRecoveryPoints(cmd.Context(), a.vault)
			if err != nil {
				return err
			}

			if output == "json" {
				enc := json.NewEncoder(stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(points)
			}

			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RESOURCE\tTYPE\tSTATUS\tCREATED\tRECOVERY-POINT")
			for _, p := range points {
				name := p.ResourceArn
				if parsed, err := arn.Parse(p.ResourceArn); err == nil {
					name = parsed.ResourceName()
				}
				kind := p.ResourceType
				if p.ParentArn != "" {
					kind += " (child)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					name, kind, p.Status, p.CreatedAt.UTC().Format("2006-01-02 15:04"), p.Arn)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "Output format: table or json")
	return cmd
}
