package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"eks-backup/src/arn"
	"eks-backup/src/awsapi"
	"eks-backup/src/safety"
)

func newPruneCmd(stdout, stderr io.Writer) *cobra.Command {
	var keep int
	var clusterName string
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old recovery points, keeping the newest N per cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keep <= 0 {
				return errors.New("--keep must be > 0")
			}
			a, err := newApp(cmd, stdout)
			if err != nil {
				return err
			}
			defer a.close()

			toDelete, err := planPrune(cmd.Context(), a.clients.Backup, a.vault, clusterName, keep)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RESOURCE\tTYPE\tCREATED\tRECOVERY-POINT\tACTION")
			for _, p := range toDelete {
				name := p.ResourceArn
				if parsed, err := arn.Parse(p.ResourceArn); err == nil {
					name = parsed.ResourceName()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\tdelete\n",
					name, p.ResourceType, p.CreatedAt.UTC().Format("2006-01-02 15:04"), p.Arn)
			}
			_ = tw.Flush()

			opts := getSafetyOptions(cmd)
			if opts.DryRun || len(toDelete) == 0 {
				return nil
			}
			ok, err := safety.Confirm(opts, os.Stdin, stdout,
				fmt.Sprintf("Delete %d recovery point(s)?", len(toDelete)))
			if err != nil || !ok {
				return err
			}
			for _, p := range toDelete {
				if err := a.clients.Backup.DeleteRecoveryPoint(cmd.Context(), a.vault, p.Arn); err != nil {
					return fmt.Errorf("deleting %s: %w", p.Arn, err)
				}
			}
			fmt.Fprintf(stdout, "Deleted %d recovery point(s)\n", len(toDelete))
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "Number of recovery points to keep per cluster")
	cmd.Flags().StringVar(&clusterName, "cluster", "", "Only prune recovery points of this cluster")
	return cmd
}

// planPrune selects recovery points beyond the newest keep per cluster.
// Children of a pruned compound point are pruned with it.
func planPrune(ctx context.Context, backup awsapi.BackupService, vault, clusterName string, keep int) ([]awsapi.RecoveryPoint, error) {
	points, err := backup.ListRecoveryPoints(ctx, vault)
	if err != nil {
		return nil, err
	}

	parents := map[string][]awsapi.RecoveryPoint{}
	children := map[string][]awsapi.RecoveryPoint{}
	for _, p := range points {
		if p.ParentArn != "" {
			children[p.ParentArn] = append(children[p.ParentArn], p)
			continue
		}
		if clusterName != "" {
			parsed, err := arn.Parse(p.ResourceArn)
			if err != nil || parsed.ResourceName() != clusterName {
				continue
			}
		}
		parents[p.ResourceArn] = append(parents[p.ResourceArn], p)
	}

	var toDelete []awsapi.RecoveryPoint
	for _, group := range parents {
		sort.Slice(group, func(i, j int) bool {
			return group[i].CreatedAt.After(group[j].CreatedAt)
		})
		for _, p := range group[min(keep, len(group)):] {
			toDelete = append(toDelete, children[p.Arn]...)
			toDelete = append(toDelete, p)
		}
	}
	sort.Slice(toDelete, func(i, j int) bool {
		return toDelete[i].Arn < toDelete[j].Arn
	})
	return toDelete, nil
}
