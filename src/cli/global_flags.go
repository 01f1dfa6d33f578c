package cli

import (
	"github.com/spf13/cobra"

	"eks-backup/src/safety"
)

// addGlobalFlags adds persistent flags shared by every subcommand.
func addGlobalFlags(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.Bool("dry-run", false, "Show planned actions without making changes")
	pf.BoolP("yes", "y", false, "Assume 'yes' to prompts and run non-interactively")
	pf.Bool("force", false, "Force potentially dangerous operations (implies --yes)")
	pf.String("region", "", "AWS region (defaults to the SDK credential chain)")
	pf.String("vault", "eks-backup", "Backup vault name")
	pf.String("results-dir", "results", "Directory for job details and verification reports")
	pf.String("log-level", "info", "Log level (debug, info, warn, error)")
	pf.Bool("log-json", false, "Emit logs as JSON")
}

// getSafetyOptions reads global flags into a safety.Options struct.
func getSafetyOptions(cmd *cobra.Command) safety.Options {
	pf := cmd.Root().PersistentFlags()
	dry, _ := pf.GetBool("dry-run")
	yes, _ := pf.GetBool("yes")
	force, _ := pf.GetBool("force")
	return safety.Options{DryRun: dry, Yes: yes, Force: force}
}
