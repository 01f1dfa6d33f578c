package cli

import (
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eks-backup/src/awsapi"
	"eks-backup/src/iamroles"
	"eks-backup/src/logging"
	"eks-backup/src/network"
	"eks-backup/src/poll"
	"eks-backup/src/report"
	"eks-backup/src/restore"
	"eks-backup/src/util/progress"
)

// connectFn is swapped out by CLI tests to inject fake clients.
var connectFn = awsapi.Connect

// app bundles everything a command needs: connected service clients, the
// logger, a poller wired to a progress line, and the results store.
type app struct {
	clients *awsapi.Clients
	log     *zap.Logger
	poller  *poll.Poller
	printer *progress.Printer
	store   *report.Store
	region  string
	vault   string
}

func newApp(cmd *cobra.Command, stdout io.Writer) (*app, error) {
	pf := cmd.Root().PersistentFlags()
	region, _ := pf.GetString("region")
	vault, _ := pf.GetString("vault")
	resultsDir, _ := pf.GetString("results-dir")
	level, _ := pf.GetString("log-level")
	jsonLog, _ := pf.GetBool("log-json")

	log, err := logging.New(level, jsonLog)
	if err != nil {
		return nil, err
	}
	clients, err := connectFn(cmd.Context(), region)
	if err != nil {
		return nil, err
	}

	printer := progress.NewPrinter(stdout)
	return &app{
		clients: clients,
		log:     log,
		poller:  poll.New(log, poll.WithObserver(printer.Observe)),
		printer: printer,
		store:   report.NewStore(resultsDir),
		region:  region,
		vault:   vault,
	}, nil
}

func (a *app) close() {
	a.printer.Done()
	_ = a.log.Sync()
}

func (a *app) roles() *iamroles.Resolver {
	return iamroles.New(a.clients.Identity, a.log)
}

func (a *app) builder() *restore.Builder {
	return restore.NewBuilder(a.clients.Backup, a.clients.Cluster, a.clients.Identity,
		network.New(a.clients.Network, a.log), a.log)
}
