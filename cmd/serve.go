package cmd

import (
	"net"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raul-delacruz/fyrd/internal/batch"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a batch server for remote clients",
	Long: `Expose the local batch system over the network so that clients on
machines without scheduler tools can submit and monitor jobs. Typical
deployment is one server process per cluster, on a login node.`,
	Example: `  fyrd serve --listen :7572
  fyrd serve --listen 0.0.0.0:7572 --qtype slurm`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveListen, "listen", ":7572", "Address to listen on")
}

func runServe(cmd *cobra.Command, args []string) error {
	qtype := qtypeFlag
	if qtype == "" || qtype == batch.QTypeAuto {
		qtype = registry.GetClusterEnvironment(false)
	}

	classes, err := registry.GetBatchClasses(qtype)
	if err != nil {
		return err
	}
	srv := classes.NewServer(batch.Deps{Conf: conf, Log: log})

	if !srv.QueueTest(true) {
		log.Warn("batch system functionality test failed, serving anyway",
			zap.String("qtype", qtype))
	}

	lis, err := net.Listen("tcp", serveListen)
	if err != nil {
		return err
	}
	return batch.Serve(lis, srv, log)
}
