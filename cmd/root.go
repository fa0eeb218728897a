package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raul-delacruz/fyrd/internal/batch"
	"github.com/raul-delacruz/fyrd/internal/config"
	"github.com/raul-delacruz/fyrd/internal/logging"
)

var (
	conf     *config.Provider
	log      *zap.Logger
	registry *batch.Registry

	logLevel  string
	qtypeFlag string
	uriFlag   string
)

var rootCmd = &cobra.Command{
	Use:           "fyrd",
	Short:         "Fyrd: submit, monitor and cancel jobs on SLURM/Torque/LSF clusters (or locally).",
	SilenceErrors: true,
	SilenceUsage:  true,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var err error
		conf, err = config.Load()

		level := conf.LogLevel()
		if logLevel != "" {
			level = logLevel
		}
		log = logging.New(level)

		if err != nil {
			log.Warn("error reading config file, continuing with defaults", zap.Error(err))
		}
		if qtypeFlag != "" {
			conf.SetQueueType(qtypeFlag)
		}

		registry = batch.NewRegistry(batch.Deps{Conf: conf, Log: log})
	},
}

// Execute runs the root command and exits nonzero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// serverURI resolves the remote server address: the flag wins, then the
// config file. Empty means in-process backends.
func serverURI() string {
	if uriFlag != "" {
		return uriFlag
	}
	return conf.ServerURI()
}

// getClient resolves a backend client from the flags: remote when a server
// URI is set, in-process otherwise.
func getClient() (*batch.Client, error) {
	uri := serverURI()
	return registry.GetBatchSystem(qtypeFlag, uri != "", uri)
}

func init() {
	// Subcommands are attached to rootCmd in their respective init() functions
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&qtypeFlag, "qtype", "q", "", "Batch system type (slurm, torque, lsf, local, auto)")
	rootCmd.PersistentFlags().StringVar(&uriFlag, "uri", "", "Remote batch server address (host:port)")
}
