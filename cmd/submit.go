package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raul-delacruz/fyrd/internal/console"
)

var submitDepends []string

var submitCmd = &cobra.Command{
	Use:   "submit SCRIPT",
	Short: "Submit a job script to the batch system",
	Long: `Submit an existing job script. The submit command is retried on
transient scheduler failures; a final rejection is reported with the
scheduler's own output.`,
	Example: `  fyrd submit job.sbatch
  fyrd submit job.sbatch --depends 4242 --depends 4243`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().StringSliceVar(&submitDepends, "depends", nil, "Job ids this job must wait for (repeatable)")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	res, err := client.Submit(args[0], submitDepends)
	if err != nil {
		return err
	}
	if res.Error {
		out := strings.TrimSpace(res.Stderr)
		if out == "" {
			out = strings.TrimSpace(res.Stdout)
		}
		return fmt.Errorf("submission rejected: %s", out)
	}

	fmt.Printf("Submitted job %s\n", console.StyleNumber(res.JobID))
	return nil
}
