package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raul-delacruz/fyrd/internal/console"
)

var killCmd = &cobra.Command{
	Use:   "kill JOBID...",
	Short: "Cancel jobs",
	Long: `Request cancellation of one or more jobs. Success means the
scheduler accepted the cancel command, not that the jobs have already
stopped.`,
	Example: `  fyrd kill 4242
  fyrd kill 4242 4243 4244`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKill,
}

func init() {
	rootCmd.AddCommand(killCmd)
}

func runKill(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	if !client.Kill(args) {
		return fmt.Errorf("failed to cancel jobs: %s", strings.Join(args, " "))
	}
	fmt.Printf("Cancelled %s\n", console.StyleNumber(strings.Join(args, " ")))
	return nil
}
