package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raul-delacruz/fyrd/internal/console"
)

var checkCmd = &cobra.Command{
	Use:   "check [qtype]",
	Short: "Verify that the batch system is usable",
	Long: `Run the backend's functionality test: the scheduler's command-line
tools must be discoverable and executable. Without an argument the detected
(or configured) batch system is checked.`,
	Example: `  fyrd check          # Check the detected batch system
  fyrd check slurm    # Check a specific backend`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	qtype := ""
	if len(args) == 1 {
		qtype = args[0]
	}

	uri := serverURI()
	ok, err := registry.CheckQueue(qtype, uri != "", uri)
	if err != nil {
		return err
	}

	if ok {
		fmt.Printf("Queue status: %s\n", console.StyleSuccess("available"))
		return nil
	}
	fmt.Printf("Queue status: %s\n", console.StyleError("unavailable"))
	return fmt.Errorf("batch system functionality test failed")
}
