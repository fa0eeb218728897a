package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raul-delacruz/fyrd/internal/batch"
	"github.com/raul-delacruz/fyrd/internal/console"
)

var detectForce bool

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Detect the batch system available on this machine",
	Long: `Probe the search path for scheduler submit tools (sbatch, qsub, bsub)
and report which batch system fyrd will use. With no scheduler present the
local multiprocessing fallback is selected.`,
	Example: `  fyrd detect          # Report the detected batch system
  fyrd detect --force  # Ignore the cached answer and probe again`,
	Run: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
	detectCmd.Flags().BoolVar(&detectForce, "force", false, "Re-probe even if a result is cached")
}

func runDetect(cmd *cobra.Command, args []string) {
	mode := registry.GetClusterEnvironment(detectForce)

	fmt.Printf("Batch system: %s\n", console.StyleInfo(mode))
	if mode == batch.QTypeLocal {
		fmt.Println("No cluster scheduler found; jobs will run in a local worker pool.")
	}
}
