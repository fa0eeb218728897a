package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raul-delacruz/fyrd/internal/batch"
	"github.com/raul-delacruz/fyrd/internal/console"
)

var queueFilter batch.QueueFilter

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List jobs known to the batch system",
	Long: `Query the live queue and, where the scheduler supports it, the
accounting history, and print one reconciled job listing. Live jobs are
listed first; finished jobs known only to accounting follow.`,
	Example: `  fyrd queue                     # Everything the scheduler reports
  fyrd queue --user alice        # One user's jobs
  fyrd queue --partition gpu     # One partition
  fyrd queue --job 4242          # One job`,
	RunE: runQueue,
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.Flags().StringVar(&queueFilter.User, "user", "", "Only jobs owned by this user")
	queueCmd.Flags().StringVar(&queueFilter.Partition, "partition", "", "Only jobs in this partition/queue")
	queueCmd.Flags().StringVar(&queueFilter.JobID, "job", "", "Only this job id")
}

func runQueue(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	iter, err := client.QueueParser(queueFilter)
	if err != nil {
		return err
	}

	fmt.Println(console.StyleTitle(fmt.Sprintf("%-14s %-20s %-10s %-12s %-12s %s",
		"JOBID", "NAME", "USER", "PARTITION", "STATE", "NODES")))

	count := 0
	for {
		rec, err := iter.Next()
		if err != nil {
			return err
		}
		if rec == nil {
			break
		}
		count++

		id := rec.JobID
		if rec.ArrayID != "" {
			id = rec.JobID + "_" + rec.ArrayID
		}
		// The state cell is padded outside the color codes so the escape
		// bytes do not skew the column width.
		statePad := ""
		if n := 12 - len(rec.State); n > 0 {
			statePad = strings.Repeat(" ", n)
		}
		fmt.Printf("%-14s %-20s %-10s %-12s %s %s\n",
			id, truncate(rec.Name, 20), rec.User, rec.Partition,
			console.StyleState(rec.State)+statePad,
			strings.Join(rec.NodeList, ","))
	}

	if count == 0 {
		fmt.Println("No jobs found.")
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
