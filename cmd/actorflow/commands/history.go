package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roasbeef/actorflow/internal/runlog"
)

var (
	historyWorkflowName string
	historyLimit        int
)

// historyCmd queries the run-log store for past workflow runs, a
// supplement to the core's in-memory-only scope: this is purely an
// observability record a human operator inspects after the fact.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past workflow runs",
	Long:  `history lists recorded workflow runs, most recent first.`,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVarP(&historyWorkflowName, "workflow", "w", "", "restrict to runs of this workflow name")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs to list")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	path, err := runlog.DefaultPath()
	if err != nil {
		return err
	}

	store, err := runlog.Open(path)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer store.Close()

	runs, err := store.ListRuns(ctx, historyWorkflowName, historyLimit)
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no recorded runs")
		return nil
	}

	fmt.Print(formatRuns(runs))

	return nil
}

// formatRuns renders runs as a simple aligned text table.
func formatRuns(runs []runlog.Run) string {
	var sb strings.Builder

	for _, r := range runs {
		status := "ok"
		if !r.Success {
			status = "FAILED"
		}

		sb.WriteString(fmt.Sprintf(
			"#%-4d %-36s %-10s %-20s %4d steps  %s -> %s\n",
			r.ID, r.RunID, status, r.WorkflowName, r.Steps,
			r.StartedAt.Format("2006-01-02T15:04:05Z"), r.Result,
		))
	}

	return sb.String()
}
