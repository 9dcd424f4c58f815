package commands

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/todoq/pkg/iojson"
)

type StatsCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewStatsCmd creates a new stats command
func NewStatsCmd(flags *Flags) *StatsCmd {
	return &StatsCmd{flags: flags}
}

// Register adds the stats command to the application
func (cmd *StatsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "stats",
		Usage:     "Show queue statistics",
		UsageText: "todoq stats [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *StatsCmd) run(ctx context.Context, c *cli.Command) error {
	stats, err := cmd.flags.App.Engine.Stats(ctx)
	if err != nil {
		return fmt.Errorf("load stats: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(stats)
	}

	fmt.Printf("Total todos: %d\n", stats.Total)
	fmt.Printf("Completed this week: %d\n", stats.CompletedThisWeek)
	fmt.Printf("Overdue: %d\n", stats.Overdue)
	if stats.AvgCompletionHours > 0 {
		fmt.Printf("Avg completion: %.1f hours\n", stats.AvgCompletionHours)
	}

	statuses := slices.Sorted(maps.Keys(stats.ByStatus))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATUS\tCOUNT")
	for _, status := range statuses {
		fmt.Fprintf(w, "%s\t%d\n", status, stats.ByStatus[status])
	}
	return w.Flush()
}
