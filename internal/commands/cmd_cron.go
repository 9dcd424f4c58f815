package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/todoq/internal/core/todo"
	"github.com/colonyops/todoq/pkg/iojson"
)

type CronCmd struct {
	flags *Flags

	// flags
	jsonOutput    bool
	recurringType string
	limit         int
}

// NewCronCmd creates a new cron command
func NewCronCmd(flags *Flags) *CronCmd {
	return &CronCmd{flags: flags}
}

// Register adds the cron command tree to the application
func (cmd *CronCmd) Register(app *cli.Command) *cli.Command {
	jsonFlag := &cli.BoolFlag{
		Name:        "json",
		Usage:       "output as JSON",
		Destination: &cmd.jsonOutput,
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:      "cron",
		Usage:     "Manage recurring todos",
		UsageText: "todoq cron <subcommand>",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List parked recurring todos",
				UsageText: "todoq cron ls [--type hourly|daily|weekly|monthly]",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "type", Usage: "filter by cadence", Destination: &cmd.recurringType},
				},
				Action: cmd.runList,
			},
			{
				Name:      "activate",
				Usage:     "Move a recurring todo back into the pending queue",
				UsageText: "todoq cron activate <id>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.runActivate,
			},
			{
				Name:      "reset",
				Usage:     "Snapshot and park a recurring todo",
				UsageText: "todoq cron reset <id>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.runReset,
			},
			{
				Name:      "reports",
				Usage:     "Show completed recurring runs",
				UsageText: "todoq cron reports [--limit n]",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.IntFlag{Name: "limit", Usage: "max rows", Destination: &cmd.limit},
				},
				Action: cmd.runReports,
			},
		},
	})

	return app
}

func (cmd *CronCmd) runList(ctx context.Context, c *cli.Command) error {
	todos, err := cmd.flags.App.Todos.ListCron(ctx, todo.RecurringType(cmd.recurringType))
	if err != nil {
		return fmt.Errorf("list cron todos: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(todos)
	}

	if len(todos) == 0 {
		fmt.Fprintln(os.Stderr, "No recurring todos parked")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCADENCE\tPRIORITY\tTITLE")
	for _, t := range todos {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", t.ID, t.RecurringType, t.Priority, t.Title)
	}
	return w.Flush()
}

func (cmd *CronCmd) runActivate(ctx context.Context, c *cli.Command) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	activated, err := cmd.flags.App.Engine.Activate(ctx, id, "cli")
	if err != nil {
		return fmt.Errorf("activate todo: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(activated)
	}
	fmt.Printf("Todo #%d activated\n", activated.ID)
	return nil
}

func (cmd *CronCmd) runReset(ctx context.Context, c *cli.Command) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	reset, err := cmd.flags.App.Engine.ResetToCron(ctx, id, "cli")
	if err != nil {
		return fmt.Errorf("reset todo: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(reset)
	}
	fmt.Printf("Todo #%d parked as recurring\n", reset.ID)
	return nil
}

func (cmd *CronCmd) runReports(ctx context.Context, c *cli.Command) error {
	reports, err := cmd.flags.App.Reports.ListCronReports(ctx, 0, cmd.limit)
	if err != nil {
		return fmt.Errorf("list cron reports: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(reports)
	}

	if len(reports) == 0 {
		fmt.Fprintln(os.Stderr, "No recurring runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTODO\tEXECUTED\tDURATION\tTITLE")
	for _, r := range reports {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
			r.ID, r.TodoID, r.ExecutedAt.Format(time.DateTime), r.Duration.Round(time.Second), r.Title)
	}
	return w.Flush()
}
