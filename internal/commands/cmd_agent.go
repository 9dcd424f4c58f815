package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/todoq/internal/core/todo"
	"github.com/colonyops/todoq/pkg/iojson"
)

type AgentCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
	outputType string
	notes      string
	hours      float64
}

// NewAgentCmd creates a new agent command
func NewAgentCmd(flags *Flags) *AgentCmd {
	return &AgentCmd{flags: flags}
}

// Register adds the agent command tree to the application
func (cmd *AgentCmd) Register(app *cli.Command) *cli.Command {
	jsonFlag := &cli.BoolFlag{
		Name:        "json",
		Usage:       "output as JSON",
		Destination: &cmd.jsonOutput,
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:      "agent",
		Usage:     "Agent-facing queue operations",
		UsageText: "todoq agent <subcommand>",
		Description: `The commands the coding agent itself runs: claim the next task,
stream output, and report completion. 'next' prints the same formatted
payload the dispatcher would deliver over tmux.`,
		Commands: []*cli.Command{
			{
				Name:      "next",
				Usage:     "Claim the next ready todo",
				UsageText: "todoq agent next [--json]",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.runNext,
			},
			{
				Name:      "output",
				Usage:     "Append a line to a todo's output log",
				UsageText: "todoq agent output <id> <message> [--type t]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "type",
						Usage:       "entry type (info, progress, error, ...)",
						Value:       "info",
						Destination: &cmd.outputType,
					},
				},
				Action: cmd.runOutput,
			},
			{
				Name:      "block",
				Usage:     "Mark the current todo blocked",
				UsageText: "todoq agent block <id> --notes reason",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "notes", Usage: "why the task is blocked", Destination: &cmd.notes},
				},
				Action: cmd.runBlock,
			},
			{
				Name:      "done",
				Usage:     "Complete a todo and claim the next one",
				UsageText: "todoq agent done <id> [--notes n] [--hours h]",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "notes", Usage: "completion notes", Destination: &cmd.notes},
					&cli.FloatFlag{Name: "hours", Usage: "actual hours spent", Destination: &cmd.hours},
				},
				Action: cmd.runDone,
			},
		},
	})

	return app
}

func (cmd *AgentCmd) runNext(ctx context.Context, c *cli.Command) error {
	next, err := cmd.flags.App.Service.Next(ctx)
	if err != nil {
		return fmt.Errorf("claim next: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(next)
	}
	fmt.Println(next.Payload)
	return nil
}

func (cmd *AgentCmd) runOutput(ctx context.Context, c *cli.Command) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	message := c.Args().Get(1)
	if message == "" {
		return fmt.Errorf("message is required")
	}

	if err := cmd.flags.App.Service.AppendOutput(ctx, id, cmd.outputType, message); err != nil {
		return fmt.Errorf("append output: %w", err)
	}
	return nil
}

func (cmd *AgentCmd) runBlock(ctx context.Context, c *cli.Command) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	res, err := cmd.flags.App.Service.SetStatus(ctx, id, todo.StatusBlocked, cmd.notes)
	if err != nil {
		return fmt.Errorf("block todo: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(res)
	}
	fmt.Printf("Todo #%d blocked\n", res.Todo.ID)
	return nil
}

func (cmd *AgentCmd) runDone(ctx context.Context, c *cli.Command) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	var hours *float64
	if c.IsSet("hours") {
		hours = &cmd.hours
	}

	res, next, err := cmd.flags.App.Service.Complete(ctx, id, cmd.notes, hours)
	if err != nil {
		return fmt.Errorf("complete todo: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(map[string]any{"result": res, "next": next})
	}

	fmt.Printf("Todo #%d is now %s\n", res.Todo.ID, res.Todo.Status)
	for _, warn := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warn)
	}
	fmt.Println(next.Payload)
	return nil
}
