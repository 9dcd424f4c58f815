package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/todoq/internal/core/todo"
	"github.com/colonyops/todoq/internal/todoq"
	"github.com/colonyops/todoq/pkg/iojson"
)

// ImportInput is the JSON schema consumed by `todoq todo import`.
type ImportInput struct {
	Todos []ImportTodo `json:"todos"`
}

// ImportTodo is one queue entry in an import file.
type ImportTodo struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Scope            string `json:"scope"`
	Priority         string `json:"priority"`
	Tags             string `json:"tags"`
	AgentEnabled     bool   `json:"agent_enabled"`
	WorkingDirectory string `json:"working_directory"`
	Recurring        bool   `json:"recurring"`
	RecurringType    string `json:"recurring_type"`
}

// ImportResult reports the outcome of one imported entry.
type ImportResult struct {
	Title string `json:"title"`
	ID    int64  `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
}

type TodoCmd struct {
	flags *Flags
	fr    *iojson.FileReader[ImportInput]

	// flags
	jsonOutput bool
	status     string
	scope      string
	priority   string
	search     string
	limit      int

	title         string
	description   string
	tags          string
	agentEnabled  bool
	workingDir    string
	recurring     bool
	recurringType string
	notes         string
	actualHours   float64
	actor         string
}

// NewTodoCmd creates a new todo command
func NewTodoCmd(flags *Flags) *TodoCmd {
	return &TodoCmd{
		flags: flags,
		fr:    &iojson.FileReader[ImportInput]{},
	}
}

// Register adds the todo command tree to the application
func (cmd *TodoCmd) Register(app *cli.Command) *cli.Command {
	jsonFlag := &cli.BoolFlag{
		Name:        "json",
		Usage:       "output as JSON",
		Destination: &cmd.jsonOutput,
	}
	actorFlag := &cli.StringFlag{
		Name:        "actor",
		Usage:       "name recorded in the change history",
		Value:       "cli",
		Destination: &cmd.actor,
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:      "todo",
		Usage:     "Manage the todo queue",
		UsageText: "todoq todo <subcommand>",
		Commands: []*cli.Command{
			{
				Name:      "ls",
				Usage:     "List todos",
				UsageText: "todoq todo ls [--status s] [--scope s] [--priority p] [--search q] [--json]",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "status", Usage: "filter by status", Destination: &cmd.status},
					&cli.StringFlag{Name: "scope", Usage: "filter by scope", Destination: &cmd.scope},
					&cli.StringFlag{Name: "priority", Usage: "filter by priority", Destination: &cmd.priority},
					&cli.StringFlag{Name: "search", Usage: "full-text filter", Destination: &cmd.search},
					&cli.IntFlag{Name: "limit", Usage: "max rows", Destination: &cmd.limit},
				},
				Action: cmd.runList,
			},
			{
				Name:      "new",
				Usage:     "Create a todo",
				UsageText: "todoq todo new <title> [options]",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Destination: &cmd.description},
					&cli.StringFlag{Name: "scope", Value: string(todo.ScopeOther), Destination: &cmd.scope},
					&cli.StringFlag{Name: "priority", Value: string(todo.PriorityMedium), Destination: &cmd.priority},
					&cli.StringFlag{Name: "tags", Destination: &cmd.tags},
					&cli.BoolFlag{Name: "agent", Usage: "enable for agent pickup", Destination: &cmd.agentEnabled},
					&cli.StringFlag{Name: "dir", Usage: "working directory", Destination: &cmd.workingDir},
					&cli.BoolFlag{Name: "recurring", Destination: &cmd.recurring},
					&cli.StringFlag{Name: "recurring-type", Value: string(todo.RecurringManual), Destination: &cmd.recurringType},
				},
				Action: cmd.runNew,
			},
			{
				Name:      "show",
				Usage:     "Show one todo with its history",
				UsageText: "todoq todo show <id> [--json]",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.runShow,
			},
			{
				Name:      "set-status",
				Usage:     "Transition a todo to a new status",
				UsageText: "todoq todo set-status <id> <status> [--notes n]",
				Flags: []cli.Flag{
					jsonFlag,
					actorFlag,
					&cli.StringFlag{Name: "notes", Destination: &cmd.notes},
				},
				Action: cmd.runSetStatus,
			},
			{
				Name:      "complete",
				Usage:     "Mark a todo completed",
				UsageText: "todoq todo complete <id> [--notes n] [--hours h]",
				Flags: []cli.Flag{
					jsonFlag,
					actorFlag,
					&cli.StringFlag{Name: "notes", Destination: &cmd.notes},
					&cli.FloatFlag{
						Name:        "hours",
						Usage:       "actual hours spent",
						Destination: &cmd.actualHours,
					},
				},
				Action: cmd.runComplete,
			},
			{
				Name:  "import",
				Usage: "Create multiple todos from JSON input",
				UsageText: `todoq todo import [options]

Read from stdin:
  echo '{"todos":[{"title":"Fix login"}]}' | todoq todo import

Read from file:
  todoq todo import -f todos.json`,
				Description: `Creates todos from a JSON specification. Entries are created
sequentially; a failed entry is reported and does not stop the rest.

Input JSON schema:
  {
    "todos": [
      {
        "title": "required title",
        "description": "...",
        "scope": "backend",
        "priority": "high",
        "agent_enabled": true,
        "recurring": false,
        "recurring_type": "manual"
      }
    ]
  }`,
				Flags:  []cli.Flag{cmd.fr.Flag()},
				Action: cmd.runImport,
			},
			{
				Name:      "rm",
				Usage:     "Delete a todo and its attachments",
				UsageText: "todoq todo rm <id>",
				Action:    cmd.runDelete,
			},
		},
	})

	return app
}

func parseID(c *cli.Command) (int64, error) {
	raw := c.Args().First()
	if raw == "" {
		return 0, fmt.Errorf("todo id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid todo id %q", raw)
	}
	return id, nil
}

func (cmd *TodoCmd) runList(ctx context.Context, c *cli.Command) error {
	filter := todo.ListFilter{
		Scope:    todo.Scope(cmd.scope),
		Priority: todo.Priority(cmd.priority),
		Search:   cmd.search,
		Limit:    cmd.limit,
	}
	if cmd.status != "" {
		status, err := todo.ParseStatus(cmd.status)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	todos, err := cmd.flags.App.Engine.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("list todos: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(todos)
	}

	if len(todos) == 0 {
		fmt.Fprintln(os.Stderr, "No todos found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tSCOPE\tTITLE")
	for _, t := range todos {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", t.ID, t.Status, t.Priority, t.Scope, t.Title)
	}
	return w.Flush()
}

func (cmd *TodoCmd) runNew(ctx context.Context, c *cli.Command) error {
	title := c.Args().First()
	if title == "" {
		return fmt.Errorf("title is required")
	}

	scope, err := todo.ParseScope(cmd.scope)
	if err != nil {
		return err
	}
	priority, err := todo.ParsePriority(cmd.priority)
	if err != nil {
		return err
	}
	recurringType, err := todo.ParseRecurringType(cmd.recurringType)
	if err != nil {
		return err
	}

	t := todo.Todo{
		Title:            title,
		Description:      cmd.description,
		Scope:            scope,
		Priority:         priority,
		Tags:             cmd.tags,
		AgentEnabled:     cmd.agentEnabled,
		WorkingDirectory: cmd.workingDir,
		Recurring:        cmd.recurring,
		RecurringType:    recurringType,
	}
	if t.WorkingDirectory == "" {
		t.WorkingDirectory = cmd.flags.Config.Defaults.WorkingDirectory
	}

	created, err := cmd.flags.App.Engine.Create(ctx, &t)
	if err != nil {
		return fmt.Errorf("create todo: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(created)
	}
	fmt.Printf("Created todo #%d: %s\n", created.ID, created.Title)
	return nil
}

func (cmd *TodoCmd) runShow(ctx context.Context, c *cli.Command) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	t, err := cmd.flags.App.Engine.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get todo: %w", err)
	}
	history, err := cmd.flags.App.Todos.History(ctx, id)
	if err != nil {
		return fmt.Errorf("get history: %w", err)
	}

	if cmd.jsonOutput {
		return iojson.Write(map[string]any{"todo": t, "history": history})
	}

	fmt.Printf("#%d %s\n", t.ID, t.Title)
	fmt.Printf("  status: %s  priority: %s  scope: %s\n", t.Status, t.Priority, t.Scope)
	if t.Description != "" {
		fmt.Printf("  %s\n", t.Description)
	}
	if t.AgentNotes != "" {
		fmt.Printf("  notes: %s\n", t.AgentNotes)
	}
	if len(history) > 0 {
		fmt.Println("History:")
		for _, h := range history {
			fmt.Printf("  %s  %s: %q -> %q\n",
				h.ChangedAt.Format(time.DateTime), h.Field, h.OldValue, h.NewValue)
		}
	}
	return nil
}

func (cmd *TodoCmd) runSetStatus(ctx context.Context, c *cli.Command) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	status, err := todo.ParseStatus(c.Args().Get(1))
	if err != nil {
		return err
	}

	req := todo.UpdateRequest{Actor: cmd.actor}
	if cmd.notes != "" {
		req.AgentNotes = &cmd.notes
	}

	res, err := cmd.flags.App.Engine.Transition(ctx, id, status, req)
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return cmd.printResult(res)
}

func (cmd *TodoCmd) runComplete(ctx context.Context, c *cli.Command) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	req := todo.UpdateRequest{Actor: cmd.actor}
	if cmd.notes != "" {
		req.AgentNotes = &cmd.notes
	}
	if c.IsSet("hours") {
		req.ActualHours = &cmd.actualHours
	}

	res, err := cmd.flags.App.Engine.Transition(ctx, id, todo.StatusCompleted, req)
	if err != nil {
		return fmt.Errorf("complete todo: %w", err)
	}
	return cmd.printResult(res)
}

func (cmd *TodoCmd) printResult(res todoq.Result) error {
	if cmd.jsonOutput {
		return iojson.Write(res)
	}
	fmt.Printf("Todo #%d is now %s\n", res.Todo.ID, res.Todo.Status)
	if res.ReportID != 0 {
		fmt.Printf("  report #%d generated\n", res.ReportID)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", warn)
	}
	return nil
}

func (cmd *TodoCmd) runImport(ctx context.Context, c *cli.Command) error {
	input, err := cmd.fr.Read()
	if err != nil {
		return err
	}
	if len(input.Todos) == 0 {
		return fmt.Errorf("no todos in input")
	}

	results := make([]ImportResult, 0, len(input.Todos))
	for _, item := range input.Todos {
		t, err := cmd.importTodo(ctx, item)
		if err != nil {
			results = append(results, ImportResult{Title: item.Title, Error: err.Error()})
			continue
		}
		results = append(results, ImportResult{Title: t.Title, ID: t.ID})
	}
	return iojson.Write(results)
}

func (cmd *TodoCmd) importTodo(ctx context.Context, item ImportTodo) (todo.Todo, error) {
	scope, err := todo.ParseScope(item.Scope)
	if err != nil {
		return todo.Todo{}, err
	}
	priority, err := todo.ParsePriority(item.Priority)
	if err != nil {
		return todo.Todo{}, err
	}
	recurringType, err := todo.ParseRecurringType(item.RecurringType)
	if err != nil {
		return todo.Todo{}, err
	}

	t := todo.Todo{
		Title:            item.Title,
		Description:      item.Description,
		Scope:            scope,
		Priority:         priority,
		Tags:             item.Tags,
		AgentEnabled:     item.AgentEnabled,
		WorkingDirectory: item.WorkingDirectory,
		Recurring:        item.Recurring,
		RecurringType:    recurringType,
	}
	if t.WorkingDirectory == "" {
		t.WorkingDirectory = cmd.flags.Config.Defaults.WorkingDirectory
	}
	return cmd.flags.App.Engine.Create(ctx, &t)
}

func (cmd *TodoCmd) runDelete(ctx context.Context, c *cli.Command) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := cmd.flags.App.Engine.Delete(ctx, id, os.Remove); err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	fmt.Printf("Deleted todo #%d\n", id)
	return nil
}
