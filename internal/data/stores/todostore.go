// Package stores provides SQLite-backed implementations of the domain
// persistence interfaces.
package stores

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/colonyops/todoq/internal/core/todo"
	"github.com/colonyops/todoq/internal/data/db"
)

// claimRetries bounds how often ClaimNext re-selects after losing the
// conditional update to a concurrent claimer.
const claimRetries = 3

const todoColumns = `id, title, description, scope, status, priority, priority_rank,
	tags, agent_enabled, working_directory, assigned_to, agent_notes, agent_output,
	agent_mode, recurring, recurring_type, status_changed_at, due_date,
	estimated_hours, actual_hours, created_at, updated_at`

// TodoStore implements todo.Store using SQLite.
type TodoStore struct {
	db *db.DB
}

var _ todo.Store = (*TodoStore)(nil)

// NewTodoStore creates a new SQLite-backed todo store.
func NewTodoStore(db *db.DB) *TodoStore {
	return &TodoStore{db: db}
}

// Create persists a new todo and returns its assigned ID.
// Empty enum fields get their defaults before validation.
func (s *TodoStore) Create(ctx context.Context, t *todo.Todo) (int64, error) {
	if t.Scope == "" {
		t.Scope = todo.ScopeOther
	}
	if t.Status == "" {
		t.Status = todo.StatusPending
	}
	if t.Priority == "" {
		t.Priority = todo.PriorityMedium
	}
	if t.AgentMode == "" {
		t.AgentMode = todo.AgentModeBypass
	}
	if t.RecurringType == "" {
		t.RecurringType = todo.RecurringManual
	}
	if err := t.Validate(); err != nil {
		return 0, err
	}

	now := time.Now()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}

	output, err := marshalOutput(t.AgentOutput)
	if err != nil {
		return 0, err
	}

	res, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO todos (title, description, scope, status, priority, priority_rank,
			tags, agent_enabled, working_directory, assigned_to, agent_notes, agent_output,
			agent_mode, recurring, recurring_type, status_changed_at, due_date,
			estimated_hours, actual_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, string(t.Scope), string(t.Status), string(t.Priority),
		t.Priority.Rank(), t.Tags, boolToInt(t.AgentEnabled), t.WorkingDirectory,
		t.AssignedTo, t.AgentNotes, output, string(t.AgentMode), boolToInt(t.Recurring),
		string(t.RecurringType), toNullTime(t.StatusChangedAt), toNullTime(t.DueDate),
		toNullFloat(t.EstimatedHours), toNullFloat(t.ActualHours),
		t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("create todo: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create todo: last insert id: %w", err)
	}
	t.ID = id

	return id, nil
}

// Get returns a single todo by ID.
func (s *TodoStore) Get(ctx context.Context, id int64) (todo.Todo, error) {
	row := s.db.Conn().QueryRowContext(ctx,
		`SELECT `+todoColumns+` FROM todos WHERE id = ?`, id)

	t, err := scanTodo(row)
	if err != nil {
		if IsNotFoundError(err) {
			return todo.Todo{}, todo.ErrNotFound
		}
		return todo.Todo{}, fmt.Errorf("get todo: %w", err)
	}

	return t, nil
}

// List returns todos matching the filter, newest first.
func (s *TodoStore) List(ctx context.Context, filter todo.ListFilter) ([]todo.Todo, error) {
	var (
		conds []string
		args  []any
	)

	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Scope != "" {
		conds = append(conds, "scope = ?")
		args = append(args, string(filter.Scope))
	}
	if filter.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.WorkingDirectory != "" {
		conds = append(conds, "working_directory = ?")
		args = append(args, filter.WorkingDirectory)
	}
	if filter.Search != "" {
		conds = append(conds, "(title LIKE ? OR description LIKE ? OR agent_notes LIKE ? OR tags LIKE ?)")
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern, pattern, pattern)
	}

	query := `SELECT ` + todoColumns + ` FROM todos`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + strconv.Itoa(filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET " + strconv.Itoa(filter.Offset)
		}
	}

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTodos(rows)
}

// Update applies the request inside one transaction: the field update, the
// status_changed_at stamp, and one history row per changed field commit or
// roll back together.
func (s *TodoStore) Update(ctx context.Context, id int64, req todo.UpdateRequest) (todo.Todo, []todo.Change, error) {
	var (
		updated todo.Todo
		changes []todo.Change
	)

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := getTodoTx(ctx, tx, id)
		if err != nil {
			return err
		}

		next := current
		applyRequest(&next, req)
		if err := next.Validate(); err != nil {
			return err
		}

		now := time.Now()
		changes = diffTodos(current, next)
		if len(changes) == 0 {
			updated = current
			return nil
		}

		next.UpdatedAt = now
		if next.Status != current.Status {
			next.StatusChangedAt = &now
		}

		if err := writeTodoTx(ctx, tx, &next); err != nil {
			return err
		}
		if err := insertHistoryTx(ctx, tx, id, changes, req.Actor, now); err != nil {
			return err
		}

		updated = next
		return nil
	})
	if err != nil {
		return todo.Todo{}, nil, err
	}

	return updated, changes, nil
}

// CompleteRecurring completes a recurring todo and immediately resets it to
// the cron state in the same transaction, snapshotting a cron report first.
// The completed state is never visible outside the transaction.
func (s *TodoStore) CompleteRecurring(ctx context.Context, id int64, req todo.UpdateRequest) (todo.Todo, error) {
	var reset todo.Todo

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := getTodoTx(ctx, tx, id)
		if err != nil {
			return err
		}

		completed := current
		applyRequest(&completed, req)
		completed.Status = todo.StatusCompleted

		now := time.Now()
		duration := now.Sub(current.UpdatedAt)
		if duration < 0 {
			duration = 0
		}

		output, err := marshalOutput(completed.AgentOutput)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO cron_reports (todo_id, title, status, agent_notes, agent_output, duration_ns, executed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, completed.Title, string(todo.StatusCompleted), completed.AgentNotes,
			output, int64(duration), now.UnixNano())
		if err != nil {
			return fmt.Errorf("snapshot cron report: %w", err)
		}

		next := completed
		next.Status = todo.StatusCron
		next.AgentEnabled = false
		next.AgentNotes = ""
		next.AgentOutput = nil
		next.StatusChangedAt = nil
		next.UpdatedAt = now

		if err := writeTodoTx(ctx, tx, &next); err != nil {
			return err
		}

		// History records both legs of the transition so the audit trail
		// shows the completed occurrence.
		legs := []todo.Change{
			{Field: "status", Old: string(current.Status), New: string(todo.StatusCompleted)},
			{Field: "status", Old: string(todo.StatusCompleted), New: string(todo.StatusCron)},
		}
		if err := insertHistoryTx(ctx, tx, id, legs, req.Actor, now); err != nil {
			return err
		}

		reset = next
		return nil
	})
	if err != nil {
		return todo.Todo{}, err
	}

	return reset, nil
}

// NextPending returns the best ready candidate without claiming it.
func (s *TodoStore) NextPending(ctx context.Context) (todo.Todo, bool, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT `+todoColumns+` FROM todos
		WHERE status = ? AND agent_enabled = 1
		ORDER BY priority_rank DESC, created_at ASC, id ASC
		LIMIT 1`, string(todo.StatusPending))

	t, err := scanTodo(row)
	if err != nil {
		if IsNotFoundError(err) {
			return todo.Todo{}, false, nil
		}
		return todo.Todo{}, false, fmt.Errorf("next pending todo: %w", err)
	}

	return t, true, nil
}

// ClaimNext atomically claims the best ready candidate by moving it to
// in_progress. The update is conditional on the candidate still being
// pending, so a concurrent claimer loses cleanly and the next candidate is
// tried.
func (s *TodoStore) ClaimNext(ctx context.Context, actor string) (todo.Todo, bool, error) {
	for attempt := 0; attempt < claimRetries; attempt++ {
		candidate, ok, err := s.NextPending(ctx)
		if err != nil || !ok {
			return todo.Todo{}, false, err
		}

		var claimed todo.Todo
		won := false
		err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
			now := time.Now()
			res, err := tx.ExecContext(ctx, `
				UPDATE todos
				SET status = ?, status_changed_at = ?, updated_at = ?
				WHERE id = ? AND status = ?`,
				string(todo.StatusInProgress), now.UnixNano(), now.UnixNano(),
				candidate.ID, string(todo.StatusPending))
			if err != nil {
				return fmt.Errorf("claim todo: %w", err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("claim todo: rows affected: %w", err)
			}
			if n == 0 {
				return nil
			}

			change := []todo.Change{{
				Field: "status",
				Old:   string(todo.StatusPending),
				New:   string(todo.StatusInProgress),
			}}
			if err := insertHistoryTx(ctx, tx, candidate.ID, change, actor, now); err != nil {
				return err
			}

			claimed = candidate
			claimed.Status = todo.StatusInProgress
			claimed.StatusChangedAt = &now
			claimed.UpdatedAt = now
			won = true
			return nil
		})
		if err != nil {
			return todo.Todo{}, false, err
		}
		if won {
			return claimed, true, nil
		}
	}

	return todo.Todo{}, false, nil
}

// AppendOutput appends an output entry, dropping the oldest entries when the
// serialized log exceeds maxBytes.
func (s *TodoStore) AppendOutput(ctx context.Context, id int64, entry todo.OutputEntry, maxBytes int) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var raw string
		err := tx.QueryRowContext(ctx, `SELECT agent_output FROM todos WHERE id = ?`, id).Scan(&raw)
		if err != nil {
			if IsNotFoundError(err) {
				return todo.ErrNotFound
			}
			return fmt.Errorf("load agent output: %w", err)
		}

		entries, err := unmarshalOutput(raw)
		if err != nil {
			return err
		}
		entries = append(entries, entry)

		data, err := json.Marshal(entries)
		if err != nil {
			return fmt.Errorf("marshal agent output: %w", err)
		}
		for maxBytes > 0 && len(data) > maxBytes && len(entries) > 1 {
			entries = entries[1:]
			data, err = json.Marshal(entries)
			if err != nil {
				return fmt.Errorf("marshal agent output: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx, `UPDATE todos SET agent_output = ?, updated_at = ? WHERE id = ?`,
			string(data), time.Now().UnixNano(), id)
		if err != nil {
			return fmt.Errorf("append agent output: %w", err)
		}
		return nil
	})
}

// Delete removes a todo. History, comments, attachments, and reports cascade.
func (s *TodoStore) Delete(ctx context.Context, id int64) error {
	res, err := s.db.Conn().ExecContext(ctx, `DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete todo: rows affected: %w", err)
	}
	if n == 0 {
		return todo.ErrNotFound
	}
	return nil
}

// CountReady returns the number of todos eligible for selection.
func (s *TodoStore) CountReady(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM todos WHERE status = ? AND agent_enabled = 1`,
		string(todo.StatusPending)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count ready todos: %w", err)
	}
	return count, nil
}

// CountByStatus returns the number of todos in the given status.
func (s *TodoStore) CountByStatus(ctx context.Context, status todo.Status) (int64, error) {
	var count int64
	err := s.db.Conn().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM todos WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count todos by status: %w", err)
	}
	return count, nil
}

// ListCron returns parked recurring todos, optionally filtered by cadence.
func (s *TodoStore) ListCron(ctx context.Context, rt todo.RecurringType) ([]todo.Todo, error) {
	query := `SELECT ` + todoColumns + ` FROM todos WHERE status = ? AND recurring = 1`
	args := []any{string(todo.StatusCron)}
	if rt != "" {
		query += " AND recurring_type = ?"
		args = append(args, string(rt))
	}
	query += " ORDER BY priority_rank DESC, created_at ASC"

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cron todos: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectTodos(rows)
}

// History returns the audit records for a todo, oldest first.
func (s *TodoStore) History(ctx context.Context, todoID int64) ([]todo.HistoryEntry, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, todo_id, field, old_value, new_value, actor, changed_at
		FROM todo_history WHERE todo_id = ? ORDER BY changed_at ASC, id ASC`, todoID)
	if err != nil {
		return nil, fmt.Errorf("list todo history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []todo.HistoryEntry
	for rows.Next() {
		var (
			e  todo.HistoryEntry
			at int64
		)
		if err := rows.Scan(&e.ID, &e.TodoID, &e.Field, &e.OldValue, &e.NewValue, &e.Actor, &at); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.ChangedAt = time.Unix(0, at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// AddComment persists a comment on a todo.
func (s *TodoStore) AddComment(ctx context.Context, c *todo.Comment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO todo_comments (todo_id, body, author, is_agent, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.TodoID, c.Body, c.Author, boolToInt(c.Agent), c.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("add comment: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("add comment: last insert id: %w", err)
	}
	return nil
}

// Comments returns a todo's comments, oldest first.
func (s *TodoStore) Comments(ctx context.Context, todoID int64) ([]todo.Comment, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, todo_id, body, author, is_agent, created_at
		FROM todo_comments WHERE todo_id = ? ORDER BY created_at ASC, id ASC`, todoID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []todo.Comment
	for rows.Next() {
		var (
			c     todo.Comment
			agent int64
			at    int64
		)
		if err := rows.Scan(&c.ID, &c.TodoID, &c.Body, &c.Author, &agent, &at); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.Agent = agent != 0
		c.CreatedAt = time.Unix(0, at)
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// AddAttachment records a file path associated with a todo.
func (s *TodoStore) AddAttachment(ctx context.Context, a *todo.Attachment) error {
	res, err := s.db.Conn().ExecContext(ctx,
		`INSERT INTO todo_attachments (todo_id, file_path) VALUES (?, ?)`,
		a.TodoID, a.FilePath)
	if err != nil {
		return fmt.Errorf("add attachment: %w", err)
	}
	a.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("add attachment: last insert id: %w", err)
	}
	return nil
}

// Attachments returns the file records associated with a todo.
func (s *TodoStore) Attachments(ctx context.Context, todoID int64) ([]todo.Attachment, error) {
	rows, err := s.db.Conn().QueryContext(ctx,
		`SELECT id, todo_id, file_path FROM todo_attachments WHERE todo_id = ? ORDER BY id ASC`, todoID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var attachments []todo.Attachment
	for rows.Next() {
		var a todo.Attachment
		if err := rows.Scan(&a.ID, &a.TodoID, &a.FilePath); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		attachments = append(attachments, a)
	}
	return attachments, rows.Err()
}

// Stats returns an aggregate snapshot of the todo table.
func (s *TodoStore) Stats(ctx context.Context) (todo.Stats, error) {
	stats := todo.Stats{
		ByStatus: make(map[todo.Status]int64),
		ByScope:  make(map[todo.Scope]int64),
	}
	conn := s.db.Conn()

	rows, err := conn.QueryContext(ctx, `SELECT status, COUNT(*) FROM todos GROUP BY status`)
	if err != nil {
		return todo.Stats{}, fmt.Errorf("stats by status: %w", err)
	}
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			_ = rows.Close()
			return todo.Stats{}, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[todo.Status(status)] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return todo.Stats{}, err
	}
	_ = rows.Close()

	rows, err = conn.QueryContext(ctx, `SELECT scope, COUNT(*) FROM todos GROUP BY scope`)
	if err != nil {
		return todo.Stats{}, fmt.Errorf("stats by scope: %w", err)
	}
	for rows.Next() {
		var (
			scope string
			count int64
		)
		if err := rows.Scan(&scope, &count); err != nil {
			_ = rows.Close()
			return todo.Stats{}, fmt.Errorf("scan scope count: %w", err)
		}
		stats.ByScope[todo.Scope(scope)] = count
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return todo.Stats{}, err
	}
	_ = rows.Close()

	now := time.Now()
	weekAgo := now.AddDate(0, 0, -7).UnixNano()
	err = conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM todos
		WHERE status = ? AND status_changed_at IS NOT NULL AND status_changed_at >= ?`,
		string(todo.StatusCompleted), weekAgo).Scan(&stats.CompletedThisWeek)
	if err != nil {
		return todo.Stats{}, fmt.Errorf("stats completed this week: %w", err)
	}

	err = conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM todos
		WHERE due_date IS NOT NULL AND due_date < ? AND status NOT IN (?, ?)`,
		now.UnixNano(), string(todo.StatusCompleted), string(todo.StatusCancelled)).Scan(&stats.Overdue)
	if err != nil {
		return todo.Stats{}, fmt.Errorf("stats overdue: %w", err)
	}

	var avgNanos sql.NullFloat64
	err = conn.QueryRowContext(ctx, `
		SELECT AVG(status_changed_at - created_at) FROM todos
		WHERE status = ? AND status_changed_at IS NOT NULL`,
		string(todo.StatusCompleted)).Scan(&avgNanos)
	if err != nil {
		return todo.Stats{}, fmt.Errorf("stats avg completion: %w", err)
	}
	if avgNanos.Valid {
		stats.AvgCompletionHours = avgNanos.Float64 / float64(time.Hour)
	}

	return stats, nil
}

// getTodoTx loads one todo inside a transaction.
func getTodoTx(ctx context.Context, tx *sql.Tx, id int64) (todo.Todo, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+todoColumns+` FROM todos WHERE id = ?`, id)
	t, err := scanTodo(row)
	if err != nil {
		if IsNotFoundError(err) {
			return todo.Todo{}, todo.ErrNotFound
		}
		return todo.Todo{}, fmt.Errorf("get todo: %w", err)
	}
	return t, nil
}

// writeTodoTx writes all mutable columns of a todo inside a transaction.
func writeTodoTx(ctx context.Context, tx *sql.Tx, t *todo.Todo) error {
	output, err := marshalOutput(t.AgentOutput)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE todos SET title = ?, description = ?, scope = ?, status = ?,
			priority = ?, priority_rank = ?, tags = ?, agent_enabled = ?,
			working_directory = ?, assigned_to = ?, agent_notes = ?, agent_output = ?,
			agent_mode = ?, recurring = ?, recurring_type = ?, status_changed_at = ?,
			due_date = ?, estimated_hours = ?, actual_hours = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, string(t.Scope), string(t.Status), string(t.Priority),
		t.Priority.Rank(), t.Tags, boolToInt(t.AgentEnabled), t.WorkingDirectory,
		t.AssignedTo, t.AgentNotes, output, string(t.AgentMode), boolToInt(t.Recurring),
		string(t.RecurringType), toNullTime(t.StatusChangedAt), toNullTime(t.DueDate),
		toNullFloat(t.EstimatedHours), toNullFloat(t.ActualHours),
		t.UpdatedAt.UnixNano(), t.ID)
	if err != nil {
		return fmt.Errorf("update todo: %w", err)
	}
	return nil
}

// insertHistoryTx writes one audit row per change inside a transaction.
func insertHistoryTx(ctx context.Context, tx *sql.Tx, todoID int64, changes []todo.Change, actor string, at time.Time) error {
	for _, c := range changes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO todo_history (todo_id, field, old_value, new_value, actor, changed_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			todoID, c.Field, c.Old, c.New, actor, at.UnixNano())
		if err != nil {
			return fmt.Errorf("insert history entry: %w", err)
		}
	}
	return nil
}

// applyRequest copies the request's non-nil fields onto the todo.
func applyRequest(t *todo.Todo, req todo.UpdateRequest) {
	if req.Title != nil {
		t.Title = *req.Title
	}
	if req.Description != nil {
		t.Description = *req.Description
	}
	if req.Scope != nil {
		t.Scope = *req.Scope
	}
	if req.Status != nil {
		t.Status = *req.Status
	}
	if req.Priority != nil {
		t.Priority = *req.Priority
	}
	if req.Tags != nil {
		t.Tags = *req.Tags
	}
	if req.AgentEnabled != nil {
		t.AgentEnabled = *req.AgentEnabled
	}
	if req.WorkingDirectory != nil {
		t.WorkingDirectory = *req.WorkingDirectory
	}
	if req.AssignedTo != nil {
		t.AssignedTo = *req.AssignedTo
	}
	if req.AgentNotes != nil {
		t.AgentNotes = *req.AgentNotes
	}
	if req.AgentMode != nil {
		t.AgentMode = *req.AgentMode
	}
	if req.Recurring != nil {
		t.Recurring = *req.Recurring
	}
	if req.RecurringType != nil {
		t.RecurringType = *req.RecurringType
	}
	if req.DueDate != nil {
		due := *req.DueDate
		t.DueDate = &due
	}
	if req.EstimatedHours != nil {
		v := *req.EstimatedHours
		t.EstimatedHours = &v
	}
	if req.ActualHours != nil {
		v := *req.ActualHours
		t.ActualHours = &v
	}
}

// diffTodos produces one change per tracked field whose value differs.
func diffTodos(old, next todo.Todo) []todo.Change {
	var changes []todo.Change
	add := func(field, oldVal, newVal string) {
		if oldVal != newVal {
			changes = append(changes, todo.Change{Field: field, Old: oldVal, New: newVal})
		}
	}

	add("title", old.Title, next.Title)
	add("description", old.Description, next.Description)
	add("scope", string(old.Scope), string(next.Scope))
	add("status", string(old.Status), string(next.Status))
	add("priority", string(old.Priority), string(next.Priority))
	add("tags", old.Tags, next.Tags)
	add("agent_enabled", strconv.FormatBool(old.AgentEnabled), strconv.FormatBool(next.AgentEnabled))
	add("working_directory", old.WorkingDirectory, next.WorkingDirectory)
	add("assigned_to", old.AssignedTo, next.AssignedTo)
	add("agent_notes", old.AgentNotes, next.AgentNotes)
	add("agent_mode", string(old.AgentMode), string(next.AgentMode))
	add("recurring", strconv.FormatBool(old.Recurring), strconv.FormatBool(next.Recurring))
	add("recurring_type", string(old.RecurringType), string(next.RecurringType))
	add("due_date", formatNullTime(old.DueDate), formatNullTime(next.DueDate))
	add("estimated_hours", formatNullFloat(old.EstimatedHours), formatNullFloat(next.EstimatedHours))
	add("actual_hours", formatNullFloat(old.ActualHours), formatNullFloat(next.ActualHours))

	return changes
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(row rowScanner) (todo.Todo, error) {
	var (
		t                          todo.Todo
		scope, status, priority    string
		agentMode, recurringType   string
		output                     string
		agentEnabled, recurring    int64
		priorityRank               int64
		statusChangedAt, dueDate   sql.NullInt64
		estimated, actual          sql.NullFloat64
		createdAt, updatedAt       int64
	)

	err := row.Scan(&t.ID, &t.Title, &t.Description, &scope, &status, &priority,
		&priorityRank, &t.Tags, &agentEnabled, &t.WorkingDirectory, &t.AssignedTo,
		&t.AgentNotes, &output, &agentMode, &recurring, &recurringType,
		&statusChangedAt, &dueDate, &estimated, &actual, &createdAt, &updatedAt)
	if err != nil {
		return todo.Todo{}, err
	}

	entries, err := unmarshalOutput(output)
	if err != nil {
		return todo.Todo{}, err
	}

	t.Scope = todo.Scope(scope)
	t.Status = todo.Status(status)
	t.Priority = todo.Priority(priority)
	t.AgentEnabled = agentEnabled != 0
	t.AgentOutput = entries
	t.AgentMode = todo.AgentMode(agentMode)
	t.Recurring = recurring != 0
	t.RecurringType = todo.RecurringType(recurringType)
	t.StatusChangedAt = fromNullTime(statusChangedAt)
	t.DueDate = fromNullTime(dueDate)
	t.EstimatedHours = fromNullFloat(estimated)
	t.ActualHours = fromNullFloat(actual)
	t.CreatedAt = time.Unix(0, createdAt)
	t.UpdatedAt = time.Unix(0, updatedAt)

	return t, nil
}

func collectTodos(rows *sql.Rows) ([]todo.Todo, error) {
	var todos []todo.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

func marshalOutput(entries []todo.OutputEntry) (string, error) {
	if len(entries) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshal agent output: %w", err)
	}
	return string(data), nil
}

func unmarshalOutput(raw string) ([]todo.OutputEntry, error) {
	if raw == "" || raw == "[]" {
		return nil, nil
	}
	var entries []todo.OutputEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("unmarshal agent output: %w", err)
	}
	return entries, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func toNullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func fromNullTime(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(0, n.Int64)
	return &t
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromNullFloat(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func formatNullTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatNullFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}
