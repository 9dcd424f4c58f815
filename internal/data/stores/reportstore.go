package stores

import (
	"context"
	"fmt"
	"time"

	"github.com/colonyops/todoq/internal/core/report"
	"github.com/colonyops/todoq/internal/core/todo"
	"github.com/colonyops/todoq/internal/data/db"
)

// ReportStore implements report.Store using SQLite.
type ReportStore struct {
	db *db.DB
}

var _ report.Store = (*ReportStore)(nil)

// NewReportStore creates a new SQLite-backed report store.
func NewReportStore(db *db.DB) *ReportStore {
	return &ReportStore{db: db}
}

// SaveStatusReport persists a rendered report and returns its ID.
func (s *ReportStore) SaveStatusReport(ctx context.Context, r *report.StatusReport) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	res, err := s.db.Conn().ExecContext(ctx, `
		INSERT INTO status_reports (todo_id, old_status, new_status, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.TodoID, string(r.OldStatus), string(r.NewStatus), r.Body, r.CreatedAt.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("save status report: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save status report: last insert id: %w", err)
	}
	r.ID = id

	return id, nil
}

// GetStatusReport returns a report by ID.
func (s *ReportStore) GetStatusReport(ctx context.Context, id int64) (report.StatusReport, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, todo_id, old_status, new_status, body, created_at
		FROM status_reports WHERE id = ?`, id)
	return scanStatusReport(row)
}

// LatestStatusReport returns the most recent report for a todo.
func (s *ReportStore) LatestStatusReport(ctx context.Context, todoID int64) (report.StatusReport, error) {
	row := s.db.Conn().QueryRowContext(ctx, `
		SELECT id, todo_id, old_status, new_status, body, created_at
		FROM status_reports WHERE todo_id = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`, todoID)
	return scanStatusReport(row)
}

// ListStatusReports returns reports for a todo, newest first.
func (s *ReportStore) ListStatusReports(ctx context.Context, todoID int64) ([]report.StatusReport, error) {
	rows, err := s.db.Conn().QueryContext(ctx, `
		SELECT id, todo_id, old_status, new_status, body, created_at
		FROM status_reports WHERE todo_id = ?
		ORDER BY created_at DESC, id DESC`, todoID)
	if err != nil {
		return nil, fmt.Errorf("list status reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []report.StatusReport
	for rows.Next() {
		r, err := scanStatusReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// ListCronReports returns cron execution snapshots, newest first.
// A zero todoID returns snapshots across all todos.
func (s *ReportStore) ListCronReports(ctx context.Context, todoID int64, limit int) ([]report.CronReport, error) {
	query := `SELECT id, todo_id, title, status, agent_notes, agent_output, duration_ns, executed_at
		FROM cron_reports`
	var args []any
	if todoID != 0 {
		query += " WHERE todo_id = ?"
		args = append(args, todoID)
	}
	query += " ORDER BY executed_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cron reports: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var reports []report.CronReport
	for rows.Next() {
		var (
			r          report.CronReport
			durationNs int64
			executedAt int64
		)
		err := rows.Scan(&r.ID, &r.TodoID, &r.Title, &r.Status, &r.AgentNotes,
			&r.AgentOutput, &durationNs, &executedAt)
		if err != nil {
			return nil, fmt.Errorf("scan cron report: %w", err)
		}
		r.Duration = time.Duration(durationNs)
		r.ExecutedAt = time.Unix(0, executedAt)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func scanStatusReport(row rowScanner) (report.StatusReport, error) {
	var (
		r                    report.StatusReport
		oldStatus, newStatus string
		createdAt            int64
	)
	err := row.Scan(&r.ID, &r.TodoID, &oldStatus, &newStatus, &r.Body, &createdAt)
	if err != nil {
		if IsNotFoundError(err) {
			return report.StatusReport{}, report.ErrNotFound
		}
		return report.StatusReport{}, fmt.Errorf("scan status report: %w", err)
	}
	r.OldStatus = todo.Status(oldStatus)
	r.NewStatus = todo.Status(newStatus)
	r.CreatedAt = time.Unix(0, createdAt)
	return r, nil
}
