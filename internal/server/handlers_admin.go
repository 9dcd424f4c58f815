package server

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/colonyops/todoq/internal/core/todo"
)

func idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid todo id")
		return 0, false
	}
	return id, true
}

type createTodoRequest struct {
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Scope            string   `json:"scope"`
	Status           string   `json:"status"`
	Priority         string   `json:"priority"`
	Tags             string   `json:"tags"`
	AgentEnabled     bool     `json:"agent_enabled"`
	WorkingDirectory string   `json:"working_directory"`
	AssignedTo       string   `json:"assigned_to"`
	AgentMode        string   `json:"agent_mode"`
	Recurring        bool     `json:"recurring"`
	RecurringType    string   `json:"recurring_type"`
	DueDate          *string  `json:"due_date"`
	EstimatedHours   *float64 `json:"estimated_hours"`
}

func (s *Server) handleCreateTodo(w http.ResponseWriter, r *http.Request) {
	var req createTodoRequest
	if !decodeBody(w, r, &req) {
		return
	}

	t, err := s.todoFromRequest(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	created, err := s.app.Engine.Create(r.Context(), &t)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// todoFromRequest maps the wire request to the domain entity, parsing enums
// at the boundary so legacy status values are normalized exactly once.
func (s *Server) todoFromRequest(req createTodoRequest) (todo.Todo, error) {
	scope, err := todo.ParseScope(req.Scope)
	if err != nil {
		return todo.Todo{}, err
	}
	priority, err := todo.ParsePriority(req.Priority)
	if err != nil {
		return todo.Todo{}, err
	}
	recurringType, err := todo.ParseRecurringType(req.RecurringType)
	if err != nil {
		return todo.Todo{}, err
	}

	status := todo.StatusPending
	if req.Status != "" {
		if status, err = todo.ParseStatus(req.Status); err != nil {
			return todo.Todo{}, err
		}
	}

	t := todo.Todo{
		Title:            req.Title,
		Description:      req.Description,
		Scope:            scope,
		Status:           status,
		Priority:         priority,
		Tags:             req.Tags,
		AgentEnabled:     req.AgentEnabled,
		WorkingDirectory: req.WorkingDirectory,
		AssignedTo:       req.AssignedTo,
		AgentMode:        todo.AgentMode(req.AgentMode),
		Recurring:        req.Recurring,
		RecurringType:    recurringType,
		EstimatedHours:   req.EstimatedHours,
	}
	if t.WorkingDirectory == "" {
		t.WorkingDirectory = s.app.Config.Defaults.WorkingDirectory
	}
	if t.AssignedTo == "" {
		t.AssignedTo = s.app.Config.Defaults.AssignedTo
	}
	if t.AgentMode == "" {
		t.AgentMode = todo.AgentModeBypass
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			return todo.Todo{}, err
		}
		t.DueDate = &due
	}
	return t, nil
}

func (s *Server) handleListTodos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := todo.ListFilter{
		Scope:            todo.Scope(q.Get("scope")),
		Priority:         todo.Priority(q.Get("priority")),
		WorkingDirectory: q.Get("working_directory"),
		Search:           q.Get("search"),
	}
	if raw := q.Get("status"); raw != "" {
		status, err := todo.ParseStatus(raw)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		filter.Status = status
	}
	if raw := q.Get("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}
	if raw := q.Get("offset"); raw != "" {
		filter.Offset, _ = strconv.Atoi(raw)
	}

	todos, err := s.app.Engine.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) handleGetTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	t, err := s.app.Engine.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type updateTodoRequest struct {
	Title            *string  `json:"title"`
	Description      *string  `json:"description"`
	Scope            *string  `json:"scope"`
	Status           *string  `json:"status"`
	Priority         *string  `json:"priority"`
	Tags             *string  `json:"tags"`
	AgentEnabled     *bool    `json:"agent_enabled"`
	WorkingDirectory *string  `json:"working_directory"`
	AssignedTo       *string  `json:"assigned_to"`
	AgentNotes       *string  `json:"agent_notes"`
	AgentMode        *string  `json:"agent_mode"`
	Recurring        *bool    `json:"recurring"`
	RecurringType    *string  `json:"recurring_type"`
	DueDate          *string  `json:"due_date"`
	EstimatedHours   *float64 `json:"estimated_hours"`
	ActualHours      *float64 `json:"actual_hours"`
	Actor            string   `json:"actor"`
}

func (s *Server) handleUpdateTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req updateTodoRequest
	if !decodeBody(w, r, &req) {
		return
	}

	update, err := updateRequest(req)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := s.app.Engine.Update(r.Context(), id, update)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, transitionBody{
		Todo:     res.Todo,
		ReportID: res.ReportID,
		Warnings: res.Warnings,
	})
}

func updateRequest(req updateTodoRequest) (todo.UpdateRequest, error) {
	update := todo.UpdateRequest{
		Title:            req.Title,
		Description:      req.Description,
		Tags:             req.Tags,
		AgentEnabled:     req.AgentEnabled,
		WorkingDirectory: req.WorkingDirectory,
		AssignedTo:       req.AssignedTo,
		AgentNotes:       req.AgentNotes,
		Recurring:        req.Recurring,
		EstimatedHours:   req.EstimatedHours,
		ActualHours:      req.ActualHours,
		Actor:            req.Actor,
	}

	if req.Scope != nil {
		scope, err := todo.ParseScope(*req.Scope)
		if err != nil {
			return todo.UpdateRequest{}, err
		}
		update.Scope = &scope
	}
	if req.Status != nil {
		status, err := todo.ParseStatus(*req.Status)
		if err != nil {
			return todo.UpdateRequest{}, err
		}
		update.Status = &status
	}
	if req.Priority != nil {
		priority, err := todo.ParsePriority(*req.Priority)
		if err != nil {
			return todo.UpdateRequest{}, err
		}
		update.Priority = &priority
	}
	if req.AgentMode != nil {
		mode := todo.AgentMode(*req.AgentMode)
		update.AgentMode = &mode
	}
	if req.RecurringType != nil {
		rt, err := todo.ParseRecurringType(*req.RecurringType)
		if err != nil {
			return todo.UpdateRequest{}, err
		}
		update.RecurringType = &rt
	}
	if req.DueDate != nil && *req.DueDate != "" {
		due, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			return todo.UpdateRequest{}, err
		}
		update.DueDate = &due
	}

	return update, nil
}

func (s *Server) handleDeleteTodo(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	if err := s.app.Engine.Delete(r.Context(), id, os.Remove); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleTodoHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	history, err := s.app.Todos.History(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) handleTodoComments(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	comments, err := s.app.Todos.Comments(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

type addCommentRequest struct {
	Body   string `json:"body"`
	Author string `json:"author"`
	Agent  bool   `json:"agent"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	var req addCommentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Body == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	// Reject comments on unknown todos; the table has no lookup on insert.
	if _, err := s.app.Engine.Get(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}

	c := todo.Comment{TodoID: id, Body: req.Body, Author: req.Author, Agent: req.Agent}
	if err := s.app.Todos.AddComment(r.Context(), &c); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleTodoReports(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	reports, err := s.app.Reports.ListStatusReports(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

type bulkStatusRequest struct {
	IDs    []int64 `json:"ids"`
	Status string  `json:"status"`
	Notes  string  `json:"notes"`
	Actor  string  `json:"actor"`
}

type bulkResult struct {
	ID      int64  `json:"id"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// handleBulkStatus transitions each listed todo independently: one failure
// does not abort the batch.
func (s *Server) handleBulkStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	status, err := todo.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	results := make([]bulkResult, 0, len(req.IDs))
	for _, id := range req.IDs {
		update := todo.UpdateRequest{Actor: req.Actor}
		if req.Notes != "" {
			notes := req.Notes
			update.AgentNotes = &notes
		}
		_, err := s.app.Engine.Transition(r.Context(), id, status, update)
		if err != nil {
			results = append(results, bulkResult{ID: id, Message: err.Error()})
			continue
		}
		results = append(results, bulkResult{ID: id, Success: true})
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.Engine.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleListCron(w http.ResponseWriter, r *http.Request) {
	rt := todo.RecurringType(r.URL.Query().Get("type"))
	todos, err := s.app.Todos.ListCron(r.Context(), rt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) handleCronReports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	reports, err := s.app.Reports.ListCronReports(r.Context(), 0, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleCronActivate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	activated, err := s.app.Engine.Activate(r.Context(), id, "admin")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, activated)
}

func (s *Server) handleCronReset(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	reset, err := s.app.Engine.ResetToCron(r.Context(), id, "admin")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reset)
}
