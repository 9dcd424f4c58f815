package server

import (
	"net/http"

	"github.com/colonyops/todoq/internal/core/todo"
	"github.com/colonyops/todoq/internal/todoq"
)

type nextTaskBody struct {
	Claimed bool       `json:"claimed"`
	Todo    *todo.Todo `json:"todo,omitempty"`
	Payload string     `json:"payload"`
}

func nextTaskResponse(next todoq.NextTask) nextTaskBody {
	body := nextTaskBody{Claimed: next.Claimed, Payload: next.Payload}
	if next.Claimed {
		t := next.Todo
		body.Todo = &t
	}
	return body
}

// handleAgentNext claims the best ready todo and returns the display payload.
func (s *Server) handleAgentNext(w http.ResponseWriter, r *http.Request) {
	next, err := s.app.Service.Next(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nextTaskResponse(next))
}

type agentOutputRequest struct {
	TodoID  int64  `json:"todo_id"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (s *Server) handleAgentOutput(w http.ResponseWriter, r *http.Request) {
	var req agentOutputRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if err := s.app.Service.AppendOutput(r.Context(), req.TodoID, req.Type, req.Message); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

type agentStatusRequest struct {
	TodoID int64  `json:"todo_id"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

type transitionBody struct {
	Todo     todo.Todo `json:"todo"`
	ReportID int64     `json:"report_id,omitempty"`
	Warnings []string  `json:"warnings,omitempty"`
}

func (s *Server) handleAgentStatus(w http.ResponseWriter, r *http.Request) {
	var req agentStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}

	status, err := todo.ParseStatus(req.Status)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := s.app.Service.SetStatus(r.Context(), req.TodoID, status, req.Notes)
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

type agentCompleteRequest struct {
	TodoID      int64    `json:"todo_id"`
	Notes       string   `json:"notes"`
	ActualHours *float64 `json:"actual_hours"`
}

type completeBody struct {
	Todo     todo.Todo    `json:"todo"`
	ReportID int64        `json:"report_id,omitempty"`
	Warnings []string     `json:"warnings,omitempty"`
	Next     nextTaskBody `json:"next"`
}

// handleAgentComplete finishes a todo and hands the agent its next task in
// the same response.
func (s *Server) handleAgentComplete(w http.ResponseWriter, r *http.Request) {
	var req agentCompleteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, next, err := s.app.Service.Complete(r.Context(), req.TodoID, req.Notes, req.ActualHours)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completeBody{
		Todo:     res.Todo,
		ReportID: res.ReportID,
		Warnings: res.Warnings,
		Next:     nextTaskResponse(next),
	})
}
