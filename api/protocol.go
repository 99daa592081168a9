package api

import (
	"time"

	"cloud.google.com/go/civil"

	"taskflow/domain"
	"taskflow/stats"
)

const maxBodySize = 64 * 1024 // 64 KiB

type errorResponse struct {
	Error    string   `json:"error"`
	Category string   `json:"category,omitempty"`
	Causes   []string `json:"causes,omitempty"`
}

type warning struct {
	Source  domain.Collection `json:"source"`
	Message string            `json:"message"`
}

func warningsOf(ts domain.TaskSet) []warning {
	ws := ts.Warnings()
	if len(ws) == 0 {
		return nil
	}
	out := make([]warning, 0, len(ws))
	for _, w := range ws {
		msg := "unavailable"
		if w.Err != nil {
			msg = w.Err.Error()
		}
		out = append(out, warning{Source: w.Source, Message: msg})
	}
	return out
}

// GET /api/tasks response body
type tasksResponse struct {
	Category  string          `json:"category"`
	Assignee  string          `json:"assignee,omitempty"`
	Today     civil.Date      `json:"today"`
	Tasks     []domain.Record `json:"tasks"`
	FetchedAt time.Time       `json:"fetchedAt"`
	Warnings  []warning       `json:"warnings,omitempty"`
}

// GET /api/stats response body
type statsResponse struct {
	Global    stats.GlobalSnapshot `json:"global"`
	Sources   []stats.SourceTotal  `json:"sources"`
	FetchedAt time.Time            `json:"fetchedAt"`
	Warnings  []warning            `json:"warnings,omitempty"`
}

// GET /api/stats/assignees response body
type assigneesResponse struct {
	Today     civil.Date            `json:"today"`
	Count     int                   `json:"count"`
	Assignees []stats.AssigneeStats `json:"assignees"`
	Totals    stats.Counts          `json:"totals"`
	FetchedAt time.Time             `json:"fetchedAt"`
	Warnings  []warning             `json:"warnings,omitempty"`
}

// POST /api/tasks/:id/complete request body
type completeRequest struct {
	Completed *bool `json:"completed"`
}

// POST /api/events request body
type eventGroupRequest struct {
	Name string      `json:"name"`
	Date *civil.Date `json:"date"`
}

// POST /api/events/:groupId/items request body
type eventItemRequest struct {
	Content string `json:"content"`
}

// PATCH /api/events/items/:id request body
type eventItemUpdateRequest struct {
	Done *bool `json:"done"`
}

// PUT /api/journal/:date request body
type journalRequest struct {
	Exercise bool   `json:"exercise"`
	Emotion  string `json:"emotion"`
	Growth   string `json:"growth"`
}

// POST /api/notes request body
type noteRequest struct {
	Subject string      `json:"subject"`
	Written *civil.Date `json:"written,omitempty"`
	Core    string      `json:"core"`
}

// POST /api/auth/signup request body
type signupRequest struct {
	Name string `json:"name"`
}

// GET /api/auth/me response body
type meResponse struct {
	Subject    string                `json:"id"`
	Email      string                `json:"email,omitempty"`
	Admin      bool                  `json:"admin"`
	Registered bool                  `json:"registered"`
	Status     domain.ApprovalStatus `json:"status,omitempty"`
	User       *domain.User          `json:"user,omitempty"`
}

// POST /api/admin/refresh response body
type refreshResponse struct {
	Records   int       `json:"records"`
	FetchedAt time.Time `json:"fetchedAt"`
	Warnings  []warning `json:"warnings,omitempty"`
}
