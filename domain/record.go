package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Record is the canonical view of one task page, whatever property names the
// underlying database uses.
type Record struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Assignee    string      `json:"assignee"`
	DueDate     *civil.Date `json:"dueDate,omitempty"`
	Completed   bool        `json:"completed"`
	Urgent      bool        `json:"urgent"`
	SubmitTo    string      `json:"submitTo,omitempty"`
	Description string      `json:"description,omitempty"`
	CreatedAt   time.Time   `json:"createdAt,omitzero"`
	ModifiedAt  time.Time   `json:"modifiedAt,omitzero"`
	Source      Collection  `json:"source"`
}

// Key identifies the record across collections.
func (r Record) Key() string {
	return string(r.Source) + "/" + r.ID
}

// AssigneeName is the trimmed assignee, empty when unassigned.
func (r Record) AssigneeName() string {
	return strings.TrimSpace(r.Assignee)
}
