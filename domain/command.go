package domain

import (
	"errors"
	"strings"

	"cloud.google.com/go/civil"
)

// TaskInput is a create or partial-update request for a task page.
// Nil fields are left untouched on update.
type TaskInput struct {
	Collection  Collection  `json:"collection,omitempty"`
	Title       *string     `json:"title,omitempty"`
	Assignee    *string     `json:"assignee,omitempty"`
	DueDate     *civil.Date `json:"dueDate,omitempty"`
	ClearDue    bool        `json:"clearDueDate,omitempty"`
	Completed   *bool       `json:"completed,omitempty"`
	Urgent      *bool       `json:"urgent,omitempty"`
	SubmitTo    *string     `json:"submitTo,omitempty"`
	Description *string     `json:"description,omitempty"`
}

var (
	ErrEmptyInput     = errors.New("no fields to write")
	ErrMissingTitle   = errors.New("title is required")
	ErrMissingSubject = errors.New("subject is required")
	ErrNotTaskSource  = errors.New("collection does not hold tasks")
)

// ValidateCreate checks the fields a new task needs.
func (in TaskInput) ValidateCreate() error {
	if !in.Collection.IsTaskSource() {
		return ErrNotTaskSource
	}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return ErrMissingTitle
	}
	return nil
}

// ValidateUpdate rejects an update that would change nothing.
func (in TaskInput) ValidateUpdate() error {
	if in.Title == nil && in.Assignee == nil && in.DueDate == nil && !in.ClearDue &&
		in.Completed == nil && in.Urgent == nil && in.SubmitTo == nil && in.Description == nil {
		return ErrEmptyInput
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return ErrMissingTitle
	}
	return nil
}
