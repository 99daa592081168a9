package domain

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// JournalEntry is one day of the work journal.
type JournalEntry struct {
	ID       string     `json:"id"`
	Date     civil.Date `json:"date"`
	Exercise bool       `json:"exercise"`
	Emotion  string     `json:"emotion,omitempty"`
	Growth   string     `json:"growth,omitempty"`
}

// Note is one page of the records collection.
type Note struct {
	ID        string      `json:"id"`
	Subject   string      `json:"subject"`
	Written   *civil.Date `json:"written,omitempty"`
	Core      string      `json:"core,omitempty"`
	CreatedAt time.Time   `json:"createdAt,omitzero"`
}

// NoteInput is a partial note update. Nil fields are left unchanged.
type NoteInput struct {
	Subject *string     `json:"subject,omitempty"`
	Written *civil.Date `json:"written,omitempty"`
	Core    *string     `json:"core,omitempty"`
}

// Validate rejects empty updates and blank subjects.
func (in NoteInput) Validate() error {
	if in.Subject == nil && in.Written == nil && in.Core == nil {
		return ErrEmptyInput
	}
	if in.Subject != nil && strings.TrimSpace(*in.Subject) == "" {
		return ErrMissingSubject
	}
	return nil
}
