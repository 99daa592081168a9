package domain

import (
	"time"

	"cloud.google.com/go/civil"
)

const weekDays = 7

// Facts holds the derived predicates of one record relative to a given day.
type Facts struct {
	Completed   bool `json:"completed"`
	Urgent      bool `json:"urgent"`
	Overdue     bool `json:"overdue"`
	DueToday    bool `json:"dueToday"`
	DueThisWeek bool `json:"dueThisWeek"`
	InProgress  bool `json:"inProgress"`
}

// Today truncates now to its calendar day in loc. A nil loc means UTC.
func Today(now time.Time, loc *time.Location) civil.Date {
	if loc == nil {
		loc = time.UTC
	}
	return civil.DateOf(now.In(loc))
}

// Classify computes the facts of r for the calendar day today.
// Urgent and Overdue are independent: a record may be both.
func Classify(r Record, today civil.Date) Facts {
	f := Facts{
		Completed:  r.Completed,
		Urgent:     r.Urgent,
		InProgress: !r.Completed,
	}
	if r.DueDate == nil || !r.DueDate.IsValid() {
		return f
	}
	due := *r.DueDate
	f.Overdue = due.Before(today) && !r.Completed
	f.DueToday = due == today
	f.DueThisWeek = !due.Before(today) && !due.After(today.AddDays(weekDays))
	return f
}
