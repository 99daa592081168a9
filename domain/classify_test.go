package domain

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func date(y int, m time.Month, d int) *civil.Date {
	v := civil.Date{Year: y, Month: m, Day: d}
	return &v
}

func TestClassifyCompletedIsNeverOverdue(t *testing.T) {
	today := civil.Date{Year: 2024, Month: time.May, Day: 10}
	for _, due := range []*civil.Date{date(2020, 1, 1), date(2024, 5, 9), date(2024, 5, 10), date(2030, 1, 1), nil} {
		f := Classify(Record{Completed: true, DueDate: due}, today)
		if f.Overdue {
			t.Fatalf("completed record due %v classified overdue", due)
		}
		if f.InProgress {
			t.Fatalf("completed record classified in progress")
		}
	}
}

func TestClassifyDueTodayIsAlsoDueThisWeek(t *testing.T) {
	today := civil.Date{Year: 2024, Month: time.May, Day: 10}
	for _, completed := range []bool{false, true} {
		f := Classify(Record{DueDate: date(2024, 5, 10), Completed: completed}, today)
		if !f.DueToday || !f.DueThisWeek {
			t.Fatalf("completed=%v: expected due today and this week, got %+v", completed, f)
		}
	}
}

func TestClassifyWeekWindowIsInclusive(t *testing.T) {
	today := civil.Date{Year: 2024, Month: time.December, Day: 28}
	cases := []struct {
		due  *civil.Date
		want bool
	}{
		{date(2024, 12, 27), false},
		{date(2024, 12, 28), true},
		{date(2025, 1, 4), true},
		{date(2025, 1, 5), false},
	}
	for _, tc := range cases {
		if got := Classify(Record{DueDate: tc.due}, today).DueThisWeek; got != tc.want {
			t.Fatalf("due %v: DueThisWeek=%v, want %v", tc.due, got, tc.want)
		}
	}
}

func TestClassifyOverdueAndUrgentOverlap(t *testing.T) {
	today := civil.Date{Year: 2024, Month: time.May, Day: 10}
	f := Classify(Record{Urgent: true, DueDate: date(2024, 5, 1)}, today)
	if !f.Urgent || !f.Overdue || !f.InProgress {
		t.Fatalf("unexpected facts: %+v", f)
	}
}

func TestClassifyWithoutDueDate(t *testing.T) {
	f := Classify(Record{}, civil.Date{Year: 2024, Month: time.May, Day: 10})
	if f.Overdue || f.DueToday || f.DueThisWeek {
		t.Fatalf("date predicates set without a due date: %+v", f)
	}
	if !f.InProgress {
		t.Fatal("expected record without completion to be in progress")
	}
}

func TestTodayUsesLocation(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	now := time.Date(2024, time.May, 9, 16, 30, 0, 0, time.UTC)
	if got := Today(now, seoul); got != (civil.Date{Year: 2024, Month: time.May, Day: 10}) {
		t.Fatalf("unexpected day in Seoul: %v", got)
	}
	if got := Today(now, nil); got != (civil.Date{Year: 2024, Month: time.May, Day: 9}) {
		t.Fatalf("unexpected UTC day: %v", got)
	}
}
