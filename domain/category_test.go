package domain

import (
	"errors"
	"testing"
)

func TestParseCategoryAcceptsDashboardNames(t *testing.T) {
	cases := map[string]Category{
		"all":         CategoryAll,
		"in-progress": CategoryInProgress,
		"inProgress":  CategoryInProgress,
		"due-today":   CategoryDueToday,
		"due-week":    CategoryDueWeek,
		"overdue":     CategoryOverdue,
		"urgent":      CategoryUrgent,
		"completed":   CategoryCompleted,
	}
	for name, want := range cases {
		got, err := ParseCategory(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if got != want {
			t.Fatalf("%s: got %s, want %s", name, got, want)
		}
	}
}

func TestParseCategoryRejectsUnknownNames(t *testing.T) {
	for _, name := range []string{"unknown-category", "", "ALL", "done"} {
		_, err := ParseCategory(name)
		if !errors.Is(err, ErrInvalidCategory) {
			t.Fatalf("%q: expected ErrInvalidCategory, got %v", name, err)
		}
		var ice *InvalidCategoryError
		if !errors.As(err, &ice) || ice.Name != name {
			t.Fatalf("%q: error does not carry the offending name: %v", name, err)
		}
	}
}
