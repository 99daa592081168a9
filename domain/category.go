package domain

import (
	"errors"
	"fmt"
)

// Category is a named statistics bucket.
type Category string

const (
	CategoryAll        Category = "all"
	CategoryInProgress Category = "inProgress"
	CategoryDueToday   Category = "dueToday"
	CategoryDueWeek    Category = "dueWeek"
	CategoryOverdue    Category = "overdue"
	CategoryUrgent     Category = "urgent"
	CategoryCompleted  Category = "completed"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryAll,
	CategoryInProgress,
	CategoryDueToday,
	CategoryDueWeek,
	CategoryOverdue,
	CategoryUrgent,
	CategoryCompleted,
}

// the dashboard cards use kebab-case names
var categoryAliases = map[string]Category{
	"all":         CategoryAll,
	"inProgress":  CategoryInProgress,
	"in-progress": CategoryInProgress,
	"dueToday":    CategoryDueToday,
	"due-today":   CategoryDueToday,
	"dueWeek":     CategoryDueWeek,
	"due-week":    CategoryDueWeek,
	"overdue":     CategoryOverdue,
	"urgent":      CategoryUrgent,
	"completed":   CategoryCompleted,
}

// ErrInvalidCategory is wrapped by every InvalidCategoryError.
var ErrInvalidCategory = errors.New("invalid category")

// InvalidCategoryError names a category the engine does not know.
type InvalidCategoryError struct {
	Name string
}

func (e *InvalidCategoryError) Error() string {
	return fmt.Sprintf("invalid category %q", e.Name)
}

func (e *InvalidCategoryError) Unwrap() error { return ErrInvalidCategory }

// ParseCategory resolves a category name. Unknown names are rejected.
func ParseCategory(name string) (Category, error) {
	if c, ok := categoryAliases[name]; ok {
		return c, nil
	}
	return "", &InvalidCategoryError{Name: name}
}

// Matches reports whether facts fall in category c.
func (c Category) Matches(f Facts) bool {
	switch c {
	case CategoryAll:
		return true
	case CategoryInProgress:
		return f.InProgress
	case CategoryDueToday:
		return f.DueToday
	case CategoryDueWeek:
		return f.DueThisWeek
	case CategoryOverdue:
		return f.Overdue
	case CategoryUrgent:
		return f.Urgent
	case CategoryCompleted:
		return f.Completed
	}
	return false
}
