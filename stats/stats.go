// Package stats folds the classifier over a TaskSet into dashboard counts,
// per-assignee breakdowns and named drill-down lists.
package stats

import (
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"

	"taskflow/domain"
)

// Counts are the per-category tallies. Categories overlap; only All is a total.
type Counts struct {
	All        int `json:"all"`
	InProgress int `json:"inProgress"`
	DueToday   int `json:"dueToday"`
	DueWeek    int `json:"dueWeek"`
	Overdue    int `json:"overdue"`
	Urgent     int `json:"urgent"`
	Completed  int `json:"completed"`
}

func (c *Counts) add(f domain.Facts) {
	c.All++
	if f.InProgress {
		c.InProgress++
	}
	if f.DueToday {
		c.DueToday++
	}
	if f.DueThisWeek {
		c.DueWeek++
	}
	if f.Overdue {
		c.Overdue++
	}
	if f.Urgent {
		c.Urgent++
	}
	if f.Completed {
		c.Completed++
	}
}

func (c *Counts) merge(o Counts) {
	c.All += o.All
	c.InProgress += o.InProgress
	c.DueToday += o.DueToday
	c.DueWeek += o.DueWeek
	c.Overdue += o.Overdue
	c.Urgent += o.Urgent
	c.Completed += o.Completed
}

// GlobalSnapshot is the dashboard summary.
type GlobalSnapshot struct {
	Counts
	Assignees int        `json:"assignees"`
	Today     civil.Date `json:"today"`
}

// SourceCount is the number of an assignee's records from one collection.
type SourceCount struct {
	Source domain.Collection `json:"source"`
	Label  string            `json:"label"`
	Count  int               `json:"count"`
}

// AssigneeStats is one row of the per-assignee view.
type AssigneeStats struct {
	Name string `json:"name"`
	Counts
	BySource []SourceCount `json:"bySource"`
}

// SourceTotal is the completion tally of one collection.
type SourceTotal struct {
	Source    domain.Collection `json:"source"`
	Label     string            `json:"label"`
	Total     int               `json:"total"`
	Completed int               `json:"completed"`
}

// Engine answers statistics queries over one TaskSet for one day. It holds no
// state beyond its inputs.
type Engine struct {
	records []domain.Record
	facts   []domain.Facts
	today   civil.Date
}

// New classifies set against the calendar day of now in loc.
func New(set domain.TaskSet, now time.Time, loc *time.Location) *Engine {
	return ForDay(set, domain.Today(now, loc))
}

// ForDay classifies set against today.
func ForDay(set domain.TaskSet, today civil.Date) *Engine {
	e := &Engine{records: set.Records(), today: today}
	e.facts = make([]domain.Facts, len(e.records))
	for i, r := range e.records {
		e.facts[i] = domain.Classify(r, today)
	}
	return e
}

func (e *Engine) Today() civil.Date { return e.today }

// Global counts every category over the whole set.
func (e *Engine) Global() GlobalSnapshot {
	g := GlobalSnapshot{Today: e.today, Assignees: e.AssigneeCount()}
	for _, f := range e.facts {
		g.Counts.add(f)
	}
	return g
}

// AssigneeCount is the number of distinct trimmed, non-empty assignee names.
func (e *Engine) AssigneeCount() int {
	return len(e.Assignees())
}

// Assignees lists distinct assignee names in first-seen order.
func (e *Engine) Assignees() []string {
	seen := map[string]struct{}{}
	names := []string{}
	for _, r := range e.records {
		name := r.AssigneeName()
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// ByAssignee groups the set by trimmed assignee, most records first. Ties
// keep first-seen order. Unassigned records are left out.
func (e *Engine) ByAssignee() []AssigneeStats {
	index := map[string]int{}
	out := []AssigneeStats{}
	for i, r := range e.records {
		name := r.AssigneeName()
		if name == "" {
			continue
		}
		pos, ok := index[name]
		if !ok {
			pos = len(out)
			index[name] = pos
			out = append(out, AssigneeStats{Name: name, BySource: emptyBreakdown()})
		}
		out[pos].Counts.add(e.facts[i])
		for j := range out[pos].BySource {
			if out[pos].BySource[j].Source == r.Source {
				out[pos].BySource[j].Count++
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].All > out[j].All })
	return out
}

func emptyBreakdown() []SourceCount {
	b := make([]SourceCount, len(domain.TaskSources))
	for i, s := range domain.TaskSources {
		b[i] = SourceCount{Source: s, Label: s.Label()}
	}
	return b
}

// Totals sums the per-assignee counts. Unlike Global it leaves out
// unassigned records.
func (e *Engine) Totals() Counts {
	var c Counts
	for _, a := range e.ByAssignee() {
		c.merge(a.Counts)
	}
	return c
}

// BySource tallies total and completed records per task collection.
func (e *Engine) BySource() []SourceTotal {
	out := make([]SourceTotal, len(domain.TaskSources))
	for i, s := range domain.TaskSources {
		out[i] = SourceTotal{Source: s, Label: s.Label()}
	}
	for i, r := range e.records {
		for j := range out {
			if out[j].Source != r.Source {
				continue
			}
			out[j].Total++
			if e.facts[i].Completed {
				out[j].Completed++
			}
		}
	}
	return out
}

// FilterBy returns, in set order, the records matching category, restricted
// to assignee when it is non-empty. Unknown categories are an error.
func (e *Engine) FilterBy(category, assignee string) ([]domain.Record, error) {
	c, err := domain.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	assignee = strings.TrimSpace(assignee)
	out := []domain.Record{}
	for i, r := range e.records {
		if assignee != "" && r.AssigneeName() != assignee {
			continue
		}
		if c.Matches(e.facts[i]) {
			out = append(out, r)
		}
	}
	return out, nil
}
