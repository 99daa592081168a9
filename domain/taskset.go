package domain

import (
	"encoding/json"
	"time"
)

// SourceWarning reports a collection that could not be read during a fetch.
type SourceWarning struct {
	Source Collection
	Err    error
}

func (w SourceWarning) Error() string {
	if w.Err == nil {
		return string(w.Source) + ": unavailable"
	}
	return string(w.Source) + ": " + w.Err.Error()
}

func (w SourceWarning) Unwrap() error { return w.Err }

// TaskSet is an immutable, ordered list of records merged from the task
// collections. Accessors return copies.
type TaskSet struct {
	records   []Record
	fetchedAt time.Time
	warnings  []SourceWarning
}

// NewTaskSet captures records in the given order.
func NewTaskSet(records []Record, fetchedAt time.Time, warnings []SourceWarning) TaskSet {
	ts := TaskSet{fetchedAt: fetchedAt}
	if len(records) > 0 {
		ts.records = append([]Record(nil), records...)
	}
	if len(warnings) > 0 {
		ts.warnings = append([]SourceWarning(nil), warnings...)
	}
	return ts
}

// Len is the number of records in the set.
func (ts TaskSet) Len() int { return len(ts.records) }

// Records returns a copy of the ordered records.
func (ts TaskSet) Records() []Record {
	return append([]Record(nil), ts.records...)
}

// Each calls fn for every record in order without copying the slice.
func (ts TaskSet) Each(fn func(i int, r Record)) {
	for i, r := range ts.records {
		fn(i, r)
	}
}

func (ts TaskSet) FetchedAt() time.Time { return ts.fetchedAt }

func (ts TaskSet) Warnings() []SourceWarning {
	return append([]SourceWarning(nil), ts.warnings...)
}

// Complete reports whether every source was read.
func (ts TaskSet) Complete() bool { return len(ts.warnings) == 0 }

type warningWire struct {
	Source  Collection `json:"source"`
	Message string     `json:"message"`
}

type taskSetWire struct {
	Records   []Record      `json:"records"`
	FetchedAt time.Time     `json:"fetchedAt"`
	Warnings  []warningWire `json:"warnings,omitempty"`
}

func (ts TaskSet) MarshalJSON() ([]byte, error) {
	w := taskSetWire{Records: ts.records, FetchedAt: ts.fetchedAt}
	if w.Records == nil {
		w.Records = []Record{}
	}
	for _, sw := range ts.warnings {
		ww := warningWire{Source: sw.Source, Message: "unavailable"}
		if sw.Err != nil {
			ww.Message = sw.Err.Error()
		}
		w.Warnings = append(w.Warnings, ww)
	}
	return json.Marshal(w)
}

func (ts *TaskSet) UnmarshalJSON(data []byte) error {
	var w taskSetWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	warnings := make([]SourceWarning, 0, len(w.Warnings))
	for _, ww := range w.Warnings {
		warnings = append(warnings, SourceWarning{Source: ww.Source, Err: cachedWarning(ww.Message)})
	}
	*ts = NewTaskSet(w.Records, w.FetchedAt, warnings)
	return nil
}

type cachedWarning string

func (c cachedWarning) Error() string { return string(c) }
