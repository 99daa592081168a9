package schema

import (
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/tidwall/gjson"

	"taskflow/domain"
)

// page is a parsed store page with its properties indexed by name.
type page struct {
	root  gjson.Result
	props map[string]gjson.Result
}

func parsePage(raw []byte) page {
	if !gjson.ValidBytes(raw) {
		return page{}
	}
	root := gjson.ParseBytes(raw)
	p := page{root: root}
	if props := root.Get("properties"); props.IsObject() {
		p.props = props.Map()
	}
	return p
}

// PageID returns the id of a raw page, or "".
func PageID(raw []byte) string {
	return gjson.GetBytes(raw, "id").String()
}

// IsArchived reports whether the store marked the page archived or trashed.
func IsArchived(raw []byte) bool {
	r := gjson.GetManyBytes(raw, "archived", "in_trash")
	return r[0].Bool() || r[1].Bool()
}

// ReadTask normalises a raw page of a task collection. Malformed input
// degrades to attribute defaults.
func (s *Schema) ReadTask(raw []byte, source domain.Collection, loc *time.Location) (rec domain.Record) {
	rec = domain.Record{Source: source}
	defer func() {
		if r := recover(); r != nil {
			rec = domain.Record{ID: PageID(raw), Source: source}
		}
	}()

	p := parsePage(raw)
	rec.ID = p.root.Get("id").String()
	rec.Title = p.readText(s.Tasks.Title)
	rec.Assignee = p.readText(s.Tasks.Assignee)
	rec.DueDate = p.readDate(s.Tasks.DueDate, loc)
	rec.Completed = p.readBool(s.Tasks.Completed)
	rec.Urgent = p.readBool(s.Tasks.Urgent)
	rec.SubmitTo = p.readText(s.Tasks.SubmitTo)
	rec.Description = p.readText(s.Tasks.Description)
	rec.CreatedAt = timestamp(p.root.Get("created_time"))
	rec.ModifiedAt = timestamp(p.root.Get("last_edited_time"))
	return rec
}

// ReadEventPage normalises a row of the events collection.
func (s *Schema) ReadEventPage(raw []byte, loc *time.Location) domain.EventPage {
	p := parsePage(raw)
	return domain.EventPage{
		ID:      p.root.Get("id").String(),
		Title:   p.readText(s.Events.Name),
		Date:    p.readDate(s.Events.Date, loc),
		Done:    p.readBool(s.Events.Done),
		GroupID: p.readRelation(s.Events.Group),
	}
}

// ReadJournal normalises a journal page. ok is false when the page has no date.
func (s *Schema) ReadJournal(raw []byte, loc *time.Location) (domain.JournalEntry, bool) {
	p := parsePage(raw)
	d := p.readDate(s.Journal.Date, loc)
	if d == nil {
		return domain.JournalEntry{}, false
	}
	return domain.JournalEntry{
		ID:       p.root.Get("id").String(),
		Date:     *d,
		Exercise: p.readBool(s.Journal.Exercise),
		Emotion:  p.readText(s.Journal.Emotion),
		Growth:   p.readText(s.Journal.Growth),
	}, true
}

// ReadNote normalises a page of the records collection.
func (s *Schema) ReadNote(raw []byte, loc *time.Location) domain.Note {
	p := parsePage(raw)
	return domain.Note{
		ID:        p.root.Get("id").String(),
		Subject:   p.readText(s.Notes.Subject),
		Written:   p.readDate(s.Notes.Written, loc),
		Core:      p.readText(s.Notes.Core),
		CreatedAt: timestamp(p.root.Get("created_time")),
	}
}

// lookup returns the first candidate for which read reports a usable value.
func lookup[T any](p page, f Field, read func(gjson.Result) (T, bool)) T {
	var zero T
	for _, key := range f.Keys {
		v, ok := p.props[key]
		if !ok {
			continue
		}
		if out, ok := read(v); ok {
			return out
		}
	}
	return zero
}

func (p page) readText(f Field) string {
	return lookup(p, f, func(v gjson.Result) (string, bool) {
		s := textValue(v)
		return s, s != ""
	})
}

func (p page) readBool(f Field) bool {
	return lookup(p, f, func(v gjson.Result) (bool, bool) {
		cb := v.Get("checkbox")
		switch cb.Type {
		case gjson.True:
			return true, true
		case gjson.False:
			return false, true
		}
		return false, false
	})
}

func (p page) readDate(f Field, loc *time.Location) *civil.Date {
	return lookup(p, f, func(v gjson.Result) (*civil.Date, bool) {
		d, ok := parseDate(v.Get("date.start").String(), loc)
		if !ok {
			return nil, false
		}
		return &d, true
	})
}

func (p page) readRelation(f Field) string {
	return lookup(p, f, func(v gjson.Result) (string, bool) {
		id := v.Get("relation.0.id").String()
		return id, id != ""
	})
}

// textValue extracts display text from any of the text-bearing containers.
func textValue(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.String()
	}
	if !v.IsObject() {
		return ""
	}
	for _, key := range []string{"title", "rich_text"} {
		if seg := v.Get(key); seg.IsArray() {
			first := seg.Get("0")
			if s := first.Get("plain_text").String(); s != "" {
				return s
			}
			return first.Get("text.content").String()
		}
	}
	for _, path := range []string{"select.name", "status.name", "email", "url", "phone_number", "formula.string"} {
		if s := v.Get(path).String(); s != "" {
			return s
		}
	}
	if ms := v.Get("multi_select.#.name"); ms.IsArray() {
		return joinNames(ms)
	}
	if ppl := v.Get("people.#.name"); ppl.IsArray() {
		return joinNames(ppl)
	}
	return ""
}

func joinNames(list gjson.Result) string {
	var names []string
	for _, n := range list.Array() {
		if s := n.String(); s != "" {
			names = append(names, s)
		}
	}
	return strings.Join(names, ", ")
}

// parseDate accepts a calendar date or a full timestamp, which is converted
// to loc before its day is taken.
func parseDate(s string, loc *time.Location) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, false
	}
	if len(s) == len("2006-01-02") {
		d, err := civil.ParseDate(s)
		if err != nil {
			return civil.Date{}, false
		}
		return d, true
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return civil.Date{}, false
	}
	return domain.Today(t, loc), true
}

func timestamp(v gjson.Result) time.Time {
	if v.Type != gjson.String {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, v.String())
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
