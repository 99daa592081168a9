package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/tidwall/sjson"

	"taskflow/domain"
)

// EncodeTask builds the properties object for a task write in collection c.
// Only the fields set on in are written.
func (s *Schema) EncodeTask(c domain.Collection, in domain.TaskInput) ([]byte, error) {
	props := []byte(`{}`)
	var err error
	set := func(attr string, v any) {
		if err != nil {
			return
		}
		props, err = setProperty(props, s.TaskProperty(c, attr), v)
	}
	if in.Title != nil {
		set(AttrTitle, strings.TrimSpace(*in.Title))
	}
	if in.Assignee != nil {
		set(AttrAssignee, strings.TrimSpace(*in.Assignee))
	}
	switch {
	case in.DueDate != nil:
		set(AttrDueDate, *in.DueDate)
	case in.ClearDue:
		set(AttrDueDate, nil)
	}
	if in.Completed != nil {
		set(AttrCompleted, *in.Completed)
	}
	if in.Urgent != nil {
		set(AttrUrgent, *in.Urgent)
	}
	if in.SubmitTo != nil {
		set(AttrSubmitTo, *in.SubmitTo)
	}
	if in.Description != nil {
		set(AttrDescription, *in.Description)
	}
	if err != nil {
		return nil, err
	}
	return props, nil
}

// EncodeEventGroup builds a new event group page.
func (s *Schema) EncodeEventGroup(name string, date civil.Date) ([]byte, error) {
	props := []byte(`{}`)
	var err error
	for _, w := range []struct {
		p Property
		v any
	}{
		{s.Events.Name.Write, strings.TrimSpace(name)},
		{s.Events.Date.Write, date},
		{s.Events.Done.Write, false},
	} {
		if props, err = setProperty(props, w.p, w.v); err != nil {
			return nil, err
		}
	}
	return props, nil
}

// EncodeEventItem builds an open checklist item related to groupID.
func (s *Schema) EncodeEventItem(groupID, content string) ([]byte, error) {
	props := []byte(`{}`)
	var err error
	for _, w := range []struct {
		p Property
		v any
	}{
		{s.Events.Name.Write, strings.TrimSpace(content)},
		{s.Events.Done.Write, false},
		{s.Events.Group.Write, groupID},
	} {
		if props, err = setProperty(props, w.p, w.v); err != nil {
			return nil, err
		}
	}
	return props, nil
}

// EncodeEventDone sets the completion of a checklist item.
func (s *Schema) EncodeEventDone(done bool) ([]byte, error) {
	return setProperty([]byte(`{}`), s.Events.Done.Write, done)
}

// EncodeJournal builds the properties of a journal page.
func (s *Schema) EncodeJournal(e domain.JournalEntry) ([]byte, error) {
	props := []byte(`{}`)
	var err error
	for _, w := range []struct {
		p Property
		v any
	}{
		{s.Journal.Date.Write, e.Date},
		{s.Journal.Exercise.Write, e.Exercise},
		{s.Journal.Emotion.Write, e.Emotion},
		{s.Journal.Growth.Write, e.Growth},
	} {
		if props, err = setProperty(props, w.p, w.v); err != nil {
			return nil, err
		}
	}
	return props, nil
}

// EncodeNote builds the properties of a records page.
func (s *Schema) EncodeNote(n domain.Note) ([]byte, error) {
	props, err := setProperty([]byte(`{}`), s.Notes.Subject.Write, n.Subject)
	if err != nil {
		return nil, err
	}
	if n.Written != nil {
		if props, err = setProperty(props, s.Notes.Written.Write, *n.Written); err != nil {
			return nil, err
		}
	}
	return setProperty(props, s.Notes.Core.Write, n.Core)
}

// EncodeNoteInput builds the properties of a partial note update.
func (s *Schema) EncodeNoteInput(in domain.NoteInput) ([]byte, error) {
	props := []byte(`{}`)
	var err error
	if in.Subject != nil {
		if props, err = setProperty(props, s.Notes.Subject.Write, strings.TrimSpace(*in.Subject)); err != nil {
			return nil, err
		}
	}
	if in.Written != nil {
		if props, err = setProperty(props, s.Notes.Written.Write, *in.Written); err != nil {
			return nil, err
		}
	}
	if in.Core != nil {
		if props, err = setProperty(props, s.Notes.Core.Write, *in.Core); err != nil {
			return nil, err
		}
	}
	return props, nil
}

func setProperty(props []byte, p Property, v any) ([]byte, error) {
	var raw []byte
	var err error
	switch p.Type {
	case "title", "rich_text":
		text, _ := v.(string)
		raw = []byte(`[]`)
		if text != "" {
			raw, err = sjson.SetBytes([]byte(`[{"text":{"content":""}}]`), "0.text.content", text)
		}
	case "date":
		switch d := v.(type) {
		case nil:
			raw = []byte(`null`)
		case civil.Date:
			raw, err = sjson.SetBytes([]byte(`{}`), "start", d.String())
		default:
			return nil, fmt.Errorf("property %s: date value has type %T", p.Key, v)
		}
	case "checkbox":
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("property %s: checkbox value has type %T", p.Key, v)
		}
		raw = []byte("false")
		if b {
			raw = []byte("true")
		}
	case "select":
		raw, err = sjson.SetBytes([]byte(`{}`), "name", fmt.Sprint(v))
	case "relation":
		id, _ := v.(string)
		raw = []byte(`[]`)
		if id != "" {
			raw, err = sjson.SetBytes([]byte(`[{"id":""}]`), "0.id", id)
		}
	case "email", "url", "phone_number":
		raw, err = json.Marshal(fmt.Sprint(v))
	default:
		return nil, fmt.Errorf("property %s: unsupported type %q", p.Key, p.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", p.Key, err)
	}
	wrapped, err := sjson.SetRawBytes([]byte(`{}`), p.Type, raw)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", p.Key, err)
	}
	return sjson.SetRawBytes(props, escapeKey(p.Key), wrapped)
}

var keyEscaper = strings.NewReplacer(
	`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`, `:`, `\:`,
)

// escapeKey makes a property name safe to use as a single path component.
func escapeKey(key string) string {
	return keyEscaper.Replace(key)
}
