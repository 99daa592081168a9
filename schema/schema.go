// Package schema maps the drifting property names of the document store onto
// canonical records, and encodes canonical writes back into store properties.
package schema

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"taskflow/domain"
)

//go:embed default.yaml
var defaultSchema []byte

// Property is the name and container type of one stored property.
type Property struct {
	Key  string `yaml:"key"`
	Type string `yaml:"type"`
}

// Field lists the candidate keys of one logical attribute.
type Field struct {
	Keys  []string `yaml:"keys"`
	Write Property `yaml:"write"`
}

// Task attribute names, also used as keys of TaskWrites.
const (
	AttrTitle       = "title"
	AttrAssignee    = "assignee"
	AttrDueDate     = "dueDate"
	AttrCompleted   = "completed"
	AttrUrgent      = "urgent"
	AttrSubmitTo    = "submitTo"
	AttrDescription = "description"
)

type TaskFields struct {
	Title       Field `yaml:"title"`
	Assignee    Field `yaml:"assignee"`
	DueDate     Field `yaml:"dueDate"`
	Completed   Field `yaml:"completed"`
	Urgent      Field `yaml:"urgent"`
	SubmitTo    Field `yaml:"submitTo"`
	Description Field `yaml:"description"`
}

type JournalFields struct {
	Date     Field `yaml:"date"`
	Exercise Field `yaml:"exercise"`
	Emotion  Field `yaml:"emotion"`
	Growth   Field `yaml:"growth"`
}

type EventFields struct {
	Name  Field `yaml:"name"`
	Date  Field `yaml:"date"`
	Done  Field `yaml:"done"`
	Group Field `yaml:"group"`
}

type NoteFields struct {
	Subject Field `yaml:"subject"`
	Written Field `yaml:"written"`
	Core    Field `yaml:"core"`
}

// Schema is the full property mapping.
type Schema struct {
	Tasks      TaskFields                                `yaml:"tasks"`
	TaskWrites map[domain.Collection]map[string]Property `yaml:"taskWrites"`
	Journal    JournalFields                             `yaml:"journal"`
	Events     EventFields                               `yaml:"events"`
	Notes      NoteFields                                `yaml:"notes"`
}

// Default returns the built-in mapping.
func Default() *Schema {
	s, err := Parse(defaultSchema, nil)
	if err != nil {
		panic(fmt.Sprintf("schema: embedded default is invalid: %v", err))
	}
	return s
}

// Load reads an override file on top of the built-in mapping. An empty path
// returns the default.
func Load(path string) (*Schema, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data, Default())
}

// Parse decodes data over base. A nil base starts from an empty mapping.
func Parse(data []byte, base *Schema) (*Schema, error) {
	s := &Schema{}
	if base != nil {
		*s = *base
		s.TaskWrites = make(map[domain.Collection]map[string]Property, len(base.TaskWrites))
		for c, m := range base.TaskWrites {
			cp := make(map[string]Property, len(m))
			for k, v := range m {
				cp[k] = v
			}
			s.TaskWrites[c] = cp
		}
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

var errNoKeys = errors.New("no candidate keys")

func (s *Schema) validate() error {
	fields := map[string]Field{
		"tasks.title":       s.Tasks.Title,
		"tasks.assignee":    s.Tasks.Assignee,
		"tasks.dueDate":     s.Tasks.DueDate,
		"tasks.completed":   s.Tasks.Completed,
		"tasks.urgent":      s.Tasks.Urgent,
		"tasks.submitTo":    s.Tasks.SubmitTo,
		"tasks.description": s.Tasks.Description,
	}
	for name, f := range fields {
		if len(f.Keys) == 0 {
			return fmt.Errorf("schema %s: %w", name, errNoKeys)
		}
		if f.Write.Key == "" || f.Write.Type == "" {
			return fmt.Errorf("schema %s: write property is incomplete", name)
		}
	}
	for c := range s.TaskWrites {
		if !c.IsTaskSource() {
			return fmt.Errorf("schema taskWrites: %q is not a task collection", c)
		}
	}
	return nil
}

func (s *Schema) taskField(attr string) Field {
	switch attr {
	case AttrTitle:
		return s.Tasks.Title
	case AttrAssignee:
		return s.Tasks.Assignee
	case AttrDueDate:
		return s.Tasks.DueDate
	case AttrCompleted:
		return s.Tasks.Completed
	case AttrUrgent:
		return s.Tasks.Urgent
	case AttrSubmitTo:
		return s.Tasks.SubmitTo
	case AttrDescription:
		return s.Tasks.Description
	}
	return Field{}
}

// TaskProperty is the property written for attr in collection c.
func (s *Schema) TaskProperty(c domain.Collection, attr string) Property {
	if m, ok := s.TaskWrites[c]; ok {
		if p, ok := m[attr]; ok {
			return p
		}
	}
	return s.taskField(attr).Write
}
