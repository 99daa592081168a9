package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskflow/domain"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
tasks:
  assignee:
    keys: [Owner, 담당자]
    write: {key: Owner, type: rich_text}
taskWrites:
  other:
    title: {key: Name, type: title}
`), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Owner", "담당자"}, s.Tasks.Assignee.Keys)
	assert.Equal(t, []string{"과제명", "Name", "이름", "Title", "할일"}, s.Tasks.Title.Keys)
	assert.Equal(t, Property{Key: "Name", Type: "title"}, s.TaskProperty(domain.Other, AttrTitle))
	assert.Equal(t, Property{Key: "할일", Type: "title"}, s.TaskProperty(domain.Todo, AttrTitle))

	assert.Equal(t, []string{"담당자", "Assignee"}, Default().Tasks.Assignee.Keys, "default is not mutated")
}

func TestLoadRejectsInvalidSchemas(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"no keys":        "tasks:\n  title:\n    keys: []\n",
		"journal writes": "taskWrites:\n  journal:\n    title: {key: A, type: title}\n",
		"bad yaml":       "tasks: [",
	} {
		path := filepath.Join(dir, name+".yaml")
		require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
		_, err := Load(path)
		assert.Error(t, err, name)
	}
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Property{Key: "과제명", Type: "rich_text"}, s.TaskProperty(domain.Main, AttrTitle))
}
