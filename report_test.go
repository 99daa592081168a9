package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"taskflow/domain"
	"taskflow/stats"
)

func reportSet() domain.TaskSet {
	due := civil.Date{Year: 2024, Month: 5, Day: 10}
	return domain.NewTaskSet([]domain.Record{
		{ID: "r1", Title: "Report", Assignee: "Kim", DueDate: &due, Source: domain.Main},
		{ID: "r2", Title: "Call", Completed: true, Source: domain.Todo},
	}, time.Date(2024, 5, 15, 0, 0, 0, 0, time.UTC), []domain.SourceWarning{
		{Source: domain.Other, Err: errors.New("timeout")},
	})
}

func TestWriteStats(t *testing.T) {
	ts := reportSet()
	var buf bytes.Buffer
	require.NoError(t, writeStats(&buf, ts, stats.ForDay(ts, civil.Date{Year: 2024, Month: 5, Day: 15})))

	out := buf.Bytes()
	require.True(t, gjson.ValidBytes(out), buf.String())
	assert.Equal(t, int64(2), gjson.GetBytes(out, "global.all").Int())
	assert.Equal(t, int64(1), gjson.GetBytes(out, "global.overdue").Int())
	assert.Equal(t, "2024-05-15", gjson.GetBytes(out, "global.today").String())
	assert.Equal(t, "Kim", gjson.GetBytes(out, "assignees.0.name").String())
	assert.Len(t, gjson.GetBytes(out, "warnings").Array(), 1)
}

func TestWriteTaskTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeTaskTable(&buf, reportSet().Records()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "SOURCE"))
	assert.Contains(t, lines[1], "2024-05-10")
	assert.Contains(t, lines[1], "Report")
	assert.Contains(t, lines[2], "TODO")
	assert.Contains(t, lines[2], "x")
}
