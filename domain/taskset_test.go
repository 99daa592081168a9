package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestTaskSetAccessorsReturnCopies(t *testing.T) {
	src := []Record{{ID: "a", Source: Main}, {ID: "b", Source: Todo}}
	ts := NewTaskSet(src, time.Unix(100, 0), nil)
	src[0].ID = "mutated"

	got := ts.Records()
	if got[0].ID != "a" {
		t.Fatalf("task set shares caller slice: %+v", got)
	}
	got[1].Title = "changed"
	if ts.Records()[1].Title != "" {
		t.Fatal("task set exposes internal slice")
	}
}

func TestTaskSetJSONKeepsWarnings(t *testing.T) {
	ts := NewTaskSet(nil, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		[]SourceWarning{{Source: Other, Err: errors.New("timeout")}})

	payload, err := sonic.Marshal(ts)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back TaskSet
	if err := sonic.Unmarshal(payload, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Complete() {
		t.Fatal("expected warnings to survive encoding")
	}
	if msg := back.Warnings()[0].Error(); msg != "other: timeout" {
		t.Fatalf("unexpected warning: %s", msg)
	}
	if back.Len() != 0 {
		t.Fatalf("expected empty set, got %d", back.Len())
	}
}
