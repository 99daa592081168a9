package domain

import (
	"fmt"
	"strings"
)

// Collection names one logical grouping in the document store.
type Collection string

const (
	Main    Collection = "main"
	Other   Collection = "other"
	Todo    Collection = "todo"
	Journal Collection = "journal"
	Records Collection = "records"
	Events  Collection = "events"
)

// TaskSources lists the collections merged into a TaskSet, in fetch order.
var TaskSources = []Collection{Main, Other, Todo}

// AllCollections lists every collection bound to a database.
var AllCollections = []Collection{Main, Other, Todo, Journal, Records, Events}

var collectionLabels = map[Collection]string{
	Main:    "주요",
	Other:   "기타",
	Todo:    "TODO",
	Journal: "업무일지",
	Records: "기록",
	Events:  "행사",
}

// Label is the display tag shown next to records of this collection.
func (c Collection) Label() string {
	if l, ok := collectionLabels[c]; ok {
		return l
	}
	return string(c)
}

// IsTaskSource reports whether records of c take part in task statistics.
func (c Collection) IsTaskSource() bool {
	for _, s := range TaskSources {
		if s == c {
			return true
		}
	}
	return false
}

// ParseCollection resolves a collection name, case-insensitively.
func ParseCollection(name string) (Collection, error) {
	c := Collection(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := collectionLabels[c]; !ok {
		return "", fmt.Errorf("unknown collection %q", name)
	}
	return c, nil
}
