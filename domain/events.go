package domain

import (
	"sort"
	"strings"

	"cloud.google.com/go/civil"
)

// LegacyItemSeparator joins a group name and item content in item titles
// written before items carried an explicit group reference.
const LegacyItemSeparator = "|||"

// implicitGroupPrefix marks groups that exist only through legacy item titles.
const implicitGroupPrefix = "legacy:"

// EventPage is one row of the events database as read from the store.
type EventPage struct {
	ID      string
	Title   string
	Date    *civil.Date
	Done    bool
	GroupID string
}

// EventItem is one checklist entry belonging to an event group.
type EventItem struct {
	ID      string `json:"id"`
	GroupID string `json:"groupId"`
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

// EventGroup is an event with its checklist and progress.
type EventGroup struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Date    *civil.Date `json:"date,omitempty"`
	Items   []EventItem `json:"items"`
	Done    int         `json:"done"`
	Total   int         `json:"total"`
	Percent int         `json:"percent"`
}

// Implicit reports whether g has no page of its own.
func (g EventGroup) Implicit() bool {
	return strings.HasPrefix(g.ID, implicitGroupPrefix)
}

// SplitLegacyTitle parses "<group>|||<content>". The group name is taken up to
// the first separator.
func SplitLegacyTitle(title string) (group, content string, ok bool) {
	group, content, ok = strings.Cut(title, LegacyItemSeparator)
	if !ok {
		return "", "", false
	}
	return strings.TrimSpace(group), strings.TrimSpace(content), true
}

// IsItem reports whether p is a checklist item rather than a group: it either
// references its group or carries a legacy "<group>|||<content>" title.
func (p EventPage) IsItem() bool {
	if p.GroupID != "" {
		return true
	}
	_, _, legacy := SplitLegacyTitle(p.Title)
	return legacy
}

// BuildEventGroups relates checklist pages to their groups. Pages with an
// explicit group reference win; legacy titles are matched by group name and
// create the group when it does not exist.
func BuildEventGroups(pages []EventPage) []EventGroup {
	var order []string
	groups := map[string]*EventGroup{}
	byName := map[string]string{}

	addGroup := func(id, name string, date *civil.Date) *EventGroup {
		g := &EventGroup{ID: id, Name: name, Date: date, Items: []EventItem{}}
		groups[id] = g
		order = append(order, id)
		if _, seen := byName[name]; !seen {
			byName[name] = id
		}
		return g
	}

	for _, p := range pages {
		if p.IsItem() {
			continue
		}
		addGroup(p.ID, strings.TrimSpace(p.Title), p.Date)
	}

	for _, p := range pages {
		item := EventItem{ID: p.ID, Content: strings.TrimSpace(p.Title), Done: p.Done}
		var g *EventGroup
		switch {
		case p.GroupID != "":
			g = groups[p.GroupID]
			if g == nil {
				g = addGroup(p.GroupID, "", nil)
			}
		default:
			name, content, legacy := SplitLegacyTitle(p.Title)
			if !legacy {
				continue
			}
			item.Content = content
			if id, ok := byName[name]; ok {
				g = groups[id]
			} else {
				g = addGroup(implicitGroupPrefix+name, name, p.Date)
			}
		}
		item.GroupID = g.ID
		g.Items = append(g.Items, item)
		g.Total++
		if item.Done {
			g.Done++
		}
	}

	out := make([]EventGroup, 0, len(order))
	for _, id := range order {
		g := groups[id]
		if g.Total > 0 {
			g.Percent = g.Done * 100 / g.Total
		}
		out = append(out, *g)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Date, out[j].Date
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		}
		return a.After(*b)
	})
	return out
}
