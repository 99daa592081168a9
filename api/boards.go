package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"

	"taskflow/domain"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 366
)

func (s *server) getEvents() echo.HandlerFunc {
	return func(c echo.Context) error {
		pages, err := s.readEvents(c.Request().Context())
		if err != nil {
			return s.storeFailure(c, err)
		}
		return c.JSON(http.StatusOK, domain.BuildEventGroups(pages))
	}
}

// readEvents returns every page of the events collection.
func (s *server) readEvents(ctx context.Context) ([]domain.EventPage, error) {
	raws, err := s.Store.QueryCollection(ctx, domain.Events)
	if err != nil {
		return nil, err
	}
	pages := make([]domain.EventPage, 0, len(raws))
	for _, raw := range raws {
		pages = append(pages, s.Schema.ReadEventPage(raw, s.loc))
	}
	return pages, nil
}

func (s *server) createEvent() echo.HandlerFunc {
	return func(c echo.Context) error {
		var req eventGroupRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		name := strings.TrimSpace(req.Name)
		switch {
		case name == "":
			return badRequest(c, "name is required")
		case strings.Contains(name, domain.LegacyItemSeparator):
			return badRequest(c, "name must not contain "+domain.LegacyItemSeparator)
		case req.Date == nil:
			return badRequest(c, "date is required")
		}
		props, err := s.Schema.EncodeEventGroup(name, *req.Date)
		if err != nil {
			return badRequest(c, err.Error())
		}
		raw, err := s.Store.CreateRecord(c.Request().Context(), domain.Events, props)
		if err != nil {
			return s.storeFailure(c, err)
		}
		p := s.Schema.ReadEventPage(raw, s.loc)
		return c.JSON(http.StatusCreated, domain.EventGroup{ID: p.ID, Name: name, Date: req.Date, Items: []domain.EventItem{}})
	}
}

// deleteEvent archives a group together with every item attached to it,
// whether by reference or by legacy title.
func (s *server) deleteEvent() echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		pages, err := s.readEvents(ctx)
		if err != nil {
			return s.storeFailure(c, err)
		}
		groupID := c.Param("groupId")
		var group *domain.EventGroup
		for _, g := range domain.BuildEventGroups(pages) {
			if g.ID == groupID {
				group = &g
				break
			}
		}
		if group == nil {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "no such event"})
		}
		ids := make([]string, 0, len(group.Items)+1)
		for _, item := range group.Items {
			ids = append(ids, item.ID)
		}
		if !group.Implicit() {
			ids = append(ids, group.ID)
		}
		for _, id := range ids {
			if err := s.Store.ArchiveRecord(ctx, id); err != nil {
				s.log.WithError(err).WithFields(log.Fields{"group": groupID, "page": id}).Warn("event delete stopped")
				return s.storeFailure(c, err)
			}
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// eventItem fetches the checklist item named by the :id param. ok is false
// when the response has already been written.
func (s *server) eventItem(c echo.Context) (domain.EventPage, bool, error) {
	raw, ok, err := s.pageIn(c, c.Param("id"), domain.Events)
	if !ok {
		return domain.EventPage{}, false, err
	}
	p := s.Schema.ReadEventPage(raw, s.loc)
	if !p.IsItem() {
		return domain.EventPage{}, false, badRequest(c, "page is not a checklist item")
	}
	return p, true, nil
}

func (s *server) toggleEventItem() echo.HandlerFunc {
	return func(c echo.Context) error {
		var req eventItemUpdateRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		if req.Done == nil {
			return badRequest(c, "done is required")
		}
		p, ok, err := s.eventItem(c)
		if !ok {
			return err
		}
		props, err := s.Schema.EncodeEventDone(*req.Done)
		if err != nil {
			return badRequest(c, err.Error())
		}
		if _, err := s.Store.UpdateRecord(c.Request().Context(), p.ID, props); err != nil {
			return s.storeFailure(c, err)
		}
		content := strings.TrimSpace(p.Title)
		if _, rest, legacy := domain.SplitLegacyTitle(p.Title); legacy {
			content = rest
		}
		return c.JSON(http.StatusOK, domain.EventItem{ID: p.ID, GroupID: p.GroupID, Content: content, Done: *req.Done})
	}
}

func (s *server) deleteEventItem() echo.HandlerFunc {
	return func(c echo.Context) error {
		p, ok, err := s.eventItem(c)
		if !ok {
			return err
		}
		if err := s.Store.ArchiveRecord(c.Request().Context(), p.ID); err != nil {
			return s.storeFailure(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func (s *server) addEventItem() echo.HandlerFunc {
	return func(c echo.Context) error {
		var req eventItemRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		content := strings.TrimSpace(req.Content)
		if content == "" {
			return badRequest(c, "content is required")
		}
		groupID := c.Param("groupId")
		props, err := s.Schema.EncodeEventItem(groupID, content)
		if err != nil {
			return badRequest(c, err.Error())
		}
		raw, err := s.Store.CreateRecord(c.Request().Context(), domain.Events, props)
		if err != nil {
			return s.storeFailure(c, err)
		}
		p := s.Schema.ReadEventPage(raw, s.loc)
		return c.JSON(http.StatusCreated, domain.EventItem{ID: p.ID, GroupID: groupID, Content: content, Done: p.Done})
	}
}

func (s *server) listJournal() echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := defaultJournalLimit
		if raw := c.QueryParam("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				return badRequest(c, "invalid limit")
			}
			limit = min(n, maxJournalLimit)
		}
		raws, err := s.Store.QueryCollection(c.Request().Context(), domain.Journal)
		if err != nil {
			return s.storeFailure(c, err)
		}
		entries := make([]domain.JournalEntry, 0, len(raws))
		for _, raw := range raws {
			if e, ok := s.Schema.ReadJournal(raw, s.loc); ok {
				entries = append(entries, e)
			}
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Date.After(entries[j].Date)
		})
		if len(entries) > limit {
			entries = entries[:limit]
		}
		return c.JSON(http.StatusOK, entries)
	}
}

// findJournal returns the journal entry of day, if one exists.
func (s *server) findJournal(ctx context.Context, day civil.Date) (domain.JournalEntry, bool, error) {
	filter, err := sjson.SetBytes([]byte(`{}`), "property", s.Schema.Journal.Date.Write.Key)
	if err != nil {
		return domain.JournalEntry{}, false, err
	}
	if filter, err = sjson.SetBytes(filter, "date.equals", day.String()); err != nil {
		return domain.JournalEntry{}, false, err
	}
	raws, err := s.Store.QueryCollectionWhere(ctx, domain.Journal, filter)
	if err != nil {
		return domain.JournalEntry{}, false, err
	}
	for _, raw := range raws {
		if e, ok := s.Schema.ReadJournal(raw, s.loc); ok && e.Date == day {
			return e, true, nil
		}
	}
	return domain.JournalEntry{}, false, nil
}

func (s *server) getJournal() echo.HandlerFunc {
	return func(c echo.Context) error {
		day, err := civil.ParseDate(c.Param("date"))
		if err != nil {
			return badRequest(c, "invalid date")
		}
		entry, ok, err := s.findJournal(c.Request().Context(), day)
		if err != nil {
			return s.storeFailure(c, err)
		}
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: "no journal entry"})
		}
		return c.JSON(http.StatusOK, entry)
	}
}

// putJournal creates the day's entry or replaces the fields of the existing one.
func (s *server) putJournal() echo.HandlerFunc {
	return func(c echo.Context) error {
		day, err := civil.ParseDate(c.Param("date"))
		if err != nil {
			return badRequest(c, "invalid date")
		}
		var req journalRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		entry := domain.JournalEntry{Date: day, Exercise: req.Exercise, Emotion: req.Emotion, Growth: req.Growth}
		props, err := s.Schema.EncodeJournal(entry)
		if err != nil {
			return badRequest(c, err.Error())
		}

		ctx := c.Request().Context()
		existing, ok, err := s.findJournal(ctx, day)
		if err != nil {
			return s.storeFailure(c, err)
		}
		status := http.StatusOK
		if ok {
			_, err = s.Store.UpdateRecord(ctx, existing.ID, props)
			entry.ID = existing.ID
		} else {
			var raw []byte
			raw, err = s.Store.CreateRecord(ctx, domain.Journal, props)
			if err == nil {
				created, _ := s.Schema.ReadJournal(raw, s.loc)
				entry.ID = created.ID
			}
			status = http.StatusCreated
		}
		if err != nil {
			return s.storeFailure(c, err)
		}
		return c.JSON(status, entry)
	}
}

func (s *server) listNotes() echo.HandlerFunc {
	return func(c echo.Context) error {
		raws, err := s.Store.QueryCollection(c.Request().Context(), domain.Records)
		if err != nil {
			return s.storeFailure(c, err)
		}
		notes := make([]domain.Note, 0, len(raws))
		for _, raw := range raws {
			notes = append(notes, s.Schema.ReadNote(raw, s.loc))
		}
		sortNotes(notes)
		return c.JSON(http.StatusOK, notes)
	}
}

// sortNotes orders notes newest first by written date, undated last, then by
// creation time.
func sortNotes(notes []domain.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		a, b := notes[i].Written, notes[j].Written
		switch {
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		case a != nil && *a != *b:
			return a.After(*b)
		}
		return notes[i].CreatedAt.After(notes[j].CreatedAt)
	})
}

func (s *server) createNote() echo.HandlerFunc {
	return func(c echo.Context) error {
		var req noteRequest
		if err := decodeBody(c, &req); err != nil {
			return badRequest(c, "invalid body")
		}
		note := domain.Note{Subject: strings.TrimSpace(req.Subject), Written: req.Written, Core: req.Core}
		if note.Subject == "" {
			return badRequest(c, "subject is required")
		}
		if note.Written == nil {
			today := domain.Today(s.now(), s.loc)
			note.Written = &today
		}
		props, err := s.Schema.EncodeNote(note)
		if err != nil {
			return badRequest(c, err.Error())
		}
		raw, err := s.Store.CreateRecord(c.Request().Context(), domain.Records, props)
		if err != nil {
			return s.storeFailure(c, err)
		}
		return c.JSON(http.StatusCreated, s.Schema.ReadNote(raw, s.loc))
	}
}

func (s *server) updateNote() echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.NoteInput
		if err := decodeBody(c, &in); err != nil {
			return badRequest(c, "invalid body")
		}
		if err := in.Validate(); err != nil {
			return badRequest(c, err.Error())
		}
		if _, ok, err := s.pageIn(c, c.Param("id"), domain.Records); !ok {
			return err
		}
		props, err := s.Schema.EncodeNoteInput(in)
		if err != nil {
			return badRequest(c, err.Error())
		}
		raw, err := s.Store.UpdateRecord(c.Request().Context(), c.Param("id"), props)
		if err != nil {
			return s.storeFailure(c, err)
		}
		return c.JSON(http.StatusOK, s.Schema.ReadNote(raw, s.loc))
	}
}

func (s *server) deleteNote() echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok, err := s.pageIn(c, c.Param("id"), domain.Records); !ok {
			return err
		}
		if err := s.Store.ArchiveRecord(c.Request().Context(), c.Param("id")); err != nil {
			return s.storeFailure(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}
