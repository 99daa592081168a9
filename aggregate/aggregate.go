// Package aggregate fetches the task collections concurrently and folds them
// into one ordered TaskSet.
package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"taskflow/domain"
	"taskflow/schema"
)

const (
	tracerName          = "taskflow/aggregate"
	DefaultFetchTimeout = 10 * time.Second
)

// Source lists the raw pages of a collection.
type Source interface {
	QueryCollection(ctx context.Context, coll domain.Collection) ([]json.RawMessage, error)
}

// Reader turns a raw page into a record.
type Reader interface {
	ReadTask(raw []byte, source domain.Collection, loc *time.Location) domain.Record
}

// Options tune an Aggregator. Zero values pick defaults.
type Options struct {
	Location     *time.Location
	FetchTimeout time.Duration
	Now          func() time.Time
}

// Aggregator merges Main, Other and Todo into a TaskSet.
type Aggregator struct {
	source  Source
	reader  Reader
	loc     *time.Location
	timeout time.Duration
	now     func() time.Time
	log     *log.Logger
}

func New(source Source, reader Reader, opts Options, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.StandardLogger()
	}
	a := &Aggregator{
		source:  source,
		reader:  reader,
		loc:     opts.Location,
		timeout: opts.FetchTimeout,
		now:     opts.Now,
		log:     logger,
	}
	if a.loc == nil {
		a.loc = time.UTC
	}
	if a.timeout <= 0 {
		a.timeout = DefaultFetchTimeout
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Location is the zone used to read dates and to decide "today".
func (a *Aggregator) Location() *time.Location { return a.loc }

// Refresh fetches every task source and returns a new TaskSet. A failing
// source becomes a warning on the set; only the failure of all sources is an
// error. A cancelled ctx returns ctx.Err().
func (a *Aggregator) Refresh(ctx context.Context) (domain.TaskSet, error) {
	if err := ctx.Err(); err != nil {
		return domain.TaskSet{}, err
	}

	lists := make([][]domain.Record, len(domain.TaskSources))
	errs := make([]error, len(domain.TaskSources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range domain.TaskSources {
		g.Go(func() error {
			lists[i], errs[i] = a.fetch(gctx, src)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return domain.TaskSet{}, err
	}

	var warnings []domain.SourceWarning
	for i, err := range errs {
		if err == nil {
			continue
		}
		w := domain.SourceWarning{Source: domain.TaskSources[i], Err: err}
		warnings = append(warnings, w)
		a.log.WithFields(log.Fields{"source": w.Source, "error": err.Error()}).Warn("task source unavailable")
	}
	if len(warnings) == len(domain.TaskSources) {
		return domain.NewTaskSet(nil, a.now(), warnings), &TotalFailureError{Causes: warnings}
	}
	return domain.NewTaskSet(Merge(lists), a.now(), warnings), nil
}

func (a *Aggregator) fetch(ctx context.Context, src domain.Collection) ([]domain.Record, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "aggregate.fetch")
	defer span.End()
	span.SetAttributes(attribute.String("taskflow.source", string(src)))

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	pages, err := a.source.QueryCollection(ctx, src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	records := make([]domain.Record, 0, len(pages))
	for _, raw := range pages {
		if schema.IsArchived(raw) {
			continue
		}
		rec := a.reader.ReadTask(raw, src, a.loc)
		if strings.TrimSpace(rec.ID) == "" {
			continue
		}
		records = append(records, rec)
	}
	span.SetAttributes(attribute.Int("taskflow.records", len(records)))
	a.log.WithFields(log.Fields{
		"source":   src,
		"records":  len(records),
		"fetch_ms": float64(time.Since(start)) / float64(time.Millisecond),
	}).Debug("task source fetched")
	return records, nil
}

// Merge concatenates per-source lists in order and stably sorts them by
// creation time, newest first. Records without a creation time sort last.
func Merge(lists [][]domain.Record) []domain.Record {
	n := 0
	for _, l := range lists {
		n += len(l)
	}
	out := make([]domain.Record, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].CreatedAt, out[j].CreatedAt
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})
	return out
}

// ErrAllSourcesFailed matches every TotalFailureError.
var ErrAllSourcesFailed = errors.New("all task sources failed")

// TotalFailureError reports that no task source could be read.
type TotalFailureError struct {
	Causes []domain.SourceWarning
}

func (e *TotalFailureError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		parts = append(parts, c.Error())
	}
	return ErrAllSourcesFailed.Error() + ": " + strings.Join(parts, "; ")
}

func (e *TotalFailureError) Is(target error) bool { return target == ErrAllSourcesFailed }

func (e *TotalFailureError) Unwrap() []error {
	errs := make([]error, 0, len(e.Causes))
	for _, c := range e.Causes {
		errs = append(errs, c)
	}
	return errs
}
