package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"

	"taskflow/domain"
	"taskflow/schema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubSource struct {
	query func(ctx context.Context, coll domain.Collection) ([]json.RawMessage, error)
}

func (s stubSource) QueryCollection(ctx context.Context, coll domain.Collection) ([]json.RawMessage, error) {
	return s.query(ctx, coll)
}

func page(id, created string) json.RawMessage {
	if created == "" {
		return json.RawMessage(fmt.Sprintf(`{"id":%q,"properties":{}}`, id))
	}
	return json.RawMessage(fmt.Sprintf(`{"id":%q,"created_time":%q,"properties":{}}`, id, created))
}

func pagesBySource(m map[domain.Collection][]json.RawMessage) stubSource {
	return stubSource{query: func(_ context.Context, coll domain.Collection) ([]json.RawMessage, error) {
		return m[coll], nil
	}}
}

func ids(ts domain.TaskSet) []string {
	var out []string
	ts.Each(func(_ int, r domain.Record) { out = append(out, r.ID) })
	return out
}

func newAggregator(src Source) (*Aggregator, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return New(src, schema.Default(), Options{Now: func() time.Time { return time.Unix(0, 0) }}, logger), hook
}

func TestRefreshSortsByCreatedAtDescending(t *testing.T) {
	a, _ := newAggregator(pagesBySource(map[domain.Collection][]json.RawMessage{
		domain.Main:  {page("id1", "2024-01-02T00:00:00Z"), page("id2", "2024-01-01T00:00:00Z")},
		domain.Other: {page("id3", "2024-01-03T00:00:00Z")},
	}))

	ts, err := a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"id3", "id1", "id2"}, ids(ts))
	assert.True(t, ts.Complete())
}

func TestRefreshTiesKeepFetchOrderAndMissingTimesSortLast(t *testing.T) {
	a, _ := newAggregator(pagesBySource(map[domain.Collection][]json.RawMessage{
		domain.Main:  {page("m-none", ""), page("m1", "2024-01-01T00:00:00Z")},
		domain.Other: {page("o1", "2024-01-01T00:00:00Z"), page("o-none", "")},
		domain.Todo:  {page("t1", "2024-01-01T00:00:00Z")},
	}))

	ts, err := a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "o1", "t1", "m-none", "o-none"}, ids(ts))
}

func TestRefreshTagsSourcesAndSkipsArchived(t *testing.T) {
	a, _ := newAggregator(pagesBySource(map[domain.Collection][]json.RawMessage{
		domain.Main: {page("m1", ""), json.RawMessage(`{"id":"gone","archived":true}`), json.RawMessage(`{"properties":{}}`)},
		domain.Todo: {page("t1", "")},
	}))

	ts, err := a.Refresh(context.Background())
	require.NoError(t, err)
	recs := ts.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, domain.Main, recs[0].Source)
	assert.Equal(t, domain.Todo, recs[1].Source)
}

func TestRefreshDegradesFailedSource(t *testing.T) {
	boom := errors.New("connection reset")
	a, hook := newAggregator(stubSource{query: func(_ context.Context, coll domain.Collection) ([]json.RawMessage, error) {
		if coll == domain.Other {
			return nil, boom
		}
		return []json.RawMessage{page(string(coll)+"-1", "")}, nil
	}})

	ts, err := a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"main-1", "todo-1"}, ids(ts))
	require.Len(t, ts.Warnings(), 1)
	assert.Equal(t, domain.Other, ts.Warnings()[0].Source)
	assert.ErrorIs(t, ts.Warnings()[0], boom)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "task source unavailable", entry.Message)
	assert.Equal(t, domain.Other, entry.Data["source"])
}

func TestRefreshTimesOutSlowSource(t *testing.T) {
	logger, _ := test.NewNullLogger()
	a := New(stubSource{query: func(ctx context.Context, coll domain.Collection) ([]json.RawMessage, error) {
		if coll == domain.Todo {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return []json.RawMessage{page(string(coll), "")}, nil
	}}, schema.Default(), Options{FetchTimeout: 20 * time.Millisecond}, logger)

	ts, err := a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "other"}, ids(ts))
	require.Len(t, ts.Warnings(), 1)
	assert.ErrorIs(t, ts.Warnings()[0], context.DeadlineExceeded)
}

func TestRefreshReportsTotalFailure(t *testing.T) {
	a, _ := newAggregator(stubSource{query: func(_ context.Context, coll domain.Collection) ([]json.RawMessage, error) {
		return nil, fmt.Errorf("%s down", coll)
	}})

	ts, err := a.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAllSourcesFailed)
	var total *TotalFailureError
	require.ErrorAs(t, err, &total)
	require.Len(t, total.Causes, 3)
	assert.Equal(t, domain.Main, total.Causes[0].Source)
	assert.Contains(t, err.Error(), "todo down")
	assert.Equal(t, 0, ts.Len())
}

func TestRefreshHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	a, _ := newAggregator(stubSource{query: func(ctx context.Context, _ domain.Collection) ([]json.RawMessage, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	_, err := a.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = a.Refresh(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRefreshIsRepeatable(t *testing.T) {
	a, _ := newAggregator(pagesBySource(map[domain.Collection][]json.RawMessage{
		domain.Main: {page("a", "2024-01-01T00:00:00Z"), page("b", "")},
	}))
	first, err := a.Refresh(context.Background())
	require.NoError(t, err)
	second, err := a.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Records(), second.Records())
}

func TestRefreshRecordsFetchSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	a, _ := newAggregator(stubSource{query: func(_ context.Context, coll domain.Collection) ([]json.RawMessage, error) {
		if coll == domain.Todo {
			return nil, errors.New("nope")
		}
		return []json.RawMessage{page("x", "")}, nil
	}})
	_, err := a.Refresh(context.Background())
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	failed := 0
	for _, s := range spans {
		assert.Equal(t, "aggregate.fetch", s.Name())
		var source string
		for _, kv := range s.Attributes() {
			if kv.Key == attribute.Key("taskflow.source") {
				source = kv.Value.AsString()
			}
		}
		if source == string(domain.Todo) {
			assert.Equal(t, codes.Error, s.Status().Code)
			failed++
		}
	}
	assert.Equal(t, 1, failed)
}

func TestMergeOnEmptyInput(t *testing.T) {
	assert.Empty(t, Merge(nil))
	assert.Empty(t, Merge([][]domain.Record{nil, {}, nil}))
}
