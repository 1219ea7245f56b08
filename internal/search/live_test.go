package search

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaheenweb/portal/model"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func singleBlockResponse(query string) model.SearchResponse {
	return model.SearchResponse{
		Query: query,
		Results: []model.SearchResultBlock{
			{IndexUID: "news", Hits: []model.SearchHit{{"title": "hit"}}},
		},
	}
}

func TestLive_DebounceCollapsesKeystrokes(t *testing.T) {
	var calls atomic.Int32
	var lastQuery atomic.Value
	fn := func(_ context.Context, q string) (model.SearchResponse, error) {
		calls.Add(1)
		lastQuery.Store(q)
		return singleBlockResponse(q), nil
	}

	l := NewLive(fn, WithDebounce(30*time.Millisecond))
	defer l.Close()

	l.SetQuery("a")
	time.Sleep(5 * time.Millisecond)
	l.SetQuery("ab")

	waitFor(t, func() bool { return l.State().Status == LiveSuccess })

	if got := calls.Load(); got != 1 {
		t.Errorf("search calls = %d, want 1", got)
	}
	if q, _ := lastQuery.Load().(string); q != "ab" {
		t.Errorf("searched %q, want ab", q)
	}
	if l.State().ActiveQuery != "ab" {
		t.Errorf("ActiveQuery = %q", l.State().ActiveQuery)
	}
}

func TestLive_EmptyQueryResetsSynchronously(t *testing.T) {
	var calls atomic.Int32
	fn := func(_ context.Context, q string) (model.SearchResponse, error) {
		calls.Add(1)
		return singleBlockResponse(q), nil
	}

	l := NewLive(fn, WithDebounce(10*time.Millisecond))
	defer l.Close()

	l.RunSearch("books")
	waitFor(t, func() bool { return l.State().Status == LiveSuccess })

	l.SetQuery("   ")

	state := l.State()
	if state.Status != LiveIdle {
		t.Errorf("Status = %q, want idle immediately", state.Status)
	}
	if state.HasResults() {
		t.Error("results survived the reset")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want no search for whitespace query", calls.Load())
	}
}

func TestLive_SupersededRequestNeverOverwrites(t *testing.T) {
	release := make(chan struct{})
	fn := func(ctx context.Context, q string) (model.SearchResponse, error) {
		if q == "slow" {
			select {
			case <-release:
			case <-ctx.Done():
				return model.SearchResponse{}, ctx.Err()
			}
			return singleBlockResponse("slow"), nil
		}
		return singleBlockResponse(q), nil
	}

	l := NewLive(fn, WithDebounce(5*time.Millisecond))
	defer l.Close()

	l.RunSearch("slow")
	l.RunSearch("fast")
	waitFor(t, func() bool { return l.State().ActiveQuery == "fast" })
	close(release)

	// Give the slow goroutine a chance to finish; its result must be dropped.
	time.Sleep(20 * time.Millisecond)
	if got := l.State().ActiveQuery; got != "fast" {
		t.Errorf("ActiveQuery = %q, stale response overwrote fresher state", got)
	}
}

func TestLive_ZeroHitGroupsFiltered(t *testing.T) {
	fn := func(_ context.Context, q string) (model.SearchResponse, error) {
		return model.SearchResponse{
			Query: q,
			Results: []model.SearchResultBlock{
				{IndexUID: "news", Hits: []model.SearchHit{{"title": "x"}}},
				{IndexUID: "events", Hits: []model.SearchHit{}},
			},
		}, nil
	}

	l := NewLive(fn)
	defer l.Close()

	l.RunSearch("x")
	waitFor(t, func() bool { return l.State().Status == LiveSuccess })

	results := l.State().Results
	if len(results) != 1 || results[0].IndexUID != "news" {
		t.Errorf("results = %+v, want empty groups filtered", results)
	}
}

func TestLive_ErrorSurfaces(t *testing.T) {
	fn := func(context.Context, string) (model.SearchResponse, error) {
		return model.SearchResponse{}, errors.New("boom")
	}

	l := NewLive(fn)
	defer l.Close()

	l.RunSearch("x")
	waitFor(t, func() bool { return l.State().Status == LiveError })

	if l.State().Err != "boom" {
		t.Errorf("Err = %q", l.State().Err)
	}
}

func TestLive_InitialQueryFiresImmediately(t *testing.T) {
	var calls atomic.Int32
	fn := func(_ context.Context, q string) (model.SearchResponse, error) {
		calls.Add(1)
		return singleBlockResponse(q), nil
	}

	l := NewLive(fn, WithDebounce(time.Hour), WithInitialQuery("seeded"))
	defer l.Close()

	waitFor(t, func() bool { return calls.Load() == 1 })
	waitFor(t, func() bool { return l.State().ActiveQuery == "seeded" })
}
