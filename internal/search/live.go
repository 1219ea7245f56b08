package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shaheenweb/portal/model"
)

// LiveStatus is the lifecycle of an interactive search.
type LiveStatus string

const (
	LiveIdle    LiveStatus = "idle"
	LiveLoading LiveStatus = "loading"
	LiveSuccess LiveStatus = "success"
	LiveError   LiveStatus = "error"
)

// Snapshot is one observable state of a Live search. ActiveQuery is the
// query the current results actually answer; it lags Query while input is
// still being debounced.
type Snapshot struct {
	Query       string
	ActiveQuery string
	Status      LiveStatus
	Results     []model.SearchResultBlock
	Err         string
}

// HasResults reports whether any result group survived filtering.
func (s Snapshot) HasResults() bool { return len(s.Results) > 0 }

// SearchFunc performs one search for a query. Live supplies the context and
// cancels it when a newer query supersedes the call.
type SearchFunc func(ctx context.Context, query string) (model.SearchResponse, error)

// DefaultDebounce is how long input must stay quiet before a search fires.
const DefaultDebounce = 400 * time.Millisecond

// Live drives interactive search over a SearchFunc. Keystrokes arrive via
// SetQuery and are debounced; at most one request is in flight, and starting
// a new one cancels the previous so a late stale response never overwrites
// fresher state. Result groups with zero hits are filtered out.
type Live struct {
	search   SearchFunc
	debounce time.Duration
	updates  chan Snapshot

	mu     sync.Mutex
	state  Snapshot
	timer  *time.Timer
	cancel context.CancelFunc
	gen    int
	closed bool
}

// LiveOption configures a Live search.
type LiveOption func(*Live)

// WithDebounce overrides the debounce interval.
func WithDebounce(d time.Duration) LiveOption {
	return func(l *Live) {
		if d > 0 {
			l.debounce = d
		}
	}
}

// WithInitialQuery runs one immediate, non-debounced search on construction.
func WithInitialQuery(q string) LiveOption {
	return func(l *Live) {
		l.state.Query = q
		l.state.ActiveQuery = strings.TrimSpace(q)
	}
}

// NewLive creates a live search around fn.
func NewLive(fn SearchFunc, opts ...LiveOption) *Live {
	l := &Live{
		search:   fn,
		debounce: DefaultDebounce,
		updates:  make(chan Snapshot, 16),
		state:    Snapshot{Status: LiveIdle},
	}
	for _, opt := range opts {
		opt(l)
	}
	if strings.TrimSpace(l.state.Query) != "" {
		l.mu.Lock()
		l.startSearch(l.state.Query)
		l.mu.Unlock()
	}
	return l
}

// Updates delivers state snapshots as they change. Slow consumers lose
// intermediate snapshots, never the ability to read the latest via State.
func (l *Live) Updates() <-chan Snapshot { return l.updates }

// State returns the current snapshot.
func (l *Live) State() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// SetQuery records a keystroke. A whitespace-only query resets to idle
// synchronously, cancelling any in-flight request and clearing results
// without a network call; anything else (re)arms the debounce timer.
func (l *Live) SetQuery(q string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}

	l.state.Query = q
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}

	if strings.TrimSpace(q) == "" {
		l.abortInFlight()
		l.state = Snapshot{Query: q, Status: LiveIdle}
		l.publish()
		return
	}

	l.timer = time.AfterFunc(l.debounce, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed || strings.TrimSpace(l.state.Query) != strings.TrimSpace(q) {
			return
		}
		l.startSearch(q)
	})
}

// RunSearch fires a search immediately, bypassing the debounce.
func (l *Live) RunSearch(q string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.state.Query = q
	if strings.TrimSpace(q) == "" {
		l.abortInFlight()
		l.state = Snapshot{Query: q, Status: LiveIdle}
		l.publish()
		return
	}
	l.startSearch(q)
}

// Close cancels any in-flight request and stops the debounce timer.
func (l *Live) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.abortInFlight()
	close(l.updates)
}

// abortInFlight cancels the pending request, if any, and bumps the
// generation so its result is discarded. Callers hold l.mu.
func (l *Live) abortInFlight() {
	l.gen++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
}

// startSearch launches one request for the trimmed query, superseding any
// in-flight one. Callers hold l.mu.
func (l *Live) startSearch(q string) {
	trimmed := strings.TrimSpace(q)

	l.abortInFlight()
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	gen := l.gen

	l.state.Status = LiveLoading
	l.state.Err = ""
	l.publish()

	go func() {
		resp, err := l.search(ctx, trimmed)

		l.mu.Lock()
		defer l.mu.Unlock()
		if l.closed || gen != l.gen {
			// Superseded: a cancelled request's outcome is swallowed.
			return
		}
		l.cancel = nil

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.state.Status = LiveError
			l.state.Err = err.Error()
			l.publish()
			return
		}

		filtered := make([]model.SearchResultBlock, 0, len(resp.Results))
		for _, block := range resp.Results {
			if len(block.Hits) > 0 {
				filtered = append(filtered, block)
			}
		}

		l.state.Status = LiveSuccess
		l.state.Results = filtered
		if resp.Query != "" {
			l.state.ActiveQuery = resp.Query
		} else {
			l.state.ActiveQuery = trimmed
		}
		l.publish()
	}()
}

// publish pushes the current state to the updates channel without blocking.
// Callers hold l.mu.
func (l *Live) publish() {
	select {
	case l.updates <- l.state:
	default:
	}
}
