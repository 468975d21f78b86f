// Package feed keeps the client's view of the record list: the active
// filter, the pages loaded so far and whether more can be fetched.
package feed

import (
	"context"
	"sync"
	"time"

	"bp-tracker/internal/model"
	"bp-tracker/internal/query"
)

// DefaultWindow is how far back the default filter reaches.
const DefaultWindow = 30 * 24 * time.Hour

type Lister interface {
	ListRecords(ctx context.Context, q query.List) (model.RecordPage, error)
}

// State is a snapshot for rendering.
type State struct {
	Filter      query.Filter
	Records     []model.Record
	Meta        model.Meta
	Loading     bool
	LoadingMore bool
}

// HasMore reports whether LoadMore would fetch another page.
func (s State) HasMore() bool {
	return s.Meta.Page < s.Meta.TotalPages
}

type Feed struct {
	lister   Lister
	pageSize int
	now      func() time.Time

	mu          sync.Mutex
	users       []string
	filter      query.Filter
	records     []model.Record
	meta        model.Meta
	loading     bool
	loadingMore bool
	// gen changes whenever the list is replaced; responses carrying an
	// older gen are dropped.
	gen uint64
}

type Option func(*Feed)

func WithPageSize(n int) Option {
	return func(f *Feed) { f.pageSize = query.NewPage(1, n).Size }
}

func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

func New(lister Lister, opts ...Option) *Feed {
	f := &Feed{
		lister:   lister,
		pageSize: query.DefaultPageSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.filter = DefaultFilter(f.now(), nil)
	f.meta = query.NewPage(1, f.pageSize).Meta(0)
	return f
}

// DefaultFilter covers the last 30 calendar days in now's location, ending
// today, for the first known user.
func DefaultFilter(now time.Time, users []string) query.Filter {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	f := query.Filter{
		Start: query.DayStart(today.Add(-DefaultWindow)),
		End:   query.DayEnd(today),
	}
	if len(users) > 0 {
		f.Name = users[0]
	}
	return f
}

// SetUsers records the known user names. When no name is selected yet the
// first one is adopted and true is returned; the caller should Refresh.
func (f *Feed) SetUsers(users []string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append([]string(nil), users...)
	if f.filter.Name == "" && len(users) > 0 {
		f.filter.Name = users[0]
		return true
	}
	return false
}

func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		Filter:      f.filter,
		Records:     append([]model.Record(nil), f.records...),
		Meta:        f.meta,
		Loading:     f.loading,
		LoadingMore: f.loadingMore,
	}
}

// Apply replaces the whole filter and reloads from page 1. Bounds may be
// timestamps or plain dates.
func (f *Feed) Apply(ctx context.Context, filter query.Filter) error {
	start, err := query.NormalizeBound(query.ParamStart, filter.Start, false)
	if err != nil {
		return err
	}
	end, err := query.NormalizeBound(query.ParamEnd, filter.End, true)
	if err != nil {
		return err
	}

	f.mu.Lock()
	f.filter = query.Filter{Start: start, End: end, Name: filter.Name}
	f.mu.Unlock()
	return f.Refresh(ctx)
}

// Reset restores the default filter and reloads.
func (f *Feed) Reset(ctx context.Context) error {
	f.mu.Lock()
	f.filter = DefaultFilter(f.now(), f.users)
	f.mu.Unlock()
	return f.Refresh(ctx)
}

// Refresh reloads page 1 under the current filter. A newer Refresh or Apply
// supersedes this one; its result is then discarded.
func (f *Feed) Refresh(ctx context.Context) error {
	f.mu.Lock()
	f.gen++
	gen := f.gen
	q := query.List{Filter: f.filter, Page: query.NewPage(1, f.pageSize)}
	f.loading = true
	f.mu.Unlock()

	page, err := f.lister.ListRecords(ctx, q)

	f.mu.Lock()
	defer f.mu.Unlock()
	if gen != f.gen {
		return nil
	}
	f.loading = false
	if err != nil {
		return err
	}
	f.records = append([]model.Record(nil), page.Data...)
	f.meta = page.Meta
	return nil
}

// LoadMore appends the next page. It returns false without fetching when a
// load is already running or the last page is loaded.
func (f *Feed) LoadMore(ctx context.Context) (bool, error) {
	f.mu.Lock()
	if f.loading || f.loadingMore || f.meta.Page >= f.meta.TotalPages {
		f.mu.Unlock()
		return false, nil
	}
	f.loadingMore = true
	gen := f.gen
	q := query.List{Filter: f.filter, Page: query.NewPage(f.meta.Page+1, f.pageSize)}
	f.mu.Unlock()

	page, err := f.lister.ListRecords(ctx, q)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadingMore = false
	if gen != f.gen {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	f.records = append(f.records, page.Data...)
	f.meta = page.Meta
	return true, nil
}
