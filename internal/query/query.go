// Package query is the list contract shared by the server and the client:
// which filter and paging parameters a records listing accepts, how they are
// defaulted and clamped, and how the pagination envelope is computed.
package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bp-tracker/internal/common"
	"bp-tracker/internal/model"
)

const (
	DefaultPage     = 1
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// Wire parameter names.
const (
	ParamStart    = "start"
	ParamEnd      = "end"
	ParamName     = "name"
	ParamPage     = "page"
	ParamPageSize = "pageSize"
)

const dayLayout = "2006-01-02"

// Filter constrains a listing. Empty fields apply no constraint. Start and
// End are inclusive and already normalized to model.DateLayout.
type Filter struct {
	Start string
	End   string
	Name  string
}

// Page is a 1-based page number and a page size, both already clamped.
type Page struct {
	Number int
	Size   int
}

// NewPage applies the server defaults: a page below 1 becomes 1, a size
// below 1 becomes DefaultPageSize and a size above MaxPageSize is capped.
// The page number is never clamped against the number of pages.
func NewPage(number, size int) Page {
	if number < 1 {
		number = DefaultPage
	}
	if size < 1 {
		size = DefaultPageSize
	} else if size > MaxPageSize {
		size = MaxPageSize
	}
	return Page{Number: number, Size: size}
}

// Offset is the number of rows before the page. It saturates at
// math.MaxInt, so a page number far past the end still lists nothing.
func (p Page) Offset() int {
	if p.Number <= 1 || p.Size <= 0 {
		return 0
	}
	if p.Number-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Number - 1) * p.Size
}

// Meta builds the envelope for a listing that matched total rows.
func (p Page) Meta(total int64) model.Meta {
	return model.Meta{
		Total:      total,
		Page:       p.Number,
		PageSize:   p.Size,
		TotalPages: TotalPages(total, p.Size),
	}
}

// TotalPages is ceil(total / size).
func TotalPages(total int64, size int) int {
	if total <= 0 || size <= 0 {
		return 0
	}
	return int((total + int64(size) - 1) / int64(size))
}

// List is one list request: a filter plus a page.
type List struct {
	Filter Filter
	Page   Page
}

// Parse reads a list request from URL query values. Non-integer paging
// values and unparseable date bounds are validation errors.
func Parse(values url.Values) (List, error) {
	number, err := intParam(values, ParamPage)
	if err != nil {
		return List{}, err
	}
	size, err := intParam(values, ParamPageSize)
	if err != nil {
		return List{}, err
	}
	start, err := NormalizeBound(ParamStart, values.Get(ParamStart), false)
	if err != nil {
		return List{}, err
	}
	end, err := NormalizeBound(ParamEnd, values.Get(ParamEnd), true)
	if err != nil {
		return List{}, err
	}
	return List{
		Filter: Filter{Start: start, End: end, Name: values.Get(ParamName)},
		Page:   NewPage(number, size),
	}, nil
}

func intParam(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, common.NewValidationError(key, "must be an integer")
	}
	return v, nil
}

// NormalizeBound rewrites a date bound into model.DateLayout. It accepts
// RFC 3339 timestamps of any precision or offset, and bare YYYY-MM-DD days,
// which expand to the first millisecond of the day for a start bound and the
// last millisecond for an end bound.
func NormalizeBound(field, raw string, end bool) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return model.FormatDate(ts), nil
	}
	if day, err := time.Parse(dayLayout, raw); err == nil {
		if end {
			return DayEnd(day), nil
		}
		return DayStart(day), nil
	}
	return "", common.NewValidationError(field, "must be an ISO 8601 timestamp or a YYYY-MM-DD date")
}

// DayStart is 00:00:00.000 UTC of the calendar day of t.
func DayStart(t time.Time) string {
	return t.Format(dayLayout) + "T00:00:00.000Z"
}

// DayEnd is 23:59:59.999 UTC of the calendar day of t.
func DayEnd(t time.Time) string {
	return t.Format(dayLayout) + "T23:59:59.999Z"
}

// Values encodes the request the way the server parses it. Paging is always
// sent; empty filter fields are omitted.
func (l List) Values() url.Values {
	v := url.Values{}
	if l.Filter.Start != "" {
		v.Set(ParamStart, l.Filter.Start)
	}
	if l.Filter.End != "" {
		v.Set(ParamEnd, l.Filter.End)
	}
	if l.Filter.Name != "" {
		v.Set(ParamName, l.Filter.Name)
	}
	v.Set(ParamPage, strconv.Itoa(l.Page.Number))
	v.Set(ParamPageSize, strconv.Itoa(l.Page.Size))
	return v
}
