package models

import (
	"net/url"
	"strings"
	"time"
)

// DateRange is a relative creation-date window used by the dashboards.
type DateRange string

const (
	DateRangeToday DateRange = "today"
	DateRangeWeek  DateRange = "week"
	DateRangeMonth DateRange = "month"
)

// Since returns the first instant included by the range, measured in now's location.
// Unknown ranges report ok=false and filter nothing.
func (r DateRange) Since(now time.Time) (time.Time, bool) {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch r {
	case DateRangeToday:
		return today, true
	case DateRangeWeek:
		return today.AddDate(0, 0, -7), true
	case DateRangeMonth:
		return today.AddDate(0, 0, -30), true
	}
	return time.Time{}, false
}

// TicketFilter is the dashboard filter pipeline. Zero-valued fields are no-ops and the
// remaining ones combine with AND.
type TicketFilter struct {
	Search    string         `json:"search,omitempty"`
	Status    TicketStatus   `json:"status,omitempty"`
	Priority  TicketPriority `json:"priority,omitempty"`
	DateRange DateRange      `json:"date_range,omitempty"`
}

// ParseTicketFilter reads search, status, priority and date_range query parameters.
// Unrecognised status or priority values match nothing, as an exact-match filter would.
func ParseTicketFilter(q url.Values) TicketFilter {
	f := TicketFilter{
		Search:    strings.TrimSpace(q.Get("search")),
		DateRange: DateRange(q.Get("date_range")),
	}
	if s := q.Get("status"); s != "" {
		f.Status = TicketStatus(s)
	}
	if p := q.Get("priority"); p != "" {
		f.Priority = TicketPriority(p)
	}
	return f
}

// Scope narrows a ticket query beyond the user-facing filter.
type TicketScope struct {
	CustomerID    *uint
	AgentID       *uint
	Unassigned    bool
	Assigned      bool
	Status        TicketStatus // exact status, applied in addition to the filter
	ExcludeStatus TicketStatus // e.g. hide resolved tickets
	OrderBy       TicketOrdering
	Limit         int
}

type TicketOrdering string

const (
	OrderCreatedDesc TicketOrdering = "created_desc"
	OrderUpdatedDesc TicketOrdering = "updated_desc"
)

// TicketQuery combines scope and filter; Now anchors relative date ranges.
type TicketQuery struct {
	Scope  TicketScope
	Filter TicketFilter
	Now    time.Time
}
