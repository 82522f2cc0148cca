package model

import (
	"fmt"
	"strings"
	"time"
)

// MetricKind identifies a Garmin Connect time series.
type MetricKind string

const (
	BodyBattery MetricKind = "bb"
	HeartRate   MetricKind = "hr"
)

// AllKinds lists the supported metric kinds in their canonical order.
var AllKinds = []MetricKind{BodyBattery, HeartRate}

// Prefix returns the output filename prefix for the kind.
func (k MetricKind) Prefix() string { return string(k) }

// Column returns the CSV header name of the value column.
func (k MetricKind) Column() string {
	switch k {
	case BodyBattery:
		return "bodybattery"
	case HeartRate:
		return "heartrate"
	default:
		return "value"
	}
}

// Valid reports whether k is a known metric kind.
func (k MetricKind) Valid() bool {
	return k == BodyBattery || k == HeartRate
}

// ParseKind parses "bb" or "hr".
func ParseKind(s string) (MetricKind, error) {
	k := MetricKind(strings.TrimSpace(s))
	if !k.Valid() {
		return "", fmt.Errorf("invalid datatype %q: choose from bb, hr", s)
	}
	return k, nil
}

// ParseKinds parses a comma-separated datatype list such as "bb,hr".
// Order is preserved; duplicates are rejected.
func ParseKinds(s string) ([]MetricKind, error) {
	seen := make(map[MetricKind]bool)
	var kinds []MetricKind
	for _, part := range strings.Split(s, ",") {
		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}
		if seen[k] {
			return nil, fmt.Errorf("duplicate datatype %q", k)
		}
		seen[k] = true
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// DateMonth is one month-long export window.
type DateMonth struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// NewDateMonth validates and builds a DateMonth.
func NewDateMonth(year, month int) (DateMonth, error) {
	if year < 1 || year > 9999 {
		return DateMonth{}, &InvalidRangeError{Spec: fmt.Sprint(year), Reason: "year must be between 1 and 9999"}
	}
	if month < 1 || month > 12 {
		return DateMonth{}, &InvalidRangeError{Spec: fmt.Sprint(month), Reason: "month must be between 1 and 12"}
	}
	return DateMonth{Year: year, Month: time.Month(month)}, nil
}

func (d DateMonth) String() string {
	return fmt.Sprintf("%04d-%02d", d.Year, int(d.Month))
}

// Valid reports whether the month lies in 1..12 and the year in 1..9999.
func (d DateMonth) Valid() bool {
	return d.Year >= 1 && d.Year <= 9999 && d.Month >= time.January && d.Month <= time.December
}

// FirstDay returns midnight of the first day of the month in loc.
func (d DateMonth) FirstDay(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, 1, 0, 0, 0, 0, loc)
}

// LastDay returns midnight of the last day of the month in loc.
func (d DateMonth) LastDay(loc *time.Location) time.Time {
	return d.FirstDay(loc).AddDate(0, 1, -1)
}

// Days returns every calendar day of the month up to and including today.
// A month that starts after today has no days.
func (d DateMonth) Days(today time.Time) []time.Time {
	loc := today.Location()
	from := d.FirstDay(loc)
	to := d.LastDay(loc)
	todayDate := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	if todayDate.Before(to) {
		to = todayDate
	}

	var days []time.Time
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}

// Filename returns the deterministic output name, e.g. "hr202509.csv".
func Filename(kind MetricKind, month DateMonth) string {
	return fmt.Sprintf("%s%04d%02d.csv", kind.Prefix(), month.Year, int(month.Month))
}

// Sample is one reading of a metric at a point in time.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ExportRequest is the unit of work for a single export invocation.
type ExportRequest struct {
	Months []DateMonth  `json:"months"`
	Kinds  []MetricKind `json:"kinds"`
}

// Validate checks the request before any network call is made.
func (r ExportRequest) Validate() error {
	if len(r.Months) == 0 {
		return &InvalidRangeError{Reason: "no months requested"}
	}
	for _, m := range r.Months {
		if !m.Valid() {
			return &InvalidRangeError{Spec: m.String(), Reason: "month must be between 1 and 12"}
		}
	}
	if len(r.Kinds) == 0 {
		return fmt.Errorf("no datatypes requested")
	}
	seen := make(map[MetricKind]bool, len(r.Kinds))
	for _, k := range r.Kinds {
		if !k.Valid() {
			return fmt.Errorf("invalid datatype %q", k)
		}
		if seen[k] {
			return fmt.Errorf("duplicate datatype %q", k)
		}
		seen[k] = true
	}
	return nil
}

// ExportRecord describes one written output file.
type ExportRecord struct {
	ID         string     `json:"id" db:"id"`
	Kind       MetricKind `json:"kind" db:"kind"`
	Year       int        `json:"year" db:"year"`
	Month      int        `json:"month" db:"month"`
	Path       string     `json:"path" db:"path"`
	Samples    int64      `json:"samples" db:"samples"`
	Bytes      int64      `json:"bytes" db:"bytes"`
	Checksum   string     `json:"checksum" db:"checksum"`
	ExportedAt time.Time  `json:"exported_at" db:"exported_at"`
}

// HistoryFilter controls which journal entries are returned.
type HistoryFilter struct {
	Kind  MetricKind `json:"kind,omitempty"`
	Year  int        `json:"year,omitempty"`
	Limit int        `json:"limit,omitempty"`
}
