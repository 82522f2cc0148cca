package model

import (
	"strconv"
	"strings"
)

// ParseMonths expands a month specifier ("9" or "7-8") for year into
// ascending DateMonths. Ranges never cross a year boundary.
func ParseMonths(year int, spec string) ([]DateMonth, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, &InvalidRangeError{Spec: spec, Reason: "empty month specifier"}
	}

	start, end := spec, spec
	if strings.Contains(spec, "-") {
		parts := strings.Split(spec, "-")
		if len(parts) != 2 {
			return nil, &InvalidRangeError{Spec: spec, Reason: "expected M or M1-M2"}
		}
		start, end = parts[0], parts[1]
	}

	from, err := parseMonth(spec, start)
	if err != nil {
		return nil, err
	}
	to, err := parseMonth(spec, end)
	if err != nil {
		return nil, err
	}
	if from > to {
		return nil, &InvalidRangeError{Spec: spec, Reason: "start month exceeds end month"}
	}

	months := make([]DateMonth, 0, to-from+1)
	for m := from; m <= to; m++ {
		dm, err := NewDateMonth(year, m)
		if err != nil {
			return nil, err
		}
		months = append(months, dm)
	}
	return months, nil
}

func parseMonth(spec, s string) (int, error) {
	m, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, &InvalidRangeError{Spec: spec, Reason: "month must be a number between 1 and 12"}
	}
	if m < 1 || m > 12 {
		return 0, &InvalidRangeError{Spec: spec, Reason: "month must be between 1 and 12"}
	}
	return m, nil
}
