// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

package flow

import (
	"time"

	"github.com/flowatlas/flowatlas/internal/models"
)

// Granularity is a time bucket width from the fixed coarseness ladder.
// The order is ascending fineness: year is the coarsest, second the
// finest.
type Granularity int

const (
	GranularityYear Granularity = iota
	GranularityMonth
	GranularityDay
	GranularityHour
	GranularityMinute
	GranularitySecond
)

// String returns the bucket name.
func (g Granularity) String() string {
	switch g {
	case GranularityYear:
		return "year"
	case GranularityMonth:
		return "month"
	case GranularityDay:
		return "day"
	case GranularityHour:
		return "hour"
	case GranularityMinute:
		return "minute"
	default:
		return "second"
	}
}

// Bucket truncates t to the start of its bucket.
func (g Granularity) Bucket(t time.Time) time.Time {
	switch g {
	case GranularityYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case GranularityDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	case GranularityHour:
		return t.Truncate(time.Hour)
	case GranularityMinute:
		return t.Truncate(time.Minute)
	default:
		return t.Truncate(time.Second)
	}
}

// ResolveGranularity inspects the flow set's timestamps and selects the
// coarsest bucket consistent with the finest precision present: if any
// timestamp carries seconds, buckets are seconds; if the finest component
// in use is the hour, buckets are hours; and so on. A flow set without
// timestamps resolves to year buckets (a single implicit bucket).
func ResolveGranularity(flows []models.Flow) Granularity {
	finest := GranularityYear
	for i := range flows {
		t := flows[i].Time
		if t == nil {
			continue
		}
		g := precisionOf(*t)
		if g > finest {
			finest = g
		}
		if finest == GranularitySecond {
			break
		}
	}
	return finest
}

// precisionOf returns the finest nonzero component of t.
func precisionOf(t time.Time) Granularity {
	switch {
	case t.Second() != 0 || t.Nanosecond() != 0:
		return GranularitySecond
	case t.Minute() != 0:
		return GranularityMinute
	case t.Hour() != 0:
		return GranularityHour
	case t.Day() != 1:
		return GranularityDay
	case t.Month() != time.January:
		return GranularityMonth
	default:
		return GranularityYear
	}
}

// TimeExtent returns the [min, max] timestamp over the flow set, or false
// when no flow carries a timestamp.
func TimeExtent(flows []models.Flow) (time.Time, time.Time, bool) {
	var min, max time.Time
	found := false
	for i := range flows {
		t := flows[i].Time
		if t == nil {
			continue
		}
		if !found {
			min, max = *t, *t
			found = true
			continue
		}
		if t.Before(min) {
			min = *t
		}
		if t.After(max) {
			max = *t
		}
	}
	return min, max, found
}
