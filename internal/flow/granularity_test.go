// Flowatlas - Origin-Destination Flow Analytics and Visualization
// Copyright 2026 Flowatlas Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/flowatlas/flowatlas

package flow

import (
	"testing"
	"time"

	"github.com/flowatlas/flowatlas/internal/models"
)

func flowsAt(times ...time.Time) []models.Flow {
	out := make([]models.Flow, len(times))
	for i := range times {
		t := times[i]
		out[i] = models.Flow{Origin: "A", Dest: "B", Count: 1, Time: &t}
	}
	return out
}

func TestResolveGranularity(t *testing.T) {
	cases := []struct {
		name  string
		times []time.Time
		want  Granularity
	}{
		{
			name: "no timestamps",
			want: GranularityYear,
		},
		{
			name:  "year precision",
			times: []time.Time{time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
			want:  GranularityYear,
		},
		{
			name:  "month precision",
			times: []time.Time{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
			want:  GranularityMonth,
		},
		{
			name:  "day precision",
			times: []time.Time{time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
			want:  GranularityDay,
		},
		{
			name:  "hour precision",
			times: []time.Time{time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC)},
			want:  GranularityHour,
		},
		{
			name:  "minute precision",
			times: []time.Time{time.Date(2024, 3, 15, 7, 30, 0, 0, time.UTC)},
			want:  GranularityMinute,
		},
		{
			name:  "second precision",
			times: []time.Time{time.Date(2024, 3, 15, 7, 30, 45, 0, time.UTC)},
			want:  GranularitySecond,
		},
		{
			name: "finest wins across mixed precision",
			times: []time.Time{
				time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC),
			},
			want: GranularityHour,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveGranularity(flowsAt(tc.times...))
			if got != tc.want {
				t.Errorf("ResolveGranularity = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestBucketTruncation(t *testing.T) {
	ts := time.Date(2024, 3, 15, 7, 30, 45, 123, time.UTC)

	cases := []struct {
		g    Granularity
		want time.Time
	}{
		{GranularityYear, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)},
		{GranularityMonth, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{GranularityDay, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)},
		{GranularityHour, time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC)},
		{GranularityMinute, time.Date(2024, 3, 15, 7, 30, 0, 0, time.UTC)},
		{GranularitySecond, time.Date(2024, 3, 15, 7, 30, 45, 0, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.g.String(), func(t *testing.T) {
			if got := tc.g.Bucket(ts); !got.Equal(tc.want) {
				t.Errorf("Bucket = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestBucketDoesNotCollapseDistinctTimestamps(t *testing.T) {
	// The resolved granularity must keep all distinct raw timestamps
	// distinct after bucketing.
	times := []time.Time{
		time.Date(2024, 3, 15, 7, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 16, 7, 0, 0, 0, time.UTC),
	}
	g := ResolveGranularity(flowsAt(times...))

	buckets := make(map[time.Time]bool)
	for _, ts := range times {
		buckets[g.Bucket(ts)] = true
	}
	if len(buckets) != len(times) {
		t.Errorf("granularity %s collapsed %d distinct timestamps into %d buckets", g, len(times), len(buckets))
	}
}

func TestTimeExtent(t *testing.T) {
	if _, _, ok := TimeExtent(nil); ok {
		t.Error("empty flow set should report no extent")
	}

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	flows := append(flowsAt(t1, t2, t3), models.Flow{Origin: "A", Dest: "B", Count: 1})

	min, max, ok := TimeExtent(flows)
	if !ok {
		t.Fatal("extent not found")
	}
	if !min.Equal(t3) || !max.Equal(t2) {
		t.Errorf("extent = [%v, %v], want [%v, %v]", min, max, t3, t2)
	}
}
