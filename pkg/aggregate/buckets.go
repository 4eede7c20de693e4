package aggregate

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ava-labs/transfer-dashboard/pkg/transfers"
)

// MinuteLayout is the bucket label format. It carries no date, so events on different
// days that share a wall-clock minute land in the same bucket.
const MinuteLayout = "15:04"

// Point is one chart bucket.
type Point struct {
	Label string          `json:"label"`
	Time  time.Time       `json:"time"`
	Value decimal.Decimal `json:"value"`
}

// MinuteLabel formats a Unix timestamp as an HH:mm label in loc.
func MinuteLabel(ts int64, loc *time.Location) string {
	return time.Unix(ts, 0).In(location(loc)).Format(MinuteLayout)
}

// LabelTime reconstructs the time a label denotes on the calendar day of day in loc.
func LabelTime(label string, loc *time.Location, day time.Time) (time.Time, error) {
	hm, err := time.Parse(MinuteLayout, label)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid bucket label %q: %w", label, err)
	}
	loc = location(loc)
	y, m, d := day.In(loc).Date()
	return time.Date(y, m, d, hm.Hour(), hm.Minute(), 0, 0, loc), nil
}

// VolumeByMinute sums transfer amounts per minute and returns the buckets in
// chronological order.
func VolumeByMinute(events []transfers.Event, loc *time.Location, day time.Time) ([]Point, error) {
	return byMinute(events, loc, day, func(p Point, ev transfers.Event) Point {
		p.Value = p.Value.Add(ev.Amount)
		return p
	})
}

// CountByMinute counts transfers per minute and returns the buckets in chronological order.
func CountByMinute(events []transfers.Event, loc *time.Location, day time.Time) ([]Point, error) {
	one := decimal.NewFromInt(1)
	return byMinute(events, loc, day, func(p Point, ev transfers.Event) Point {
		p.Value = p.Value.Add(one)
		return p
	})
}

func byMinute(
	events []transfers.Event,
	loc *time.Location,
	day time.Time,
	reduce func(Point, transfers.Event) Point,
) ([]Point, error) {
	groups := GroupBy(events,
		func(ev transfers.Event) string { return MinuteLabel(ev.BlockTimestamp, loc) },
		func(label string) Point { return Point{Label: label} },
		reduce,
	)
	points := Values(groups)
	if err := SortChronologically(points, loc, day); err != nil {
		return nil, err
	}
	return points, nil
}

// SortChronologically fills in each point's Time from its label on the given day and
// sorts the points by it.
func SortChronologically(points []Point, loc *time.Location, day time.Time) error {
	for i := range points {
		t, err := LabelTime(points[i].Label, loc, day)
		if err != nil {
			return err
		}
		points[i].Time = t
	}
	slices.SortStableFunc(points, func(a, b Point) int {
		return a.Time.Compare(b.Time)
	})
	return nil
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
