// Package views holds the dashboard views: what each one fetches, how it aggregates the
// decoded transfers and the refresh lifecycle that keeps its displayed state consistent.
package views

import (
	"fmt"
	"time"

	"github.com/ava-labs/transfer-dashboard/pkg/aggregate"
	"github.com/ava-labs/transfer-dashboard/pkg/transfers"
)

// Kind identifies a view.
type Kind string

const (
	KindRecent     Kind = "recent"
	KindVolume     Kind = "volume"
	KindCount      Kind = "count"
	KindTopWallets Kind = "top-wallets"
)

// Page sizes requested by each view. Larger pages trade latency for aggregation accuracy.
const (
	RecentLimit     = 10
	VolumeLimit     = 2500
	CountLimit      = 2500
	TopWalletsLimit = 5000
)

// ParseKind validates a view name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindRecent, KindVolume, KindCount, KindTopWallets:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownView, s)
	}
}

// Definition describes one view: the page it fetches and how it reduces the decoded page
// to its result.
type Definition struct {
	Kind  Kind
	Limit int
	Build func([]transfers.Event) (any, error)
}

// Definitions returns the four dashboard views. Minute buckets are labelled in loc and
// sorted on the calendar day returned by now.
func Definitions(loc *time.Location, now func() time.Time) []Definition {
	if now == nil {
		now = time.Now
	}
	return []Definition{
		{
			Kind:  KindRecent,
			Limit: RecentLimit,
			Build: func(events []transfers.Event) (any, error) {
				return events, nil
			},
		},
		{
			Kind:  KindVolume,
			Limit: VolumeLimit,
			Build: func(events []transfers.Event) (any, error) {
				return aggregate.VolumeByMinute(events, loc, now())
			},
		},
		{
			Kind:  KindCount,
			Limit: CountLimit,
			Build: func(events []transfers.Event) (any, error) {
				return aggregate.CountByMinute(events, loc, now())
			},
		},
		{
			Kind:  KindTopWallets,
			Limit: TopWalletsLimit,
			Build: func(events []transfers.Event) (any, error) {
				return aggregate.TopWallets(events, aggregate.TopWalletsLimit), nil
			},
		},
	}
}

// resultSize is the number of rows or points in a view result.
func resultSize(result any) int {
	switch r := result.(type) {
	case []transfers.Event:
		return len(r)
	case []aggregate.Point:
		return len(r)
	case []aggregate.WalletSummary:
		return len(r)
	default:
		return 0
	}
}
