// Package render draws view snapshots for the terminal.
package render

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"
	"github.com/shopspring/decimal"

	"github.com/ava-labs/transfer-dashboard/pkg/aggregate"
	"github.com/ava-labs/transfer-dashboard/pkg/transfers"
	"github.com/ava-labs/transfer-dashboard/pkg/views"
)

// AmountPlaces is the number of decimals shown for token amounts.
const AmountPlaces = 2

const (
	defaultChartHeight = 10
	defaultBarWidth    = 40
	noGraphData        = "Not enough data to draw graph."
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	barStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

var titles = map[views.Kind]string{
	views.KindRecent:     "Recent transfers",
	views.KindVolume:     "Volume per minute",
	views.KindCount:      "Transfers per minute",
	views.KindTopWallets: "Top wallets by volume",
}

// Renderer draws snapshots. Timestamps are shown in its location.
type Renderer struct {
	loc         *time.Location
	chartHeight int
	barWidth    int
}

// New returns a Renderer for loc. A nil loc means time.Local.
func New(loc *time.Location) *Renderer {
	if loc == nil {
		loc = time.Local
	}
	return &Renderer{loc: loc, chartHeight: defaultChartHeight, barWidth: defaultBarWidth}
}

// Snapshot renders a view in a box with its title and state.
func (r *Renderer) Snapshot(s views.Snapshot) string {
	title := titles[s.Kind]
	if title == "" {
		title = string(s.Kind)
	}

	var body string
	switch s.State {
	case views.StateIdle:
		body = subtleStyle.Render("not loaded")
	case views.StateLoading:
		body = subtleStyle.Render("loading...")
	case views.StateFailed:
		body = errStyle.Render(s.Error)
	default:
		body = r.result(s.Kind, s.Result)
	}

	parts := []string{titleStyle.Render(title), body}
	if !s.UpdatedAt.IsZero() {
		parts = append(parts, subtleStyle.Render("updated "+s.UpdatedAt.In(r.loc).Format(time.TimeOnly)))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (r *Renderer) result(kind views.Kind, result any) string {
	switch res := result.(type) {
	case []transfers.Event:
		return r.RecentTable(res)
	case []aggregate.WalletSummary:
		return r.TopWalletsTable(res)
	case []aggregate.Point:
		if kind == views.KindCount {
			return r.CountChart(res)
		}
		return r.VolumeChart(res)
	default:
		return subtleStyle.Render("no data available")
	}
}

// RecentTable lists transfers newest first.
func (r *Renderer) RecentTable(events []transfers.Event) string {
	rows := make([][]string, 0, len(events))
	for _, ev := range events {
		rows = append(rows, []string{
			time.Unix(ev.BlockTimestamp, 0).In(r.loc).Format(time.DateTime),
			ShortHash(ev.TransactionHash),
			ev.From,
			ev.To,
			transfers.FormatAmount(ev.Amount, AmountPlaces),
		})
	}
	return newTable([]string{"Time", "Tx", "From", "To", "Amount"}, rows, 4)
}

// TopWalletsTable lists wallet summaries in the given order.
func (r *Renderer) TopWalletsTable(wallets []aggregate.WalletSummary) string {
	rows := make([][]string, 0, len(wallets))
	for i, w := range wallets {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			w.Address,
			transfers.FormatAmount(w.TotalAmount, AmountPlaces),
			strconv.Itoa(w.TransferCount),
			transfers.FormatAmount(w.AverageAmount, AmountPlaces),
		})
	}
	return newTable([]string{"#", "Address", "Total", "Transfers", "Average"}, rows, 2, 3, 4)
}

// VolumeChart plots the summed amount per minute as a line chart.
func (r *Renderer) VolumeChart(points []aggregate.Point) string {
	if len(points) < 2 {
		return noGraphData
	}
	series := make([]float64, len(points))
	for i, p := range points {
		series[i] = p.Value.InexactFloat64()
	}
	graph := asciigraph.Plot(series,
		asciigraph.Height(r.chartHeight),
		asciigraph.Width(max(len(points), 2*r.barWidth)),
		asciigraph.Precision(AmountPlaces),
		asciigraph.Caption(fmt.Sprintf("Volume %s to %s", points[0].Label, points[len(points)-1].Label)),
	)
	return graph
}

// CountChart draws one horizontal bar per minute.
func (r *Renderer) CountChart(points []aggregate.Point) string {
	if len(points) == 0 {
		return noGraphData
	}
	peak := decimal.Zero
	for _, p := range points {
		if p.Value.GreaterThan(peak) {
			peak = p.Value
		}
	}

	lines := make([]string, 0, len(points))
	for _, p := range points {
		n := 0
		if peak.IsPositive() {
			n = int(p.Value.Mul(decimal.NewFromInt(int64(r.barWidth))).Div(peak).IntPart())
		}
		if n == 0 && p.Value.IsPositive() {
			n = 1
		}
		lines = append(lines, fmt.Sprintf("%s │%s %s", p.Label, barStyle.Render(strings.Repeat("█", n)), p.Value.String()))
	}
	return strings.Join(lines, "\n")
}

// ShortHash abbreviates a transaction hash for display.
func ShortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:8] + "…" + h[len(h)-6:]
}

func newTable(headers []string, rows [][]string, rightAligned ...int) string {
	right := make(map[int]bool, len(rightAligned))
	for _, c := range rightAligned {
		right[c] = true
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := cellStyle
			if row == table.HeaderRow {
				s = headerStyle
			}
			if right[col] {
				s = s.Align(lipgloss.Right)
			}
			return s
		}).
		Render()
}
