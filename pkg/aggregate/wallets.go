package aggregate

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/ava-labs/transfer-dashboard/pkg/transfers"
)

// TopWalletsLimit is the number of wallets kept by the top-wallets view.
const TopWalletsLimit = 10

// WalletSummary aggregates every transfer an address took part in, as sender or receiver.
type WalletSummary struct {
	Address       string          `json:"address"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	TransferCount int             `json:"transferCount"`
	AverageAmount decimal.Decimal `json:"averageAmount"`
}

// add folds one transfer leg into the summary.
func (w WalletSummary) add(amount decimal.Decimal) WalletSummary {
	w.TransferCount++
	w.TotalAmount = w.TotalAmount.Add(amount)
	w.AverageAmount = w.TotalAmount.Div(decimal.NewFromInt(int64(w.TransferCount)))
	return w
}

// leg is one side of a transfer.
type leg struct {
	address string
	amount  decimal.Decimal
}

// Wallets builds a summary for every address that appears as sender or receiver.
// Each event updates the sender first, then the receiver; a self-transfer counts twice.
// Summaries are returned in first-seen order.
func Wallets(events []transfers.Event) []WalletSummary {
	legs := make([]leg, 0, 2*len(events))
	for _, ev := range events {
		legs = append(legs,
			leg{address: ev.From, amount: ev.Amount},
			leg{address: ev.To, amount: ev.Amount},
		)
	}

	groups := GroupBy(legs,
		func(l leg) string { return l.address },
		func(addr string) WalletSummary { return WalletSummary{Address: addr} },
		func(w WalletSummary, l leg) WalletSummary { return w.add(l.amount) },
	)
	return Values(groups)
}

// TopWallets returns the n wallets with the largest total amount, largest first.
// Ties keep first-seen order. A negative n returns every wallet.
func TopWallets(events []transfers.Event, n int) []WalletSummary {
	wallets := Wallets(events)
	slices.SortStableFunc(wallets, func(a, b WalletSummary) int {
		return b.TotalAmount.Cmp(a.TotalAmount)
	})
	if n >= 0 && len(wallets) > n {
		wallets = wallets[:n]
	}
	return wallets
}
