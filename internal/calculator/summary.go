// Package calculator aggregates ledger history for display.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/offpay/internal/models"
)

// Summary is the aggregate view of a device's ledger.
type Summary struct {
	TotalSent     decimal.Decimal
	TotalReceived decimal.Decimal
	// Net is received minus sent. Negative means the device paid out more.
	Net decimal.Decimal

	SentCount     int
	ReceivedCount int
	UnsyncedCount int

	// UnsyncedAmount is the sum of amounts not yet acknowledged remotely,
	// regardless of direction.
	UnsyncedAmount decimal.Decimal
}

// Summarize computes totals across transactions. Records of an unknown type
// add to neither total.
func Summarize(txs []*models.Transaction) Summary {
	var s Summary

	for _, tx := range txs {
		switch tx.Type {
		case models.TypeSent:
			s.TotalSent = s.TotalSent.Add(tx.Amount)
			s.SentCount++
		case models.TypeReceived:
			s.TotalReceived = s.TotalReceived.Add(tx.Amount)
			s.ReceivedCount++
		}

		if !tx.IsSynced {
			s.UnsyncedCount++
			s.UnsyncedAmount = s.UnsyncedAmount.Add(tx.Amount)
		}
	}

	s.Net = s.TotalReceived.Sub(s.TotalSent)
	return s
}
