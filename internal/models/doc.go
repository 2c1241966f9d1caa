// Package models defines the core domain models for offpay.
//
// # Models
//
//   - Transaction: one entry in the on-device ledger, either SENT or RECEIVED
//   - Receipt: the sync server's durable record of an acknowledged transaction
//
// # Design Principles
//
// 1. **Immutable records**: a Transaction never changes after insert, except
// for its sync flag
// 2. **Decimal amounts**: money is decimal.Decimal, never float64
// 3. **Correlation by id**: sender and receiver link their records through the
// sender-generated CounterpartyID, not through pointers or shared storage
package models
