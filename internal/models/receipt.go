package models

// Receipt is the sync server's record of a transaction submitted by a device.
// A receipt is unique per (DeviceID, Type, CorrelationID); resubmitting the
// same transaction returns the existing receipt.
type Receipt struct {
	// ID is the unique identifier for the receipt (UUID format).
	ID string

	// DeviceID identifies the submitting device.
	DeviceID string

	// CorrelationID is the transaction's counterparty id.
	CorrelationID string

	// Type is SENT or RECEIVED, as reported by the device.
	Type TransactionType

	// Amount is the decimal amount as text.
	Amount string

	// Timestamp is the device-side creation time in epoch milliseconds.
	Timestamp int64

	// Details is the device-side free text.
	Details string

	// CreatedAt is the Unix timestamp when the server accepted the receipt.
	CreatedAt int64
}
