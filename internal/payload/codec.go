// Package payload encodes transfer intents into the text carried by a
// scannable code, and decodes scanned text back into fields.
//
// The plain format is "key=value" segments joined by ";" in the order
// amount, senderTxId, details, timestamp, with an optional trailing
// securityKey. Values are written as-is, so a value containing ";" or "="
// does not survive a round trip. Use Sealer for the escaped, encrypted form.
package payload

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Recognized payload keys.
const (
	KeyAmount      = "amount"
	KeySenderTxID  = "senderTxId"
	KeyDetails     = "details"
	KeyTimestamp   = "timestamp"
	KeySecurityKey = "securityKey"
)

const (
	fieldSep = ";"
	kvSep    = "="
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrNotNumeric   = errors.New("not a decimal number")
	ErrNotInteger   = errors.New("not an integer")
	ErrNonPositive  = errors.New("must be greater than zero")
	ErrBadEscape    = errors.New("invalid escape sequence")
)

// Fields is the decoded content of a payment payload.
type Fields struct {
	Amount      decimal.Decimal
	SenderTxID  string
	Details     string
	Timestamp   int64
	SecurityKey string
}

// ParseError reports a payload that could not be decoded. Field names the
// offending key.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid payload field %q: %v", e.Field, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Encode builds the plain payload text. Output is deterministic.
func Encode(amount decimal.Decimal, senderTxID, details string, timestamp int64) string {
	return EncodeFields(Fields{
		Amount:     amount,
		SenderTxID: senderTxID,
		Details:    details,
		Timestamp:  timestamp,
	})
}

// EncodeFields is Encode plus the optional securityKey, appended last when set.
func EncodeFields(f Fields) string {
	return encode(f, identity)
}

// Decode parses plain payload text. Unknown keys and segments without "="
// are ignored; a repeated key keeps its last value. amount and timestamp are
// required.
func Decode(text string) (*Fields, error) {
	return decode(text, func(s string) (string, error) { return s, nil })
}

func identity(s string) string { return s }

func encode(f Fields, escape func(string) string) string {
	var b strings.Builder
	writeField := func(key, value string) {
		if b.Len() > 0 {
			b.WriteString(fieldSep)
		}
		b.WriteString(key)
		b.WriteString(kvSep)
		b.WriteString(escape(value))
	}

	writeField(KeyAmount, f.Amount.String())
	writeField(KeySenderTxID, f.SenderTxID)
	writeField(KeyDetails, f.Details)
	writeField(KeyTimestamp, strconv.FormatInt(f.Timestamp, 10))
	if f.SecurityKey != "" {
		writeField(KeySecurityKey, f.SecurityKey)
	}
	return b.String()
}

func decode(text string, unescape func(string) (string, error)) (*Fields, error) {
	values := make(map[string]string)
	for _, segment := range strings.Split(text, fieldSep) {
		key, value, ok := strings.Cut(segment, kvSep)
		if !ok {
			continue
		}
		switch key {
		case KeyAmount, KeySenderTxID, KeyDetails, KeyTimestamp, KeySecurityKey:
			v, err := unescape(value)
			if err != nil {
				return nil, &ParseError{Field: key, Err: ErrBadEscape}
			}
			values[key] = v
		}
	}

	rawAmount, ok := values[KeyAmount]
	if !ok {
		return nil, &ParseError{Field: KeyAmount, Err: ErrMissingField}
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return nil, &ParseError{Field: KeyAmount, Err: ErrNotNumeric}
	}
	if !amount.IsPositive() {
		return nil, &ParseError{Field: KeyAmount, Err: ErrNonPositive}
	}

	rawTimestamp, ok := values[KeyTimestamp]
	if !ok {
		return nil, &ParseError{Field: KeyTimestamp, Err: ErrMissingField}
	}
	timestamp, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return nil, &ParseError{Field: KeyTimestamp, Err: ErrNotInteger}
	}

	return &Fields{
		Amount:      amount,
		SenderTxID:  values[KeySenderTxID],
		Details:     values[KeyDetails],
		Timestamp:   timestamp,
		SecurityKey: values[KeySecurityKey],
	}, nil
}
