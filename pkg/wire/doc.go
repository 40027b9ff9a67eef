// Package wire defines the binary frame format spoken over the vending
// machine's serial line.
//
// Every frame is a fixed 8-byte ASCII key, zero padded on the right, followed
// by a 2-byte little-endian VALUESIZE and exactly VALUESIZE value bytes:
//
//	+----------+-----------+------------------+
//	| KEY (8)  | SIZE (2)  | VALUE (SIZE)     |
//	+----------+-----------+------------------+
//
// Numeric values inside VALUE are unsigned 32-bit little-endian integers.
//
// # Keys
//
// The set of keys is closed. Unknown keys can neither be encoded nor decoded:
//   - addValue (4):  deposit, sent by the user to the machine
//   - curFunds (4):  current funds, sent by the machine
//   - order (12):    small/medium/large counts
//   - insFunds (0):  insufficient funds
//   - receipt (32):  subtotals, total, refund, reserved words
//   - cancel (0):    order cancelled
//   - refund (4):    refunded amount
//
// # Encoding without a value
//
// Encode with a nil value produces a frame whose VALUE region is zero filled
// to the declared size, so callers can fill it in afterwards.
package wire
