package wire

import (
	"encoding/binary"
	"fmt"
)

// Value sizes for the structured payloads.
const (
	uint32Size  = 4
	orderSize   = 3 * uint32Size
	receiptSize = 8 * uint32Size
)

// Order is the VALUE of an order frame: item counts per cup size.
type Order struct {
	Small  uint32 `json:"small" cbor:"small"`
	Medium uint32 `json:"medium" cbor:"medium"`
	Large  uint32 `json:"large" cbor:"large"`
}

// Encode returns the 12-byte value for an order frame.
func (o Order) Encode() []byte {
	buf := make([]byte, orderSize)
	binary.LittleEndian.PutUint32(buf[0:], o.Small)
	binary.LittleEndian.PutUint32(buf[4:], o.Medium)
	binary.LittleEndian.PutUint32(buf[8:], o.Large)
	return buf
}

// DecodeOrder parses an order value.
func DecodeOrder(b []byte) (Order, error) {
	if len(b) != orderSize {
		return Order{}, fmt.Errorf("%w: order value is %d bytes, expected %d", ErrValueSizeMismatch, len(b), orderSize)
	}
	return Order{
		Small:  binary.LittleEndian.Uint32(b[0:]),
		Medium: binary.LittleEndian.Uint32(b[4:]),
		Large:  binary.LittleEndian.Uint32(b[8:]),
	}, nil
}

// Receipt is the VALUE of a receipt frame.
// The last three words of the 32-byte value are reserved and always zero.
type Receipt struct {
	SmallSubtotal  uint32 `json:"small_subtotal" cbor:"small_subtotal"`
	MediumSubtotal uint32 `json:"medium_subtotal" cbor:"medium_subtotal"`
	LargeSubtotal  uint32 `json:"large_subtotal" cbor:"large_subtotal"`
	Total          uint32 `json:"total" cbor:"total"`
	Refund         uint32 `json:"refund" cbor:"refund"`
}

// Encode returns the 32-byte value for a receipt frame.
func (r Receipt) Encode() []byte {
	buf := make([]byte, receiptSize)
	binary.LittleEndian.PutUint32(buf[0:], r.SmallSubtotal)
	binary.LittleEndian.PutUint32(buf[4:], r.MediumSubtotal)
	binary.LittleEndian.PutUint32(buf[8:], r.LargeSubtotal)
	binary.LittleEndian.PutUint32(buf[12:], r.Total)
	binary.LittleEndian.PutUint32(buf[16:], r.Refund)
	return buf
}

// DecodeReceipt parses a receipt value.
func DecodeReceipt(b []byte) (Receipt, error) {
	if len(b) != receiptSize {
		return Receipt{}, fmt.Errorf("%w: receipt value is %d bytes, expected %d", ErrValueSizeMismatch, len(b), receiptSize)
	}
	return Receipt{
		SmallSubtotal:  binary.LittleEndian.Uint32(b[0:]),
		MediumSubtotal: binary.LittleEndian.Uint32(b[4:]),
		LargeSubtotal:  binary.LittleEndian.Uint32(b[8:]),
		Total:          binary.LittleEndian.Uint32(b[12:]),
		Refund:         binary.LittleEndian.Uint32(b[16:]),
	}, nil
}

// EncodeUint32 returns the 4-byte little-endian value for v.
func EncodeUint32(v uint32) []byte {
	buf := make([]byte, uint32Size)
	binary.LittleEndian.PutUint32(buf, v)
	return buf
}

// DecodeUint32 parses a 4-byte little-endian value.
func DecodeUint32(b []byte) (uint32, error) {
	if len(b) != uint32Size {
		return 0, fmt.Errorf("%w: value is %d bytes, expected %d", ErrValueSizeMismatch, len(b), uint32Size)
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Convenience constructors for complete frames. They never fail for the
// fixed-size keys they cover.

// AddValueFrame builds an addValue frame depositing cents.
func AddValueFrame(cents uint32) []byte {
	return mustEncode(KeyAddValue, EncodeUint32(cents))
}

// CurFundsFrame builds a curFunds frame.
func CurFundsFrame(cents uint32) []byte {
	return mustEncode(KeyCurFunds, EncodeUint32(cents))
}

// RefundFrame builds a refund frame.
func RefundFrame(cents uint32) []byte {
	return mustEncode(KeyRefund, EncodeUint32(cents))
}

// OrderFrame builds an order frame.
func OrderFrame(o Order) []byte {
	return mustEncode(KeyOrder, o.Encode())
}

// ReceiptFrame builds a receipt frame.
func ReceiptFrame(r Receipt) []byte {
	return mustEncode(KeyReceipt, r.Encode())
}

// CancelFrame builds a cancel frame.
func CancelFrame() []byte {
	return mustEncode(KeyCancel, nil)
}

// InsFundsFrame builds an insFunds frame.
func InsFundsFrame() []byte {
	return mustEncode(KeyInsFunds, nil)
}

func mustEncode(k Key, value []byte) []byte {
	buf, err := Encode(k, value)
	if err != nil {
		panic(fmt.Sprintf("wire: encoding %s: %v", k, err))
	}
	return buf
}
