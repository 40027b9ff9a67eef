package wire

import (
	"encoding/hex"
	"fmt"
)

// Message is one decoded frame. The value length always equals the
// VALUESIZE that was (or will be) transmitted.
type Message struct {
	Key   Key
	Value []byte
}

// ValueSize returns the VALUESIZE field for the message.
func (m Message) ValueSize() int {
	return len(m.Value)
}

// Encode returns the wire representation of m.
func (m Message) Encode() ([]byte, error) {
	v := m.Value
	if v == nil {
		v = []byte{}
	}
	return Encode(m.Key, v)
}

// Payload decodes the value into the Go type associated with the key:
//   - addValue, curFunds, refund: uint32
//   - order: Order
//   - receipt: Receipt
//   - insFunds, cancel: nil
func (m Message) Payload() (any, error) {
	switch m.Key {
	case KeyAddValue, KeyCurFunds, KeyRefund:
		return DecodeUint32(m.Value)
	case KeyOrder:
		return DecodeOrder(m.Value)
	case KeyReceipt:
		return DecodeReceipt(m.Value)
	case KeyInsFunds, KeyCancel:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKey, uint8(m.Key))
	}
}

// String returns a short human-readable form, e.g. "curFunds[4] 64000000".
func (m Message) String() string {
	return fmt.Sprintf("%s[%d] %s", m.Key, len(m.Value), hex.EncodeToString(m.Value))
}
