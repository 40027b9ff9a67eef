package wire

// Key identifies the message type carried by a frame.
type Key uint8

const (
	// KeyAddValue deposits money into the machine.
	// Direction: user to machine
	KeyAddValue Key = 1

	// KeyCurFunds reports the funds accumulated so far.
	// Direction: machine to user
	KeyCurFunds Key = 2

	// KeyOrder reports the current small/medium/large counts.
	// Direction: machine to user
	KeyOrder Key = 3

	// KeyInsFunds reports a dispense attempt without enough funds.
	// Direction: machine to user
	KeyInsFunds Key = 4

	// KeyReceipt reports a completed dispense.
	// Direction: machine to user
	KeyReceipt Key = 5

	// KeyCancel reports a cancelled order.
	// Direction: machine to user
	KeyCancel Key = 6

	// KeyRefund reports money returned to the user.
	// Direction: machine to user
	KeyRefund Key = 7
)

// keyInfo describes how a key appears on the wire.
type keyInfo struct {
	name string

	// size is the declared VALUESIZE. Only meaningful when fixed is true.
	size int

	// fixed is false for keys whose value length is decided by the caller.
	fixed bool
}

// keyTable is the static key table. It is never mutated after init.
var keyTable = map[Key]keyInfo{
	KeyAddValue: {name: "addValue", size: 4, fixed: true},  // uint32
	KeyCurFunds: {name: "curFunds", size: 4, fixed: true},  // uint32
	KeyOrder:    {name: "order", size: 12, fixed: true},    // 3 * uint32
	KeyInsFunds: {name: "insFunds", size: 0, fixed: true},  // no value
	KeyReceipt:  {name: "receipt", size: 32, fixed: true},  // 8 * uint32
	KeyCancel:   {name: "cancel", size: 0, fixed: true},    // no value
	KeyRefund:   {name: "refund", size: 4, fixed: true},    // uint32
}

// keysByName maps the ASCII key (without padding) back to its Key.
var keysByName = func() map[string]Key {
	m := make(map[string]Key, len(keyTable))
	for k, info := range keyTable {
		m[info.name] = k
	}
	return m
}()

// allKeys lists keys in protocol order.
var allKeys = []Key{
	KeyAddValue,
	KeyCurFunds,
	KeyOrder,
	KeyInsFunds,
	KeyReceipt,
	KeyCancel,
	KeyRefund,
}

// Keys returns every known key in protocol order.
func Keys() []Key {
	out := make([]Key, len(allKeys))
	copy(out, allKeys)
	return out
}

// String returns the ASCII key name as it appears on the wire (unpadded).
func (k Key) String() string {
	if info, ok := keyTable[k]; ok {
		return info.name
	}
	return "unknown"
}

// IsValid returns true if k is one of the known keys.
func (k Key) IsValid() bool {
	_, ok := keyTable[k]
	return ok
}

// ExpectedValueSize returns the declared VALUESIZE for k.
// fixed is false when the key accepts values of any length.
// ok is false for unknown keys.
func ExpectedValueSize(k Key) (size int, fixed bool, ok bool) {
	info, ok := keyTable[k]
	if !ok {
		return 0, false, false
	}
	return info.size, info.fixed, true
}

// KeyFromString looks up a key by its ASCII name. Everything from the first
// NUL byte onwards is ignored, so zero padded 8-byte keys are accepted.
func KeyFromString(s string) (Key, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == 0 {
			s = s[:i]
			break
		}
	}
	k, ok := keysByName[s]
	return k, ok
}

// KeyFromBytes is KeyFromString for a raw key field.
func KeyFromBytes(b []byte) (Key, bool) {
	return KeyFromString(string(b))
}
