package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Frame layout constants.
const (
	// KeySize is the size of the KEY field in bytes.
	KeySize = 8

	// LengthSize is the size of the VALUESIZE field in bytes.
	LengthSize = 2

	// HeaderSize is the size of KEY plus VALUESIZE.
	HeaderSize = KeySize + LengthSize

	// MaxValueSize is the largest VALUESIZE the length field can carry.
	MaxValueSize = math.MaxUint16
)

// Codec errors.
var (
	// ErrUnknownKey indicates a key outside the key table.
	ErrUnknownKey = errors.New("unknown message key")

	// ErrValueSizeMismatch indicates a value whose length differs from the
	// size declared for its key.
	ErrValueSizeMismatch = errors.New("value size mismatch")

	// ErrValueTooLarge indicates a value that does not fit VALUESIZE.
	ErrValueTooLarge = errors.New("value too large")

	// ErrFrameTruncated indicates a frame shorter than its header claims.
	ErrFrameTruncated = errors.New("frame truncated")
)

// Encode builds a frame for key k.
//
// If the key declares a fixed size, a non-nil value must have exactly that
// length. A nil value yields a zero filled VALUE region of the declared size
// (or an empty one for keys without a fixed size).
func Encode(k Key, value []byte) ([]byte, error) {
	size, fixed, ok := ExpectedValueSize(k)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKey, uint8(k))
	}

	switch {
	case value == nil && !fixed:
		size = 0
	case value != nil && !fixed:
		size = len(value)
	case value != nil && len(value) != size:
		return nil, fmt.Errorf("%w: %s value is %d bytes, expected %d",
			ErrValueSizeMismatch, k, len(value), size)
	}
	if size > MaxValueSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrValueTooLarge, size, MaxValueSize)
	}

	buf := make([]byte, HeaderSize+size)
	copy(buf[:KeySize], keyTable[k].name)
	binary.LittleEndian.PutUint16(buf[KeySize:HeaderSize], uint16(size))
	copy(buf[HeaderSize:], value)
	return buf, nil
}

// EncodeEmpty builds a zero filled frame for k, ready to be written into.
func EncodeEmpty(k Key) ([]byte, error) {
	return Encode(k, nil)
}

// Decode parses exactly one complete frame.
// Unlike the stream parser it rejects any trailing or missing bytes.
func Decode(frame []byte) (Message, error) {
	if len(frame) < HeaderSize {
		return Message{}, fmt.Errorf("%w: %d bytes < header %d", ErrFrameTruncated, len(frame), HeaderSize)
	}

	k, ok := KeyFromBytes(frame[:KeySize])
	if !ok {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKey, frame[:KeySize])
	}

	size := int(binary.LittleEndian.Uint16(frame[KeySize:HeaderSize]))
	body := frame[HeaderSize:]
	if len(body) < size {
		return Message{}, fmt.Errorf("%w: %s value is %d bytes, header says %d",
			ErrFrameTruncated, k, len(body), size)
	}
	if len(body) > size {
		return Message{}, fmt.Errorf("%w: %d trailing bytes after %s",
			ErrValueSizeMismatch, len(body)-size, k)
	}
	if want, fixed, _ := ExpectedValueSize(k); fixed && size != want {
		return Message{}, fmt.Errorf("%w: %s value is %d bytes, expected %d",
			ErrValueSizeMismatch, k, size, want)
	}

	value := make([]byte, size)
	copy(value, body)
	return Message{Key: k, Value: value}, nil
}

// FrameSize returns the total frame size for a value of valueSize bytes.
func FrameSize(valueSize int) int {
	return HeaderSize + valueSize
}
