package transport

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/vendsim/vendsim-go/pkg/log"
	"github.com/vendsim/vendsim-go/pkg/wire"
)

// MaxLogFrameDataSize is the maximum frame data size to include in capture
// events. Larger frames are truncated in the event.
const MaxLogFrameDataSize = 1024

// FrameWriter encodes wire messages and writes each frame to the underlying
// writer in a single Write call.
type FrameWriter struct {
	w  io.Writer
	mu sync.Mutex

	// Logging support (optional)
	logger    log.Logger
	machineID string
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// SetLogger configures capture for this writer.
// Pass nil to disable capture.
func (fw *FrameWriter) SetLogger(logger log.Logger, machineID string) {
	fw.logger = logger
	fw.machineID = machineID
}

// WriteMessage encodes and writes one frame. A nil value is zero-filled to
// the key's declared size.
// Thread-safe: can be called from multiple goroutines.
func (fw *FrameWriter) WriteMessage(k wire.Key, value []byte) error {
	frame, err := wire.Encode(k, value)
	if err != nil {
		return err
	}
	return fw.WriteFrame(frame)
}

// WriteFrame writes an already encoded frame.
func (fw *FrameWriter) WriteFrame(frame []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if _, err := fw.w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	if fw.logger != nil {
		fw.logger.Log(makeFrameEvent(fw.machineID, frame, log.DirectionOut))
		if msg, err := wire.Decode(frame); err == nil {
			fw.logger.Log(MessageEvent(fw.machineID, log.DirectionOut, msg))
		}
	}

	return nil
}

// makeFrameEvent creates a capture event for a frame.
func makeFrameEvent(machineID string, data []byte, direction log.Direction) log.Event {
	frameData := data
	truncated := false

	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	return log.Event{
		Timestamp: time.Now(),
		MachineID: machineID,
		Direction: direction,
		Layer:     log.LayerTransport,
		Category:  log.CategoryMessage,
		Frame: &log.FrameEvent{
			Size:      len(data),
			Data:      append([]byte(nil), frameData...),
			Truncated: truncated,
		},
	}
}
