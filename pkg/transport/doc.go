// Package transport provides the simulated serial link of the vending
// machine.
//
// The transport layer handles:
//   - Broadcast byte queues standing in for one direction of a serial line
//   - Reassembly of frames from arbitrarily chunked byte streams
//   - Writing encoded frames onto a line with protocol capture
//
// # Stack
//
//	┌────────────────────────────────┐
//	│      vending controller        │
//	├────────────────────────────────┤
//	│   wire frames (KEY|LEN|VALUE)  │
//	├────────────────────────────────┤
//	│  StreamParser / FrameWriter    │
//	├────────────────────────────────┤
//	│      Port (Queue[[]byte])      │
//	└────────────────────────────────┘
//
// # Queues
//
// A Queue delivers every pushed item to every subscription attached at push
// time. Each subscription owns a private FIFO buffer; there is no replay of
// items pushed before Subscribe and no ordering between subscriptions.
// Destroy closes all subscriptions and discards what they had buffered.
package transport
