package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/vendsim/vendsim-go/pkg/log"
)

// Stats holds aggregate statistics about a log file.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	MessagesByKey     map[string]int
	Machines          map[string]*MachineStats
	Errors            int
	TimeRange         struct {
		Start time.Time
		End   time.Time
	}
}

// MachineStats holds statistics for a single machine.
type MachineStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Events    int
	Presses   int
	Receipts  int
	Cancels   int
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     make(map[log.Layer]int),
		EventsByCategory:  make(map[log.Category]int),
		EventsByDirection: make(map[log.Direction]int),
		MessagesByKey:     make(map[string]int),
		Machines:          make(map[string]*MachineStats),
	}
}

// add folds one event into the totals.
func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByLayer[event.Layer]++
	s.EventsByCategory[event.Category]++
	s.EventsByDirection[event.Direction]++

	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	m, ok := s.Machines[event.MachineID]
	if !ok {
		m = &MachineStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Machines[event.MachineID] = m
	}
	m.Events++
	if event.Timestamp.After(m.LastSeen) {
		m.LastSeen = event.Timestamp
	}

	switch {
	case event.Message != nil:
		s.MessagesByKey[event.Message.Key]++
		if event.Direction == log.DirectionOut {
			switch event.Message.Key {
			case "receipt":
				m.Receipts++
			case "cancel":
				m.Cancels++
			}
		}
	case event.Input != nil:
		if event.Input.PressRelease {
			m.Presses++
		}
	case event.Error != nil:
		s.Errors++
	}
}

// collectStats totals the selected events of the capture file at path.
func collectStats(path string, sel Selection) (*Stats, error) {
	stats := newStats()
	err := each(path, sel, func(event log.Event) error {
		stats.add(event)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RunStats prints statistics for the selected events.
func RunStats(path string, sel Selection, w io.Writer) error {
	stats, err := collectStats(path, sel)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== Vending Machine Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Layer:")
	for _, layer := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerService, log.LayerGPIO} {
		if count := stats.EventsByLayer[layer]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", layer.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryInput, log.CategoryState, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Direction:")
	for _, dir := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if count := stats.EventsByDirection[dir]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", dir.String()+":", count)
		}
	}

	if len(stats.MessagesByKey) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Messages by Key:")
		keys := make([]string, 0, len(stats.MessagesByKey))
		for k := range stats.MessagesByKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %-12s %d\n", k+":", stats.MessagesByKey[k])
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Machines: %d\n", len(stats.Machines))
	if len(stats.Machines) > 0 {
		type machineInfo struct {
			id    string
			stats *MachineStats
		}
		machines := make([]machineInfo, 0, len(stats.Machines))
		for id, ms := range stats.Machines {
			machines = append(machines, machineInfo{id, ms})
		}
		sort.Slice(machines, func(i, j int) bool {
			return machines[i].stats.FirstSeen.Before(machines[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, m := range machines {
			duration := m.stats.LastSeen.Sub(m.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d events, duration %s\n", shortenID(m.id), m.stats.Events, duration)
			fmt.Fprintf(w, "           Presses: %d  Receipts: %d  Cancels: %d\n",
				m.stats.Presses, m.stats.Receipts, m.stats.Cancels)
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d\n", stats.Errors)
	}
}
