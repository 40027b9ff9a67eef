package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/vendsim/vendsim-go/pkg/log"
)

// RunExport writes the selected events to w as jsonl or csv.
func RunExport(path, format string, sel Selection, w io.Writer) error {
	switch format {
	case "jsonl":
		return exportJSONL(path, sel, w)
	case "csv":
		return exportCSV(path, sel, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(path string, sel Selection, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return each(path, sel, func(event log.Event) error {
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		return nil
	})
}

func exportCSV(path string, sel Selection, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "machine_id", "direction", "layer", "category", "type", "value_size"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	err := each(path, sel, func(event log.Event) error {
		size := ""
		switch {
		case event.Message != nil:
			size = strconv.Itoa(event.Message.ValueSize)
		case event.Frame != nil:
			size = strconv.Itoa(event.Frame.Size)
		}
		return cw.Write([]string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.MachineID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			eventType(event),
			size,
		})
	})
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}
