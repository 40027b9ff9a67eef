package commands

import (
	"fmt"

	"github.com/vendsim/vendsim-go/pkg/log"
)

// RunFilter copies the selected events into a new capture file at output
// and returns how many were copied.
func RunFilter(path, output string, sel Selection) (int, error) {
	if output == path {
		return 0, fmt.Errorf("output %s is the input file", output)
	}
	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, err
	}
	defer logger.Close()

	if err := each(path, sel, func(event log.Event) error {
		logger.Log(event)
		return nil
	}); err != nil {
		return 0, err
	}
	written, dropped := logger.Counts()
	if dropped > 0 {
		return written, fmt.Errorf("%d events could not be written", dropped)
	}
	return written, nil
}
