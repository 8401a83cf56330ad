package orchestration

import (
	"errors"
	"fmt"

	"github.com/JensKSuessmeyer/delta-kusto/pkg/command"
)

// ErrDataLoss is returned when failIfDataLoss is set and a delta would
// destroy data.
var ErrDataLoss = errors.New("delta would lose data")

// DataLossError lists the offending commands of one job.
type DataLossError struct {
	Job      string
	Commands []command.Command
}

func (e *DataLossError) Error() string {
	return fmt.Sprintf("%d command(s) would lose data, first: %s", len(e.Commands), firstLine(e.Commands))
}

func (e *DataLossError) Unwrap() error {
	return ErrDataLoss
}

// AsDataLoss extracts a DataLossError when present.
func AsDataLoss(err error) (*DataLossError, bool) {
	var target *DataLossError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

func firstLine(cmds []command.Command) string {
	if len(cmds) == 0 {
		return ""
	}
	script := cmds[0].Script()
	for i, r := range script {
		if r == '\n' {
			return script[:i]
		}
	}
	return script
}
