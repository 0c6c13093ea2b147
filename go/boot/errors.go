package boot

import (
	"fmt"
)

type Stage string

const (
	StageArchive Stage = "archive"
	StageRead    Stage = "read"
	StageLoad    Stage = "load"
	StageStart   Stage = "start"
	StageWait    Stage = "wait"
)

// StageError is a fatal boot failure. It names the stage and the path
// being booted.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("boot failed at %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("boot failed at %s (%s): %v", e.Stage, e.Path, e.Err)
}

func (e *StageError) Cause() error {
	return e.Err
}
