package sched

import "errors"

var (
	// ErrInvalidArgument is returned when a task or processor handle is missing.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNoProcessor is returned when scheduling onto a processor that does not exist.
	ErrNoProcessor = errors.New("processor does not exist")
)

// ContractViolation is raised when calling code or the run loop breaks a
// state precondition. It is not recoverable: the default halt panics with it.
type ContractViolation struct {
	Msg string
}

func (c *ContractViolation) Error() string {
	return "BUG: " + c.Msg
}
