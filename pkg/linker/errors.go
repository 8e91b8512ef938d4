package linker

import "errors"

var (
	ErrFormat                 = errors.New("malformed input")
	ErrUnsupportedInstruction = errors.New("unsupported instruction")
	ErrUnresolved             = errors.New("unresolved reference")
	ErrBranchRange            = errors.New("branch target out of range")
)
