package crmmon

import (
	"fmt"
	"strings"
)

// CommandError reports that the status tool could not be run or exited
// non-zero. It is distinct from ParseError so diagnostics can tell "command
// didn't run" from "command returned garbage".
type CommandError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ParseError reports that the status tool returned something other than a
// well-formed cluster status document.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid cluster status document: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
