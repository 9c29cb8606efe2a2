package core

import (
	"fmt"
	"strings"
)

// ActuationFailed is returned when an underlying package or source tool exits
// with a non-zero status. Items holds the literal list that was attempted so an
// operator can retry narrowly.
type ActuationFailed struct {
	Domain   string
	Phase    string
	Items    []string
	ExitCode int
	Output   string
}

func (e *ActuationFailed) Error() string {
	domain := e.Domain
	if e.Phase != "" {
		domain += "/" + e.Phase
	}
	return fmt.Sprintf("%s: actuation failed with exit status %d for [%s]", domain, e.ExitCode, strings.Join(e.Items, " "))
}

// ObservationUnavailable reports that the current state of a domain could not
// be queried.
type ObservationUnavailable struct {
	Domain string
	Err    error
}

func (e *ObservationUnavailable) Error() string {
	return fmt.Sprintf("%s: observation unavailable: %v", e.Domain, e.Err)
}

func (e *ObservationUnavailable) Unwrap() error {
	return e.Err
}

// DelimiterCollision is returned when managed block content contains the
// delimiter that bounds it.
type DelimiterCollision struct {
	Delimiter string
}

func (e *DelimiterCollision) Error() string {
	return fmt.Sprintf("block content contains delimiter %q", e.Delimiter)
}
