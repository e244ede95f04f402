package domain

import "fmt"

// OutcomeKind classifies a single round trip against the session authority.
type OutcomeKind int

const (
	OutcomeOK               OutcomeKind = iota
	OutcomeAuthFailure                  // authority explicitly rejected the handle (401/400)
	OutcomeTransientFailure             // anything else: network, 5xx, unexpected shape
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeAuthFailure:
		return "auth_failure"
	case OutcomeTransientFailure:
		return "transient_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

// Outcome is the tagged result of a session authority call. Value is only
// meaningful when Kind is OutcomeOK; Message is only meaningful otherwise.
type Outcome[T any] struct {
	Kind    OutcomeKind
	Value   T
	Message string
}

func Ok[T any](v T) Outcome[T] {
	return Outcome[T]{Kind: OutcomeOK, Value: v}
}

func AuthFailure[T any](msg string) Outcome[T] {
	return Outcome[T]{Kind: OutcomeAuthFailure, Message: msg}
}

func TransientFailure[T any](msg string) Outcome[T] {
	return Outcome[T]{Kind: OutcomeTransientFailure, Message: msg}
}
