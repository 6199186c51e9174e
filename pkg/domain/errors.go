package domain

import "errors"

// ErrSessionNotFound is returned when a (user, lesson) session has no
// persisted state yet.
var ErrSessionNotFound = errors.New("session not found")

// ErrAnswerInFlight is returned when a new answer arrives while a previous
// one is still being validated or advanced.
var ErrAnswerInFlight = errors.New("answer already in flight")

// ErrSessionClosed is returned when a session is used after Close or after a
// restart invalidated it.
var ErrSessionClosed = errors.New("session closed")

// ErrContinueNotAllowed is returned when an explicit continue arrives at a
// position that requires a graded answer instead.
var ErrContinueNotAllowed = errors.New("current step requires an answer")
