package domain

import "errors"

// ErrKeyNotFound is returned by storage backends when a key has no value.
var ErrKeyNotFound = errors.New("key not found")

// ErrUnknownFeature is returned when a feature name has no machine table.
var ErrUnknownFeature = errors.New("unknown feature")

// ErrSessionNotFound is returned when a session ID is not hosted by the session manager.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoFeatureMachine is returned when a feature operation needs an active feature machine.
var ErrNoFeatureMachine = errors.New("no feature machine")

// ErrNoFeatures is returned when a feature list is committed empty.
var ErrNoFeatures = errors.New("no features selected")
