package classifier

import "errors"

var (
	// ErrModelNotLoaded means no usable artifact is available; callers degrade to fallback-only mode.
	ErrModelNotLoaded = errors.New("model not loaded")
	// ErrCorruptBundle is returned when a serialized bundle fails checksum or shape validation.
	ErrCorruptBundle = errors.New("corrupt model bundle")
	// ErrEmptyTrainingSet is returned when Train is given no usable titles.
	ErrEmptyTrainingSet = errors.New("empty training set")
)
