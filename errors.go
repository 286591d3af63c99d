package crater

import "errors"

// Sentinel errors for conditions callers may need to handle differently.
var (
	// ErrMalformedMask indicates a mask whose dimensions or pixel buffer do not
	// agree with the image it was predicted from.
	ErrMalformedMask = errors.New("crater: malformed mask")

	// ErrInvalidParams indicates extraction or matching parameters that cannot
	// produce a meaningful result.
	ErrInvalidParams = errors.New("crater: invalid parameters")

	// ErrModelNotFound indicates the model file does not exist.
	ErrModelNotFound = errors.New("crater: model file not found")

	// ErrInvalidModel indicates the model file exists but could not be loaded.
	ErrInvalidModel = errors.New("crater: invalid model format")
)
