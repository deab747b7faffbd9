package dockwright

import "errors"

// Standard errors
var (
	// ErrProviderCallFailed is returned when a request to the model provider fails.
	ErrProviderCallFailed = errors.New("provider call failed")

	// ErrMaxTurnsExceeded is returned when the model keeps invoking actions
	// past the configured turn ceiling.
	ErrMaxTurnsExceeded = errors.New("maximum turns exceeded")

	// ErrEmptyArtifact is returned when the final response contains no Dockerfile.
	ErrEmptyArtifact = errors.New("model returned no Dockerfile")

	// ErrScriptTooLarge is returned by Prepare when the script exceeds the size ceiling.
	ErrScriptTooLarge = errors.New("script too large")

	// ErrExampleTooLarge is returned by Prepare when the example usage file
	// exceeds its size ceiling.
	ErrExampleTooLarge = errors.New("example usage file too large")
)
