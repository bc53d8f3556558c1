package domain

import "errors"

// Failure taxonomy of the research pipeline. Everything here is recovered
// inside the pipeline except ErrPageSurfaceCrashed, which the low-level
// fetch helper must return to its caller.
var (
	// ErrParseFailure means model output was not usable JSON even after repair
	ErrParseFailure = errors.New("model output could not be parsed")

	// ErrModelFailure means every attempt of a model call failed
	ErrModelFailure = errors.New("model call failed after all attempts")

	// ErrPageFetch is the umbrella for dropped pages
	ErrPageFetch = errors.New("page fetch failed")

	// ErrFetchTimeout means a page fetch lost the race against its timeout
	ErrFetchTimeout = errors.New("page fetch timed out")

	// ErrBlankPage means navigation did not leave the blank page
	ErrBlankPage = errors.New("page did not navigate")

	// ErrInvalidContent means extracted text failed the quality check
	ErrInvalidContent = errors.New("page content failed quality check")

	// ErrPageSurfaceCrashed means the rendering surface itself died
	ErrPageSurfaceCrashed = errors.New("page rendering surface crashed")

	// ErrValidationReject means a fact or page was rejected by a heuristic
	ErrValidationReject = errors.New("rejected by validation heuristic")
)
