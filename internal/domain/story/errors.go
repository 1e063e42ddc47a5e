package story

import "errors"

var (
	ErrInvalidRequest        = errors.New("invalid story request")
	ErrGenerationFailed      = errors.New("story generation failed")
	ErrMalformedContinuation = errors.New("malformed story continuation")
	ErrNarrationFailed       = errors.New("narration failed")
	ErrPlaybackDecodeFailed  = errors.New("audio decode failed")
)
