package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrUploadFailed      = errors.New("upload failed")
	ErrRateLimited       = errors.New("rate limited")
	ErrAssetDecodeFailed = errors.New("asset decode failed")
	ErrInvalidTransition = errors.New("invalid stage transition")
	ErrStageIncomplete   = errors.New("stage incomplete")
	ErrNotPermutation    = errors.New("order is not a permutation of the kept sequence")
	ErrSuperseded        = errors.New("superseded by a newer request")
	ErrNothingToExport   = errors.New("nothing to export")
	ErrExportTooLarge    = errors.New("export too large")
	ErrUnknownVariant    = errors.New("unknown presentation variant")
	ErrUnknownKind       = errors.New("unknown card kind")

	// ErrTransientReference marks image references the AI provider cannot
	// fetch (data: or blob: URLs). They must be uploaded first.
	ErrTransientReference = errors.New("image reference is not externally fetchable")
)
