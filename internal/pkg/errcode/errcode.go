package errcode

const (
	ErrUnknown = 10000000 + iota
	ErrNotFound
	ErrInvalid
	ErrConflict
	ErrTooMany
	ErrInternal
	ErrInvalidFile
	ErrUnsupportedFormat
	ErrEmptyContent
	ErrFileTooLarge
	ErrAlreadyProcessing
	ErrUploadFailed
	ErrSearchUnavailable
)
