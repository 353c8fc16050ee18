package service

import "errors"

// Terminal errors reported to the caller as-is; no retry is expected.
var (
	// ErrInvalidInput means the request carried no byte content
	ErrInvalidInput = errors.New("no file content provided")

	// ErrQuotaExceeded means the upload would push the owner past their
	// unique-content byte quota
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrNotFound means the entry does not exist or belongs to another
	// owner; the two cases are deliberately indistinguishable
	ErrNotFound = errors.New("file entry not found")
)
