package warranty

import "errors"

var (
	// ErrNotFound is returned for missing warranties, missing files and warranties owned by
	// someone else
	ErrNotFound = errors.New("not found")

	// ErrUnauthenticated is returned when an operation needs a signed-in user
	ErrUnauthenticated = errors.New("authentication required")

	// ErrNoCredits is returned when a free user has used the free upload and has no credits
	ErrNoCredits = errors.New("no upload credits left")

	// ErrUpgradeRequired is returned for premium-only operations
	ErrUpgradeRequired = errors.New("premium plan required")

	// ErrTooLarge is returned when a document exceeds the upload size limit
	ErrTooLarge = errors.New("file too large")

	// ErrUnsupportedType is returned for documents that are not images, PDFs or plain text
	ErrUnsupportedType = errors.New("unsupported file type")
)
