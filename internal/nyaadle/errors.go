package nyaadle

import "errors"

var (
	// ErrFeedUnreachable is returned when the feed cannot be fetched or parsed.
	// Callers treat it as terminal for the whole run.
	ErrFeedUnreachable = errors.New("unable to connect to feed")

	// ErrMissingTitle is returned when an evaluated feed item carries no title.
	ErrMissingTitle = errors.New("feed item has no title")

	// ErrProvision is returned when the download or archive directory cannot be created.
	ErrProvision = errors.New("cannot provision directory")
)
