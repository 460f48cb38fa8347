// Package nyaadle matches RSS/Atom feed items against a watch-list and
// downloads the matches into a download directory mirrored by an archive.
package nyaadle

// Watch-list options.
const (
	// OptionNonVideo matches any item whose title contains the entry title.
	OptionNonVideo = "non-vid"
	// OptionUnset marks a misconfigured entry.
	OptionUnset = ""
)

// ValidOptions are the option tokens accepted by the watch-list editor.
var ValidOptions = []string{"1080", "720", OptionNonVideo}

// WatchEntry is one row of the watch-list.
type WatchEntry struct {
	ID     int64  `yaml:"-"`
	Title  string `yaml:"title"`
	Option string `yaml:"option"`
}

// FeedItem is the part of a feed item the engine consumes.
// An empty Link means the item has no link.
type FeedItem struct {
	Title string
	Link  string
}

// IsValidOption reports whether opt is one of ValidOptions.
func IsValidOption(opt string) bool {
	for _, o := range ValidOptions {
		if o == opt {
			return true
		}
	}
	return false
}
