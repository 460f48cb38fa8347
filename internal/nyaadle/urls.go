package nyaadle

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	sanitize "github.com/mrz1836/go-sanitize"
	"golang.org/x/net/idna"
)

// DefaultFileName is used when no file name can be derived from a URL.
const DefaultFileName = "tmp.bin"

const magnetPrefix = "magnet:"

// IsMagnet reports whether target is a magnet link.
func IsMagnet(target string) bool {
	return strings.HasPrefix(strings.TrimSpace(target), magnetPrefix)
}

// NormalizeFeedURL parses and normalises a user-supplied feed URL.
// A missing scheme defaults to https and the host is converted to its ASCII
// (punycode) form.
func NormalizeFeedURL(input string) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", fmt.Errorf("empty URL")
	}
	if !strings.Contains(input, "://") {
		input = "https://" + input
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", fmt.Errorf("parse: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("missing host")
	}
	asciiHost, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("host %q: %w", host, err)
	}
	if port := u.Port(); port != "" {
		asciiHost += ":" + port
	}
	u.Host = strings.ToLower(asciiHost)
	u.Fragment = ""
	return u.String(), nil
}

// RemoteFileName derives the local file name for a resolved download URL:
// the last path segment, sanitised for the filesystem. It falls back to
// DefaultFileName when the path ends in a slash or sanitises to nothing.
func RemoteFileName(u *url.URL) string {
	if u == nil {
		return DefaultFileName
	}
	segments := strings.Split(u.Path, "/")
	last := segments[len(segments)-1]
	if last == "" {
		return DefaultFileName
	}
	if name := sanitizeSegment(last); name != "" {
		return name
	}
	return DefaultFileName
}

// sanitizeSegment sanitizes a single URL path segment.
// The extension is split off first and sanitized separately so it is
// never discarded by PathName (which strips dots).
func sanitizeSegment(seg string) string {
	ext := path.Ext(seg)
	if ext == "" {
		return sanitize.PathName(seg)
	}
	base := sanitize.PathName(seg[:len(seg)-len(ext)])
	extPart := sanitize.PathName(ext[1:])
	if base == "" {
		base = "file"
	}
	if extPart == "" {
		return base
	}
	return base + "." + extPart
}
