package nyaadle

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// DefaultFeedURL is the feed polled when none is configured.
const DefaultFeedURL = "https://nyaa.si/?page=rss"

// FeedSource fetches and parses RSS/Atom feeds.
type FeedSource struct {
	client    *http.Client
	userAgent string
}

// NewFeedSource returns a FeedSource whose requests time out after timeout
// (60 s when zero).
func NewFeedSource(timeout time.Duration, userAgent string) *FeedSource {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &FeedSource{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch downloads the feed at feedURL and returns its items in feed order.
// Every failure is wrapped in ErrFeedUnreachable.
func (s *FeedSource) Fetch(ctx context.Context, feedURL string) ([]FeedItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnreachable, err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d for %s", ErrFeedUnreachable, resp.StatusCode, feedURL)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrFeedUnreachable, err)
	}
	return feedItems(feed), nil
}

func feedItems(feed *gofeed.Feed) []FeedItem {
	items := make([]FeedItem, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		link := strings.TrimSpace(it.Link)
		if link == "" && len(it.Enclosures) > 0 && it.Enclosures[0] != nil {
			link = strings.TrimSpace(it.Enclosures[0].URL)
		}
		items = append(items, FeedItem{
			Title: strings.TrimSpace(it.Title),
			Link:  link,
		})
	}
	return items
}
