package nyaadle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

const rssFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:nyaa="https://nyaa.si/xmlns/nyaa">
<channel>
  <title>Nyaa - Home - Torrent File RSS</title>
  <link>https://nyaa.si/</link>
  <item>
    <title>Show X - 05 [720p]</title>
    <link>https://nyaa.si/download/1001.torrent</link>
  </item>
  <item>
    <title>  Show X - 05 [1080p]  </title>
    <link> https://nyaa.si/download/1002.torrent </link>
  </item>
  <item>
    <title>Book Vol.1</title>
    <enclosure url="https://nyaa.si/download/1003.torrent" type="application/x-bittorrent" length="100"/>
  </item>
</channel>
</rss>`

const atomFixture = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Releases</title>
  <entry>
    <title>Show Y - 01 [1080p]</title>
    <link href="https://example.com/show-y-01.torrent"/>
    <id>urn:1</id>
    <updated>2024-01-01T00:00:00Z</updated>
  </entry>
</feed>`

func serveFeed(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestFeedSourceRSS(t *testing.T) {
	url := serveFeed(t, http.StatusOK, rssFixture)
	got, err := NewFeedSource(5*time.Second, "").Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []FeedItem{
		{Title: "Show X - 05 [720p]", Link: "https://nyaa.si/download/1001.torrent"},
		{Title: "Show X - 05 [1080p]", Link: "https://nyaa.si/download/1002.torrent"},
		{Title: "Book Vol.1", Link: "https://nyaa.si/download/1003.torrent"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fetch\n  got  %+v\n  want %+v", got, want)
	}
}

func TestFeedSourceAtom(t *testing.T) {
	url := serveFeed(t, http.StatusOK, atomFixture)
	got, err := NewFeedSource(5*time.Second, "").Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := []FeedItem{{Title: "Show Y - 01 [1080p]", Link: "https://example.com/show-y-01.torrent"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fetch\n  got  %+v\n  want %+v", got, want)
	}
}

func TestFeedSourceUnreachable(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	cases := map[string]string{
		"connection refused": deadURL,
		"server error":       serveFeed(t, http.StatusInternalServerError, ""),
		"not a feed":         serveFeed(t, http.StatusOK, "<html><body>maintenance</body></html>"),
		"bad url":            "://nope",
	}
	src := NewFeedSource(5*time.Second, "")
	for name, url := range cases {
		t.Run(name, func(t *testing.T) {
			items, err := src.Fetch(context.Background(), url)
			if !errors.Is(err, ErrFeedUnreachable) {
				t.Fatalf("err = %v, want ErrFeedUnreachable", err)
			}
			if items != nil {
				t.Errorf("items = %+v, want nil", items)
			}
		})
	}
}
