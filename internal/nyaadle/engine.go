package nyaadle

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Downloader handles one matched download target.
type Downloader interface {
	Do(ctx context.Context, target, label string) (Outcome, error)
}

// Deduper decides whether a matched item was already handled.
type Deduper interface {
	ShouldSkip(ctx context.Context, key, candidate string) bool
}

// Engine matches feed items against the watch-list.
//
// Entries are processed in watch-list order and items in feed order. An
// item matches an entry when its title contains the entry title and:
//   - the entry option is "non-vid", or
//   - the item title also contains the entry option (e.g. "1080").
//
// An entry with an empty title ends the whole run; an entry with an empty
// option ends only its own item loop. Both are warnings, not errors.
type Engine struct {
	tracker Deduper
	exec    Downloader
	out     io.Writer
	log     logrus.FieldLogger
}

// NewEngine returns an Engine. tracker and exec may be nil when the engine
// is only used in check mode.
func NewEngine(tracker Deduper, exec Downloader, out io.Writer, log logrus.FieldLogger) *Engine {
	if out == nil {
		out = os.Stdout
	}
	if log == nil {
		log = discardLogger()
	}
	return &Engine{tracker: tracker, exec: exec, out: out, log: log}
}

// Run evaluates items against watch. With checkOnly set matches are only
// reported: nothing is downloaded and tracking is left untouched.
func (e *Engine) Run(ctx context.Context, items []FeedItem, watch []WatchEntry, checkOnly bool) (*Summary, error) {
	sum := &Summary{}
	_, _ = fmt.Fprint(e.out, "Checking watch-list...\n\n")
	for _, entry := range watch {
		if entry.Title == "" {
			e.log.Warn("Watch-list not found.")
			_, _ = fmt.Fprintln(e.out, "Please set a watch-list by running 'nyaadle watchlist --add'")
			break
		}
		_, _ = fmt.Fprintf(e.out, "Checking for %s\n", entry.Title)
		if err := e.runEntry(ctx, entry, items, checkOnly, sum); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

func (e *Engine) runEntry(ctx context.Context, entry WatchEntry, items []FeedItem, checkOnly bool, sum *Summary) error {
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if item.Title == "" {
			return fmt.Errorf("item %d: %w", i, ErrMissingTitle)
		}
		if !strings.Contains(item.Title, entry.Title) {
			continue
		}

		switch entry.Option {
		case OptionNonVideo:
		case OptionUnset:
			e.log.WithField("entry", entry.Title).Warn("Download option not found.")
			_, _ = fmt.Fprintln(e.out, "Please set a download option by running 'nyaadle watchlist --edit'")
			return nil
		default:
			if !strings.Contains(item.Title, entry.Option) {
				continue
			}
			if !checkOnly {
				_, _ = fmt.Fprintf(e.out, "Selecting %sp version\n", entry.Option)
			}
		}

		if checkOnly {
			_, _ = fmt.Fprintf(e.out, "Found %s\n\n", item.Title)
			sum.Found++
			continue
		}
		if err := e.download(ctx, entry, item, sum); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) download(ctx context.Context, entry WatchEntry, item FeedItem, sum *Summary) error {
	if item.Link == "" {
		e.log.WithField("item", item.Title).Warn("Item has no link")
		sum.Failed++
		return nil
	}
	if e.tracker.ShouldSkip(ctx, entry.Title, item.Title) {
		_, _ = fmt.Fprintf(e.out, "Already downloaded %s\n\n", item.Title)
		sum.Repeats++
		return nil
	}

	_, _ = fmt.Fprintf(e.out, "Downloading %s\n", item.Title)
	o, err := e.exec.Do(ctx, item.Link, item.Title)
	if err != nil {
		return err
	}
	sum.Add(o)
	return nil
}
