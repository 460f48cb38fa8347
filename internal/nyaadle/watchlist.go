package nyaadle

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v2"
)

type watchListFile struct {
	Items []WatchEntry `yaml:"watchlist"`
}

// ExportWatchList writes entries as YAML. Placeholder entries with an
// empty title are left out.
func ExportWatchList(w io.Writer, entries []WatchEntry) error {
	var f watchListFile
	for _, e := range entries {
		if e.Title != "" {
			f.Items = append(f.Items, e)
		}
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("encode watchlist: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ImportWatchList parses a YAML watch-list. Every entry needs a title and
// one of ValidOptions.
func ImportWatchList(r io.Reader) ([]WatchEntry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read watchlist: %w", err)
	}
	var f watchListFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("decode watchlist: %w", err)
	}
	for i := range f.Items {
		e := &f.Items[i]
		e.Title = strings.TrimSpace(e.Title)
		e.Option = strings.TrimSpace(e.Option)
		if e.Title == "" {
			return nil, fmt.Errorf("watchlist item %d: empty title", i+1)
		}
		if !IsValidOption(e.Option) {
			return nil, fmt.Errorf("watchlist item %d (%s): invalid option %q", i+1, e.Title, e.Option)
		}
	}
	return f.Items, nil
}
