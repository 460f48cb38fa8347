package nyaadle

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Directories is the resolved flat configuration for one run.
type Directories struct {
	DownloadDir string
	ArchiveDir  string
	FeedURL     string
	LogPath     string
}

// DefaultSettings returns the values written on first run:
// ~/Transmission/torrent-ingest for downloads, an archive directory below
// it, the nyaa RSS feed and a log file next to the database.
func DefaultSettings() (map[string]string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("home dir: %w", err)
	}
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("config dir: %w", err)
	}
	dl := filepath.Join(home, "Transmission", "torrent-ingest")
	return map[string]string{
		KeyDownloadDir: dl,
		KeyArchiveDir:  filepath.Join(dl, "archive"),
		KeyFeedURL:     DefaultFeedURL,
		KeyLogPath:     filepath.Join(cfgDir, "nyaadle", "nyaadle.log"),
	}, nil
}

// ResolveDirectories reads every setting from p, substituting defaults for
// unset keys.
func ResolveDirectories(ctx context.Context, p SettingsProvider) (Directories, error) {
	vals := make(map[string]string, len(SettingKeys))
	var defaults map[string]string
	for _, key := range SettingKeys {
		v, err := p.Setting(ctx, key)
		if err != nil {
			return Directories{}, err
		}
		if v == "" {
			if defaults == nil {
				if defaults, err = DefaultSettings(); err != nil {
					return Directories{}, err
				}
			}
			v = defaults[key]
		}
		vals[key] = v
	}
	return Directories{
		DownloadDir: vals[KeyDownloadDir],
		ArchiveDir:  vals[KeyArchiveDir],
		FeedURL:     vals[KeyFeedURL],
		LogPath:     vals[KeyLogPath],
	}, nil
}
