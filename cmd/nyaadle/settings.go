package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sigman78/nyaadle/internal/nyaadle"
)

type settingFlag struct {
	key   string
	label string
	set   string
	get   string
}

var settingFlags = []settingFlag{
	{nyaadle.KeyDownloadDir, "Download Directory", "set-dl-dir", "get-dl-dir"},
	{nyaadle.KeyArchiveDir, "Archive Directory", "set-ar-dir", "get-ar-dir"},
	{nyaadle.KeyFeedURL, "RSS Feed URL", "set-feed-url", "get-feed-url"},
	{nyaadle.KeyLogPath, "Log File", "set-log-file", "get-log-path"},
}

func newSettingsCmd() *cobra.Command {
	var printAll bool

	cmd := &cobra.Command{
		Use:     "settings",
		Aliases: []string{"set"},
		Short:   "Reads or changes settings",
		Example: `  nyaadle settings --set-dl-dir ~/Downloads/torrents
  nyaadle set --get-feed-url
  nyaadle set -p`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			type change struct {
				flag  settingFlag
				value string
			}
			var changes []change
			var reads []settingFlag
			for _, sf := range settingFlags {
				if cmd.Flags().Changed(sf.set) {
					raw, _ := cmd.Flags().GetString(sf.set)
					v, err := normalizeSetting(sf.key, raw)
					if err != nil {
						return usageErrorf("--%s: %v", sf.set, err)
					}
					changes = append(changes, change{sf, v})
				}
				if get, _ := cmd.Flags().GetBool(sf.get); get || printAll {
					reads = append(reads, sf)
				}
			}
			if len(changes) == 0 && len(reads) == 0 {
				return cmd.Help()
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			for _, c := range changes {
				if err := a.store.SetSetting(cmd.Context(), c.flag.key, c.value); err != nil {
					return err
				}
				a.log.WithField("key", c.flag.key).Info("Setting updated")
				fmt.Printf("%s set to %s\n", c.flag.label, c.value)
			}
			if len(reads) == 0 {
				return nil
			}

			dirs, err := nyaadle.ResolveDirectories(cmd.Context(), a.store)
			if err != nil {
				return err
			}
			vals := map[string]string{
				nyaadle.KeyDownloadDir: dirs.DownloadDir,
				nyaadle.KeyArchiveDir:  dirs.ArchiveDir,
				nyaadle.KeyFeedURL:     dirs.FeedURL,
				nyaadle.KeyLogPath:     dirs.LogPath,
			}
			for _, sf := range reads {
				fmt.Printf("%s: %s\n", sf.label, vals[sf.key])
			}
			return nil
		},
	}

	for _, sf := range settingFlags {
		cmd.Flags().String(sf.set, "", "Sets the "+sf.label)
		cmd.Flags().Bool(sf.get, false, "Returns the "+sf.label)
	}
	cmd.Flags().BoolVarP(&printAll, "print", "p", false, "Displays the current settings")
	return cmd
}

// normalizeSetting validates a new value: paths become absolute, the feed
// URL is normalised.
func normalizeSetting(key, value string) (string, error) {
	if value == "" {
		return "", fmt.Errorf("empty value")
	}
	if key == nyaadle.KeyFeedURL {
		return nyaadle.NormalizeFeedURL(value)
	}
	return filepath.Abs(value)
}
