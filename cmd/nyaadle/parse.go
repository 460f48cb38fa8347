package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigman78/nyaadle/internal/nyaadle"
)

func newParseCmd() *cobra.Command {
	var (
		feed   string
		title  string
		option string
		check  bool
	)
	cmd := &cobra.Command{
		Use:     "parse",
		Aliases: []string{"p"},
		Short:   "Parses the specified feed or item",
		Example: `  nyaadle parse -f https://foo.com/bar.rss
  nyaadle p -t "Item Title" -o 720
  nyaadle p -f https://foo.com/bar1.rss -t "Item title" -o non-vid`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if feed == "" && title == "" && option == "" {
				return usageErrorf("provide --feed and/or --title with --option")
			}
			if option != "" && title == "" {
				return usageErrorf("item to be parsed not provided: --option needs --title")
			}
			if title != "" && !nyaadle.IsValidOption(option) {
				return usageErrorf("an option is required with --title (one of %s)", strings.Join(nyaadle.ValidOptions, ", "))
			}
			if feed != "" {
				u, err := nyaadle.NormalizeFeedURL(feed)
				if err != nil {
					return usageErrorf("invalid feed URL: %v", err)
				}
				feed = u
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if feed == "" {
				if feed, err = a.store.Setting(cmd.Context(), nyaadle.KeyFeedURL); err != nil {
					return err
				}
				if feed == "" {
					feed = nyaadle.DefaultFeedURL
				}
			}
			var watch []nyaadle.WatchEntry
			if title != "" {
				watch = []nyaadle.WatchEntry{{Title: title, Option: option}}
			} else if watch, err = a.store.WatchList(cmd.Context()); err != nil {
				return err
			}

			a.log.WithField("feed", feed).Info("Nyaadle started in parse mode.")
			if check {
				_, err = a.service().RunCheck(cmd.Context(), feed, watch)
			} else {
				_, err = a.service().RunNormal(cmd.Context(), feed, watch)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&feed, "feed", "f", "", "Parses the given RSS feed instead of the one in the database")
	cmd.Flags().StringVarP(&title, "title", "t", "", "Parses the feed for the given item; requires --option")
	cmd.Flags().StringVarP(&option, "option", "o", "", "Option for --title: 1080, 720 or non-vid")
	cmd.Flags().BoolVarP(&check, "check", "c", false, "Report matches without downloading")
	return cmd
}
