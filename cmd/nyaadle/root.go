package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sigman78/nyaadle/internal/nyaadle"
)

func newRootCmd() *cobra.Command {
	var check bool

	root := &cobra.Command{
		Use:   "nyaadle",
		Short: "Downloads watch-listed items from an RSS feed",
		Long: `nyaadle polls an RSS/Atom feed, matches item titles against a watch-list
and downloads new matches into the download directory, mirroring them into
an archive directory. Magnet links are handed to the system handler.`,
		Example: `  nyaadle
  nyaadle --check
  nyaadle dl -l https://foo.bar/bar.file
  nyaadle wle -a -t "Show X" -o 720`,
		Args:              noArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: bindConfig,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			feedURL, err := a.store.Setting(cmd.Context(), nyaadle.KeyFeedURL)
			if err != nil {
				return err
			}
			if feedURL == "" {
				feedURL = nyaadle.DefaultFeedURL
			}
			watch, err := a.store.WatchList(cmd.Context())
			if err != nil {
				return err
			}
			if check {
				_, err = a.service().RunCheck(cmd.Context(), feedURL, watch)
			} else {
				_, err = a.service().RunNormal(cmd.Context(), feedURL, watch)
			}
			return err
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})

	root.Flags().BoolVarP(&check, "check", "c", false, "Parses the RSS feed normally but does not download anything")

	pf := root.PersistentFlags()
	pf.String("db", "", "Path to the settings database (default <config dir>/nyaadle/nyaadle.db)")
	pf.BoolP("debug", "D", false, "Enable debug-level logging")
	pf.BoolP("quiet", "q", false, "Do not render download progress bars")
	pf.Int("workers", 1, "Concurrent downloads in download mode")
	pf.Int("retries", 3, "Max retries on throttled or 5xx download responses")
	pf.Int("fetch-rate", 30, "Download requests per minute (0 = unlimited)")
	pf.Duration("timeout", 120*time.Second, "Timeout per download request")
	pf.Duration("feed-timeout", 60*time.Second, "Timeout for fetching the feed")

	root.AddCommand(
		newDownloadCmd(),
		newParseCmd(),
		newSettingsCmd(),
		newWatchlistCmd(),
		newVersionCmd(),
	)
	return root
}

func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return usageErrorf("unknown command %q for %q", args[0], cmd.CommandPath())
	}
	return nil
}

// bindConfig makes every flag readable through viper, with NYAADLE_*
// environment variables as fallback.
func bindConfig(cmd *cobra.Command, _ []string) error {
	viper.SetEnvPrefix("nyaadle")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	return bindErr
}

// app is the state shared by commands that touch the store.
type app struct {
	store  *nyaadle.Store
	log    *logrus.Logger
	logOut io.Closer
}

// openApp opens the store, writes first-run defaults and sets up logging
// to the configured log file.
func openApp(ctx context.Context) (*app, error) {
	path := viper.GetString("db")
	if path == "" {
		var err error
		if path, err = nyaadle.DefaultStorePath(); err != nil {
			return nil, err
		}
	}
	_, statErr := os.Stat(path)
	store, err := nyaadle.OpenStore(path)
	if err != nil {
		return nil, err
	}
	if _, err := store.EnsureDefaults(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	if os.IsNotExist(statErr) {
		fmt.Println("nyaadle.db created.")
		fmt.Printf("You can change settings with 'nyaadle settings'. Database: %s\n", path)
	}

	dirs, err := nyaadle.ResolveDirectories(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	log, closer, err := nyaadle.NewLogger(dirs.LogPath, viper.GetBool("debug"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot open log file, logging to stderr: %v\n", err)
	}
	return &app{store: store, log: log, logOut: closer}, nil
}

// service builds the run service from the current flags.
func (a *app) service() *nyaadle.Service {
	fetcher := nyaadle.NewFetcher(nyaadle.FetcherOptions{
		Timeout:    viper.GetDuration("timeout"),
		RatePerMin: viper.GetInt("fetch-rate"),
		MaxRetries: viper.GetInt("retries"),
	})
	exec := nyaadle.NewExecutor(a.store, fetcher, nyaadle.SystemOpener{}, nyaadle.ExecutorOptions{
		Log:      a.log,
		Progress: showProgress(),
	})
	return nyaadle.NewService(
		nyaadle.NewFeedSource(viper.GetDuration("feed-timeout"), ""),
		nyaadle.NewTracker(a.store, a.log),
		exec,
		nyaadle.Config{Workers: viper.GetInt("workers"), Log: a.log},
	)
}

// showProgress reports whether transfers draw progress bars. Concurrent
// workers would draw over each other on stderr, so bars need one worker.
func showProgress() bool {
	return !viper.GetBool("quiet") && viper.GetInt("workers") <= 1
}

func (a *app) Close() {
	_ = a.store.Close()
	_ = a.logOut.Close()
}
