package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sigman78/nyaadle/internal/nyaadle"
)

func newDownloadCmd() *cobra.Command {
	var (
		links []string
		file  string
	)
	cmd := &cobra.Command{
		Use:     "download",
		Aliases: []string{"dl"},
		Short:   "Downloads the given URLs to the download directory",
		Example: `  nyaadle download -l https://foo.com/bar.torrent
  nyaadle dl -f input.file
  nyaadle dl -l https://foo.com/bar1.file https://foo.com/bar2.file`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// "-l a b" leaves b as a positional argument.
			targets := append(append([]string(nil), links...), args...)
			if len(targets) == 0 && file == "" {
				return usageErrorf("one of --links or --from-file is required")
			}
			if file != "" {
				f, err := os.Open(file) //nolint:gosec // G304: user-supplied input file
				if err != nil {
					return fmt.Errorf("open %s: %w", file, err)
				}
				fromFile, err := nyaadle.ReadLinks(f)
				_ = f.Close()
				if err != nil {
					return err
				}
				targets = append(targets, fromFile...)
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			_, err = a.service().RunLinks(cmd.Context(), targets)
			return err
		},
	}
	cmd.Flags().StringArrayVarP(&links, "links", "l", nil, "URLs or magnet links to download")
	cmd.Flags().StringVarP(&file, "from-file", "f", "", "File with one URL per line")
	return cmd
}
