package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sigman78/nyaadle/internal/nyaadle"
)

type watchlistFlags struct {
	add, del, edit, print bool
	ids                   []string
	title, option         string
	exportPath            string
	importPath            string
}

func newWatchlistCmd() *cobra.Command {
	var f watchlistFlags
	cmd := &cobra.Command{
		Use:     "watchlist",
		Aliases: []string{"wle"},
		Short:   "Edits the watch-list",
		Example: `  nyaadle watchlist -a -t "Show X" -o 720
  nyaadle wle -e -i 2 -t "Show Y" -o 1080
  nyaadle wle -d -i 2 3
  nyaadle wle -p
  nyaadle wle --export list.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// "-i 2 3" leaves 3 as a positional argument.
			f.ids = append(f.ids, args...)
			action, err := f.action()
			if err != nil {
				return err
			}
			if action == nil {
				return cmd.Help()
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			return action(cmd.Context(), a, os.Stdout)
		},
	}
	fl := cmd.Flags()
	fl.BoolVarP(&f.add, "add", "a", false, "Add an item")
	fl.BoolVarP(&f.del, "delete", "d", false, "Delete items")
	fl.BoolVarP(&f.edit, "edit", "e", false, "Edit items")
	fl.BoolVarP(&f.print, "print", "p", false, "Print the watch-list")
	fl.StringArrayVarP(&f.ids, "item", "i", nil, "Item ID to edit or delete")
	fl.StringVarP(&f.title, "title", "t", "", "Name or title of the item")
	fl.StringVarP(&f.option, "option", "o", "", "Item option: 1080, 720 or non-vid")
	fl.StringVar(&f.exportPath, "export", "", "Write the watch-list to a YAML file")
	fl.StringVar(&f.importPath, "import", "", "Add every item of a YAML file to the watch-list")
	return cmd
}

type watchlistAction func(ctx context.Context, a *app, out io.Writer) error

// action validates the flag combination and returns what to run, or nil
// when no action was requested.
func (f *watchlistFlags) action() (watchlistAction, error) {
	n := 0
	for _, set := range []bool{f.add, f.del, f.edit, f.print, f.exportPath != "", f.importPath != ""} {
		if set {
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	if n > 1 {
		return nil, usageErrorf("only one of --add, --delete, --edit, --print, --export, --import may be given")
	}

	switch {
	case f.add:
		if err := f.validateItem(); err != nil {
			return nil, err
		}
		return f.runAdd, nil
	case f.edit:
		if err := f.validateItem(); err != nil {
			return nil, err
		}
		ids, err := parseIDs(f.ids)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, a *app, out io.Writer) error {
			for _, id := range ids {
				if err := a.store.UpdateWatchEntry(ctx, id, f.title, f.option); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Updated %d to \"%s | %s\".\n", id, f.title, f.option)
			}
			return nil
		}, nil
	case f.del:
		ids, err := parseIDs(f.ids)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context, a *app, out io.Writer) error {
			for _, id := range ids {
				if err := a.store.DeleteWatchEntry(ctx, id); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "Item %d deleted.\n", id)
			}
			return nil
		}, nil
	case f.print:
		return printWatchList, nil
	case f.exportPath != "":
		return f.runExport, nil
	default:
		return f.runImport, nil
	}
}

func (f *watchlistFlags) validateItem() error {
	f.title = strings.TrimSpace(f.title)
	if f.title == "" || f.option == "" {
		return usageErrorf("please provide both an item name (--title) and an item option (--option)")
	}
	if !nyaadle.IsValidOption(f.option) {
		return usageErrorf("invalid option %q (one of %s)", f.option, strings.Join(nyaadle.ValidOptions, ", "))
	}
	return nil
}

func parseIDs(raw []string) ([]int64, error) {
	if len(raw) == 0 {
		return nil, usageErrorf("please select an item with --item")
	}
	ids := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil || id <= 0 {
			return nil, usageErrorf("invalid item id %q", s)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *watchlistFlags) runAdd(ctx context.Context, a *app, out io.Writer) error {
	if err := dropPlaceholder(ctx, a); err != nil {
		return err
	}
	if _, err := a.store.AddWatchEntry(ctx, f.title, f.option); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Added \"%s | %s\" to the watchlist.\n", f.title, f.option)
	return nil
}

func printWatchList(ctx context.Context, a *app, out io.Writer) error {
	list, err := a.store.WatchList(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, "ID | Item Title | Option")
	for _, e := range list {
		_, _ = fmt.Fprintf(out, "%d | %s | %s\n", e.ID, e.Title, e.Option)
	}
	return nil
}

func (f *watchlistFlags) runExport(ctx context.Context, a *app, out io.Writer) error {
	list, err := a.store.WatchList(ctx)
	if err != nil {
		return err
	}
	w, err := os.Create(f.exportPath) //nolint:gosec // G304: user-supplied output file
	if err != nil {
		return err
	}
	if err := nyaadle.ExportWatchList(w, list); err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Watch-list written to %s\n", f.exportPath)
	return nil
}

func (f *watchlistFlags) runImport(ctx context.Context, a *app, out io.Writer) error {
	r, err := os.Open(f.importPath) //nolint:gosec // G304: user-supplied input file
	if err != nil {
		return err
	}
	entries, err := nyaadle.ImportWatchList(r)
	_ = r.Close()
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		if err := dropPlaceholder(ctx, a); err != nil {
			return err
		}
	}
	for _, e := range entries {
		if _, err := a.store.AddWatchEntry(ctx, e.Title, e.Option); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Added \"%s | %s\" to the watchlist.\n", e.Title, e.Option)
	}
	return nil
}

// dropPlaceholder removes the empty first-run entry; left in place it
// would end every run before the new entry is reached.
func dropPlaceholder(ctx context.Context, a *app) error {
	list, err := a.store.WatchList(ctx)
	if err != nil {
		return err
	}
	for _, e := range list {
		if e.Title == "" {
			if err := a.store.DeleteWatchEntry(ctx, e.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
