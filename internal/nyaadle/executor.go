package nyaadle

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Outcome is the result of handling one download target.
type Outcome int

const (
	OutcomeFailed     Outcome = iota // transfer or opener failed
	OutcomeDownloaded                // saved to download and archive directories
	OutcomeOpened                    // handed to the external opener
	OutcomeArchived                  // already present in the archive, nothing fetched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDownloaded:
		return "downloaded"
	case OutcomeOpened:
		return "opened"
	case OutcomeArchived:
		return "archived"
	default:
		return "failed"
	}
}

// Count is the contribution of o to a run's download total.
func (o Outcome) Count() int {
	if o == OutcomeDownloaded || o == OutcomeOpened {
		return 1
	}
	return 0
}

// ContentFetcher retrieves download content.
type ContentFetcher interface {
	NameResolver
	Get(ctx context.Context, target string) (*Content, error)
}

// ExecutorOptions configures an Executor. Zero values select defaults.
type ExecutorOptions struct {
	Out      io.Writer // human-readable progress lines (default os.Stdout)
	Log      logrus.FieldLogger
	Progress bool // render a byte progress bar per transfer
}

// Executor saves download targets into the download directory and mirrors
// them into the archive directory. Magnet links go to an Opener instead.
type Executor struct {
	settings SettingsProvider
	fetcher  ContentFetcher
	prober   *ArchiveProber
	opener   Opener
	out      io.Writer
	log      logrus.FieldLogger
	progress bool
}

// NewExecutor returns an Executor reading its directories from settings.
func NewExecutor(settings SettingsProvider, fetcher ContentFetcher, opener Opener, opts ExecutorOptions) *Executor {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Log == nil {
		opts.Log = discardLogger()
	}
	if opener == nil {
		opener = SystemOpener{}
	}
	return &Executor{
		settings: settings,
		fetcher:  fetcher,
		prober:   NewArchiveProber(fetcher),
		opener:   opener,
		out:      opts.Out,
		log:      opts.Log,
		progress: opts.Progress,
	}
}

// Execute handles target and returns 1 when it was downloaded or opened,
// 0 otherwise. The error is non-nil only when a directory could not be
// provisioned.
func (e *Executor) Execute(ctx context.Context, target, label string) (int, error) {
	o, err := e.Do(ctx, target, label)
	return o.Count(), err
}

// Do handles target and reports what happened. Transfer failures are
// logged and reported as OutcomeFailed with a nil error; only ErrProvision
// is returned.
func (e *Executor) Do(ctx context.Context, target, label string) (Outcome, error) {
	if IsMagnet(target) {
		return e.openMagnet(target, label), nil
	}

	dirs, err := ResolveDirectories(ctx, e.settings)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("%w: %v", ErrProvision, err)
	}
	dl := NewLocalStorage(dirs.DownloadDir)
	ar := NewLocalStorage(dirs.ArchiveDir)
	for _, st := range []*LocalStorage{dl, ar} {
		if err := st.Provision(); err != nil {
			return OutcomeFailed, fmt.Errorf("%w %s: %v", ErrProvision, st.Dir(), err)
		}
	}

	found, err := e.prober.Exists(ctx, target, ar.Dir())
	if err != nil {
		e.log.WithError(err).WithField("target", target).Error("Archive check failed")
		_, _ = fmt.Fprintf(e.out, "An error occurred: %v\n\n", err)
		return OutcomeFailed, nil
	}
	if found {
		_, _ = fmt.Fprintln(e.out, "File found. Skipping download")
		e.log.WithField("target", target).Debug("Already archived")
		return OutcomeArchived, nil
	}

	name, err := e.transfer(ctx, target, dl, ar)
	if err != nil {
		e.log.WithError(err).WithField("target", target).Error("Download failed")
		_, _ = fmt.Fprintf(e.out, "An error occurred: %v\n\n", err)
		return OutcomeFailed, nil
	}
	e.log.WithFields(logrus.Fields{"item": label, "file": name}).Info("Downloaded")
	_, _ = fmt.Fprint(e.out, "Success.\n\n")
	return OutcomeDownloaded, nil
}

func (e *Executor) openMagnet(target, label string) Outcome {
	if err := e.opener.Open(target); err != nil {
		e.log.WithError(err).WithField("item", label).Error("Magnet link could not be opened")
		_, _ = fmt.Fprintln(e.out, "Error. Path not found.")
		return OutcomeFailed
	}
	_, _ = fmt.Fprintln(e.out, "Opening magnet link...")
	e.log.WithField("item", label).Info("Opened magnet link")
	return OutcomeOpened
}

// transfer fetches target once and writes it to dl and ar.
func (e *Executor) transfer(ctx context.Context, target string, dl, ar *LocalStorage) (string, error) {
	c, err := e.fetcher.Get(ctx, target)
	if err != nil {
		return "", err
	}
	defer func() { _ = c.Body.Close() }()

	e.log.WithFields(logrus.Fields{"url": c.URL.String(), "size": c.Size}).Debug("Transfer started")
	_, _ = fmt.Fprintf(e.out, "file to download: '%s'\n", c.Name)
	_, _ = fmt.Fprintf(e.out, "will be located under: '%s'\n", filepath.Join(dl.Dir(), c.Name))

	var prog *Progress
	if e.progress {
		prog = NewTransferProgress(c.Size, c.Name)
	}
	err = mirror(c.Name, prog.Wrap(c.Body), dl, ar)
	prog.Finish()
	if err != nil {
		return c.Name, fmt.Errorf("store %s: %w", c.Name, err)
	}
	return c.Name, nil
}

// mirror streams r into name on every store concurrently. Each Put is
// atomic; a store failing mid-stream aborts the others.
func mirror(name string, r io.Reader, stores ...Storage) error {
	var g errgroup.Group
	writers := make([]io.Writer, len(stores))
	pipes := make([]*io.PipeWriter, len(stores))
	for i, st := range stores {
		pr, pw := io.Pipe()
		writers[i], pipes[i] = pw, pw
		g.Go(func() error {
			err := st.Put(name, pr)
			_ = pr.CloseWithError(err)
			return err
		})
	}

	_, copyErr := io.Copy(io.MultiWriter(writers...), r)
	for _, pw := range pipes {
		_ = pw.CloseWithError(copyErr)
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return copyErr
}
