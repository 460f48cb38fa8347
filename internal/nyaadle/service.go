package nyaadle

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// FeedFetcher returns the items of a feed.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) ([]FeedItem, error)
}

// Config holds the runtime options of a Service.
type Config struct {
	Workers int       // concurrent direct downloads in RunLinks (default 1)
	Out     io.Writer // human-readable progress lines (default os.Stdout)
	Log     logrus.FieldLogger
}

// Service exposes the run modes used by the command line.
type Service struct {
	feed    FeedFetcher
	tracker Deduper
	exec    Downloader
	workers int
	out     io.Writer
	log     logrus.FieldLogger
}

// NewService wires the feed source, tracker and downloader into a Service.
func NewService(feed FeedFetcher, tracker Deduper, exec Downloader, cfg Config) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	if cfg.Log == nil {
		cfg.Log = discardLogger()
	}
	return &Service{
		feed:    feed,
		tracker: tracker,
		exec:    exec,
		workers: cfg.Workers,
		out:     cfg.Out,
		log:     cfg.Log,
	}
}

func (s *Service) runLogger(mode string) logrus.FieldLogger {
	return s.log.WithFields(logrus.Fields{"run": uuid.NewString(), "mode": mode})
}

// RunNormal fetches feedURL, matches it against watch and downloads every
// new match. A feed failure is returned before any item is evaluated.
func (s *Service) RunNormal(ctx context.Context, feedURL string, watch []WatchEntry) (*Summary, error) {
	return s.runFeed(ctx, feedURL, watch, false)
}

// RunCheck fetches feedURL and reports matches without downloading or
// touching tracking state.
func (s *Service) RunCheck(ctx context.Context, feedURL string, watch []WatchEntry) (*Summary, error) {
	return s.runFeed(ctx, feedURL, watch, true)
}

func (s *Service) runFeed(ctx context.Context, feedURL string, watch []WatchEntry, checkOnly bool) (*Summary, error) {
	mode := "normal"
	if checkOnly {
		mode = "check"
	}
	log := s.runLogger(mode)
	log.WithField("feed", feedURL).Infof("Nyaadle started in %s mode.", mode)

	items, err := s.feed.Fetch(ctx, feedURL)
	if err != nil {
		log.WithError(err).Error("Unable to connect to website. Nyaadle closed.")
		return nil, err
	}
	log.WithField("items", len(items)).Debug("Feed fetched")

	engine := NewEngine(s.tracker, s.exec, s.out, log)
	sum, err := engine.Run(ctx, items, watch, checkOnly)
	if err != nil {
		log.WithError(err).Error("Run aborted")
		return sum, err
	}
	sum.Report(log)
	return sum, nil
}

// RunLinks downloads every non-blank target directly, without tracking.
// Magnet links are handed to the opener. Targets are processed in order
// unless the Service was configured with more than one worker; then their
// progress lines on Out interleave.
func (s *Service) RunLinks(ctx context.Context, targets []string) (*Summary, error) {
	log := s.runLogger("download")
	log.Info("Nyaadle started in download mode.")

	var links []string
	for _, t := range targets {
		if t = strings.TrimSpace(t); t != "" {
			links = append(links, t)
		}
	}
	sum := &Summary{}
	if len(links) == 0 {
		_, _ = fmt.Fprintln(s.out, "No link found. Exiting...")
		sum.Report(log)
		return sum, nil
	}

	var err error
	if s.workers <= 1 {
		err = s.linksSequential(ctx, links, sum)
	} else {
		err = s.linksPooled(ctx, links, sum)
	}
	if err != nil {
		log.WithError(err).Error("Run aborted")
		return sum, err
	}
	sum.Report(log)
	return sum, nil
}

func (s *Service) linksSequential(ctx context.Context, links []string, sum *Summary) error {
	for _, link := range links {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(s.out, "Downloading %s\n", link)
		o, err := s.exec.Do(ctx, link, link)
		if err != nil {
			return err
		}
		sum.Add(o)
	}
	return nil
}

func (s *Service) linksPooled(ctx context.Context, links []string, sum *Summary) error {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	g, ctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for _, link := range links {
		g.Go(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errCh := make(chan error, 1)
			if err := pool.Submit(func() {
				_, _ = fmt.Fprintf(s.out, "Downloading %s\n", link)
				o, err := s.exec.Do(ctx, link, link)
				if err == nil {
					mu.Lock()
					sum.Add(o)
					mu.Unlock()
				}
				errCh <- err
			}); err != nil {
				return fmt.Errorf("submit task: %w", err)
			}
			return <-errCh
		})
	}
	return g.Wait()
}

// ReadLinks returns the non-blank lines of r, trimmed.
func ReadLinks(r io.Reader) ([]string, error) {
	var links []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			links = append(links, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read links: %w", err)
	}
	return links, nil
}
