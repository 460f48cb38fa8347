package nyaadle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

// mapSettings is an in-memory SettingsProvider.
type mapSettings map[string]string

func (m mapSettings) Setting(_ context.Context, key string) (string, error) {
	return m[key], nil
}

type fakeOpener struct {
	opened []string
	err    error
}

func (o *fakeOpener) Open(target string) error {
	o.opened = append(o.opened, target)
	return o.err
}

const payload = "d8:announce35:udp://tracker.example:1337/announcee"

// fileServer serves payload at /files/*.torrent and redirects /dl/<name>
// there. gets counts GET requests for file content.
func fileServer(t *testing.T, gets *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			atomic.AddInt32(gets, 1)
		}
		w.Header().Set("Content-Type", "application/x-bittorrent")
		_, _ = io.WriteString(w, payload)
	})
	mux.HandleFunc("/dl/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/files/"+filepath.Base(r.URL.Path)+".torrent", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testDirs(t *testing.T) (mapSettings, string, string) {
	t.Helper()
	root := t.TempDir()
	dl := filepath.Join(root, "ingest")
	ar := filepath.Join(root, "ingest", "archive")
	return mapSettings{
		KeyDownloadDir: dl,
		KeyArchiveDir:  ar,
		KeyFeedURL:     DefaultFeedURL,
		KeyLogPath:     filepath.Join(root, "nyaadle.log"),
	}, dl, ar
}

func testFetcher() *Fetcher {
	return NewFetcher(FetcherOptions{Timeout: 5 * time.Second, RetryBackoff: time.Millisecond})
}

func TestExecutorDownloadsAndMirrors(t *testing.T) {
	var gets int32
	srv := fileServer(t, &gets)
	settings, dl, ar := testDirs(t)
	exec := NewExecutor(settings, testFetcher(), &fakeOpener{}, ExecutorOptions{Out: io.Discard})

	n, err := exec.Execute(context.Background(), srv.URL+"/dl/show-01", "Show 01")
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	if gets := atomic.LoadInt32(&gets); gets != 1 {
		t.Errorf("content fetched %d times, want 1", gets)
	}
	for _, dir := range []string{dl, ar} {
		got, err := os.ReadFile(filepath.Join(dir, "show-01.torrent"))
		if err != nil {
			t.Fatalf("read from %s: %v", dir, err)
		}
		if string(got) != payload {
			t.Errorf("%s content = %q, want %q", dir, got, payload)
		}
	}
}

func TestExecutorArchivedShortCircuits(t *testing.T) {
	var gets int32
	srv := fileServer(t, &gets)
	settings, dl, ar := testDirs(t)
	if err := os.MkdirAll(ar, 0750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(ar, "show-01.torrent"), []byte("old"), 0600); err != nil {
		t.Fatal(err)
	}
	exec := NewExecutor(settings, testFetcher(), &fakeOpener{}, ExecutorOptions{Out: io.Discard})

	o, err := exec.Do(context.Background(), srv.URL+"/dl/show-01", "Show 01")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if o != OutcomeArchived || o.Count() != 0 {
		t.Errorf("outcome = %v (count %d), want archived (0)", o, o.Count())
	}
	if gets := atomic.LoadInt32(&gets); gets != 0 {
		t.Errorf("content fetched %d times, want 0", gets)
	}
	if _, err := os.Stat(filepath.Join(dl, "show-01.torrent")); !os.IsNotExist(err) {
		t.Errorf("download dir written despite archive hit: %v", err)
	}
}

func TestExecutorHeadRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	settings, dl, _ := testDirs(t)
	exec := NewExecutor(settings, testFetcher(), &fakeOpener{}, ExecutorOptions{Out: io.Discard})

	o, err := exec.Do(context.Background(), srv.URL+"/signed.torrent", "signed")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if o != OutcomeDownloaded {
		t.Errorf("outcome = %v, want downloaded", o)
	}
	got, err := os.ReadFile(filepath.Join(dl, "signed.torrent"))
	if err != nil || string(got) != payload {
		t.Errorf("downloaded content = %q, %v; want %q", got, err, payload)
	}
}

func TestExecutorTransferFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	settings, _, _ := testDirs(t)
	exec := NewExecutor(settings, testFetcher(), &fakeOpener{}, ExecutorOptions{Out: io.Discard})

	o, err := exec.Do(context.Background(), srv.URL+"/missing.torrent", "missing")
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if o != OutcomeFailed {
		t.Errorf("outcome = %v, want failed", o)
	}
}

func TestExecutorMagnet(t *testing.T) {
	const magnet = "magnet:?xt=urn:btih:0123456789abcdef"
	settings, dl, _ := testDirs(t)

	op := &fakeOpener{}
	exec := NewExecutor(settings, testFetcher(), op, ExecutorOptions{Out: io.Discard})
	n, err := exec.Execute(context.Background(), magnet, "Show 01")
	if err != nil || n != 1 {
		t.Fatalf("Execute = %d, %v; want 1, nil", n, err)
	}
	if len(op.opened) != 1 || op.opened[0] != magnet {
		t.Errorf("opened = %q, want [%q]", op.opened, magnet)
	}
	if _, err := os.Stat(dl); !os.IsNotExist(err) {
		t.Error("magnet link provisioned the download directory")
	}

	failing := &fakeOpener{err: errors.New("no handler")}
	exec = NewExecutor(settings, testFetcher(), failing, ExecutorOptions{Out: io.Discard})
	if n, err := exec.Execute(context.Background(), magnet, "Show 01"); err != nil || n != 0 {
		t.Errorf("Execute with failing opener = %d, %v; want 0, nil", n, err)
	}
}

func TestExecutorProvisionFailure(t *testing.T) {
	settings, _, _ := testDirs(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0600); err != nil {
		t.Fatal(err)
	}
	settings[KeyDownloadDir] = filepath.Join(blocker, "ingest")
	exec := NewExecutor(settings, testFetcher(), &fakeOpener{}, ExecutorOptions{Out: io.Discard})

	_, err := exec.Do(context.Background(), "https://example.invalid/a.torrent", "a")
	if !errors.Is(err, ErrProvision) {
		t.Fatalf("err = %v, want ErrProvision", err)
	}
}

type failingStorage struct{}

func (failingStorage) Exists(string) bool { return false }
func (failingStorage) Put(_ string, r io.Reader) error {
	buf := make([]byte, 4)
	_, _ = r.Read(buf)
	return errors.New("disk full")
}

func TestMirrorAbortsOnStoreFailure(t *testing.T) {
	dir := t.TempDir()
	good := NewLocalStorage(dir)
	err := mirror("a.bin", io.LimitReader(zeroReader{}, 1<<20), good, failingStorage{})
	if err == nil {
		t.Fatal("mirror succeeded with a failing store")
	}
	if good.Exists("a.bin") {
		t.Error("partial file left in the healthy store")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
